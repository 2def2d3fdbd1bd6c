package config

import (
	"errors"
	"flag"
	"net"
	"regexp"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Mail        MailConfig
	BulkDelay   time.Duration
	Debug       bool
}

// MailConfig points at the transactional email providers. The secondary
// channel is optional; when set it is used as the fallback after a
// recoverable primary failure.
type MailConfig struct {
	From         string
	PrimaryURL   string
	PrimaryKey   string
	SecondaryURL string
	SecondaryKey string
}

func ParseFlags() (cfg Config, err error) {
	var host string
	flag.StringVar(&host, "host", "0.0.0.0", "listen host name (default 0.0.0.0)")
	var port uint
	flag.UintVar(&port, "port", 80, "listen port number (default 80)")
	flag.StringVar(&cfg.DBUrl, "db-url", "patroller.sqlite", "path to SQLite3 DB file (default patroller.sqlite)")
	flag.StringVar(&cfg.TokenSecret, "token-secret", "", "secret key for token encryption and decryption")
	var ttl uint
	flag.UintVar(&ttl, "token-ttl", 120, "token TTL in seconds (default 120)")
	flag.StringVar(&cfg.Mail.From, "mail-from", "noreply@patroller.local", "sender address for activation mail")
	flag.StringVar(&cfg.Mail.PrimaryURL, "mail-primary-url", "", "primary mail provider endpoint")
	flag.StringVar(&cfg.Mail.PrimaryKey, "mail-primary-key", "", "primary mail provider API key")
	flag.StringVar(&cfg.Mail.SecondaryURL, "mail-secondary-url", "", "secondary (fallback) mail provider endpoint")
	flag.StringVar(&cfg.Mail.SecondaryKey, "mail-secondary-key", "", "secondary mail provider API key")
	var bulkDelay uint
	flag.UintVar(&bulkDelay, "bulk-delay-ms", 150, "delay between bulk operation items in milliseconds")
	flag.BoolVar(&cfg.Debug, "debug", false, "log at DEBUG level")
	flag.Parse()

	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(int(port)))
	cfg.TokenTTL = time.Duration(ttl) * time.Second
	cfg.BulkDelay = time.Duration(bulkDelay) * time.Millisecond

	if cfg.TokenSecret == "" {
		err = errors.New("missing parameter -token-secret")
	}

	return
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr
	url = regexp.MustCompile(`^0.0.0.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}
