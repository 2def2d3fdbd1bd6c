package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ProviderError is a non-2xx answer from a provider's API. Rate limits
// and server-side failures are recoverable; rejected payloads are not.
type ProviderError struct {
	Provider string
	Status   int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s responded %d", e.Provider, e.Status)
}

func (e *ProviderError) Recoverable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// HTTPProvider posts the activation template and its parameter record to
// a transactional email API.
type HTTPProvider struct {
	ProviderName string
	URL          string
	APIKey       string
	From         string
	Client       *http.Client
}

func NewHTTPProvider(name, url, apiKey, from string) *HTTPProvider {
	return &HTTPProvider{
		ProviderName: name,
		URL:          url,
		APIKey:       apiKey,
		From:         from,
		Client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPProvider) Name() string { return p.ProviderName }

func (p *HTTPProvider) SendActivation(ctx context.Context, req Request) error {
	payload, err := json.Marshal(map[string]any{
		"template": "user_activation",
		"from":     p.From,
		"to":       req.Email,
		"params": map[string]any{
			"userId":           req.UserID,
			"email":            req.Email,
			"fullName":         req.FullName,
			"organizationName": req.OrganizationName,
			"activationToken":  req.ActivationToken,
		},
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ProviderError{Provider: p.ProviderName, Status: resp.StatusCode}
	}
	return nil
}

var _ Provider = (*HTTPProvider)(nil)
