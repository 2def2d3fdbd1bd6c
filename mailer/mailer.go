package mailer

import (
	"context"

	"github.com/JakeFriedberg29/Patroller-sub001/log"
	"github.com/pkg/errors"
)

// Request is the parameter record for an activation mail.
type Request struct {
	UserID           int    `json:"userId"`
	Email            string `json:"email"`
	FullName         string `json:"fullName"`
	OrganizationName string `json:"organizationName,omitempty"`
	ActivationToken  string `json:"-"`
}

// Receipt identifies which provider accepted the mail.
type Receipt struct {
	Provider string `json:"provider"`
}

// Provider is one transactional email channel.
type Provider interface {
	Name() string
	SendActivation(ctx context.Context, req Request) error
}

// recoverable marks provider errors worth retrying on another channel
// (rate limits, upstream outages); anything else fails outright.
type recoverable interface {
	Recoverable() bool
}

func isRecoverable(err error) bool {
	var r recoverable
	return errors.As(err, &r) && r.Recoverable()
}

// Mailer sends activation mail through the primary provider and retries
// once via the secondary when the primary reports a recoverable error.
type Mailer struct {
	primary   Provider
	secondary Provider
}

func New(primary, secondary Provider) *Mailer {
	return &Mailer{primary: primary, secondary: secondary}
}

func (m *Mailer) SendActivation(ctx context.Context, req Request) (Receipt, error) {
	err := m.primary.SendActivation(ctx, req)
	if err == nil {
		return Receipt{Provider: m.primary.Name()}, nil
	}
	if m.secondary == nil || !isRecoverable(err) {
		return Receipt{}, errors.Wrapf(err, "send activation via %s", m.primary.Name())
	}

	log.Warnf("mailer: %s failed recoverably, retrying via %s: %s",
		m.primary.Name(), m.secondary.Name(), err)

	if err2 := m.secondary.SendActivation(ctx, req); err2 != nil {
		return Receipt{}, errors.Wrapf(err2, "send activation via %s after %s failed", m.secondary.Name(), m.primary.Name())
	}
	return Receipt{Provider: m.secondary.Name()}, nil
}
