package mailer

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

type fakeProvider struct {
	name  string
	err   error
	calls int
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) SendActivation(context.Context, Request) error {
	p.calls++
	return p.err
}

func TestSendActivation_PrimaryWins(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	secondary := &fakeProvider{name: "secondary"}

	receipt, err := New(primary, secondary).SendActivation(context.Background(), Request{Email: "a@b.c"})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Provider != "primary" {
		t.Errorf("receipt.Provider = %s, want primary", receipt.Provider)
	}
	if secondary.calls != 0 {
		t.Errorf("secondary was called %d times, want 0", secondary.calls)
	}
}

func TestSendActivation_RecoverableFallsBack(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: &ProviderError{Provider: "primary", Status: http.StatusServiceUnavailable}}
	secondary := &fakeProvider{name: "secondary"}

	receipt, err := New(primary, secondary).SendActivation(context.Background(), Request{Email: "a@b.c"})
	if err != nil {
		t.Fatal(err)
	}
	if receipt.Provider != "secondary" {
		t.Errorf("receipt.Provider = %s, want secondary", receipt.Provider)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls, secondary.calls)
	}
}

func TestSendActivation_UnrecoverableDoesNotFallBack(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: &ProviderError{Provider: "primary", Status: http.StatusUnprocessableEntity}}
	secondary := &fakeProvider{name: "secondary"}

	_, err := New(primary, secondary).SendActivation(context.Background(), Request{Email: "a@b.c"})
	if err == nil {
		t.Fatal("expected error")
	}
	if secondary.calls != 0 {
		t.Errorf("secondary was called on an unrecoverable failure")
	}
}

func TestSendActivation_BothChannelsFail(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: &ProviderError{Provider: "primary", Status: 500}}
	secondary := &fakeProvider{name: "secondary", err: errors.New("down too")}

	_, err := New(primary, secondary).SendActivation(context.Background(), Request{Email: "a@b.c"})
	if err == nil {
		t.Fatal("expected error when both channels fail")
	}
}

func TestSendActivation_NoSecondary(t *testing.T) {
	primary := &fakeProvider{name: "primary", err: &ProviderError{Provider: "primary", Status: 500}}

	_, err := New(primary, nil).SendActivation(context.Background(), Request{Email: "a@b.c"})
	if err == nil {
		t.Fatal("expected error with no fallback channel")
	}
}
