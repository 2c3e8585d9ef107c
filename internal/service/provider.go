package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ProviderStatus is the payment provider's view of an invoice.
type ProviderStatus string

const (
	ProviderStatusPending ProviderStatus = "PENDING"
	ProviderStatusPaid    ProviderStatus = "PAID"
	ProviderStatusFailed  ProviderStatus = "FAILED"
	ProviderStatusExpired ProviderStatus = "EXPIRED"
)

// Invoice is the provider's response to an invoice creation request. Ref is
// the opaque correlation token all later confirmation signals carry.
type Invoice struct {
	Ref    string
	PayURL string
}

// PaymentProvider abstracts the external payment gateway. Wire format and
// signature handling are provider-specific and live behind this interface.
type PaymentProvider interface {
	// CreateInvoice registers a payable invoice with the provider.
	CreateInvoice(ctx context.Context, amount float64, description, token string) (*Invoice, error)

	// Confirm asks the provider for the authoritative state of an invoice.
	Confirm(ctx context.Context, ref string) (ProviderStatus, string, error)
}

// MockProvider is an in-memory PaymentProvider for local runs and tests.
// Invoices are paid as soon as they are confirmed unless a status override
// is registered for the token.
type MockProvider struct {
	mu         sync.Mutex
	statuses   map[string]ProviderStatus
	CreateErr  error
	ConfirmErr error
}

// NewMockProvider creates a new mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{statuses: make(map[string]ProviderStatus)}
}

// SetStatus overrides the status the provider reports for a token.
func (p *MockProvider) SetStatus(token string, status ProviderStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses[token] = status
}

// CreateInvoice registers an invoice and echoes the token back as reference.
func (p *MockProvider) CreateInvoice(ctx context.Context, amount float64, description, token string) (*Invoice, error) {
	if p.CreateErr != nil {
		return nil, p.CreateErr
	}
	return &Invoice{
		Ref:    token,
		PayURL: fmt.Sprintf("https://pay.example.com/invoice/%s", token),
	}, nil
}

// Confirm reports the invoice state, defaulting to paid.
func (p *MockProvider) Confirm(ctx context.Context, ref string) (ProviderStatus, string, error) {
	if p.ConfirmErr != nil {
		return "", "", p.ConfirmErr
	}
	p.mu.Lock()
	status, ok := p.statuses[ref]
	p.mu.Unlock()
	if !ok {
		status = ProviderStatusPaid
	}
	if status != ProviderStatusPaid {
		return status, "", nil
	}
	return ProviderStatusPaid, "txn-" + uuid.New().String(), nil
}

var _ PaymentProvider = (*MockProvider)(nil)
