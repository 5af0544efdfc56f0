package invoice

import (
	"context"
	"errors"
	"fmt"

	"trade-closeout/internal/models"
)

var (
	ErrNotVisible  = errors.New("invoice is not available")
	ErrAlreadyPaid = errors.New("invoice is already paid")
	ErrClientOnly  = errors.New("only the client may do this")
)

// Backend — побочные действия со счётом, результат сервер не интерпретирует.
type Backend interface {
	MarkInvoiceViewed(ctx context.Context, invoiceID uint) (*models.Invoice, error)
	MarkInvoicePaid(ctx context.Context, invoiceID uint) (*models.Invoice, error)
	DownloadInvoice(ctx context.Context, invoiceID uint) ([]byte, error)
}

type Actions struct {
	backend Backend
	role    models.UserRole
}

func NewActions(b Backend, role models.UserRole) *Actions {
	return &Actions{backend: b, role: role}
}

// Open — заказчик открыл счёт: sent → viewed. Для остальных статусов без запроса.
func (a *Actions) Open(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	if !IsVisible(inv) {
		return nil, ErrNotVisible
	}
	if a.role != models.RoleClient || StatusOf(inv) != StatusSent {
		return inv, nil
	}
	updated, err := a.backend.MarkInvoiceViewed(ctx, inv.ID)
	if err != nil {
		return inv, fmt.Errorf("mark invoice %d viewed: %w", inv.ID, err)
	}
	return updated, nil
}

func (a *Actions) MarkPaid(ctx context.Context, inv *models.Invoice) (*models.Invoice, error) {
	if !IsVisible(inv) {
		return nil, ErrNotVisible
	}
	if a.role != models.RoleClient {
		return inv, ErrClientOnly
	}
	if IsPaid(inv) {
		return inv, ErrAlreadyPaid
	}
	updated, err := a.backend.MarkInvoicePaid(ctx, inv.ID)
	if err != nil {
		return inv, fmt.Errorf("mark invoice %d paid: %w", inv.ID, err)
	}
	return updated, nil
}

func (a *Actions) Download(ctx context.Context, inv *models.Invoice) ([]byte, error) {
	if !IsVisible(inv) {
		return nil, ErrNotVisible
	}
	data, err := a.backend.DownloadInvoice(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("download invoice %d: %w", inv.ID, err)
	}
	return data, nil
}
