package tradestate

import (
	"context"
	"fmt"

	"trade-closeout/internal/models"

	"golang.org/x/sync/errgroup"
)

// Source — чтение авторитетного состояния с сервера.
type Source interface {
	GetTrade(ctx context.Context, tradeID uint) (*models.Trade, error)
	ListDefects(ctx context.Context, tradeID uint, includeResolved bool) ([]models.Defect, error)
	GetInvoice(ctx context.Context, tradeID uint) (*models.Invoice, error)
}

// Refresh параллельно читает трейд, реестр дефектов и счёт и применяет их.
// При ошибке любого запроса состояние не меняется.
func Refresh(ctx context.Context, s *State, src Source) error {
	id := s.TradeID()

	var (
		trade  *models.Trade
		ledger []models.Defect
		inv    *models.Invoice
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := src.GetTrade(gctx, id)
		if err != nil {
			return fmt.Errorf("get trade: %w", err)
		}
		trade = t
		return nil
	})
	g.Go(func() error {
		list, err := src.ListDefects(gctx, id, true)
		if err != nil {
			return fmt.Errorf("list defects: %w", err)
		}
		ledger = list
		return nil
	})
	g.Go(func() error {
		i, err := src.GetInvoice(gctx, id)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		inv = i
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.MergeDefects(ledger)
	s.SetInvoice(inv)
	if trade != nil {
		return s.Reconcile(*trade)
	}
	return nil
}
