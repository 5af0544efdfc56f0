// Package archive — перенос завершённого и оплаченного трейда в архив.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trade-closeout/internal/completion"
	"trade-closeout/internal/invoice"
	"trade-closeout/internal/models"
	"trade-closeout/internal/tradestate"
)

var ErrNotConfirmed = errors.New("archiving requires explicit confirmation")

// CanArchive: трейд принят (completed) и счёт оплачен.
func CanArchive(trade models.Trade, inv *models.Invoice) bool {
	status, ok := models.ParseCompletionStatus(string(trade.CompletionStatus))
	return ok && status == models.StatusCompleted && invoice.IsPaid(inv)
}

// Backend — POST /milestones/{id}/archive.
type Backend interface {
	ArchiveTrade(ctx context.Context, tradeID uint) (*models.Trade, error)
}

type Archiver struct {
	state   *tradestate.State
	backend Backend
	role    models.UserRole
	log     *slog.Logger
}

func NewArchiver(state *tradestate.State, backend Backend, role models.UserRole) *Archiver {
	return &Archiver{state: state, backend: backend, role: role, log: slog.Default()}
}

func (a *Archiver) WithLogger(l *slog.Logger) *Archiver {
	a.log = l
	return a
}

// Allowed — показывать ли действие «В архив».
func (a *Archiver) Allowed() bool {
	snap := a.state.Snapshot()
	return a.role == models.RoleClient && CanArchive(snap.Trade, snap.Invoice)
}

// Archive — необратимо. Без подтверждения или при закрытом шлюзе ничего
// не отправляет и возвращает (false, nil).
func (a *Archiver) Archive(ctx context.Context, confirmed bool) (bool, error) {
	if !a.Allowed() {
		return false, nil
	}
	if !confirmed {
		return false, ErrNotConfirmed
	}

	facts := completion.Facts{InvoicePaid: true}
	if _, err := a.state.Check(completion.EventArchive, a.role, facts); err != nil {
		return false, err
	}

	done, err := a.state.Begin()
	if err != nil {
		return false, err
	}
	defer done()

	tradeID := a.state.TradeID()
	if _, err := a.backend.ArchiveTrade(ctx, tradeID); err != nil {
		a.log.Warn("archive trade failed", "trade_id", tradeID, "error", err)
		return false, fmt.Errorf("archive trade: %w", err)
	}
	if _, err := a.state.Fire(completion.EventArchive, a.role, facts); err != nil {
		return false, err
	}
	return true, nil
}
