package acceptance

import (
	"context"
	"errors"
	"fmt"

	"trade-closeout/internal/apiclient"
	"trade-closeout/internal/completion"
	"trade-closeout/internal/defects"
	"trade-closeout/internal/lookup"
	"trade-closeout/internal/models"
	"trade-closeout/internal/tradestate"
)

// Submission — полезная нагрузка final-complete. Вариант определяется ролью.
type Submission interface {
	Event() completion.Event
	request(tradeID uint) models.FinalCompleteRequest
}

// ClientAcceptance — заказчик принимает работы окончательно и ставит оценки.
type ClientAcceptance struct {
	Notes   string
	Ratings models.Ratings
}

func (ClientAcceptance) Event() completion.Event { return completion.EventFinalAccept }

func (s ClientAcceptance) request(tradeID uint) models.FinalCompleteRequest {
	r := s.Ratings
	return models.FinalCompleteRequest{
		Accepted:    true,
		MilestoneID: tradeID,
		FinalNotes:  s.Notes,
		Ratings:     &r,
	}
}

// ContractorRemediation — подрядчик сообщает, что дефекты устранены. Без оценок.
type ContractorRemediation struct {
	Notes string
}

func (ContractorRemediation) Event() completion.Event { return completion.EventReportRemediation }

func (s ContractorRemediation) request(tradeID uint) models.FinalCompleteRequest {
	return models.FinalCompleteRequest{
		Accepted:    true,
		MilestoneID: tradeID,
		FinalNotes:  s.Notes,
	}
}

func finalEvent(role models.UserRole) completion.Event {
	if role == models.RoleContractor {
		return completion.EventReportRemediation
	}
	return completion.EventFinalAccept
}

// FinalCoordinator — чек-лист устранения дефектов и финальная приёмка.
type FinalCoordinator struct {
	state   *tradestate.State
	backend Backend
	role    models.UserRole
	opts    options
}

func NewFinalCoordinator(state *tradestate.State, backend Backend, role models.UserRole, opts ...Option) *FinalCoordinator {
	return &FinalCoordinator{
		state:   state,
		backend: backend,
		role:    role,
		opts:    buildOptions(opts),
	}
}

// Open загружает полный реестр (с устранёнными); устранённые на сервере
// дефекты сразу отмечены.
func (f *FinalCoordinator) Open(ctx context.Context) (*FinalSession, error) {
	if _, err := f.state.Check(finalEvent(f.role), f.role, completion.Facts{}); err != nil {
		return nil, err
	}

	list, err := f.backend.ListDefects(ctx, f.state.TradeID(), true)
	if err != nil {
		f.opts.log.Warn("load defect ledger failed", "trade_id", f.state.TradeID(), "error", err)
		return nil, fmt.Errorf("load defects: %w", err)
	}
	f.state.MergeDefects(list)

	return &FinalSession{
		role:   f.role,
		ledger: defects.NewLedger(f.state.Snapshot().Defects),
	}, nil
}

// Submit: отметки об устранении → поиск приёмки → final-complete → переход статуса.
// При любой ошибке статус трейда не меняется.
func (f *FinalCoordinator) Submit(ctx context.Context, s *FinalSession) error {
	sub, err := s.Submission()
	if err != nil {
		return err
	}
	if s.submitting {
		return tradestate.ErrBusy
	}
	facts := completion.Facts{UnresolvedDefects: s.ledger.UncheckedCount()}
	if _, err := f.state.Check(sub.Event(), f.role, facts); err != nil {
		return err
	}

	done, err := f.state.Begin()
	if err != nil {
		return err
	}
	s.submitting = true
	defer func() {
		s.submitting = false
		done()
	}()

	tradeID := f.state.TradeID()
	log := f.opts.log.With("trade_id", tradeID, "role", f.role)

	for _, d := range s.ledger.PendingResolution() {
		at := f.opts.now()
		if _, err := f.backend.ResolveDefect(ctx, d.ID, at); err != nil {
			log.Warn("resolve defect failed", "defect_id", d.ID, "error", err)
			return fmt.Errorf("resolve defect %d: %w", d.ID, err)
		}
		if err := s.ledger.MarkResolved(d.ID, at); err != nil {
			return err
		}
		f.state.MarkDefectResolved(d.ID, at)
	}

	acceptanceID, err := f.resolveAcceptanceID(ctx, tradeID)
	if err != nil {
		log.Warn("acceptance lookup failed", "error", err)
		return err
	}

	resp, err := f.backend.FinalComplete(ctx, acceptanceID, sub.request(tradeID))
	if err != nil {
		log.Warn("final complete failed", "acceptance_id", acceptanceID, "error", err)
		if errors.Is(err, apiclient.ErrConflict) {
			if rerr := tradestate.Refresh(ctx, f.state, f.backend); rerr != nil {
				log.Warn("reload after conflict failed", "error", rerr)
			}
		}
		return fmt.Errorf("final complete: %w", err)
	}

	f.state.SetAcceptanceID(acceptanceID)
	if _, err := f.state.Fire(sub.Event(), f.role, facts); err != nil {
		return err
	}
	f.state.MergeDefects(resp.Acceptance.Defects)
	log.Info("final acceptance submitted", "acceptance_id", acceptanceID, "event", sub.Event())
	return nil
}

// resolveAcceptanceID: известный id, иначе самая свежая приёмка из истории.
func (f *FinalCoordinator) resolveAcceptanceID(ctx context.Context, tradeID uint) (uint, error) {
	id, err := lookup.First(ctx, func(id uint) bool { return id > 0 },
		lookup.Known("known", f.state.AcceptanceID(), true),
		lookup.Strategy[uint]{
			Name: "history",
			Find: func(ctx context.Context) (uint, bool, error) {
				list, err := f.backend.ListAcceptances(ctx, tradeID)
				if err != nil || len(list) == 0 {
					return 0, false, err
				}
				return list[0].ID, true, nil
			},
		},
	)
	if errors.Is(err, lookup.ErrNotFound) {
		return 0, fmt.Errorf("%w: trade %d", ErrAcceptanceNotFound, tradeID)
	}
	return id, err
}

// FinalSession — локальный чек-лист устранения и оценки. Отметки не уходят
// на сервер до Submit.
type FinalSession struct {
	role    models.UserRole
	ledger  *defects.Ledger
	notes   string
	ratings models.Ratings

	submitting bool
}

func (s *FinalSession) Role() models.UserRole { return s.role }

func (s *FinalSession) Defects() []models.Defect { return s.ledger.Defects() }

func (s *FinalSession) IsChecked(id uint) bool { return s.ledger.IsChecked(id) }

func (s *FinalSession) Toggle(id uint) (bool, error) { return s.ledger.Toggle(id) }

func (s *FinalSession) Check(id uint) error { return s.ledger.Check(id) }

func (s *FinalSession) Uncheck(id uint) error { return s.ledger.Uncheck(id) }

// AllDefectsResolved — реестр пуст или все дефекты отмечены.
func (s *FinalSession) AllDefectsResolved() bool { return s.ledger.AllResolved() }

func (s *FinalSession) SetNotes(notes string) { s.notes = notes }

// SetRatings — только для заказчика.
func (s *FinalSession) SetRatings(r models.Ratings) error {
	if s.role != models.RoleClient {
		return fmt.Errorf("%w: ratings are collected from the client", completion.ErrRoleNotPermitted)
	}
	s.ratings = r
	return nil
}

func (s *FinalSession) Ratings() models.Ratings { return s.ratings }

// NeedsRatings — перед отправкой нужно собрать оценки.
func (s *FinalSession) NeedsRatings() bool { return s.role == models.RoleClient }

func (s *FinalSession) Label() string { return completion.ActionLabel(s.role) }

// CanSubmit — кнопка отправки активна.
func (s *FinalSession) CanSubmit() bool {
	if s.submitting || !s.AllDefectsResolved() {
		return false
	}
	return !s.NeedsRatings() || s.ratings.Valid()
}

// Submission собирает вариант полезной нагрузки для роли сессии.
func (s *FinalSession) Submission() (Submission, error) {
	switch s.role {
	case models.RoleContractor:
		return ContractorRemediation{Notes: s.notes}, nil
	case models.RoleClient:
		if !s.ratings.Valid() {
			return nil, ErrInvalidRatings
		}
		return ClientAcceptance{Notes: s.notes, Ratings: s.ratings}, nil
	}
	return nil, fmt.Errorf("%w: %s", completion.ErrRoleNotPermitted, s.role)
}
