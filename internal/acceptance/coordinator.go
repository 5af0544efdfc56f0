package acceptance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trade-closeout/internal/apiclient"
	"trade-closeout/internal/completion"
	"trade-closeout/internal/defects"
	"trade-closeout/internal/models"
	"trade-closeout/internal/tradestate"
)

// Coordinator ведёт трейд от запроса приёмки до её результата.
type Coordinator struct {
	state   *tradestate.State
	backend Backend
	role    models.UserRole
	opts    options
}

func NewCoordinator(state *tradestate.State, backend Backend, role models.UserRole, opts ...Option) *Coordinator {
	return &Coordinator{
		state:   state,
		backend: backend,
		role:    role,
		opts:    buildOptions(opts),
	}
}

// UpdateProgress — подрядчик сообщает процент выполнения, пока трейд в работе.
func (c *Coordinator) UpdateProgress(ctx context.Context, pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidProgress, pct)
	}
	if c.role != models.RoleContractor {
		return fmt.Errorf("%w: progress is reported by the contractor", completion.ErrRoleNotPermitted)
	}
	if status := c.state.Status(); status != models.StatusInProgress {
		return fmt.Errorf("%w: progress is frozen in %s", completion.ErrIllegalTransition, status)
	}

	done, err := c.state.Begin()
	if err != nil {
		return err
	}
	defer done()

	trade, err := c.backend.UpdateProgress(ctx, c.state.TradeID(), pct)
	if err != nil {
		c.opts.log.Warn("update progress failed", "trade_id", c.state.TradeID(), "error", err)
		return fmt.Errorf("update progress: %w", err)
	}
	c.state.SetProgress(trade.Progress)
	return nil
}

// RequestCompletion — подрядчик просит заказчика принять работы (прогресс 100%).
func (c *Coordinator) RequestCompletion(ctx context.Context, message string) error {
	facts := completion.Facts{Progress: c.state.Snapshot().Trade.Progress}
	if _, err := c.state.Check(completion.EventRequestCompletion, c.role, facts); err != nil {
		return err
	}

	done, err := c.state.Begin()
	if err != nil {
		return err
	}
	defer done()

	resp, err := c.backend.RequestCompletion(ctx, c.state.TradeID(), message)
	if err != nil {
		c.opts.log.Warn("request completion failed", "trade_id", c.state.TradeID(), "error", err)
		return fmt.Errorf("request completion: %w", err)
	}

	if _, err := c.state.Fire(completion.EventRequestCompletion, c.role, facts); err != nil {
		return err
	}
	c.state.SetAcceptanceID(resp.Acceptance.ID)
	return nil
}

// StartAcceptance открывает осмотр. Сетевых вызовов нет.
func (c *Coordinator) StartAcceptance(ctx context.Context) (*Inspection, error) {
	if c.role != models.RoleClient {
		return nil, fmt.Errorf("%w: acceptance is performed by the client", completion.ErrRoleNotPermitted)
	}
	if status := c.state.Status(); status != models.StatusCompletionRequested {
		return nil, fmt.Errorf("%w: acceptance is not open in %s", completion.ErrIllegalTransition, status)
	}
	return &Inspection{
		TradeID:     c.state.TradeID(),
		CompletedAt: c.opts.now(),
	}, nil
}

// CompleteAcceptance — единственный изменяющий вызов приёмки.
// Без замечаний → completed; иначе → completed_with_defects, а реестр дефектов
// с сервера сохраняется для финальной приёмки.
func (c *Coordinator) CompleteAcceptance(ctx context.Context, r Result) (*models.Acceptance, error) {
	drafts := make([]models.DefectInput, 0, len(r.Defects))
	for _, d := range r.Defects {
		v, err := defects.ValidateDraft(d)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, v)
	}

	accepted := r.Accepted && r.Checklist.Complete()
	ev := completion.EventAcceptWithDefects
	if accepted && len(drafts) == 0 {
		ev = completion.EventAccept
	}
	facts := completion.Facts{Accepted: accepted, DefectsRecorded: len(drafts)}
	if _, err := c.state.Check(ev, c.role, facts); err != nil {
		return nil, err
	}
	// оценки ставятся только при приёмке без замечаний
	var ratings *models.Ratings
	if ev == completion.EventAccept {
		if r.Ratings == nil || !r.Ratings.Valid() {
			return nil, ErrInvalidRatings
		}
		rated := *r.Ratings
		ratings = &rated
	}

	done, err := c.state.Begin()
	if err != nil {
		return nil, err
	}
	defer done()

	tradeID := c.state.TradeID()
	req := models.CompleteAcceptanceRequest{
		TradeID:         tradeID,
		Accepted:        accepted,
		AcceptanceNotes: r.Notes,
		Defects:         drafts,
		Checklist:       r.Checklist,
		CompletionDate:  r.CompletedAt,
		InspectorName:   r.InspectorName,
		Ratings:         ratings,
	}
	if ev == completion.EventAcceptWithDefects {
		req.ReviewDate = r.ReviewDate
	}

	resp, err := c.backend.CompleteAcceptance(ctx, req)
	if err != nil {
		c.opts.log.Warn("complete acceptance failed", "trade_id", tradeID, "error", err)
		if errors.Is(err, apiclient.ErrConflict) {
			c.reload(ctx)
		}
		return nil, fmt.Errorf("complete acceptance: %w", err)
	}

	if _, err := c.state.Fire(ev, c.role, facts); err != nil {
		return nil, err
	}
	c.state.SetAcceptanceID(resp.Acceptance.ID)
	c.state.MergeDefects(resp.Acceptance.Defects)
	if err := c.state.Reconcile(resp.Trade); err != nil {
		c.opts.log.Warn("acceptance response disagrees with local state", "trade_id", tradeID, "error", err)
	}

	if ev == completion.EventAccept && c.role == models.RoleClient {
		c.opts.notifier.Notify(ctx, Notification{
			TradeID: tradeID,
			Title:   "Работы приняты",
			Message: "Работы приняты без замечаний. Поздравляем!",
		})
	}

	acc := resp.Acceptance
	return &acc, nil
}

// reload подтягивает актуальное состояние после конфликта.
func (c *Coordinator) reload(ctx context.Context) {
	if err := tradestate.Refresh(ctx, c.state, c.backend); err != nil {
		c.opts.log.Warn("reload after conflict failed", "trade_id", c.state.TradeID(), "error", err)
	}
}

// Inspection — черновик осмотра, заполняемый заказчиком.
type Inspection struct {
	TradeID       uint
	Accepted      bool
	Notes         string
	InspectorName string
	Checklist     models.Checklist
	ReviewDate    *time.Time
	CompletedAt   time.Time
	Ratings       *models.Ratings

	defects []models.DefectInput
}

// AddDefect записывает дефект; черновик проверяется сразу.
func (i *Inspection) AddDefect(in models.DefectInput) error {
	v, err := defects.ValidateDraft(in)
	if err != nil {
		return err
	}
	i.defects = append(i.defects, v)
	return nil
}

func (i *Inspection) RemoveDefect(idx int) error {
	if idx < 0 || idx >= len(i.defects) {
		return fmt.Errorf("defect draft %d out of range", idx)
	}
	i.defects = append(i.defects[:idx], i.defects[idx+1:]...)
	return nil
}

func (i *Inspection) Defects() []models.DefectInput {
	return append([]models.DefectInput(nil), i.defects...)
}

// SetRatings — оценки подрядчику; нужны только при приёмке без замечаний.
func (i *Inspection) SetRatings(r models.Ratings) {
	i.Ratings = &r
}

// Clean — приёмка пройдёт без замечаний.
func (i *Inspection) Clean() bool {
	return i.Accepted && i.Checklist.Complete() && len(i.defects) == 0
}

func (i *Inspection) Result() Result {
	return Result{
		Accepted:      i.Accepted,
		Notes:         i.Notes,
		InspectorName: i.InspectorName,
		Checklist:     i.Checklist,
		ReviewDate:    i.ReviewDate,
		CompletedAt:   i.CompletedAt,
		Ratings:       i.Ratings,
		Defects:       i.Defects(),
	}
}

// Result — итог осмотра, уходит в POST /acceptance/complete.
type Result struct {
	Accepted      bool
	Notes         string
	InspectorName string
	Checklist     models.Checklist
	ReviewDate    *time.Time
	CompletedAt   time.Time
	Ratings       *models.Ratings // обязательны, если приёмка без замечаний
	Defects       []models.DefectInput
}
