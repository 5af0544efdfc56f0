// Package tradestate — владелец состояния одного трейда на клиенте.
// Представления получают только копии (Snapshot); статус меняется только через Fire.
package tradestate

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trade-closeout/internal/completion"
	"trade-closeout/internal/defects"
	"trade-closeout/internal/invoice"
	"trade-closeout/internal/models"
)

var (
	ErrBusy     = errors.New("another request for this trade is in flight")
	ErrDiverged = errors.New("server status is not reachable from local status")
)

// Step — один наблюдаемый переход статуса.
type Step struct {
	From  models.CompletionStatus `json:"from"`
	To    models.CompletionStatus `json:"to"`
	Event completion.Event        `json:"event"`
	At    time.Time               `json:"at"`
}

// EventSync — статус подтянут с сервера.
const EventSync completion.Event = "sync"

type Snapshot struct {
	Trade        models.Trade
	Defects      []models.Defect
	AcceptanceID uint
	Invoice      *models.Invoice // только видимый счёт, черновик сюда не попадает
	Urgency      invoice.Urgency
	Busy         bool
	Version      uint64
	History      []Step
}

func (s Snapshot) Status() models.CompletionStatus { return s.Trade.CompletionStatus }

type State struct {
	mu sync.RWMutex

	trade        models.Trade
	defects      []models.Defect
	acceptanceID uint
	invoice      *models.Invoice
	busy         bool
	version      uint64
	history      []Step

	now func() time.Time
	log *slog.Logger
}

type Option func(*State)

func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *State) { s.log = l }
}

func New(trade models.Trade, opts ...Option) *State {
	if trade.CompletionStatus == "" {
		trade.CompletionStatus = models.StatusInProgress
	}
	s := &State{
		trade: trade,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *State) TradeID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trade.ID
}

func (s *State) Status() models.CompletionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trade.CompletionStatus
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trade := s.trade
	visible := cloneInvoice(invoice.Visible(s.invoice))
	return Snapshot{
		Trade:        trade,
		Defects:      defects.Clone(s.defects),
		AcceptanceID: s.acceptanceID,
		Invoice:      visible,
		Urgency:      invoice.Assess(visible, trade.CompletionStatus, s.now()),
		Busy:         s.busy,
		Version:      s.version,
		History:      append([]Step(nil), s.history...),
	}
}

// Begin ставит флаг занятости на время запроса. Повторный вызов до done() — ErrBusy.
func (s *State) Begin() (done func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, ErrBusy
	}
	s.busy = true
	s.version++

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.busy = false
			s.version++
			s.mu.Unlock()
		})
	}, nil
}

// Check — проверка перехода без применения (до сетевого вызова).
func (s *State) Check(ev completion.Event, role models.UserRole, facts completion.Facts) (models.CompletionStatus, error) {
	s.mu.RLock()
	from := s.trade.CompletionStatus
	s.mu.RUnlock()
	return completion.Fire(from, ev, role, facts)
}

// Fire применяет переход. Вызывается только после успешного ответа сервера.
func (s *State) Fire(ev completion.Event, role models.UserRole, facts completion.Facts) (models.CompletionStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.trade.CompletionStatus
	to, err := completion.Fire(from, ev, role, facts)
	if err != nil {
		return from, err
	}
	s.applyLocked(from, to, ev)
	return to, nil
}

func (s *State) applyLocked(from, to models.CompletionStatus, ev completion.Event) {
	now := s.now()
	s.trade.CompletionStatus = to
	if to == models.StatusArchived {
		s.trade.ArchivedAt = &now
	}
	s.history = append(s.history, Step{From: from, To: to, Event: ev, At: now})
	s.version++
	s.log.Info("trade status changed",
		"trade_id", s.trade.ID, "from", from, "to", to, "event", ev)
}

// SetProgress — прогресс 0–100, вне диапазона обрезается.
func (s *State) SetProgress(pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trade.Progress = min(max(pct, 0), 100)
	s.version++
}

// MergeDefects обновляет реестр: новые добавляются, существующие заменяются.
func (s *State) MergeDefects(list []models.Defect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := defects.NewLedger(s.defects)
	l.Merge(list)
	s.defects = l.Defects()
	s.version++
}

func (s *State) MarkDefectResolved(id uint, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.defects {
		if s.defects[i].ID == id {
			ts := at
			s.defects[i].Resolved = true
			s.defects[i].ResolvedAt = &ts
			s.version++
			return
		}
	}
}

func (s *State) AcceptanceID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acceptanceID
}

func (s *State) SetAcceptanceID(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == 0 || id == s.acceptanceID {
		return
	}
	s.acceptanceID = id
	s.version++
}

// SetInvoice хранит сырой счёт; наружу через Snapshot уходит только видимый.
func (s *State) SetInvoice(inv *models.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoice = cloneInvoice(inv)
	s.version++
}

// Reconcile принимает авторитетное состояние сервера. Статус принимается,
// только если он достижим из локального; иначе локальный статус сохраняется.
func (s *State) Reconcile(server models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if server.ID != 0 && s.trade.ID != 0 && server.ID != s.trade.ID {
		return fmt.Errorf("reconcile trade %d with trade %d", s.trade.ID, server.ID)
	}

	local := s.trade.CompletionStatus
	remote, ok := models.ParseCompletionStatus(string(server.CompletionStatus))
	if !ok {
		return fmt.Errorf("%w: unknown server status %q", ErrDiverged, server.CompletionStatus)
	}

	s.trade.Title = server.Title
	s.trade.Progress = server.Progress
	s.trade.AcceptedQuoteID = server.AcceptedQuoteID
	s.trade.ClientID = server.ClientID
	s.trade.ContractorID = server.ContractorID
	s.trade.ProjectID = server.ProjectID
	s.trade.UpdatedAt = server.UpdatedAt
	s.version++

	if remote == local {
		return nil
	}
	if !completion.Reachable(local, remote) {
		s.log.Warn("server status diverged from local state",
			"trade_id", s.trade.ID, "local", local, "server", remote)
		return fmt.Errorf("%w: %s -> %s", ErrDiverged, local, remote)
	}
	s.applyLocked(local, remote, EventSync)
	if server.ArchivedAt != nil {
		s.trade.ArchivedAt = server.ArchivedAt
	}
	return nil
}

func cloneInvoice(inv *models.Invoice) *models.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	return &c
}
