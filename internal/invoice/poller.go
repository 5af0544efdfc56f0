package invoice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"trade-closeout/internal/models"
)

const DefaultPollInterval = 5 * time.Second

// Fetcher — GET /invoices/milestone/{tradeId}; (nil, nil) если счёта нет.
type Fetcher interface {
	GetInvoice(ctx context.Context, tradeID uint) (*models.Invoice, error)
}

// Target — куда складывать результат опроса (tradestate.State).
type Target interface {
	TradeID() uint
	Status() models.CompletionStatus
	SetInvoice(inv *models.Invoice)
}

// ShouldPoll: опрос только для заказчика и только в статусе completed.
func ShouldPoll(role models.UserRole, status models.CompletionStatus) bool {
	return role == models.RoleClient && status == models.StatusCompleted
}

type Poller struct {
	fetcher  Fetcher
	target   Target
	role     models.UserRole
	interval time.Duration
	log      *slog.Logger

	// Stop — ошибка, после которой опрос прекращается (401).
	Stop func(error) bool
	// OnUpdate вызывается после каждого успешного опроса.
	OnUpdate func(inv *models.Invoice)
}

func NewPoller(f Fetcher, t Target, role models.UserRole, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		fetcher:  f,
		target:   t,
		role:     role,
		interval: interval,
		log:      slog.Default(),
	}
}

func (p *Poller) WithLogger(l *slog.Logger) *Poller {
	p.log = l
	return p
}

// Start запускает опрос, привязанный к жизни представления. Возвращённая
// функция отменяет опрос и дожидается выхода горутины.
func (p *Poller) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

// Run блокируется до отмены ctx или фатальной ошибки.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil && p.Stop != nil && p.Stop(err) {
			p.log.Warn("invoice polling stopped", "trade_id", p.target.TradeID(), "error", err)
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll — один цикл опроса. Вне статуса completed ничего не делает.
func (p *Poller) Poll(ctx context.Context) error {
	if !ShouldPoll(p.role, p.target.Status()) {
		return nil
	}

	inv, err := p.fetcher.GetInvoice(ctx, p.target.TradeID())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		p.log.Warn("invoice poll failed", "trade_id", p.target.TradeID(), "error", err)
		return err
	}

	p.target.SetInvoice(inv)
	if p.OnUpdate != nil {
		p.OnUpdate(Visible(inv))
	}
	return nil
}
