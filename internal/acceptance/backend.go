// Package acceptance — приёмка работ заказчиком и финальная приёмка после
// устранения дефектов.
package acceptance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"trade-closeout/internal/models"
	"trade-closeout/internal/tradestate"
)

var (
	ErrAcceptanceNotFound = errors.New("acceptance record not found")
	ErrInvalidRatings     = errors.New("overall rating is required, ratings are 1 to 5")
	ErrInvalidProgress    = errors.New("progress must be between 0 and 100")
)

// Backend — вызовы API, нужные координаторам (реализует *apiclient.Client).
type Backend interface {
	tradestate.Source

	UpdateProgress(ctx context.Context, tradeID uint, pct int) (*models.Trade, error)
	RequestCompletion(ctx context.Context, tradeID uint, message string) (*models.CompletionResponse, error)
	CompleteAcceptance(ctx context.Context, in models.CompleteAcceptanceRequest) (*models.CompleteAcceptanceResponse, error)

	ListAcceptances(ctx context.Context, tradeID uint) ([]models.Acceptance, error)
	ResolveDefect(ctx context.Context, defectID uint, at time.Time) (*models.Defect, error)
	FinalComplete(ctx context.Context, acceptanceID uint, in models.FinalCompleteRequest) (*models.FinalCompleteResponse, error)
}

// Notification — сообщение пользователю (например, поздравление после приёмки без замечаний).
type Notification struct {
	TradeID uint
	Title   string
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

type logNotifier struct{ log *slog.Logger }

func (l logNotifier) Notify(ctx context.Context, n Notification) {
	l.log.InfoContext(ctx, n.Message, "trade_id", n.TradeID, "title", n.Title)
}

type options struct {
	notifier Notifier
	now      func() time.Time
	log      *slog.Logger
}

type Option func(*options)

func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.notifier == nil {
		o.notifier = logNotifier{log: o.log}
	}
	return o
}
