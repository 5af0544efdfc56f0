// Package invoice — видимость счёта, срочность оплаты, опрос и действия со счётом.
package invoice

import (
	"math"
	"strings"
	"time"

	"trade-closeout/internal/models"
)

type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusViewed  Status = "viewed"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Normalize: сервер может прислать статус в любом регистре и с пробелами.
func Normalize(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

func StatusOf(inv *models.Invoice) Status {
	if inv == nil {
		return ""
	}
	return Normalize(inv.Status)
}

// IsVisible — черновик никогда не показывается.
func IsVisible(inv *models.Invoice) bool {
	switch StatusOf(inv) {
	case StatusSent, StatusViewed, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// Visible возвращает счёт или nil, если показывать его нельзя.
func Visible(inv *models.Invoice) *models.Invoice {
	if !IsVisible(inv) {
		return nil
	}
	return inv
}

func IsPaid(inv *models.Invoice) bool {
	return StatusOf(inv) == StatusPaid
}

// IsOverdue: due_date < now и счёт не оплачен.
func IsOverdue(inv *models.Invoice, now time.Time) bool {
	if inv == nil || inv.DueDate == nil || IsPaid(inv) {
		return false
	}
	return inv.DueDate.Before(now)
}

// DaysUntilDue = ceil((due_date - now) / 1 день).
func DaysUntilDue(inv *models.Invoice, now time.Time) (int, bool) {
	if inv == nil || inv.DueDate == nil {
		return 0, false
	}
	days := math.Ceil(float64(inv.DueDate.Sub(now)) / float64(24*time.Hour))
	return int(days), true
}

type Urgency string

const (
	UrgencyNone    Urgency = ""
	UrgencyOverdue Urgency = "!!!"
	UrgencyDueSoon Urgency = "!!"
	UrgencyActive  Urgency = "!"
	UrgencySettled Urgency = "✓"
)

const dueSoonDays = 3

// Assess — индикатор срочности на вкладке приёмки; от самого серьёзного уровня.
// Черновик считается отсутствующим счётом.
func Assess(inv *models.Invoice, status models.CompletionStatus, now time.Time) Urgency {
	visible := Visible(inv)

	if IsOverdue(visible, now) {
		return UrgencyOverdue
	}
	// оплата снимает только «просрочен»; близкий срок подсвечивается и у оплаченного
	if days, ok := DaysUntilDue(visible, now); ok && days <= dueSoonDays {
		return UrgencyDueSoon
	}
	switch status {
	case models.StatusCompletionRequested, models.StatusCompletedWithDefects, models.StatusDefectsResolved:
		return UrgencyActive
	}
	if visible != nil {
		return UrgencySettled
	}
	return UrgencyNone
}
