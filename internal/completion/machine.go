// Package completion — машина состояний completion_status трейда.
// Все переходы статуса (на клиенте и на сервере) проходят через Fire.
package completion

import (
	"errors"
	"fmt"

	"trade-closeout/internal/models"
)

type Event string

const (
	EventRequestCompletion Event = "request_completion"
	EventAccept            Event = "accept"
	EventAcceptWithDefects Event = "accept_with_defects"
	EventReportRemediation Event = "report_remediation"
	EventFinalAccept       Event = "final_accept"
	EventArchive           Event = "archive"
)

var (
	ErrIllegalTransition = errors.New("illegal completion transition")
	ErrPrecondition      = errors.New("transition precondition not met")
	ErrRoleNotPermitted  = errors.New("role may not perform this transition")
)

// Facts — входные данные для guard-условий.
type Facts struct {
	Progress          int
	Accepted          bool
	DefectsRecorded   int
	UnresolvedDefects int // дефекты, не отмеченные в чек-листе
	InvoicePaid       bool
}

type rule struct {
	event Event
	from  []models.CompletionStatus
	to    models.CompletionStatus
	actor models.UserRole
	guard func(Facts) error
}

var rules = []rule{
	{
		event: EventRequestCompletion,
		from:  []models.CompletionStatus{models.StatusInProgress},
		to:    models.StatusCompletionRequested,
		actor: models.RoleContractor,
		guard: func(f Facts) error {
			if f.Progress != 100 {
				return fmt.Errorf("%w: progress is %d%%, completion needs 100%%", ErrPrecondition, f.Progress)
			}
			return nil
		},
	},
	{
		event: EventAccept,
		from:  []models.CompletionStatus{models.StatusCompletionRequested},
		to:    models.StatusCompleted,
		actor: models.RoleClient,
		guard: func(f Facts) error {
			if !f.Accepted || f.DefectsRecorded > 0 {
				return fmt.Errorf("%w: clean acceptance requires accepted work and no defects", ErrPrecondition)
			}
			return nil
		},
	},
	{
		event: EventAcceptWithDefects,
		from:  []models.CompletionStatus{models.StatusCompletionRequested},
		to:    models.StatusCompletedWithDefects,
		actor: models.RoleClient,
		guard: func(f Facts) error {
			if f.Accepted && f.DefectsRecorded == 0 {
				return fmt.Errorf("%w: nothing to remediate, use a clean acceptance", ErrPrecondition)
			}
			return nil
		},
	},
	{
		event: EventReportRemediation,
		from:  []models.CompletionStatus{models.StatusCompletedWithDefects},
		to:    models.StatusDefectsResolved,
		actor: models.RoleContractor,
		guard: allChecked,
	},
	{
		event: EventFinalAccept,
		from:  []models.CompletionStatus{models.StatusCompletedWithDefects, models.StatusDefectsResolved},
		to:    models.StatusCompleted,
		actor: models.RoleClient,
		guard: allChecked,
	},
	{
		event: EventArchive,
		from:  []models.CompletionStatus{models.StatusCompleted},
		to:    models.StatusArchived,
		actor: models.RoleClient,
		guard: func(f Facts) error {
			if !f.InvoicePaid {
				return fmt.Errorf("%w: invoice is not paid", ErrPrecondition)
			}
			return nil
		},
	},
}

func allChecked(f Facts) error {
	if f.UnresolvedDefects > 0 {
		return fmt.Errorf("%w: %d defect(s) not confirmed as resolved", ErrPrecondition, f.UnresolvedDefects)
	}
	return nil
}

func findRule(ev Event) (rule, bool) {
	for _, r := range rules {
		if r.event == ev {
			return r, true
		}
	}
	return rule{}, false
}

func (r rule) allows(from models.CompletionStatus) bool {
	for _, s := range r.from {
		if s == from {
			return true
		}
	}
	return false
}

// Fire проверяет переход и возвращает новый статус. Ничего не меняет.
// Порядок проверок: событие и исходный статус, роль, guard.
func Fire(from models.CompletionStatus, ev Event, role models.UserRole, facts Facts) (models.CompletionStatus, error) {
	r, ok := findRule(ev)
	if !ok {
		return from, fmt.Errorf("%w: unknown event %q", ErrIllegalTransition, ev)
	}
	if !r.allows(from) {
		return from, fmt.Errorf("%w: %s is not allowed from %s", ErrIllegalTransition, ev, from)
	}
	if role != r.actor {
		return from, fmt.Errorf("%w: %s requires role %s, got %s", ErrRoleNotPermitted, ev, r.actor, role)
	}
	if r.guard != nil {
		if err := r.guard(facts); err != nil {
			return from, err
		}
	}
	return r.to, nil
}

// Target — целевой статус события без проверки guard/роли.
func Target(ev Event) (models.CompletionStatus, bool) {
	r, ok := findRule(ev)
	return r.to, ok
}

// Actor — роль, которая вправе инициировать событие.
func Actor(ev Event) (models.UserRole, bool) {
	r, ok := findRule(ev)
	return r.actor, ok
}

// Legal — есть ли прямой переход from → to.
func Legal(from, to models.CompletionStatus) bool {
	for _, r := range rules {
		if r.to == to && r.allows(from) {
			return true
		}
	}
	return false
}

// Reachable — достижим ли to из from по цепочке переходов (from == to тоже true).
func Reachable(from, to models.CompletionStatus) bool {
	if from == to {
		return true
	}
	seen := map[models.CompletionStatus]bool{from: true}
	queue := []models.CompletionStatus{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, r := range rules {
			if !r.allows(cur) || seen[r.to] {
				continue
			}
			if r.to == to {
				return true
			}
			seen[r.to] = true
			queue = append(queue, r.to)
		}
	}
	return false
}

// Events — события, доступные роли из статуса (без учёта guard).
func Events(from models.CompletionStatus, role models.UserRole) []Event {
	var out []Event
	for _, r := range rules {
		if r.actor == role && r.allows(from) {
			out = append(out, r.event)
		}
	}
	return out
}

// Terminal — из статуса нет переходов.
func Terminal(s models.CompletionStatus) bool {
	for _, r := range rules {
		if r.allows(s) {
			return false
		}
	}
	return true
}
