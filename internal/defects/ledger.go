// Package defects — реестр дефектов трейда и чек-лист их устранения.
package defects

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"trade-closeout/internal/models"
)

var ErrUnknownDefect = errors.New("defect is not in the ledger")

// Ledger — реестр дефектов одной приёмки. Отметки в чек-листе (checked)
// живут только локально, серверный флаг resolved меняет MarkResolved.
type Ledger struct {
	defects []models.Defect
	checked map[uint]struct{}
}

// NewLedger — устранённые на сервере дефекты сразу отмечены.
func NewLedger(list []models.Defect) *Ledger {
	l := &Ledger{checked: make(map[uint]struct{})}
	for _, d := range list {
		l.add(d)
	}
	return l
}

func (l *Ledger) add(d models.Defect) {
	for i := range l.defects {
		if l.defects[i].ID == d.ID {
			l.defects[i] = d
			if d.Resolved {
				l.checked[d.ID] = struct{}{}
			}
			return
		}
	}
	l.defects = append(l.defects, d)
	if d.Resolved {
		l.checked[d.ID] = struct{}{}
	}
}

// Merge добавляет или обновляет записи; удаления нет.
func (l *Ledger) Merge(list []models.Defect) {
	for _, d := range list {
		l.add(d)
	}
}

func (l *Ledger) Len() int { return len(l.defects) }

// Defects — копия списка в порядке добавления.
func (l *Ledger) Defects() []models.Defect {
	return Clone(l.defects)
}

func (l *Ledger) Get(id uint) (models.Defect, bool) {
	for _, d := range l.defects {
		if d.ID == id {
			return d, true
		}
	}
	return models.Defect{}, false
}

func (l *Ledger) IsChecked(id uint) bool {
	_, ok := l.checked[id]
	return ok
}

func (l *Ledger) Check(id uint) error {
	if _, ok := l.Get(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDefect, id)
	}
	l.checked[id] = struct{}{}
	return nil
}

// Uncheck снимает отметку только в локальном состоянии.
func (l *Ledger) Uncheck(id uint) error {
	if _, ok := l.Get(id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownDefect, id)
	}
	delete(l.checked, id)
	return nil
}

// Toggle возвращает новое состояние отметки.
func (l *Ledger) Toggle(id uint) (bool, error) {
	if l.IsChecked(id) {
		return false, l.Uncheck(id)
	}
	return true, l.Check(id)
}

func (l *Ledger) CheckedCount() int {
	n := 0
	for _, d := range l.defects {
		if l.IsChecked(d.ID) {
			n++
		}
	}
	return n
}

// AllResolved — реестр пуст или каждый дефект отмечен.
func (l *Ledger) AllResolved() bool {
	return l.UncheckedCount() == 0
}

func (l *Ledger) UncheckedCount() int {
	return len(l.defects) - l.CheckedCount()
}

// Unresolved — дефекты, у которых серверный флаг resolved ещё false.
func (l *Ledger) Unresolved() []models.Defect {
	var out []models.Defect
	for _, d := range l.defects {
		if !d.Resolved {
			out = append(out, d)
		}
	}
	return out
}

// PendingResolution — отмеченные, но ещё не устранённые на сервере.
// Только они уходят в PUT /acceptance/defects/{id}.
func (l *Ledger) PendingResolution() []models.Defect {
	var out []models.Defect
	for _, d := range l.defects {
		if !d.Resolved && l.IsChecked(d.ID) {
			out = append(out, d)
		}
	}
	return out
}

// MarkResolved — сервер подтвердил устранение.
func (l *Ledger) MarkResolved(id uint, at time.Time) error {
	for i := range l.defects {
		if l.defects[i].ID != id {
			continue
		}
		l.defects[i].Resolved = true
		ts := at
		l.defects[i].ResolvedAt = &ts
		l.checked[id] = struct{}{}
		return nil
	}
	return fmt.Errorf("%w: %d", ErrUnknownDefect, id)
}

// Clone — глубокая копия списка дефектов.
func Clone(list []models.Defect) []models.Defect {
	if list == nil {
		return nil
	}
	out := make([]models.Defect, len(list))
	for i, d := range list {
		out[i] = d
		out[i].Photos = slices.Clone(d.Photos)
		if d.ResolvedAt != nil {
			ts := *d.ResolvedAt
			out[i].ResolvedAt = &ts
		}
		if d.TaskID != nil {
			id := *d.TaskID
			out[i].TaskID = &id
		}
	}
	return out
}

// CountUnresolved — число дефектов с resolved == false.
func CountUnresolved(list []models.Defect) int {
	n := 0
	for _, d := range list {
		if !d.Resolved {
			n++
		}
	}
	return n
}

//
// ЧЕРНОВИКИ ДЕФЕКТОВ (до отправки приёмки)
//

var ErrInvalidDraft = errors.New("invalid defect draft")

// ValidateDraft нормализует и проверяет дефект, записанный при осмотре.
func ValidateDraft(in models.DefectInput) (models.DefectInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Room = strings.TrimSpace(in.Room)
	in.Location = strings.TrimSpace(in.Location)
	in.Severity = models.Severity(strings.ToUpper(strings.TrimSpace(string(in.Severity))))
	if in.Severity == "" {
		in.Severity = models.SeverityMinor
	}

	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	if !in.Severity.Valid() {
		return in, fmt.Errorf("%w: unknown severity %q", ErrInvalidDraft, in.Severity)
	}
	return in, nil
}
