// Package lookup — поиск связанной записи по списку стратегий в порядке приоритета.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var ErrNotFound = errors.New("no lookup strategy produced a result")

// Strategy возвращает (значение, true, nil), если нашла; (_, false, nil) — переход
// к следующей стратегии; ошибка прерывает поиск.
type Strategy[T any] struct {
	Name string
	Find func(ctx context.Context) (T, bool, error)
}

// First пробует стратегии по порядку и возвращает первый результат,
// прошедший validate (nil — без проверки).
func First[T any](ctx context.Context, validate func(T) bool, strategies ...Strategy[T]) (T, error) {
	var zero T
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, ok, err := s.Find(ctx)
		if err != nil {
			return zero, fmt.Errorf("lookup %s: %w", s.Name, err)
		}
		if !ok {
			continue
		}
		if validate != nil && !validate(v) {
			slog.Debug("lookup result rejected", "strategy", s.Name)
			continue
		}
		return v, nil
	}
	return zero, ErrNotFound
}

// Known — стратегия для уже известного значения.
func Known[T any](name string, v T, ok bool) Strategy[T] {
	return Strategy[T]{
		Name: name,
		Find: func(context.Context) (T, bool, error) { return v, ok, nil },
	}
}
