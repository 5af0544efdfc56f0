package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstUsesPriorityOrder(t *testing.T) {
	var tried []string
	strategy := func(name string, v uint, ok bool) Strategy[uint] {
		return Strategy[uint]{Name: name, Find: func(context.Context) (uint, bool, error) {
			tried = append(tried, name)
			return v, ok, nil
		}}
	}

	got, err := First(context.Background(), func(id uint) bool { return id > 0 },
		strategy("known", 0, true), // не проходит проверку
		strategy("cache", 0, false),
		strategy("history", 42, true),
		strategy("never", 7, true),
	)
	require.NoError(t, err)
	assert.Equal(t, uint(42), got)
	assert.Equal(t, []string{"known", "cache", "history"}, tried)
}

func TestFirstExhausted(t *testing.T) {
	_, err := First[uint](context.Background(), nil, Known[uint]("known", 0, false))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFirstStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	called := false
	_, err := First(context.Background(), nil,
		Strategy[uint]{Name: "remote", Find: func(context.Context) (uint, bool, error) { return 0, false, boom }},
		Strategy[uint]{Name: "after", Find: func(context.Context) (uint, bool, error) { called = true; return 1, true, nil }},
	)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestFirstHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := First(ctx, nil, Known[uint]("known", 1, true))
	assert.ErrorIs(t, err, context.Canceled)
}
