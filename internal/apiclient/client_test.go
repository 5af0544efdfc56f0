package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trade-closeout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "tok")
}

func TestRequestHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/milestones/5", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		json.NewEncoder(w).Encode(models.Trade{ID: 5, CompletionStatus: models.StatusCompleted})
	})

	trade, err := c.GetTrade(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, trade.CompletionStatus)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		sentinel  error
		retryable bool
	}{
		{http.StatusUnauthorized, ErrStaleCredential, false},
		{http.StatusNotFound, ErrNotFound, false},
		{http.StatusConflict, ErrConflict, false},
		{http.StatusForbidden, ErrForbidden, false},
		{http.StatusServiceUnavailable, nil, true},
		{http.StatusBadRequest, nil, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			})
			_, err := c.ArchiveTrade(context.Background(), 1)
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, "nope", apiErr.Message)
			assert.Equal(t, tt.retryable, apiErr.Retryable())
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestNetworkErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL, "").GetTrade(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestAbsenceOn404(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	ctx := context.Background()

	inv, err := c.GetInvoice(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, inv)

	list, err := c.ListAcceptances(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, list)

	_, err = c.GetTrade(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound, "trades are not optional")
}

func TestUnauthorizedIsNotAbsence(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.GetInvoice(context.Background(), 3)
	assert.ErrorIs(t, err, ErrStaleCredential)
	_, err = c.ListAcceptances(context.Background(), 3)
	assert.ErrorIs(t, err, ErrStaleCredential)
}

func TestFinalCompletePayload(t *testing.T) {
	var bodies []map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/acceptance/9/final-complete", r.URL.Path)
		var m map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		bodies = append(bodies, m)
		json.NewEncoder(w).Encode(models.FinalCompleteResponse{})
	})
	ctx := context.Background()

	_, err := c.FinalComplete(ctx, 9, models.FinalCompleteRequest{Accepted: true, MilestoneID: 4})
	require.NoError(t, err)
	_, err = c.FinalComplete(ctx, 9, models.FinalCompleteRequest{
		Accepted:    true,
		MilestoneID: 4,
		FinalNotes:  "ok",
		Ratings:     &models.Ratings{Quality: 5, Timeliness: 4, Communication: 5, Overall: 5},
	})
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, map[string]any{"accepted": true, "milestone_id": float64(4)}, bodies[0])
	assert.Equal(t, float64(5), bodies[1]["overallRating"])
	assert.Equal(t, float64(4), bodies[1]["timelinessRating"])
	assert.Equal(t, "ok", bodies[1]["finalNotes"])
}

func TestResolveDefectAndListDefects(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "/api/v1/acceptance/milestone/4/defects", r.URL.Path)
			assert.Equal(t, "true", r.URL.Query().Get("include_resolved"))
			json.NewEncoder(w).Encode([]models.Defect{{ID: 1}, {ID: 2, Resolved: true}})
		case http.MethodPut:
			assert.Equal(t, "/api/v1/acceptance/defects/1", r.URL.Path)
			var in models.ResolveDefectRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.True(t, in.Resolved)
			assert.True(t, at.Equal(*in.ResolvedAt))
			json.NewEncoder(w).Encode(models.Defect{ID: 1, Resolved: true, ResolvedAt: in.ResolvedAt})
		}
	})
	ctx := context.Background()

	list, err := c.ListDefects(ctx, 4, true)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	d, err := c.ResolveDefect(ctx, 1, at)
	require.NoError(t, err)
	assert.True(t, d.Resolved)
}

func TestLoginStoresToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/login" {
			json.NewEncoder(w).Encode(models.LoginResponse{Token: "fresh"})
			return
		}
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		w.Write([]byte("%PDF"))
	})
	c.SetToken("")

	_, err := c.Login(context.Background(), "client", "secret")
	require.NoError(t, err)
	assert.Equal(t, "fresh", c.Token())

	data, err := c.DownloadInvoice(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
}
