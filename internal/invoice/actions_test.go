package invoice

import (
	"context"
	"testing"

	"trade-closeout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	viewed, paid, downloaded []uint
}

func (b *recordingBackend) MarkInvoiceViewed(ctx context.Context, id uint) (*models.Invoice, error) {
	b.viewed = append(b.viewed, id)
	return &models.Invoice{ID: id, Status: "viewed"}, nil
}

func (b *recordingBackend) MarkInvoicePaid(ctx context.Context, id uint) (*models.Invoice, error) {
	b.paid = append(b.paid, id)
	return &models.Invoice{ID: id, Status: "paid"}, nil
}

func (b *recordingBackend) DownloadInvoice(ctx context.Context, id uint) ([]byte, error) {
	b.downloaded = append(b.downloaded, id)
	return []byte("invoice"), nil
}

func TestActionsRefuseDraft(t *testing.T) {
	b := &recordingBackend{}
	a := NewActions(b, models.RoleClient)
	draft := inv("Draft", nil)
	ctx := context.Background()

	_, err := a.Open(ctx, draft)
	assert.ErrorIs(t, err, ErrNotVisible)
	_, err = a.MarkPaid(ctx, draft)
	assert.ErrorIs(t, err, ErrNotVisible)
	_, err = a.Download(ctx, draft)
	assert.ErrorIs(t, err, ErrNotVisible)

	assert.Empty(t, b.viewed)
	assert.Empty(t, b.paid)
	assert.Empty(t, b.downloaded)
}

func TestOpenMarksSentInvoiceViewed(t *testing.T) {
	b := &recordingBackend{}
	ctx := context.Background()

	got, err := NewActions(b, models.RoleClient).Open(ctx, inv("SENT", nil))
	require.NoError(t, err)
	assert.Equal(t, "viewed", got.Status)

	_, err = NewActions(b, models.RoleClient).Open(ctx, inv("paid", nil))
	require.NoError(t, err)
	_, err = NewActions(b, models.RoleContractor).Open(ctx, inv("sent", nil))
	require.NoError(t, err)

	assert.Equal(t, []uint{1}, b.viewed)
}

func TestMarkPaid(t *testing.T) {
	b := &recordingBackend{}
	ctx := context.Background()

	_, err := NewActions(b, models.RoleContractor).MarkPaid(ctx, inv("sent", nil))
	assert.ErrorIs(t, err, ErrClientOnly)

	_, err = NewActions(b, models.RoleClient).MarkPaid(ctx, inv("Paid", nil))
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	got, err := NewActions(b, models.RoleClient).MarkPaid(ctx, inv("viewed", nil))
	require.NoError(t, err)
	assert.True(t, IsPaid(got))
	assert.Equal(t, []uint{1}, b.paid)
}
