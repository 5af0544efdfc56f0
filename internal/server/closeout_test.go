package server

import (
	"context"
	"testing"

	"trade-closeout/internal/acceptance"
	"trade-closeout/internal/archive"
	"trade-closeout/internal/invoice"
	"trade-closeout/internal/models"
	"trade-closeout/internal/tradestate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allChecked() models.Checklist {
	return models.Checklist{
		WorkCompleted:     true,
		QualityAcceptable: true,
		SpecificationsMet: true,
		SafetyCompliant:   true,
		CleanedUp:         true,
		DocumentsProvided: true,
	}
}

// Полный цикл: запрос приёмки, приёмка с дефектами, устранение,
// финальная приёмка, счёт, оплата, архив.
func TestTradeCloseout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.newTrade(t, 1200)

	// подрядчик доводит работы до 100% и просит принять
	contractorState := tradestate.New(trade)
	contractor := acceptance.NewCoordinator(contractorState, env.contractor, models.RoleContractor)

	require.NoError(t, contractor.UpdateProgress(ctx, 100))
	require.NoError(t, contractor.RequestCompletion(ctx, "Работы выполнены"))
	assert.Equal(t, models.StatusCompletionRequested, contractorState.Status())
	assert.NotZero(t, contractorState.AcceptanceID())

	// заказчик осматривает и фиксирует два дефекта
	clientState := tradestate.New(trade)
	require.NoError(t, tradestate.Refresh(ctx, clientState, env.client))
	assert.Equal(t, models.StatusCompletionRequested, clientState.Status())
	assert.Nil(t, clientState.Snapshot().Invoice, "draft invoice is hidden")

	client := acceptance.NewCoordinator(clientState, env.client, models.RoleClient)
	insp, err := client.StartAcceptance(ctx)
	require.NoError(t, err)
	insp.Accepted = true
	insp.Checklist = allChecked()
	insp.InspectorName = "Иванов"
	require.NoError(t, insp.AddDefect(models.DefectInput{Title: "Подтекает смеситель", Severity: "major", Room: "Кухня"}))
	require.NoError(t, insp.AddDefect(models.DefectInput{Title: "Скол на раковине"}))

	acc, err := client.CompleteAcceptance(ctx, insp.Result())
	require.NoError(t, err)
	require.Len(t, acc.Defects, 2)
	for _, d := range acc.Defects {
		assert.NotNil(t, d.TaskID, "each defect gets a remediation task")
	}
	assert.Equal(t, models.StatusCompletedWithDefects, clientState.Status())

	// подрядчик отмечает оба дефекта устранёнными
	require.NoError(t, tradestate.Refresh(ctx, contractorState, env.contractor))
	remediation := acceptance.NewFinalCoordinator(contractorState, env.contractor, models.RoleContractor)
	session, err := remediation.Open(ctx)
	require.NoError(t, err)
	require.Len(t, session.Defects(), 2)
	for _, d := range session.Defects() {
		_, err := session.Toggle(d.ID)
		require.NoError(t, err)
	}
	require.NoError(t, remediation.Submit(ctx, session))
	assert.Equal(t, models.StatusDefectsResolved, contractorState.Status())

	onServer, err := env.client.ListDefects(ctx, trade.ID, false)
	require.NoError(t, err)
	assert.Empty(t, onServer, "no unresolved defects left")

	// заказчик закрывает приёмку с оценками
	require.NoError(t, tradestate.Refresh(ctx, clientState, env.client))
	assert.Equal(t, models.StatusDefectsResolved, clientState.Status())
	final := acceptance.NewFinalCoordinator(clientState, env.client, models.RoleClient)
	session, err = final.Open(ctx)
	require.NoError(t, err)
	assert.True(t, session.AllDefectsResolved())
	require.NoError(t, session.SetRatings(models.Ratings{Quality: 5, Timeliness: 4, Overall: 5}))
	session.SetNotes("Спасибо")
	require.NoError(t, final.Submit(ctx, session))
	assert.Equal(t, models.StatusCompleted, clientState.Status())

	list, err := env.client.ListAcceptances(ctx, trade.ID)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, 5, list[0].OverallRating)
	assert.NotNil(t, list[0].FinalCompletedAt)

	// счёт: пока черновик, архив закрыт
	poller := invoice.NewPoller(env.client, clientState, models.RoleClient, 0)
	var seen *models.Invoice
	poller.OnUpdate = func(inv *models.Invoice) { seen = inv }
	require.NoError(t, poller.Poll(ctx))
	assert.Nil(t, seen)

	archiver := archive.NewArchiver(clientState, env.client, models.RoleClient)
	archived, err := archiver.Archive(ctx, true)
	require.NoError(t, err)
	assert.False(t, archived)

	// подрядчик выставляет счёт, заказчик видит его при следующем опросе
	raw, err := env.contractor.GetInvoice(ctx, trade.ID)
	require.NoError(t, err)
	require.NotNil(t, raw)
	_, err = env.contractor.SendInvoice(ctx, raw.ID)
	require.NoError(t, err)

	require.NoError(t, poller.Poll(ctx))
	require.NotNil(t, seen)
	assert.Equal(t, invoice.StatusSent, invoice.StatusOf(seen))

	actions := invoice.NewActions(env.client, models.RoleClient)
	opened, err := actions.Open(ctx, seen)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusViewed, invoice.StatusOf(opened))
	assert.NotNil(t, opened.ViewedAt)

	doc, err := actions.Download(ctx, opened)
	require.NoError(t, err)
	assert.Contains(t, string(doc), opened.InvoiceNumber)

	paid, err := actions.MarkPaid(ctx, opened)
	require.NoError(t, err)
	assert.True(t, invoice.IsPaid(paid))
	clientState.SetInvoice(paid)

	// архив
	require.True(t, archiver.Allowed())
	_, err = archiver.Archive(ctx, false)
	assert.ErrorIs(t, err, archive.ErrNotConfirmed)
	archived, err = archiver.Archive(ctx, true)
	require.NoError(t, err)
	assert.True(t, archived)
	assert.Equal(t, models.StatusArchived, clientState.Status())

	gone, err := env.client.ListArchived(ctx)
	require.NoError(t, err)
	require.Len(t, gone, 1)
	assert.Equal(t, trade.ID, gone[0].ID)
	assert.NotNil(t, gone[0].ArchivedAt)

	history, err := env.client.History(ctx, trade.ID)
	require.NoError(t, err)
	var changes []string
	for _, h := range history {
		if h.Action == "status_change" {
			changes = append(changes, h.Details)
		}
	}
	assert.Equal(t, []string{
		"completed -> archived",
		"defects_resolved -> completed",
		"completed_with_defects -> defects_resolved",
		"completion_requested -> completed_with_defects",
		"in_progress -> completion_requested",
	}, changes)
}

func TestCleanAcceptanceCompletesImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	trade := env.newTrade(t, 0)
	setStatus(t, trade.ID, models.StatusCompletionRequested, 100)

	state := tradestate.New(trade)
	require.NoError(t, tradestate.Refresh(ctx, state, env.client))

	var notes []acceptance.Notification
	c := acceptance.NewCoordinator(state, env.client, models.RoleClient,
		acceptance.WithNotifier(acceptance.NotifierFunc(func(_ context.Context, n acceptance.Notification) {
			notes = append(notes, n)
		})))

	_, err := c.CompleteAcceptance(ctx, acceptance.Result{Accepted: true, Checklist: allChecked()})
	assert.ErrorIs(t, err, acceptance.ErrInvalidRatings)

	acc, err := c.CompleteAcceptance(ctx, acceptance.Result{
		Accepted:  true,
		Checklist: allChecked(),
		Ratings:   &models.Ratings{Overall: 5, Timeliness: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, state.Status())
	assert.Equal(t, 5, acc.OverallRating)
	assert.Equal(t, 4, acc.TimelinessRating)

	list, err := env.client.ListAcceptances(ctx, trade.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].OverallRating, "ratings are stored with the acceptance")
	assert.Len(t, notes, 1)

	// без счёта архив недоступен
	inv, err := env.client.GetInvoice(ctx, trade.ID)
	require.NoError(t, err)
	assert.Nil(t, inv)
	assert.False(t, archive.NewArchiver(state, env.client, models.RoleClient).Allowed())
}
