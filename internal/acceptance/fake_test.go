package acceptance

import (
	"context"
	"sync"
	"time"

	"trade-closeout/internal/apiclient"
	"trade-closeout/internal/models"
)

// fakeBackend — сервер в памяти, ведёт себя как обработчики /api/v1.
type fakeBackend struct {
	mu sync.Mutex

	trade       models.Trade
	acceptances []models.Acceptance // самая свежая первой
	defects     []models.Defect
	invoice     *models.Invoice

	// ошибки по имени метода
	fail map[string]error

	calls        []string
	completeReqs []models.CompleteAcceptanceRequest
	finalReqs    []models.FinalCompleteRequest
	finalAccIDs  []uint
	resolvedIDs  []uint
	nextDefectID uint
	nextAcceptID uint
}

func newFakeBackend(trade models.Trade) *fakeBackend {
	return &fakeBackend{
		trade:        trade,
		fail:         map[string]error{},
		nextDefectID: 100,
		nextAcceptID: 50,
	}
}

func (f *fakeBackend) record(name string) error {
	f.calls = append(f.calls, name)
	return f.fail[name]
}

func (f *fakeBackend) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeBackend) GetTrade(ctx context.Context, id uint) (*models.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetTrade"); err != nil {
		return nil, err
	}
	t := f.trade
	return &t, nil
}

func (f *fakeBackend) ListDefects(ctx context.Context, id uint, includeResolved bool) ([]models.Defect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListDefects"); err != nil {
		return nil, err
	}
	var out []models.Defect
	for _, d := range f.defects {
		if includeResolved || !d.Resolved {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("GetInvoice"); err != nil {
		return nil, err
	}
	return f.invoice, nil
}

func (f *fakeBackend) UpdateProgress(ctx context.Context, id uint, pct int) (*models.Trade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("UpdateProgress"); err != nil {
		return nil, err
	}
	f.trade.Progress = pct
	t := f.trade
	return &t, nil
}

func (f *fakeBackend) RequestCompletion(ctx context.Context, id uint, message string) (*models.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RequestCompletion"); err != nil {
		return nil, err
	}
	f.trade.CompletionStatus = models.StatusCompletionRequested
	f.nextAcceptID++
	acc := models.Acceptance{ID: f.nextAcceptID, TradeID: id}
	f.acceptances = append([]models.Acceptance{acc}, f.acceptances...)
	return &models.CompletionResponse{Trade: f.trade, Acceptance: acc}, nil
}

func (f *fakeBackend) CompleteAcceptance(ctx context.Context, in models.CompleteAcceptanceRequest) (*models.CompleteAcceptanceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CompleteAcceptance"); err != nil {
		return nil, err
	}
	f.completeReqs = append(f.completeReqs, in)

	if f.trade.CompletionStatus != models.StatusCompletionRequested {
		return nil, &apiclient.Error{Method: "POST", Path: "/acceptance/complete", StatusCode: 409}
	}

	acc := models.Acceptance{TradeID: in.TradeID, Accepted: in.Accepted, Notes: in.AcceptanceNotes}
	if r := in.Ratings; r != nil {
		acc.OverallRating = r.Overall
		acc.QualityRating = r.Quality
		acc.TimelinessRating = r.Timeliness
		acc.CommunicationRating = r.Communication
	}
	if len(f.acceptances) > 0 {
		acc.ID = f.acceptances[0].ID
	} else {
		f.nextAcceptID++
		acc.ID = f.nextAcceptID
		f.acceptances = append(f.acceptances, acc)
	}
	for _, d := range in.Defects {
		f.nextDefectID++
		def := models.Defect{ID: f.nextDefectID, AcceptanceID: acc.ID, TradeID: in.TradeID, Title: d.Title, Severity: d.Severity}
		f.defects = append(f.defects, def)
		acc.Defects = append(acc.Defects, def)
	}
	if in.Accepted && len(in.Defects) == 0 {
		f.trade.CompletionStatus = models.StatusCompleted
	} else {
		f.trade.CompletionStatus = models.StatusCompletedWithDefects
	}
	f.acceptances[0] = acc
	return &models.CompleteAcceptanceResponse{Acceptance: acc, Trade: f.trade}, nil
}

func (f *fakeBackend) ListAcceptances(ctx context.Context, id uint) ([]models.Acceptance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListAcceptances"); err != nil {
		return nil, err
	}
	return append([]models.Acceptance(nil), f.acceptances...), nil
}

func (f *fakeBackend) ResolveDefect(ctx context.Context, id uint, at time.Time) (*models.Defect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ResolveDefect"); err != nil {
		return nil, err
	}
	f.resolvedIDs = append(f.resolvedIDs, id)
	for i := range f.defects {
		if f.defects[i].ID == id {
			f.defects[i].Resolved = true
			f.defects[i].ResolvedAt = &at
			d := f.defects[i]
			return &d, nil
		}
	}
	return nil, &apiclient.Error{Method: "PUT", Path: "/acceptance/defects", StatusCode: 404}
}

func (f *fakeBackend) FinalComplete(ctx context.Context, acceptanceID uint, in models.FinalCompleteRequest) (*models.FinalCompleteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FinalComplete"); err != nil {
		return nil, err
	}
	f.finalReqs = append(f.finalReqs, in)
	f.finalAccIDs = append(f.finalAccIDs, acceptanceID)
	if in.Ratings != nil {
		f.trade.CompletionStatus = models.StatusCompleted
	} else {
		f.trade.CompletionStatus = models.StatusDefectsResolved
	}
	return &models.FinalCompleteResponse{Acceptance: models.Acceptance{ID: acceptanceID}, Trade: f.trade}, nil
}
