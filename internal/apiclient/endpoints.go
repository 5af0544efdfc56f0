package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trade-closeout/internal/models"
)

//
// АВТОРИЗАЦИЯ
//

// Login получает токен и сразу начинает им пользоваться.
func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

//
// ТРЕЙДЫ
//

func (c *Client) GetTrade(ctx context.Context, tradeID uint) (*models.Trade, error) {
	var out models.Trade
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/milestones/%d", tradeID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTrade(ctx context.Context, in models.CreateTradeRequest) (*models.Trade, error) {
	var out models.Trade
	if err := c.do(ctx, http.MethodPost, "/milestones", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProgress(ctx context.Context, tradeID uint, pct int) (*models.Trade, error) {
	var out models.Trade
	path := fmt.Sprintf("/milestones/%d/progress", tradeID)
	if err := c.do(ctx, http.MethodPost, path, models.ProgressRequest{Progress: pct}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RequestCompletion(ctx context.Context, tradeID uint, message string) (*models.CompletionResponse, error) {
	var out models.CompletionResponse
	path := fmt.Sprintf("/milestones/%d/progress/completion", tradeID)
	if err := c.do(ctx, http.MethodPost, path, models.CompletionRequest{Message: message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ArchiveTrade(ctx context.Context, tradeID uint) (*models.Trade, error) {
	var out models.Trade
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/milestones/%d/archive", tradeID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListArchived(ctx context.Context) ([]models.Trade, error) {
	var out []models.Trade
	if err := c.do(ctx, http.MethodGet, "/milestones/archived", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, tradeID uint) ([]models.AuditLog, error) {
	var out []models.AuditLog
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/milestones/%d/history", tradeID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

//
// ПРИЁМКА
//

// ListAcceptances — приёмки трейда, самая свежая первой. 404 — приёмок нет.
func (c *Client) ListAcceptances(ctx context.Context, tradeID uint) ([]models.Acceptance, error) {
	var out []models.Acceptance
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/acceptance/milestone/%d", tradeID), nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListDefects(ctx context.Context, tradeID uint, includeResolved bool) ([]models.Defect, error) {
	path := fmt.Sprintf("/acceptance/milestone/%d/defects", tradeID)
	if includeResolved {
		path += "?include_resolved=true"
	}
	var out []models.Defect
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResolveDefect(ctx context.Context, defectID uint, at time.Time) (*models.Defect, error) {
	var out models.Defect
	in := models.ResolveDefectRequest{Resolved: true, ResolvedAt: &at}
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/acceptance/defects/%d", defectID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteAcceptance(ctx context.Context, in models.CompleteAcceptanceRequest) (*models.CompleteAcceptanceResponse, error) {
	var out models.CompleteAcceptanceResponse
	if err := c.do(ctx, http.MethodPost, "/acceptance/complete", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FinalComplete(ctx context.Context, acceptanceID uint, in models.FinalCompleteRequest) (*models.FinalCompleteResponse, error) {
	var out models.FinalCompleteResponse
	path := fmt.Sprintf("/acceptance/%d/final-complete", acceptanceID)
	if err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

//
// СЧЕТА
//

// GetInvoice — счёт трейда; (nil, nil), если его ещё нет.
func (c *Client) GetInvoice(ctx context.Context, tradeID uint) (*models.Invoice, error) {
	var out models.Invoice
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/invoices/milestone/%d", tradeID), nil, &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SendInvoice(ctx context.Context, invoiceID uint) (*models.Invoice, error) {
	return c.invoiceAction(ctx, invoiceID, "send")
}

func (c *Client) MarkInvoiceViewed(ctx context.Context, invoiceID uint) (*models.Invoice, error) {
	return c.invoiceAction(ctx, invoiceID, "mark-viewed")
}

func (c *Client) MarkInvoicePaid(ctx context.Context, invoiceID uint) (*models.Invoice, error) {
	return c.invoiceAction(ctx, invoiceID, "mark-paid")
}

func (c *Client) invoiceAction(ctx context.Context, invoiceID uint, action string) (*models.Invoice, error) {
	var out models.Invoice
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/invoices/%d/%s", invoiceID, action), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadInvoice возвращает документ как есть.
func (c *Client) DownloadInvoice(ctx context.Context, invoiceID uint) ([]byte, error) {
	return c.raw(ctx, http.MethodGet, fmt.Sprintf("/invoices/%d/download", invoiceID), nil)
}
