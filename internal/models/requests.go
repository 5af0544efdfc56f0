package models

import "time"

// Тела запросов, общие для сервера и клиента.

type ProgressRequest struct {
	Progress int `json:"progress"`
}

type CompletionRequest struct {
	Message string `json:"message,omitempty"`
}

// CompletionResponse — ответ на запрос приёмки: трейд и созданная (или уже
// существующая) запись приёмки.
type CompletionResponse struct {
	Trade      Trade      `json:"milestone"`
	Acceptance Acceptance `json:"acceptance"`
}

type DefectInput struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Severity    Severity `json:"severity" yaml:"severity"`
	Location    string   `json:"location" yaml:"location"`
	Room        string   `json:"room" yaml:"room"`
	Photos      []string `json:"photos" yaml:"photos"`
}

type CompleteAcceptanceRequest struct {
	TradeID         uint          `json:"trade_id"`
	Accepted        bool          `json:"accepted"`
	AcceptanceNotes string        `json:"acceptanceNotes,omitempty"`
	Defects         []DefectInput `json:"defects"`
	Checklist       Checklist     `json:"checklist"`
	ReviewDate      *time.Time    `json:"review_date,omitempty"`
	CompletionDate  time.Time     `json:"completion_date"`
	InspectorName   string        `json:"inspector_name,omitempty"`
	// только для приёмки без замечаний
	Ratings *Ratings `json:"ratings,omitempty"`
}

type CompleteAcceptanceResponse struct {
	Acceptance Acceptance `json:"acceptance"`
	Trade      Trade      `json:"milestone"`
}

type ResolveDefectRequest struct {
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// FinalCompleteRequest — тело final-complete. Ratings == nil для подрядчика:
// поля оценок тогда вообще не попадают в JSON.
type FinalCompleteRequest struct {
	Accepted    bool   `json:"accepted"`
	MilestoneID uint   `json:"milestone_id"`
	FinalNotes  string `json:"finalNotes,omitempty"`
	*Ratings
}

type FinalCompleteResponse struct {
	Acceptance Acceptance `json:"acceptance"`
	Trade      Trade      `json:"milestone"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

type CreateTradeRequest struct {
	ProjectID       uint       `json:"project_id"`
	Title           string     `json:"title"`
	ClientID        uint       `json:"client_id"`
	ContractorID    uint       `json:"contractor_id"`
	AcceptedQuoteID *uint      `json:"accepted_quote_id,omitempty"`
	InvoiceAmount   float64    `json:"invoice_amount,omitempty"`
	InvoiceDueDate  *time.Time `json:"invoice_due_date,omitempty"`
}
