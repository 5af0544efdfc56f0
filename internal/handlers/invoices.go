package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trade-closeout/internal/database"
	"trade-closeout/internal/invoice"
	"trade-closeout/internal/logger"
	"trade-closeout/internal/middleware"
	"trade-closeout/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetMilestoneInvoice — счёт трейда как есть (включая черновик); 404, если счёта нет.
func GetMilestoneInvoice(c *gin.Context) {
	trade, ok := loadTradeParam(c, "id")
	if !ok {
		return
	}
	var inv models.Invoice
	if err := database.DB.Where("trade_id = ?", trade.ID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "no invoice for this milestone")
		} else {
			respondInternal(c, "failed to load invoice", err)
		}
		return
	}
	c.JSON(http.StatusOK, inv)
}

// loadInvoiceParam — счёт по :id с проверкой доступа к его трейду.
func loadInvoiceParam(c *gin.Context) (models.Invoice, bool) {
	var inv models.Invoice
	id, ok := paramID(c, "id")
	if !ok {
		return inv, false
	}
	if err := database.DB.First(&inv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "invoice not found")
		} else {
			respondInternal(c, "failed to load invoice", err)
		}
		return inv, false
	}
	if _, ok := loadTrade(c, inv.TradeID); !ok {
		return inv, false
	}
	return inv, true
}

// setInvoiceStatus — условное обновление, как у статуса трейда.
func setInvoiceStatus(c *gin.Context, inv *models.Invoice, from []invoice.Status, to invoice.Status, extra map[string]any) error {
	updates := map[string]any{"status": string(to)}
	for k, v := range extra {
		updates[k] = v
	}
	allowed := make([]string, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, string(s))
	}

	return database.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND LOWER(status) IN ?", inv.ID, allowed).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStatusChanged
		}
		if err := database.CreateAuditLogTx(tx, middleware.CurrentUserID(c), database.EntityInvoice, inv.ID,
			"status_change", fmt.Sprintf("%s -> %s", invoice.StatusOf(inv), to)); err != nil {
			return err
		}
		return tx.First(inv, inv.ID).Error
	})
}

func respondInvoiceError(c *gin.Context, err error) {
	if errors.Is(err, errStatusChanged) {
		respondError(c, http.StatusConflict, "invoice status changed")
		return
	}
	respondInternal(c, "failed to update invoice", err)
}

// SendInvoice — подрядчик выставляет черновик: draft → sent.
func SendInvoice(c *gin.Context) {
	inv, ok := loadInvoiceParam(c)
	if !ok {
		return
	}
	if middleware.CurrentRole(c) != models.RoleContractor {
		respondError(c, http.StatusForbidden, "invoices are sent by the contractor")
		return
	}
	if invoice.StatusOf(&inv) != invoice.StatusDraft {
		respondError(c, http.StatusConflict, "invoice is already sent")
		return
	}
	if err := setInvoiceStatus(c, &inv, []invoice.Status{invoice.StatusDraft}, invoice.StatusSent, nil); err != nil {
		respondInvoiceError(c, err)
		return
	}
	logger.Info(c.Request.Context(), "invoice sent", "invoice_id", inv.ID, "trade_id", inv.TradeID)
	c.JSON(http.StatusOK, inv)
}

// MarkInvoiceViewed — заказчик открыл счёт. Меняет только sent; для
// остальных видимых статусов ничего не делает.
func MarkInvoiceViewed(c *gin.Context) {
	inv, ok := loadInvoiceParam(c)
	if !ok {
		return
	}
	if middleware.CurrentRole(c) != models.RoleClient {
		respondError(c, http.StatusForbidden, "only the client views invoices")
		return
	}
	if !invoice.IsVisible(&inv) {
		respondError(c, http.StatusConflict, "invoice is not issued yet")
		return
	}
	if invoice.StatusOf(&inv) != invoice.StatusSent {
		c.JSON(http.StatusOK, inv)
		return
	}

	now := time.Now()
	err := setInvoiceStatus(c, &inv, []invoice.Status{invoice.StatusSent}, invoice.StatusViewed, map[string]any{"viewed_at": now})
	if err != nil {
		respondInvoiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// MarkInvoicePaid — заказчик отмечает оплату. Открывает архивирование.
func MarkInvoicePaid(c *gin.Context) {
	inv, ok := loadInvoiceParam(c)
	if !ok {
		return
	}
	if middleware.CurrentRole(c) != models.RoleClient {
		respondError(c, http.StatusForbidden, "only the client pays invoices")
		return
	}
	switch invoice.StatusOf(&inv) {
	case invoice.StatusDraft:
		respondError(c, http.StatusConflict, "invoice is not issued yet")
		return
	case invoice.StatusPaid:
		respondError(c, http.StatusConflict, "invoice is already paid")
		return
	}

	now := time.Now()
	from := []invoice.Status{invoice.StatusSent, invoice.StatusViewed, invoice.StatusOverdue}
	if err := setInvoiceStatus(c, &inv, from, invoice.StatusPaid, map[string]any{"paid_at": now}); err != nil {
		respondInvoiceError(c, err)
		return
	}
	logger.Info(c.Request.Context(), "invoice paid", "invoice_id", inv.ID, "trade_id", inv.TradeID)
	c.JSON(http.StatusOK, inv)
}

// DownloadInvoice отдаёт документ счёта. Черновик не выдаётся.
func DownloadInvoice(c *gin.Context) {
	inv, ok := loadInvoiceParam(c)
	if !ok {
		return
	}
	if !invoice.IsVisible(&inv) {
		respondError(c, http.StatusNotFound, "invoice not found")
		return
	}

	var trade models.Trade
	if err := database.DB.First(&trade, inv.TradeID).Error; err != nil {
		respondInternal(c, "failed to load milestone", err)
		return
	}

	doc := renderInvoice(inv, trade)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.txt"`, invoiceFileName(inv)))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", doc)
}

func invoiceFileName(inv models.Invoice) string {
	if inv.InvoiceNumber != "" {
		return inv.InvoiceNumber
	}
	return fmt.Sprintf("invoice-%d", inv.ID)
}

func renderInvoice(inv models.Invoice, trade models.Trade) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Счёт %s\n", invoiceFileName(inv))
	fmt.Fprintf(&b, "Этап: %s (#%d)\n", trade.Title, trade.ID)
	currency := inv.Currency
	if currency == "" {
		currency = "EUR"
	}
	fmt.Fprintf(&b, "Сумма: %.2f %s\n", inv.Amount, currency)
	if inv.DueDate != nil {
		fmt.Fprintf(&b, "Оплатить до: %s\n", inv.DueDate.Format("02.01.2006"))
	}
	fmt.Fprintf(&b, "Статус: %s\n", invoice.StatusOf(&inv))
	if inv.PaidAt != nil {
		fmt.Fprintf(&b, "Оплачен: %s\n", inv.PaidAt.Format("02.01.2006"))
	}
	return b.Bytes()
}
