package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trade-closeout/internal/completion"
	"trade-closeout/internal/database"
	"trade-closeout/internal/invoice"
	"trade-closeout/internal/logger"
	"trade-closeout/internal/middleware"
	"trade-closeout/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

//
// ЧТЕНИЕ
//

func GetMilestone(c *gin.Context) {
	trade, ok := loadTradeParam(c, "id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, trade)
}

// ListArchivedMilestones — архив текущего пользователя (админ видит всё).
func ListArchivedMilestones(c *gin.Context) {
	dbq := database.DB.
		Where("completion_status = ?", models.StatusArchived).
		Order("archived_at desc, id desc")

	uid := middleware.CurrentUserID(c)
	switch middleware.CurrentRole(c) {
	case models.RoleClient:
		dbq = dbq.Where("client_id = ?", uid)
	case models.RoleContractor:
		dbq = dbq.Where("contractor_id = ?", uid)
	}

	trades := []models.Trade{}
	if err := dbq.Find(&trades).Error; err != nil {
		respondInternal(c, "failed to load archived milestones", err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

// ShowMilestoneHistory — журнал аудита трейда, свежие записи первыми.
func ShowMilestoneHistory(c *gin.Context) {
	trade, ok := loadTradeParam(c, "id")
	if !ok {
		return
	}

	logs, err := database.History(database.EntityMilestone, trade.ID, 200)
	if err != nil {
		respondInternal(c, "failed to load history", err)
		return
	}

	for i := range logs {
		logs[i].Username = logs[i].User.Username
	}
	c.JSON(http.StatusOK, logs)
}

//
// СОЗДАНИЕ (админ)
//

// CreateMilestone заводит трейд и, если задана сумма, черновик счёта.
func CreateMilestone(c *gin.Context) {
	var req models.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if len([]rune(req.Title)) < 3 {
		respondError(c, http.StatusBadRequest, "title must be at least 3 characters")
		return
	}
	if err := checkUserRole(req.ClientID, models.RoleClient); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkUserRole(req.ContractorID, models.RoleContractor); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	trade := models.Trade{
		ProjectID:        req.ProjectID,
		Title:            req.Title,
		CompletionStatus: models.StatusInProgress,
		AcceptedQuoteID:  req.AcceptedQuoteID,
		ClientID:         req.ClientID,
		ContractorID:     req.ContractorID,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&trade).Error; err != nil {
			return err
		}
		uid := middleware.CurrentUserID(c)
		if err := database.CreateAuditLogTx(tx, uid, database.EntityMilestone, trade.ID, "create", "Создан трейд: "+trade.Title); err != nil {
			return err
		}

		if req.InvoiceAmount <= 0 {
			return nil
		}
		inv := models.Invoice{
			TradeID: trade.ID,
			Status:  string(invoice.StatusDraft),
			Amount:  req.InvoiceAmount,
			DueDate: req.InvoiceDueDate,
		}
		if err := tx.Create(&inv).Error; err != nil {
			return err
		}
		inv.InvoiceNumber = fmt.Sprintf("INV-%d-%05d", inv.CreatedAt.Year(), inv.ID)
		return tx.Model(&inv).Update("invoice_number", inv.InvoiceNumber).Error
	})
	if err != nil {
		respondInternal(c, "failed to create milestone", err)
		return
	}

	logger.Info(c.Request.Context(), "milestone created", "trade_id", trade.ID)
	c.JSON(http.StatusCreated, trade)
}

func checkUserRole(id uint, role models.UserRole) error {
	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		return fmt.Errorf("%s %d not found", role, id)
	}
	if user.Role != role {
		return fmt.Errorf("user %d is not a %s", id, role)
	}
	return nil
}

//
// ПРОГРЕСС И ЗАПРОС ПРИЁМКИ (подрядчик)
//

func UpdateProgress(c *gin.Context) {
	trade, ok := loadTradeParam(c, "id")
	if !ok {
		return
	}
	var req models.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Progress < 0 || req.Progress > 100 {
		respondError(c, http.StatusBadRequest, "progress must be between 0 and 100")
		return
	}
	if middleware.CurrentRole(c) != models.RoleContractor {
		respondError(c, http.StatusForbidden, "progress is reported by the contractor")
		return
	}

	res := database.DB.Model(&models.Trade{}).
		Where("id = ? AND completion_status = ?", trade.ID, models.StatusInProgress).
		Update("progress", req.Progress)
	if res.Error != nil {
		respondInternal(c, "failed to update progress", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, http.StatusConflict, "progress can only change while the milestone is in progress")
		return
	}
	database.CreateAuditLog(middleware.CurrentUserID(c), database.EntityMilestone, trade.ID,
		"progress", fmt.Sprintf("Прогресс: %d%%", req.Progress))

	trade.Progress = req.Progress
	c.JSON(http.StatusOK, trade)
}

// RequestCompletion — переход in_progress → completion_requested и запись приёмки,
// если открытой ещё нет.
func RequestCompletion(c *gin.Context) {
	trade, ok := loadTradeParam(c, "id")
	if !ok {
		return
	}
	var req models.CompletionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request")
			return
		}
	}

	to, err := completion.Fire(trade.CompletionStatus, completion.EventRequestCompletion,
		middleware.CurrentRole(c), completion.Facts{Progress: trade.Progress})
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	var acc models.Acceptance
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, c, &trade, to, nil); err != nil {
			return err
		}
		err := tx.Where("trade_id = ? AND completed_at IS NULL", trade.ID).
			Order("id desc").
			First(&acc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			acc = models.Acceptance{TradeID: trade.ID, Notes: strings.TrimSpace(req.Message)}
			return tx.Create(&acc).Error
		}
		return err
	})
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	logger.Info(c.Request.Context(), "completion requested", "trade_id", trade.ID, "acceptance_id", acc.ID)
	c.JSON(http.StatusOK, models.CompletionResponse{Trade: trade, Acceptance: acc})
}

//
// АРХИВ (заказчик)
//

func ArchiveMilestone(c *gin.Context) {
	trade, ok := loadTradeParam(c, "id")
	if !ok {
		return
	}

	var inv models.Invoice
	paid := false
	switch err := database.DB.Where("trade_id = ?", trade.ID).First(&inv).Error; {
	case err == nil:
		paid = invoice.IsPaid(&inv)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		respondInternal(c, "failed to load invoice", err)
		return
	}

	to, err := completion.Fire(trade.CompletionStatus, completion.EventArchive,
		middleware.CurrentRole(c), completion.Facts{InvoicePaid: paid})
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	now := time.Now()
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		return moveStatus(tx, c, &trade, to, map[string]any{"archived_at": now})
	})
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	trade.ArchivedAt = &now

	logger.Info(c.Request.Context(), "milestone archived", "trade_id", trade.ID)
	c.JSON(http.StatusOK, trade)
}
