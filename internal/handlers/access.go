package handlers

import (
	"errors"
	"net/http"

	"trade-closeout/internal/database"
	"trade-closeout/internal/middleware"
	"trade-closeout/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// isParticipant — заказчик или подрядчик этого трейда. Админ читает всё.
func isParticipant(c *gin.Context, trade models.Trade) bool {
	uid := middleware.CurrentUserID(c)
	switch middleware.CurrentRole(c) {
	case models.RoleAdmin:
		return true
	case models.RoleClient:
		return uid == trade.ClientID
	case models.RoleContractor:
		return uid == trade.ContractorID
	}
	return false
}

// loadTrade — трейд по id с проверкой доступа; ответ об ошибке уже отправлен, если false.
func loadTrade(c *gin.Context, id uint) (models.Trade, bool) {
	var trade models.Trade
	if err := database.DB.First(&trade, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "milestone not found")
		} else {
			respondInternal(c, "failed to load milestone", err)
		}
		return trade, false
	}
	if !isParticipant(c, trade) {
		respondError(c, http.StatusForbidden, "access denied")
		return trade, false
	}
	return trade, true
}

func loadTradeParam(c *gin.Context, name string) (models.Trade, bool) {
	id, ok := paramID(c, name)
	if !ok {
		return models.Trade{}, false
	}
	return loadTrade(c, id)
}

// moveStatus меняет статус, только если он не изменился с момента чтения.
func moveStatus(tx *gorm.DB, c *gin.Context, trade *models.Trade, to models.CompletionStatus, extra map[string]any) error {
	updates := map[string]any{"completion_status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.Trade{}).
		Where("id = ? AND completion_status = ?", trade.ID, trade.CompletionStatus).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStatusChanged
	}

	from := trade.CompletionStatus
	trade.CompletionStatus = to
	return database.CreateAuditLogTx(tx, middleware.CurrentUserID(c), database.EntityMilestone, trade.ID,
		"status_change", string(from)+" -> "+string(to))
}
