package database

import (
	"fmt"
	"log/slog"

	"trade-closeout/internal/models"

	"gorm.io/gorm"
)

// Сущности журнала аудита.
const (
	EntityMilestone  = "milestone"
	EntityAcceptance = "acceptance"
	EntityDefect     = "defect"
	EntityInvoice    = "invoice"
)

// helper для записи в журнал аудита вне транзакции; ошибка только логируется
func CreateAuditLog(userID uint, entity string, entityID uint, action, details string) {
	if DB == nil {
		return
	}
	if err := CreateAuditLogTx(DB, userID, entity, entityID, action, details); err != nil {
		slog.Warn("failed to write audit log", "entity", entity, "entity_id", entityID, "action", action, "error", err)
	}
}

// CreateAuditLogTx — запись внутри транзакции. Ошибку возвращает: после
// неудачного INSERT транзакция в postgres уже прервана.
func CreateAuditLogTx(tx *gorm.DB, userID uint, entity string, entityID uint, action, details string) error {
	record := models.AuditLog{
		UserID:   userID,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  details,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("write audit log %s/%d: %w", entity, entityID, err)
	}
	return nil
}

// History — записи по сущности, свежие первыми.
func History(entity string, entityID uint, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := DB.
		Preload("User").
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
