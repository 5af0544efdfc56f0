package handlers

import (
	"net/http"
	"strconv"

	"trade-closeout/internal/database"
	"trade-closeout/internal/models"

	"github.com/gin-gonic/gin"
)

// ListAuditLogs — журнал для админа: последние 200 записей,
// можно сузить по ?entity=milestone&entity_id=4.
func ListAuditLogs(c *gin.Context) {
	dbq := database.DB.
		Preload("User").
		Order("created_at desc, id desc").
		Limit(200)

	if entity := c.Query("entity"); entity != "" {
		dbq = dbq.Where("entity = ?", entity)
	}
	if raw := c.Query("entity_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid entity_id")
			return
		}
		dbq = dbq.Where("entity_id = ?", id)
	}

	logs := []models.AuditLog{}
	if err := dbq.Find(&logs).Error; err != nil {
		respondInternal(c, "failed to load audit log", err)
		return
	}
	for i := range logs {
		logs[i].Username = logs[i].User.Username
	}
	c.JSON(http.StatusOK, logs)
}
