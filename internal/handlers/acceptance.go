package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trade-closeout/internal/completion"
	"trade-closeout/internal/database"
	"trade-closeout/internal/defects"
	"trade-closeout/internal/logger"
	"trade-closeout/internal/middleware"
	"trade-closeout/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//
// СПИСКИ
//

// ListAcceptances — приёмки трейда, самая свежая первой; 404, если приёмок нет.
func ListAcceptances(c *gin.Context) {
	trade, ok := loadTradeParam(c, "id")
	if !ok {
		return
	}

	var list []models.Acceptance
	err := database.DB.
		Preload("Defects", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("trade_id = ?", trade.ID).
		Order("created_at desc, id desc").
		Find(&list).Error
	if err != nil {
		respondInternal(c, "failed to load acceptances", err)
		return
	}
	if len(list) == 0 {
		respondError(c, http.StatusNotFound, "no acceptance for this milestone")
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListDefects — дефекты трейда; устранённые только с include_resolved=true.
func ListDefects(c *gin.Context) {
	trade, ok := loadTradeParam(c, "id")
	if !ok {
		return
	}

	dbq := database.DB.Where("trade_id = ?", trade.ID).Order("id")
	if c.Query("include_resolved") != "true" {
		dbq = dbq.Where("resolved = ?", false)
	}
	list := []models.Defect{}
	if err := dbq.Find(&list).Error; err != nil {
		respondInternal(c, "failed to load defects", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

//
// УСТРАНЕНИЕ ДЕФЕКТА
//

// ResolveDefect помечает дефект устранённым. Обратной операции нет.
func ResolveDefect(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req models.ResolveDefectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	if !req.Resolved {
		respondError(c, http.StatusBadRequest, "a resolved defect cannot be reopened")
		return
	}

	var defect models.Defect
	if err := database.DB.First(&defect, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "defect not found")
		} else {
			respondInternal(c, "failed to load defect", err)
		}
		return
	}
	trade, ok := loadTrade(c, defect.TradeID)
	if !ok {
		return
	}
	switch trade.CompletionStatus {
	case models.StatusCompletedWithDefects, models.StatusDefectsResolved:
	default:
		respondError(c, http.StatusConflict, "defects can only be resolved during remediation")
		return
	}
	if defect.Resolved {
		c.JSON(http.StatusOK, defect)
		return
	}

	at := time.Now()
	if req.ResolvedAt != nil {
		at = *req.ResolvedAt
	}
	uid := middleware.CurrentUserID(c)

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&defect).Updates(map[string]any{"resolved": true, "resolved_at": at}).Error
		if err != nil {
			return err
		}
		if defect.TaskID != nil {
			err := tx.Model(&models.Task{}).Where("id = ?", *defect.TaskID).Update("status", "done").Error
			if err != nil {
				return err
			}
		}
		return database.CreateAuditLogTx(tx, uid, database.EntityDefect, defect.ID, "resolve", "Устранён: "+defect.Title)
	})
	if err != nil {
		respondInternal(c, "failed to resolve defect", err)
		return
	}
	defect.Resolved = true
	defect.ResolvedAt = &at

	c.JSON(http.StatusOK, defect)
}

//
// ПРИЁМКА (заказчик)
//

// CompleteAcceptance фиксирует результат осмотра: completed без замечаний,
// иначе completed_with_defects, и по задаче на каждый дефект.
func CompleteAcceptance(c *gin.Context) {
	var req models.CompleteAcceptanceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TradeID == 0 {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	trade, ok := loadTrade(c, req.TradeID)
	if !ok {
		return
	}

	drafts := make([]models.DefectInput, 0, len(req.Defects))
	for _, d := range req.Defects {
		clean, err := defects.ValidateDraft(d)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		drafts = append(drafts, clean)
	}

	accepted := req.Accepted && req.Checklist.Complete()
	facts := completion.Facts{Accepted: accepted, DefectsRecorded: len(drafts)}
	event := completion.EventAccept
	if !accepted || len(drafts) > 0 {
		event = completion.EventAcceptWithDefects
	}
	to, err := completion.Fire(trade.CompletionStatus, event, middleware.CurrentRole(c), facts)
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	if event == completion.EventAccept {
		if req.Ratings == nil || !req.Ratings.Valid() {
			respondError(c, http.StatusBadRequest, "overall rating 1-5 is required")
			return
		}
	} else if req.Ratings != nil {
		respondError(c, http.StatusBadRequest, "ratings are given only on acceptance without reservations")
		return
	}

	completedAt := req.CompletionDate
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	reviewDate := req.ReviewDate
	if to == models.StatusCompleted {
		reviewDate = nil
	}

	var acc models.Acceptance
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, c, &trade, to, nil); err != nil {
			return err
		}

		err := tx.Where("trade_id = ? AND completed_at IS NULL", trade.ID).Order("id desc").First(&acc).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		acc.TradeID = trade.ID
		acc.Accepted = accepted
		acc.Notes = strings.TrimSpace(req.AcceptanceNotes)
		acc.InspectorName = strings.TrimSpace(req.InspectorName)
		acc.Checklist = datatypes.NewJSONType(req.Checklist)
		acc.ReviewDate = reviewDate
		acc.CompletedAt = &completedAt
		if r := req.Ratings; r != nil {
			acc.QualityRating = r.Quality
			acc.TimelinessRating = r.Timeliness
			acc.CommunicationRating = r.Communication
			acc.OverallRating = r.Overall
		}
		if err := tx.Save(&acc).Error; err != nil {
			return err
		}

		for _, d := range drafts {
			defect, err := createDefect(tx, trade, acc.ID, d)
			if err != nil {
				return err
			}
			acc.Defects = append(acc.Defects, defect)
		}

		return database.CreateAuditLogTx(tx, middleware.CurrentUserID(c), database.EntityAcceptance, acc.ID,
			"complete", fmt.Sprintf("Приёмка: %s, дефектов: %d", to, len(drafts)))
	})
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	logger.Info(c.Request.Context(), "acceptance completed",
		"trade_id", trade.ID, "acceptance_id", acc.ID, "status", to, "defects", len(acc.Defects))
	c.JSON(http.StatusOK, models.CompleteAcceptanceResponse{Acceptance: acc, Trade: trade})
}

// createDefect сохраняет дефект и задачу на его устранение для подрядчика.
func createDefect(tx *gorm.DB, trade models.Trade, acceptanceID uint, in models.DefectInput) (models.Defect, error) {
	defect := models.Defect{
		AcceptanceID: acceptanceID,
		TradeID:      trade.ID,
		Title:        in.Title,
		Description:  in.Description,
		Severity:     in.Severity,
		Location:     in.Location,
		Room:         in.Room,
		Photos:       datatypes.NewJSONSlice(in.Photos),
	}
	if err := tx.Create(&defect).Error; err != nil {
		return defect, err
	}

	task := models.Task{
		TradeID:    trade.ID,
		DefectID:   defect.ID,
		AssigneeID: trade.ContractorID,
		Title:      "Устранить: " + defect.Title,
		Notes:      defect.Description,
		Priority:   models.TaskPriority(defect.Severity),
		Status:     "todo",
	}
	if err := tx.Create(&task).Error; err != nil {
		return defect, err
	}
	defect.TaskID = &task.ID
	return defect, tx.Model(&defect).Update("task_id", task.ID).Error
}

//
// ФИНАЛЬНАЯ ПРИЁМКА
//

// FinalComplete: подрядчик сообщает об устранении (defects_resolved),
// заказчик закрывает приёмку с оценками (completed).
func FinalComplete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req models.FinalCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}

	var acc models.Acceptance
	if err := database.DB.First(&acc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(c, http.StatusNotFound, "acceptance not found")
		} else {
			respondInternal(c, "failed to load acceptance", err)
		}
		return
	}
	if req.MilestoneID != 0 && req.MilestoneID != acc.TradeID {
		respondError(c, http.StatusBadRequest, "acceptance belongs to another milestone")
		return
	}
	trade, ok := loadTrade(c, acc.TradeID)
	if !ok {
		return
	}

	role := middleware.CurrentRole(c)
	event := completion.EventFinalAccept
	switch role {
	case models.RoleClient:
		if req.Ratings == nil || !req.Ratings.Valid() {
			respondError(c, http.StatusBadRequest, "overall rating is required, ratings are 1 to 5")
			return
		}
	case models.RoleContractor:
		event = completion.EventReportRemediation
		if req.Ratings != nil {
			respondError(c, http.StatusBadRequest, "ratings are given by the client")
			return
		}
	}

	var unresolved int64
	err := database.DB.Model(&models.Defect{}).
		Where("trade_id = ? AND resolved = ?", trade.ID, false).
		Count(&unresolved).Error
	if err != nil {
		respondInternal(c, "failed to count defects", err)
		return
	}

	to, err := completion.Fire(trade.CompletionStatus, event, role, completion.Facts{UnresolvedDefects: int(unresolved)})
	if err != nil {
		respondTransitionError(c, err)
		return
	}

	now := time.Now()
	updates := map[string]any{
		"final_completed_at": now,
		"final_notes":        strings.TrimSpace(req.FinalNotes),
	}
	if req.Ratings != nil {
		updates["quality_rating"] = req.Ratings.Quality
		updates["timeliness_rating"] = req.Ratings.Timeliness
		updates["communication_rating"] = req.Ratings.Communication
		updates["overall_rating"] = req.Ratings.Overall
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := moveStatus(tx, c, &trade, to, nil); err != nil {
			return err
		}
		if err := tx.Model(&acc).Updates(updates).Error; err != nil {
			return err
		}
		return database.CreateAuditLogTx(tx, middleware.CurrentUserID(c), database.EntityAcceptance, acc.ID,
			string(event), "Финальная приёмка: "+string(to))
	})
	if err != nil {
		respondTransitionError(c, err)
		return
	}
	if err := database.DB.Preload("Defects").First(&acc, acc.ID).Error; err != nil {
		respondInternal(c, "failed to reload acceptance", err)
		return
	}

	logger.Info(c.Request.Context(), "final acceptance step", "trade_id", trade.ID, "acceptance_id", acc.ID, "status", to)
	c.JSON(http.StatusOK, models.FinalCompleteResponse{Acceptance: acc, Trade: trade})
}
