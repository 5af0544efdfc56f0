package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"trade-closeout/internal/completion"
	"trade-closeout/internal/logger"

	"github.com/gin-gonic/gin"
)

// errStatusChanged — статус трейда изменился между чтением и записью.
var errStatusChanged = errors.New("trade status changed concurrently")

// respondError — единый формат ошибки API: {"error": "..."}.
func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// respondInternal логирует причину, клиенту отдаёт общий текст.
func respondInternal(c *gin.Context, msg string, err error) {
	logger.Error(c.Request.Context(), msg, "error", err)
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, msg)
}

// respondTransitionError переводит ошибки машины состояний в HTTP-коды.
func respondTransitionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, completion.ErrRoleNotPermitted):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, completion.ErrIllegalTransition), errors.Is(err, errStatusChanged):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, completion.ErrPrecondition):
		respondError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		respondInternal(c, "failed to update trade status", err)
	}
}

// paramID — положительный числовой параметр пути.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
