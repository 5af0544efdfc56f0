package main

import (
	"bytes"
	"testing"

	"trade-closeout/internal/models"
	"trade-closeout/internal/tradestate"

	"github.com/stretchr/testify/assert"
)

func TestPrintStateActions(t *testing.T) {
	snap := tradestate.Snapshot{Trade: models.Trade{
		ID:               9,
		Title:            "Плитка",
		CompletionStatus: models.StatusCompletedWithDefects,
		Progress:         100,
	}}

	var buf bytes.Buffer
	printState(&buf, snap, models.RoleContractor)
	assert.Contains(t, buf.String(), "report_remediation (→ Замечания устранены)")
	assert.NotContains(t, buf.String(), "Ожидается")

	buf.Reset()
	snap.Trade.CompletionStatus = models.StatusCompletionRequested
	printState(&buf, snap, models.RoleContractor)
	assert.Contains(t, buf.String(), "Ожидается: accept (client)")
	assert.Contains(t, buf.String(), "Ожидается: accept_with_defects (client)")
	assert.NotContains(t, buf.String(), "Действия")
}
