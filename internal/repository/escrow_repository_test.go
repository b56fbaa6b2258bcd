package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/construction-backend/internal/models"
)

func TestGuardMovable(t *testing.T) {
	held := &models.Escrow{Status: models.EscrowStatusHeld}
	assert.NoError(t, guardMovable(held, false, "освободить"))

	partial := &models.Escrow{Status: models.EscrowStatusPartiallyReleased}
	assert.NoError(t, guardMovable(partial, false, "вернуть"))

	disputed := &models.Escrow{Status: models.EscrowStatusDisputed}
	err := guardMovable(disputed, false, "освободить")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "заморожен спором")
	assert.NoError(t, guardMovable(disputed, true, "освободить"))

	for _, status := range []string{models.EscrowStatusReleased, models.EscrowStatusRefunded, models.EscrowStatusCancelled} {
		terminal := &models.Escrow{Status: status}
		err := guardMovable(terminal, true, "освободить")
		assert.Error(t, err, status)
		assert.Contains(t, err.Error(), status)
	}
}
