package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/chepyr/go-kanban/internal/persist"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReportFailure(t *testing.T) {
	saved := models.Card{ID: uuid.New(), Title: "Saved"}
	lost := models.Card{ID: uuid.New(), Title: "Lost"}
	be := &persist.BatchError{
		Kind:        "move",
		Total:       2,
		Failures:    []persist.EntityError{{ID: lost.ID, Err: errors.New("timeout")}},
		Compensated: true,
	}

	var out bytes.Buffer
	reportFailure(&out, fmt.Errorf("move card: %w", be), nil, []models.Card{saved, lost})
	assert.Contains(t, out.String(), "not saved: card Lost")
	assert.NotContains(t, out.String(), "Saved")
	assert.NotContains(t, out.String(), "could not be restored")

	out.Reset()
	be.Compensated = false
	reportFailure(&out, be, nil, []models.Card{lost})
	assert.Contains(t, out.String(), "could not be restored")

	out.Reset()
	reportFailure(&out, errors.New("plain"), nil, []models.Card{lost})
	assert.Empty(t, out.String())
}
