package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/terrashift/climate-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "a1b2c3d4-0000-0000-0000-000000000000",
			Status:    model.RunStatusComplete,
			Params:    model.RunParams{HorizonYear: 2065},
			Result:    &model.RunResult{Counties: 3108},
			CreatedAt: created,
			UpdatedAt: created.Add(92 * time.Second),
		},
		{
			ID:        "ffffffff-1111-0000-0000-000000000000",
			Status:    model.RunStatusFailed,
			Params:    model.RunParams{HorizonYear: 2065},
			CreatedAt: created,
			UpdatedAt: created,
		},
	}

	var sb strings.Builder
	formatRunsList(&sb, runs)
	out := sb.String()

	assert.Contains(t, out, "a1b2c3d4")
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "3108")
	assert.Contains(t, out, "1m32s")
	assert.Contains(t, out, "failed")
	assert.NotContains(t, out, "a1b2c3d4-0000", "IDs are truncated for display")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "a1b2c3d4", truncateID("a1b2c3d4-0000-0000"))
	assert.Equal(t, "deadbeef", truncateID("deadbeefcafe"))
	assert.Equal(t, "short", truncateID("short"))
}
