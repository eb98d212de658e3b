package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPlanResumeAppliesOverlap(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	prior := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	win := Plan(&prior, now, Consumption())

	assert.Equal(t, prior.Add(-(30*time.Minute + time.Second)), win.Start)
	assert.Equal(t, now, win.End)
}

func TestPlanBootstrapLookback(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	win := Plan(nil, now, Consumption())
	assert.Equal(t, now.AddDate(0, 0, -7), win.Start)
	assert.Equal(t, now, win.End)

	win = Plan(nil, now, Rates())
	assert.Equal(t, now.AddDate(0, 0, -30), win.Start)
}

func TestPlanClampsToFloor(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	prior := Floor.Add(10 * time.Minute) // overlap would reach past the floor

	win := Plan(&prior, now, Consumption())
	assert.Equal(t, Floor, win.Start)

	ancient := time.Date(2014, 6, 1, 0, 0, 0, 0, time.UTC)
	win = Plan(&ancient, now, Consumption())
	assert.Equal(t, Floor, win.Start)
}

func TestPlanDayReportTruncatesToMidnight(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	prior := time.Date(2026, 8, 22, 17, 45, 0, 0, time.UTC)

	win := Plan(&prior, now, DayReport())
	assert.Equal(t, time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC), win.Start)
	assert.Equal(t, now, win.End)
}

func TestPlanNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("BST", 3600)
	now := time.Date(2026, 8, 24, 13, 0, 0, 0, loc) // 12:00 UTC
	prior := time.Date(2026, 8, 24, 11, 0, 0, 0, loc)

	win := Plan(&prior, now, Consumption())
	assert.Equal(t, time.UTC, win.Start.Location())
	assert.Equal(t, time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC), win.End)
}
