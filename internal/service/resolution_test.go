package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolutionClock_unknownZone(t *testing.T) {
	_, err := NewResolutionClock("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestMinutes(t *testing.T) {
	clock, err := NewResolutionClock("America/Sao_Paulo")
	require.NoError(t, err)
	loc := clock.loc

	opened := time.Date(2025, 3, 10, 10, 0, 0, 0, loc)
	resolved := time.Date(2025, 3, 10, 11, 30, 0, 0, loc)
	assert.Equal(t, 90, clock.Minutes(opened, resolved))
}

func TestMinutes_truncatesTowardZero(t *testing.T) {
	clock, err := NewResolutionClock("UTC")
	require.NoError(t, err)

	opened := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	resolved := opened.Add(90*time.Minute + 59*time.Second)
	assert.Equal(t, 90, clock.Minutes(opened, resolved))
}

func TestMinutes_convertsForeignZones(t *testing.T) {
	clock, err := NewResolutionClock("America/Sao_Paulo")
	require.NoError(t, err)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	opened := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	resolved := opened.Add(45 * time.Minute).In(tokyo)
	assert.Equal(t, 45, clock.Minutes(opened, resolved))
}

func TestMinutes_negativePassesThrough(t *testing.T) {
	clock, err := NewResolutionClock("UTC")
	require.NoError(t, err)

	opened := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	resolved := opened.Add(-30 * time.Minute)
	assert.Equal(t, -30, clock.Minutes(opened, resolved))
}
