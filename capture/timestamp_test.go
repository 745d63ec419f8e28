package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPGTimestampEpoch(t *testing.T) {
	got := pgTimestamp(0)
	assert.Equal(t, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestPGTimestampRoundTrip(t *testing.T) {
	original := time.Date(2026, 6, 15, 12, 30, 45, 123000, time.UTC)
	micros := toPGTimestamp(original)
	assert.Equal(t, original, pgTimestamp(micros))
}
