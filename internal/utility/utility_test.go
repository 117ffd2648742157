package utility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, in := range []string{
		"2024-01-02T03:04:05Z",
		"2024-01-02T05:04:05+02:00",
		"2024-01-02T03:04:05",
		"2024-01-02 03:04:05",
	} {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	day, err := ParseTimestamp("2024-01-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
	_, err = ParseTimestamp("")
	assert.Error(t, err)
}

func TestParseDateDropsClock(t *testing.T) {
	got, err := ParseDate("2024-03-09T23:10:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestPgtypeHelpers(t *testing.T) {
	assert.False(t, Text("").Valid)
	assert.Equal(t, "x", Text("x").String)
	assert.Nil(t, TimeValue(Timestamptz(time.Time{})))
}

func TestHubNotifyWithoutClient(t *testing.T) {
	h := NewHub()
	assert.False(t, h.Connected("dev-1"))
	h.Notify("dev-1")

	var nilHub *Hub
	nilHub.Notify("dev-1")
}
