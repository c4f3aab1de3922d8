package banner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestBoard_AutoDismiss(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBoard(c.now)

	b.Show(Success, "Requests approved", 3*time.Second)
	require.NotNil(t, b.Current(Success))
	assert.Equal(t, "Requests approved", b.Current(Success).Text)

	c.t = c.t.Add(2999 * time.Millisecond)
	assert.NotNil(t, b.Current(Success))

	c.t = c.t.Add(time.Millisecond)
	assert.Nil(t, b.Current(Success))
}

func TestBoard_ManualDismiss(t *testing.T) {
	c := &clock{t: time.Now()}
	b := NewBoard(c.now)
	b.Show(Error, "boom", time.Minute)
	b.Show(Success, "ok", time.Minute)

	b.Dismiss(Error)
	assert.Nil(t, b.Current(Error))
	assert.Len(t, b.Active(), 1)

	// Showing again replaces the dismissed banner.
	b.Show(Error, "boom again", time.Minute)
	assert.Equal(t, "boom again", b.Current(Error).Text)
	assert.Len(t, b.Active(), 2)
}

func TestBanner_NilIsInactive(t *testing.T) {
	var b *Banner
	assert.False(t, b.Active(time.Now()))
}

func TestBoard_ZeroTTLStaysUntilDismissed(t *testing.T) {
	c := &clock{t: time.Now()}
	b := NewBoard(c.now)
	b.Show(Error, "Error fetching pending requests. Please try again.", 0)

	c.t = c.t.Add(24 * time.Hour)
	require.NotNil(t, b.Current(Error))

	b.Dismiss(Error)
	assert.Nil(t, b.Current(Error))
}
