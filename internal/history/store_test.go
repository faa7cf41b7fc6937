package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossy-p/roomrelay/internal/models"
)

func TestAppendRoundTrip(t *testing.T) {
	s := New(0)

	for i := 0; i < 5; i++ {
		s.Append(models.Message{Room: "lobby", Sender: "alice", Content: fmt.Sprintf("m%d", i)})
	}

	log := s.History("lobby")
	require.Len(t, log, 5)
	for i, msg := range log {
		assert.Equal(t, fmt.Sprintf("m%d", i), msg.Content)
	}
}

func TestTimestampsNonDecreasing(t *testing.T) {
	s := New(0)

	// A clock that sometimes repeats, as coarse wall clocks do.
	base := time.UnixMilli(1700000000000)
	ticks := []int64{0, 0, 1, 1, 5}
	i := 0
	s.now = func() time.Time {
		ts := base.Add(time.Duration(ticks[i]) * time.Millisecond)
		i++
		return ts
	}

	before := base.UnixMilli()
	for range ticks {
		s.Append(models.Message{Room: "lobby", Sender: "a", Content: "x"})
	}

	log := s.History("lobby")
	prev := before
	for _, msg := range log {
		assert.GreaterOrEqual(t, msg.Timestamp, prev)
		prev = msg.Timestamp
	}
}

func TestAppendReturnsStoredMessage(t *testing.T) {
	s := New(0)

	stored := s.Append(models.Message{Room: "lobby", Sender: "alice", Content: "hi"})
	assert.NotZero(t, stored.Timestamp)
	assert.Equal(t, "hi", stored.Content)
}

func TestUnknownRoomIsEmptyNotError(t *testing.T) {
	s := New(0)

	log := s.History("never-seen")
	assert.NotNil(t, log)
	assert.Empty(t, log)
	assert.Zero(t, s.Len("never-seen"))
}

func TestSnapshotImmuneToLaterAppends(t *testing.T) {
	s := New(0)
	s.Append(models.Message{Room: "lobby", Sender: "a", Content: "first"})

	snap := s.History("lobby")
	s.Append(models.Message{Room: "lobby", Sender: "a", Content: "second"})

	require.Len(t, snap, 1)
	assert.Equal(t, "first", snap[0].Content)
}

func TestLimitKeepsTail(t *testing.T) {
	s := New(3)

	for i := 0; i < 6; i++ {
		s.Append(models.Message{Room: "lobby", Sender: "a", Content: fmt.Sprintf("m%d", i)})
	}

	log := s.History("lobby")
	require.Len(t, log, 3)
	assert.Equal(t, "m3", log[0].Content)
	assert.Equal(t, "m5", log[2].Content)
}
