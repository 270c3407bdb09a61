package progress

import (
	"testing"

	"github.com/pot-code/course-progress/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_latestWins(t *testing.T) {
	f := NewFeed(&sequenceIDs{})
	sub, err := f.Subscribe("u1", "c1")
	require.NoError(t, err)
	other, err := f.Subscribe("u2", "c1")
	require.NoError(t, err)
	assert.NotEqual(t, sub.ID, other.ID)

	for percent := 25; percent <= 75; percent += 25 {
		f.Publish("u1", "c1", domain.ProgressSnapshot{CourseID: "c1", PercentComplete: percent})
	}
	snap := <-sub.C
	assert.Equal(t, 75, snap.PercentComplete)

	select {
	case <-other.C:
		t.Fatal("snapshot leaked to another learner")
	default:
	}
}

func TestSubscription_Close(t *testing.T) {
	f := NewFeed(&sequenceIDs{})
	sub, err := f.Subscribe("u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Subscribers("u1", "c1"))

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, f.Subscribers("u1", "c1"))
	_, ok := <-sub.C
	assert.False(t, ok)

	// no subscribers left, must not block
	f.Publish("u1", "c1", domain.ProgressSnapshot{})
}
