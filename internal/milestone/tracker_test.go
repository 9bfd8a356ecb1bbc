package milestone

import (
	"context"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events.Event{Type: eventType, Data: data})
}

func (r *recorder) ofType(eventType string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newTracker() (*Tracker, *recorder) {
	rec := &recorder{}
	st := store.NewState(store.NewMemory(), clockwork.NewFakeClock())
	return NewTracker(st, rec), rec
}

func TestJumpPastMilestoneFiresOnce(t *testing.T) {
	ctx := context.Background()
	tr, rec := newTracker()

	_, reached, err := tr.Add(ctx, 900)
	require.NoError(t, err)
	assert.Empty(t, reached)

	_, reached, err = tr.Add(ctx, 600)
	require.NoError(t, err)
	require.Len(t, reached, 1)
	assert.Equal(t, "1 TB", reached[0].Label)

	_, reached, err = tr.Add(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, reached)

	assert.Len(t, rec.ofType(events.TypeCelebration), 1)
}

func TestMultipleMilestonesInAscendingOrder(t *testing.T) {
	ctx := context.Background()
	tr, rec := newTracker()

	progress, reached, err := tr.Add(ctx, 150000)
	require.NoError(t, err)
	require.Len(t, reached, 3)
	assert.Equal(t, []string{"1 TB", "10 TB", "100 TB"}, []string{reached[0].Label, reached[1].Label, reached[2].Label})
	assert.True(t, progress.Milestones[2].Reached)
	assert.False(t, progress.Milestones[3].Reached)

	celebrations := rec.ofType(events.TypeCelebration)
	require.Len(t, celebrations, 3)
	assert.Equal(t, "1 TB", celebrations[0].Data.(Celebration).Label)
	assert.Empty(t, rec.ofType(events.TypeFinalCelebration))
}

func TestFinalCelebrationFiresOnce(t *testing.T) {
	ctx := context.Background()
	tr, rec := newTracker()

	progress, reached, err := tr.Add(ctx, 600000000)
	require.NoError(t, err)
	assert.Len(t, reached, 7)
	assert.True(t, progress.FinalReached)

	_, _, err = tr.Add(ctx, 1)
	require.NoError(t, err)

	assert.Len(t, rec.ofType(events.TypeFinalCelebration), 1)
	assert.Len(t, rec.ofType(events.TypeCelebration), 7)
}

func TestProgressPersists(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker()

	_, _, err := tr.Add(ctx, 12.5)
	require.NoError(t, err)
	_, _, err = tr.Add(ctx, 0)
	require.NoError(t, err)

	p, err := tr.Progress(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, p.TotalBandwidthGB, 1e-9)
	assert.EqualValues(t, 2, p.TotalUpdates)
}
