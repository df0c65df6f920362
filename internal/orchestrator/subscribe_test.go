package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/payload"
)

func TestSubscribe_TypeAndWildcard(t *testing.T) {
	ctx := context.Background()
	o, _ := newMemOrchestrator(t)

	var retries, all []string
	o.Subscribe(event.TypeRetry, func(e event.Event) { retries = append(retries, e.ID) })
	o.Subscribe(event.Wildcard, func(e event.Event) { all = append(all, e.ID) })

	a, err := o.Append(ctx, retryInput("s", 1))
	require.NoError(t, err)
	b, err := o.Append(ctx, event.Input{Type: event.TypeTextDelta, StreamID: "s"})
	require.NoError(t, err)

	assert.Equal(t, []string{a.ID}, retries)
	assert.Equal(t, []string{a.ID, b.ID}, all)
}

func TestSubscribe_NestedAppendDeliveredInOrder(t *testing.T) {
	ctx := context.Background()
	o, _ := newMemOrchestrator(t)

	var got []string
	o.Subscribe(event.TypeRetry, func(e event.Event) {
		got = append(got, "retry:"+e.ID)
		if e.Payload.Str("nested") == "" {
			_, err := o.Append(ctx, event.Input{
				ID:       "b",
				Type:     event.TypeTextDelta,
				StreamID: "s",
				Payload:  payload.Object{"nested": payload.String("yes")},
			})
			assert.NoError(t, err)
			got = append(got, "appended:b")
		}
	})
	o.Subscribe(event.Wildcard, func(e event.Event) { got = append(got, "all:"+e.ID) })

	in := retryInput("s", 1)
	in.ID = "a"
	_, err := o.Append(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, []string{"retry:a", "appended:b", "all:a", "all:b"}, got)
}

func TestSubscribe_PanicIsContained(t *testing.T) {
	ctx := context.Background()
	o, m := newMemOrchestrator(t)

	var after int
	o.Subscribe(event.TypeRetry, func(event.Event) { panic("handler bug") })
	o.Subscribe(event.TypeRetry, func(event.Event) { after++ })

	_, err := o.Append(ctx, retryInput("s", 1))
	require.NoError(t, err)
	_, err = o.Append(ctx, retryInput("s", 2))
	require.NoError(t, err)

	assert.Equal(t, 2, after)
	assert.Equal(t, 2, m.Offset())
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	o, _ := newMemOrchestrator(t)

	var n int
	unsubscribe := o.Subscribe(event.Wildcard, func(event.Event) { n++ })
	_, err := o.Append(ctx, retryInput("s", 1))
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()
	_, err = o.Append(ctx, retryInput("s", 2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubscribe_UnsubscribeDuringDelivery(t *testing.T) {
	ctx := context.Background()
	o, _ := newMemOrchestrator(t)

	var first, second int
	var unsubscribe func()
	unsubscribe = o.Subscribe(event.TypeRetry, func(event.Event) {
		first++
		unsubscribe()
	})
	o.Subscribe(event.TypeRetry, func(event.Event) { second++ })

	for i := range int64(3) {
		_, err := o.Append(ctx, retryInput("s", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, first)
	assert.Equal(t, 3, second)
}

func TestResume_DoesNotNotify(t *testing.T) {
	ctx := context.Background()
	o, m := newMemOrchestrator(t)
	_, err := o.Append(ctx, retryInput("s", 1))
	require.NoError(t, err)

	restarted := New(m)
	var n int
	restarted.Subscribe(event.Wildcard, func(event.Event) { n++ })
	res, err := restarted.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EventsReplayed)
	assert.Zero(t, n)
}
