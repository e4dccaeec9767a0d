package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeService struct {
	items         []Item
	recallErr     error
	synthesized   bool
	synthesizeErr error
}

func (f *fakeService) Recall(context.Context, string, string) ([]Item, error) {
	return f.items, f.recallErr
}

func (f *fakeService) Synthesize(context.Context, string, []Message) error {
	f.synthesized = true
	return f.synthesizeErr
}

func TestRecallReturnsItemsOnSuccess(t *testing.T) {
	svc := &fakeService{items: []Item{{Text: "met Jane last week", Relevance: 0.9}}}
	c := New(Options{Service: svc})
	ctx := c.Recall(context.Background(), "sess1", "Jane")
	require.Len(t, ctx.Items, 1)
}

func TestRecallWithNilServiceDisablesMemory(t *testing.T) {
	c := New(Options{})
	ctx := c.Recall(context.Background(), "sess1", "Jane")
	require.Empty(t, ctx.Items)
}

func TestRecallOpensBreakerAfterThreshold(t *testing.T) {
	svc := &fakeService{recallErr: errors.New("down")}
	c := New(Options{Service: svc, FailureThreshold: 2, OpenDuration: time.Hour})
	c.Recall(context.Background(), "sess1", "q")
	c.Recall(context.Background(), "sess1", "q")
	require.Equal(t, stateOpen, c.BreakerState())
}

func TestBreakerHalfOpenRecoversOnSuccess(t *testing.T) {
	svc := &fakeService{recallErr: errors.New("down")}
	c := New(Options{Service: svc, FailureThreshold: 1, OpenDuration: time.Millisecond})
	c.Recall(context.Background(), "sess1", "q")
	require.Equal(t, stateOpen, c.BreakerState())

	time.Sleep(2 * time.Millisecond)
	svc.recallErr = nil
	svc.items = []Item{{Text: "ok"}}
	ctx := c.Recall(context.Background(), "sess1", "q")
	require.Len(t, ctx.Items, 1)
	require.Equal(t, stateClosed, c.BreakerState())
}

func TestSynthesizeBestEffort(t *testing.T) {
	svc := &fakeService{}
	c := New(Options{Service: svc})
	c.Synthesize(context.Background(), "sess1", []Message{{Role: "user", Text: "hi"}})
	require.True(t, svc.synthesized)
}
