package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastheco/mountie/device"
)

// gated returns a task that finishes when its channel is closed.
func gated(msg device.Message) (TaskFunc, chan struct{}) {
	release := make(chan struct{})
	return func(ctx context.Context) (device.Message, error) {
		<-release
		return msg, nil
	}, release
}

func waitDone(t *testing.T, tasks ...*Task) {
	t.Helper()
	for _, task := range tasks {
		select {
		case <-task.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("task %d did not finish", task.ID)
		}
	}
}

func TestPool_PollOrder(t *testing.T) {
	p := NewPool(context.Background())
	f1, r1 := gated(device.Loaded{})
	f2, r2 := gated(device.Loaded{})
	f3, r3 := gated(device.Loaded{})
	t1 := p.Spawn(device.Ref{Index: 0}, "one", f1)
	t2 := p.Spawn(device.Ref{Index: 1}, "two", f2)
	t3 := p.Spawn(device.Ref{Index: 2}, "three", f3)
	assert.Equal(t, 3, p.Len())
	assert.Empty(t, p.Poll())

	close(r2)
	waitDone(t, t2)
	got := p.Poll()
	require.Len(t, got, 1)
	assert.Equal(t, "two", got[0].Label)
	assert.Equal(t, 2, p.Len())

	// completion order 3 then 1, but the scan reports insertion order
	close(r3)
	waitDone(t, t3)
	close(r1)
	waitDone(t, t1)
	got = p.Poll()
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Label)
	assert.Equal(t, "three", got[1].Label)
	assert.Equal(t, 0, p.Len())
}

func TestPool_KeepsUnfinishedOrder(t *testing.T) {
	p := NewPool(context.Background())
	fa, ra := gated(nil)
	fb, rb := gated(nil)
	fc, rc := gated(nil)
	p.Spawn(device.Ref{}, "a", fa)
	tb := p.Spawn(device.Ref{}, "b", fb)
	p.Spawn(device.Ref{}, "c", fc)

	close(rb)
	waitDone(t, tb)
	p.Poll()

	labels := make([]string, 0, p.Len())
	for _, task := range p.tasks {
		labels = append(labels, task.Label)
	}
	assert.Equal(t, []string{"a", "c"}, labels)
	close(ra)
	close(rc)
	p.Drain()
}

func TestPool_ErrorResult(t *testing.T) {
	p := NewPool(context.Background())
	boom := errors.New("boom")
	task := p.Spawn(device.Ref{}, "fail", func(ctx context.Context) (device.Message, error) {
		return nil, boom
	})
	waitDone(t, task)
	got := p.Poll()
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0].Err, boom)
	assert.Nil(t, got[0].Msg)
}

func TestPool_PanicBecomesError(t *testing.T) {
	p := NewPool(context.Background())
	task := p.Spawn(device.Ref{}, "mount sdb1", func(ctx context.Context) (device.Message, error) {
		panic("dbus went away")
	})
	waitDone(t, task)
	got := p.Poll()
	require.Len(t, got, 1)
	require.Error(t, got[0].Err)
	assert.Contains(t, got[0].Err.Error(), "mount sdb1: panic: dbus went away")
}

func TestPool_DrainBlocks(t *testing.T) {
	p := NewPool(context.Background())
	f, release := gated(device.Loaded{})
	p.Spawn(device.Ref{}, "slow", f)
	p.Spawn(device.Ref{}, "fast", func(ctx context.Context) (device.Message, error) {
		return device.Loaded{}, nil
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	got := p.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "slow", got[0].Label)
	assert.Equal(t, "fast", got[1].Label)
	assert.Equal(t, 0, p.Len())
}
