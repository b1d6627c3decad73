package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubmit_ReturnsValue(t *testing.T) {
	p := NewPool(2)
	f := Submit(context.Background(), p, func(context.Context) (string, error) {
		return "ok", nil
	})
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	p.Wait()
}

func TestSubmit_ReturnsError(t *testing.T) {
	p := NewPool(1)
	boom := errors.New("boom")
	f := Submit(context.Background(), p, func(context.Context) (int, error) {
		return 0, boom
	})
	_, err := f.Await(context.Background())
	require.ErrorIs(t, err, boom)
	p.Wait()
}

func TestSubmit_RecoversPanic(t *testing.T) {
	p := NewPool(1)
	f := Submit(context.Background(), p, func(context.Context) (int, error) {
		panic("kaboom")
	})
	_, err := f.Await(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	p.Wait()
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32
	release := make(chan struct{})

	futures := make([]*Future[struct{}], 0, 6)
	for i := 0; i < 6; i++ {
		futures = append(futures, Submit(context.Background(), p, func(context.Context) (struct{}, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return struct{}{}, nil
		}))
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	for _, f := range futures {
		_, err := f.Await(context.Background())
		require.NoError(t, err)
	}
	p.Wait()
	assert.Equal(t, int32(2), peak.Load())
}

func TestAwait_ContextCancelled(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	f := Submit(context.Background(), p, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Await(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// задача продолжает жить и завершается сама
	close(release)
	v, err := f.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	p.Wait()
}

func TestSubmit_UnboundedRunsAllAtOnce(t *testing.T) {
	p := NewPool(0)
	var running atomic.Int32
	release := make(chan struct{})

	futures := make([]*Future[int], 0, 8)
	for i := 0; i < 8; i++ {
		futures = append(futures, Submit(context.Background(), p, func(context.Context) (int, error) {
			running.Add(1)
			<-release
			return 1, nil
		}))
	}

	require.Eventually(t, func() bool { return running.Load() == 8 }, time.Second, 5*time.Millisecond)
	close(release)
	for _, f := range futures {
		v, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}
	p.Wait()
}
