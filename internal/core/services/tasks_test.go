package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func TestTaskRunner_Submit(t *testing.T) {
	r := NewTaskRunner(2, 10)
	boom := errors.New("boom")

	ok := r.Submit(context.Background(), "ok", func(ctx context.Context) error { return nil })
	bad := r.Submit(context.Background(), "bad", func(ctx context.Context) error { return boom })

	require.NoError(t, ok.Wait(context.Background()))
	assert.ErrorIs(t, bad.Wait(context.Background()), boom)
	assert.ErrorIs(t, bad.Err(), boom)

	r.Wait()
	results := map[string]error{}
	for range 2 {
		res := <-r.Results()
		results[res.Name] = res.Err
	}
	assert.NoError(t, results["ok"])
	assert.ErrorIs(t, results["bad"], boom)
}

func TestTaskRunner_OutlivesRequestContext(t *testing.T) {
	r := NewTaskRunner(1, 1)
	reqCtx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "trace-1"))

	started := make(chan struct{})
	release := make(chan struct{})
	task := r.Submit(reqCtx, "long", func(ctx context.Context) error {
		close(started)
		<-release
		if ctx.Value(ctxKey{}) != "trace-1" {
			return errors.New("lost context value")
		}
		return ctx.Err()
	})

	<-started
	cancel()
	close(release)

	assert.NoError(t, task.Wait(context.Background()))
}

func TestTaskRunner_BoundsConcurrency(t *testing.T) {
	r := NewTaskRunner(2, 20)
	var running, peak atomic.Int32

	for range 8 {
		r.Submit(context.Background(), "work", func(ctx context.Context) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		})
	}
	r.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestTaskRunner_RecoversPanic(t *testing.T) {
	r := NewTaskRunner(1, 1)
	task := r.Submit(context.Background(), "panics", func(ctx context.Context) error {
		panic("unexpected")
	})

	err := task.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestTaskRunner_ShutdownCancelsTasks(t *testing.T) {
	r := NewTaskRunner(1, 1)
	started := make(chan struct{})
	task := r.Submit(context.Background(), "blocked", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	assert.ErrorIs(t, task.Err(), context.Canceled)
}

func TestTask_ErrBeforeDone(t *testing.T) {
	r := NewTaskRunner(1, 0)
	release := make(chan struct{})
	task := r.Submit(context.Background(), "pending", func(ctx context.Context) error {
		<-release
		return errors.New("late")
	})

	assert.NoError(t, task.Err())
	close(release)
	<-task.Done()
	assert.Error(t, task.Err())
}
