package esjc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFutureWaitBlocksUntilComplete(t *testing.T) {
	f := newFuture[int]()

	go func() {
		time.Sleep(5 * time.Millisecond)
		f.complete(42, nil)
	}()

	val, err := f.Wait()
	require.NoError(t, err)
	require.Equal(t, 42, val)
}

func TestFutureGetRespectsContextDeadline(t *testing.T) {
	f := newFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err := f.Get(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCompletedFutureIsImmediatelyDone(t *testing.T) {
	wantErr := errors.New("boom")
	f := completedFuture[string]("", wantErr)

	val, err := f.Wait()
	require.Equal(t, "", val)
	require.ErrorIs(t, err, wantErr)
}

func TestFutureOnCompleteInvokesCallback(t *testing.T) {
	f := newFuture[int]()
	done := make(chan struct{})

	var got int
	f.OnComplete(func(v int, err error) {
		got = v
		require.NoError(t, err)
		close(done)
	})

	f.complete(7, nil)
	<-done
	require.Equal(t, 7, got)
}
