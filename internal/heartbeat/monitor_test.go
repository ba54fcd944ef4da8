package heartbeat

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitorSendsAfterIdleInterval(t *testing.T) {
	var sent int32
	m := New(5*time.Millisecond, 50*time.Millisecond,
		func() error { atomic.AddInt32(&sent, 1); return nil },
		func(error) {},
	)

	go m.Run()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sent) >= 1
	}, 200*time.Millisecond, 2*time.Millisecond)
}

func TestMonitorTouchSuppressesHeartbeat(t *testing.T) {
	var sent int32
	m := New(20*time.Millisecond, 100*time.Millisecond,
		func() error { atomic.AddInt32(&sent, 1); return nil },
		func(error) {},
	)

	go m.Run()
	defer m.Stop()

	stop := time.After(60 * time.Millisecond)
loop:
	for {
		select {
		case <-stop:
			break loop
		case <-time.After(5 * time.Millisecond):
			m.Touch()
		}
	}

	require.Equal(t, int32(0), atomic.LoadInt32(&sent))
}

func TestMonitorDeclaresDeadOnTimeout(t *testing.T) {
	var dead int32
	m := New(5*time.Millisecond, 10*time.Millisecond,
		func() error { return nil },
		func(error) { atomic.AddInt32(&dead, 1) },
	)

	go m.Run()
	defer m.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&dead) >= 1
	}, 200*time.Millisecond, 2*time.Millisecond)
}

func TestMonitorResponseClearsAwaiting(t *testing.T) {
	var dead int32
	m := New(5*time.Millisecond, 30*time.Millisecond,
		func() error { return nil },
		func(error) { atomic.AddInt32(&dead, 1) },
	)

	go m.Run()
	defer m.Stop()

	time.Sleep(8 * time.Millisecond)
	m.OnHeartbeatResponse()

	time.Sleep(15 * time.Millisecond)
	require.Equal(t, int32(0), atomic.LoadInt32(&dead))
}
