package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"ad_kill_switch/internal/domain/monitor"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowMonitor tracks how many RunCycle invocations are in flight at once.
type slowMonitor struct {
	running  atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
	duration time.Duration
}

func (m *slowMonitor) RunCycle(ctx context.Context) (monitor.Summary, error) {
	n := m.running.Add(1)
	defer m.running.Add(-1)
	for {
		cur := m.maxSeen.Load()
		if n <= cur || m.maxSeen.CompareAndSwap(cur, n) {
			break
		}
	}
	m.calls.Add(1)

	select {
	case <-time.After(m.duration):
	case <-ctx.Done():
	}
	return monitor.Summary{}, nil
}

func (m *slowMonitor) SendDailyReport(context.Context) error { return nil }

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// A cycle slower than the interval must suppress the ticks it overlaps:
// two cycles running at once would pause or scale the same ads twice.
func TestSchedulerNeverOverlapsCycles(t *testing.T) {
	mon := &slowMonitor{duration: 1500 * time.Millisecond}
	s := NewMonitorScheduler(mon, testLogger(), time.Second, time.Minute, "0 9 * * *")
	require.NoError(t, s.Start())

	time.Sleep(3500 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, mon.calls.Load(), int32(2))
	assert.Equal(t, int32(1), mon.maxSeen.Load(), "cycles must never run concurrently")
}
