// Package monitor runs the periodic clock sweep. It is the only
// component that terminates a match without a client request; the actual
// termination goes through the engine's normal locked path, so racing a
// resign or a final move is harmless.
package monitor

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"gomoku-server/engine"
)

// Interval is the production sweep cadence.
const Interval = time.Second

type Monitor struct {
	sched gocron.Scheduler
	log   *zap.SugaredLogger
}

func New(eng *engine.Engine, interval time.Duration, log *zap.SugaredLogger) (*Monitor, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(eng.SweepTimeouts),
	); err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	return &Monitor{sched: sched, log: log}, nil
}

func (m *Monitor) Start() {
	m.sched.Start()
	m.log.Info("timeout monitor started")
}

func (m *Monitor) Stop() error {
	m.log.Info("timeout monitor stopping")
	return m.sched.Shutdown()
}
