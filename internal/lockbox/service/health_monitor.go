package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type MonitorConfig struct {
	// Interval between checks. Defaults to 15s.
	Interval time.Duration
	// Timeout for a single ping. Defaults to 2s.
	Timeout time.Duration
	// FailThreshold consecutive failures mark the database unhealthy.
	// Defaults to 3. One success marks it healthy again.
	FailThreshold int
}

// HealthMonitor pings the database on an interval and reports transitions
// through onChange. It starts out healthy.
type HealthMonitor struct {
	db       Pinger
	cfg      MonitorConfig
	onChange func(healthy bool)
	logger   logrus.FieldLogger

	mu      sync.Mutex
	healthy bool
	fails   int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHealthMonitor(db Pinger, cfg MonitorConfig, onChange func(healthy bool), logger logrus.FieldLogger) *HealthMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.FailThreshold <= 0 {
		cfg.FailThreshold = 3
	}
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &HealthMonitor{
		db:       db,
		cfg:      cfg,
		onChange: onChange,
		logger:   logger,
		healthy:  true,
		done:     make(chan struct{}),
	}
}

// Start runs one check immediately and then repeats on the interval until
// ctx is cancelled or Stop is called.
func (m *HealthMonitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)
	m.logger.WithField("interval", m.cfg.Interval.String()).Info("db health monitor started")
}

// Stop signals the loop to exit and waits for it.
func (m *HealthMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *HealthMonitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

func (m *HealthMonitor) loop(ctx context.Context) {
	defer close(m.done)

	m.check(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *HealthMonitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	err := m.db.PingContext(pingCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	was := m.healthy
	if err != nil {
		m.fails++
		if m.fails >= m.cfg.FailThreshold {
			m.healthy = false
		}
	} else {
		m.fails = 0
		m.healthy = true
	}
	now, fails := m.healthy, m.fails
	m.mu.Unlock()

	if err != nil {
		m.logger.WithError(err).WithField("consecutive_failures", fails).Warn("db ping failed")
	}
	if now != was {
		if now {
			m.logger.Info("db healthy")
		} else {
			m.logger.Error("db unhealthy")
		}
		m.onChange(now)
	}
}
