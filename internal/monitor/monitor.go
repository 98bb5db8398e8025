package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"domainwatch/internal/metrics"
	"domainwatch/internal/models"
	"domainwatch/internal/notify"
	"domainwatch/internal/source"
	"domainwatch/internal/storage"
)

const (
	defaultInterval = 60 * time.Second
	minInterval     = time.Second
	// startupNotifyTimeout bounds the startup message, which is sent before the loop owns a tick.
	startupNotifyTimeout = 15 * time.Second
)

// Journal records detection batches.
type Journal interface {
	Append(entry models.Detection) error
}

// Options wires a Monitor.
type Options struct {
	Interval time.Duration
	Fetcher  source.Fetcher
	Store    storage.HistoryStore
	Notifier notify.Notifier
	Journal  Journal
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	// StrictHistory makes an unreadable history a startup error instead of
	// starting from an empty set.
	StrictHistory bool

	SendStartup    bool
	StartupTitle   string
	StartupBody    string
	DetectionTitle string

	MaxRecords int
	Now        func() time.Time
}

// Monitor polls the source on an interval and reports newly seen domains.
type Monitor struct {
	opts   Options
	logger *zap.Logger

	mu      sync.RWMutex
	known   models.DomainSet
	records *recordLog
}

// New creates a monitor. Fetcher, Store and Notifier are required.
func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Interval < minInterval {
		opts.Interval = minInterval
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Multi{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DetectionTitle == "" {
		opts.DetectionTitle = "New domains detected"
	}

	return &Monitor{
		opts:    opts,
		logger:  opts.Logger.Named("monitor"),
		known:   models.NewDomainSet(),
		records: newRecordLog(opts.MaxRecords),
	}
}

// Start loads the history and sends the startup notification.
func (m *Monitor) Start(ctx context.Context) error {
	known, err := m.opts.Store.Load(ctx)
	if err != nil {
		if m.opts.StrictHistory {
			return fmt.Errorf("load history: %w", err)
		}
		m.logger.Warn("history unreadable, starting with an empty set", zap.Error(err))
		known = models.NewDomainSet()
	}
	if known == nil {
		known = models.NewDomainSet()
	}

	m.mu.Lock()
	m.known = known
	m.mu.Unlock()
	m.opts.Metrics.KnownDomains.Set(float64(known.Len()))
	m.logger.Info("history loaded", zap.Int("domains", known.Len()))

	if m.opts.SendStartup {
		notifyCtx, cancel := context.WithTimeout(ctx, startupNotifyTimeout)
		defer cancel()
		m.deliver(notifyCtx, "startup", m.opts.StartupTitle, m.opts.StartupBody)
	}
	return nil
}

// Run starts the monitor and polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}
	m.logger.Info("polling started", zap.Duration("interval", m.opts.Interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("polling stopped")
			return nil
		case <-timer.C:
			m.RunOnce(ctx)
			timer.Reset(m.opts.Interval)
		}
	}
}

// RunOnce performs a single fetch, diff, notify and persist cycle. Failures
// are logged and reflected in the returned record; they never stop the loop.
func (m *Monitor) RunOnce(ctx context.Context) (rec models.PollRecord) {
	started := m.opts.Now()
	rec.CheckedAt = started.UTC()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("poll iteration panicked", zap.Any("panic", r), zap.Stack("stack"))
			rec.OK = false
			rec.New = nil
			rec.Error = fmt.Sprintf("panic: %v", r)
			m.opts.Metrics.Polls.WithLabelValues("panic").Inc()
		} else if rec.OK {
			m.opts.Metrics.Polls.WithLabelValues("ok").Inc()
		} else {
			m.opts.Metrics.Polls.WithLabelValues("fetch_error").Inc()
		}

		elapsed := m.opts.Now().Sub(started)
		rec.DurationMS = elapsed.Milliseconds()
		m.opts.Metrics.PollDuration.Observe(elapsed.Seconds())

		m.mu.Lock()
		m.records.add(rec)
		m.mu.Unlock()
	}()

	domains, err := m.opts.Fetcher.Fetch(ctx)
	if err != nil {
		m.logger.Error("fetch failed", zap.Error(err))
		rec.Error = err.Error()
		return rec
	}
	rec.OK = true
	rec.Fetched = len(domains)

	m.mu.RLock()
	fresh := m.known.Diff(domains)
	m.mu.RUnlock()

	if len(fresh) == 0 {
		m.logger.Info("no new domains", zap.Int("fetched", len(domains)))
		return rec
	}
	rec.New = fresh

	m.logger.Info("new domains found", zap.Int("count", len(fresh)), zap.Strings("domains", fresh))
	m.opts.Metrics.NewDomains.Add(float64(len(fresh)))
	m.deliver(ctx, "detection", m.opts.DetectionTitle, FormatDetection(fresh))

	m.mu.Lock()
	m.known.Merge(fresh)
	snapshot := m.known.Clone()
	m.mu.Unlock()
	m.opts.Metrics.KnownDomains.Set(float64(snapshot.Len()))

	if err := m.opts.Store.Save(ctx, snapshot); err != nil {
		m.logger.Error("persist history failed", zap.Error(err))
		m.opts.Metrics.HistorySaves.WithLabelValues("error").Inc()
	} else {
		m.opts.Metrics.HistorySaves.WithLabelValues("ok").Inc()
	}

	if m.opts.Journal != nil {
		entry := models.Detection{DetectedAt: rec.CheckedAt, Domains: fresh}
		if err := m.opts.Journal.Append(entry); err != nil {
			m.logger.Error("journal detection failed", zap.Error(err))
		}
	}
	return rec
}

// FormatDetection renders the notification body for a detection batch.
func FormatDetection(domains []string) string {
	return fmt.Sprintf("Found %d new domain(s):\n%s", len(domains), strings.Join(domains, "\n"))
}

func (m *Monitor) deliver(ctx context.Context, kind, title, body string) {
	if err := m.opts.Notifier.Notify(ctx, title, body); err != nil {
		m.opts.Metrics.Notifications.WithLabelValues(kind, "error").Inc()
		if errors.Is(err, context.Canceled) {
			m.logger.Warn("notification cancelled", zap.String("kind", kind))
			return
		}
		m.logger.Error("notification failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	m.opts.Metrics.Notifications.WithLabelValues(kind, "ok").Inc()
	m.logger.Info("notification sent", zap.String("kind", kind), zap.String("title", title))
}

// Known returns the known domains in lexical order.
func (m *Monitor) Known() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.known.Sorted()
}

// KnownCount returns the size of the history.
func (m *Monitor) KnownCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.known.Len()
}

// Latest returns the most recent poll record.
func (m *Monitor) Latest() (models.PollRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records.latest()
}

// Records returns up to n of the newest poll records.
func (m *Monitor) Records(n int) []models.PollRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records.last(n)
}

// RecordsSince returns poll records checked at or after cutoff.
func (m *Monitor) RecordsSince(cutoff time.Time) []models.PollRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records.since(cutoff)
}

// Interval returns the configured poll interval.
func (m *Monitor) Interval() time.Duration {
	return m.opts.Interval
}
