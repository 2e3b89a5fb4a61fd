package cache

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics counts cache outcomes. Counts are kept locally for Stats and
// mirrored to Prometheus when a registerer is supplied.
type CacheMetrics struct {
	hits    int64
	misses  int64
	errors  int64
	sets    int64
	deletes int64
	started time.Time

	ops *prometheus.CounterVec
}

type MetricsSnapshot struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Errors    int64   `json:"errors"`
	Sets      int64   `json:"sets"`
	Deletes   int64   `json:"deletes"`
	HitRate   float64 `json:"hit_rate"`
	StartTime int64   `json:"start_time"`
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{started: time.Now()}

	if reg != nil {
		m.ops = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache operations by level and outcome.",
		}, []string{"level", "result"})

		if err := reg.Register(m.ops); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				m.ops = are.ExistingCollector.(*prometheus.CounterVec)
			} else {
				m.ops = nil
			}
		}
	}

	return m
}

func (m *CacheMetrics) observe(level, result string) {
	if m.ops != nil {
		m.ops.WithLabelValues(level, result).Inc()
	}
}

func (m *CacheMetrics) RecordHit(level string) {
	atomic.AddInt64(&m.hits, 1)
	m.observe(level, "hit")
}

func (m *CacheMetrics) RecordMiss() {
	atomic.AddInt64(&m.misses, 1)
	m.observe("all", "miss")
}

func (m *CacheMetrics) RecordError(level string) {
	atomic.AddInt64(&m.errors, 1)
	m.observe(level, "error")
}

func (m *CacheMetrics) RecordSet() {
	atomic.AddInt64(&m.sets, 1)
	m.observe("all", "set")
}

func (m *CacheMetrics) RecordDelete() {
	atomic.AddInt64(&m.deletes, 1)
	m.observe("all", "delete")
}

func (m *CacheMetrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Hits:      atomic.LoadInt64(&m.hits),
		Misses:    atomic.LoadInt64(&m.misses),
		Errors:    atomic.LoadInt64(&m.errors),
		Sets:      atomic.LoadInt64(&m.sets),
		Deletes:   atomic.LoadInt64(&m.deletes),
		StartTime: m.started.Unix(),
	}

	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100.0
	}
	return s
}
