// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ActiveMatches      prometheus.Gauge
	BattlesSimulated   prometheus.Counter
	BattleActions      prometheus.Histogram
	FragmentsAwarded   prometheus.Counter
	SettlementFailures prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		ActiveMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_matches",
			Help:      "Number of matches currently open",
		}),
		BattlesSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "battles_simulated_total",
			Help:      "Total number of battles resolved",
		}),
		BattleActions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "battle_actions",
			Help:      "Number of actions per resolved battle",
			Buckets:   prometheus.ExponentialBuckets(4, 2, 10),
		}),
		FragmentsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_awarded_total",
			Help:      "Total fragments credited to players",
		}),
		SettlementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_failures_total",
			Help:      "Per-player earning settlements that failed",
		}),
	}

	prometheus.MustRegister(
		m.ActiveMatches,
		m.BattlesSimulated,
		m.BattleActions,
		m.FragmentsAwarded,
		m.SettlementFailures,
	)

	return m
}

type Monitor struct {
	metrics     *Metrics
	startTime   time.Time
	battleCount int64
	mutex       sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())

	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("battles", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.battleCount
	}))

	go http.ListenAndServe(addr, nil)
}

// SetActiveMatches 对局由管理器内部回收，用绝对值同步而不是增减
func (m *Monitor) SetActiveMatches(count int) {
	m.metrics.ActiveMatches.Set(float64(count))
}

func (m *Monitor) IncBattlesSimulated() {
	m.metrics.BattlesSimulated.Inc()
	m.mutex.Lock()
	m.battleCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveBattleActions(actions int) {
	m.metrics.BattleActions.Observe(float64(actions))
}

func (m *Monitor) AddFragmentsAwarded(amount float64) {
	m.metrics.FragmentsAwarded.Add(amount)
}

func (m *Monitor) IncSettlementFailures() {
	m.metrics.SettlementFailures.Inc()
}
