package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is the subset of *pgxpool.Stat the collector reads.
type PoolStats interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
	AcquireCount() int64
}

// PoolStatsCollector exports pgxpool connection statistics to Prometheus.
type PoolStatsCollector struct {
	stat    func() PoolStats
	service string

	acquired *prometheus.Desc
	idle     *prometheus.Desc
	total    *prometheus.Desc
	max      *prometheus.Desc
	acquires *prometheus.Desc
}

// NewPoolStatsCollector creates a collector reading from pool.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	return newPoolStatsCollector(func() PoolStats { return pool.Stat() }, service)
}

func newPoolStatsCollector(stat func() PoolStats, service string) *PoolStatsCollector {
	labels := []string{"service"}
	return &PoolStatsCollector{
		stat:     stat,
		service:  service,
		acquired: prometheus.NewDesc("db_pool_acquired_connections", "Number of currently acquired connections", labels, nil),
		idle:     prometheus.NewDesc("db_pool_idle_connections", "Number of currently idle connections", labels, nil),
		total:    prometheus.NewDesc("db_pool_total_connections", "Total number of connections in the pool", labels, nil),
		max:      prometheus.NewDesc("db_pool_max_connections", "Maximum number of connections allowed", labels, nil),
		acquires: prometheus.NewDesc("db_pool_acquire_count_total", "Cumulative count of successful acquires", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquired
	ch <- c.idle
	ch <- c.total
	ch <- c.max
	ch <- c.acquires
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(s.AcquiredConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.IdleConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(s.TotalConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.MaxConns()), c.service)
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.AcquireCount()), c.service)
}

// RegisterPoolMetrics registers a PoolStatsCollector with the default registry.
func RegisterPoolMetrics(pool *pgxpool.Pool, service string) error {
	return prometheus.Register(NewPoolStatsCollector(pool, service))
}
