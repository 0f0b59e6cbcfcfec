// Package monitoring keeps in-process request and diagnosis metrics.
package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// latencyBuckets are histogram upper bounds in seconds.
var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

const defaultWindow = 1024

// Counter is a monotonically increasing counter.
type Counter struct {
	Value       int64     `json:"value"`
	LastUpdated time.Time `json:"last_updated"`
}

func (c *Counter) inc(now time.Time) {
	c.Value++
	c.LastUpdated = now
}

// Histogram is a cumulative latency histogram keyed by the formatted bucket
// upper bound ("0.005").
type Histogram struct {
	Count   int64            `json:"count"`
	Sum     float64          `json:"sum"`
	Buckets map[string]int64 `json:"buckets"`
}

func bucketLabel(le float64) string {
	return strconv.FormatFloat(le, 'f', -1, 64)
}

func newHistogram() *Histogram {
	h := &Histogram{Buckets: make(map[string]int64, len(latencyBuckets))}
	for _, le := range latencyBuckets {
		h.Buckets[bucketLabel(le)] = 0
	}
	return h
}

func (h *Histogram) observe(seconds float64) {
	h.Count++
	h.Sum += seconds
	for _, le := range latencyBuckets {
		if seconds <= le {
			h.Buckets[bucketLabel(le)]++
		}
	}
}

// Summary aggregates the recent latency window.
type Summary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// RouteMetrics groups the metrics of one route.
type RouteMetrics struct {
	Requests *Counter   `json:"requests"`
	Errors   *Counter   `json:"errors"`
	Latency  *Histogram `json:"latency_seconds"`
	Recent   Summary    `json:"recent_latency_ms"`
}

// Snapshot is a point-in-time copy of every metric.
type Snapshot struct {
	Timestamp   time.Time               `json:"timestamp"`
	Uptime      string                  `json:"uptime"`
	Routes      map[string]RouteMetrics `json:"routes"`
	Diagnoses   map[string]int64        `json:"diagnoses_by_source"`
	AIFallbacks map[string]int64        `json:"ai_fallbacks_by_kind"`
}

type route struct {
	requests Counter
	errors   Counter
	latency  *Histogram
	recent   []float64
	next     int
}

// Collector records request and diagnosis metrics. Safe for concurrent use.
type Collector struct {
	mu        sync.RWMutex
	routes    map[string]*route
	diagnoses map[string]int64
	fallbacks map[string]int64
	window    int
	started   time.Time
	now       func() time.Time
}

// NewCollector creates a collector keeping the last window latencies per
// route for percentiles. A non-positive window defaults to 1024.
func NewCollector(window int) *Collector {
	if window <= 0 {
		window = defaultWindow
	}
	return &Collector{
		routes:    make(map[string]*route),
		diagnoses: make(map[string]int64),
		fallbacks: make(map[string]int64),
		window:    window,
		started:   time.Now(),
		now:       time.Now,
	}
}

// RecordRequest records one served request. Status >= 500 counts as an error.
func (c *Collector) RecordRequest(routeName string, status int, duration time.Duration) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.routes[routeName]
	if !ok {
		r = &route{latency: newHistogram(), recent: make([]float64, 0, c.window)}
		c.routes[routeName] = r
	}
	r.requests.inc(now)
	if status >= 500 {
		r.errors.inc(now)
	}
	r.latency.observe(duration.Seconds())

	ms := float64(duration.Microseconds()) / 1000
	if len(r.recent) < c.window {
		r.recent = append(r.recent, ms)
	} else {
		r.recent[r.next] = ms
		r.next = (r.next + 1) % c.window
	}
}

// RecordDiagnosis counts a diagnosis by the path that served it. fallbackKind
// is empty unless the AI path failed.
func (c *Collector) RecordDiagnosis(source, fallbackKind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnoses[source]++
	if fallbackKind != "" {
		c.fallbacks[fallbackKind]++
	}
}

// Snapshot returns a deep copy of the current metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Timestamp:   c.now().UTC(),
		Uptime:      time.Since(c.started).Round(time.Second).String(),
		Routes:      make(map[string]RouteMetrics, len(c.routes)),
		Diagnoses:   make(map[string]int64, len(c.diagnoses)),
		AIFallbacks: make(map[string]int64, len(c.fallbacks)),
	}
	for name, r := range c.routes {
		requests, errs := r.requests, r.errors
		latency := &Histogram{Count: r.latency.Count, Sum: r.latency.Sum, Buckets: make(map[string]int64, len(r.latency.Buckets))}
		for le, n := range r.latency.Buckets {
			latency.Buckets[le] = n
		}
		snap.Routes[name] = RouteMetrics{
			Requests: &requests,
			Errors:   &errs,
			Latency:  latency,
			Recent:   summarize(r.recent),
		}
	}
	for k, v := range c.diagnoses {
		snap.Diagnoses[k] = v
	}
	for k, v := range c.fallbacks {
		snap.AIFallbacks[k] = v
	}
	return snap
}

func summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	data := stats.Float64Data(values)
	s := Summary{Count: len(values)}
	s.Min, _ = data.Min()
	s.Max, _ = data.Max()
	s.Mean, _ = data.Mean()
	s.P50, _ = data.Percentile(50)
	s.P95, _ = data.Percentile(95)
	s.P99, _ = data.Percentile(99)
	for _, v := range []*float64{&s.Min, &s.Max, &s.Mean, &s.P50, &s.P95, &s.P99} {
		*v, _ = stats.Round(*v, 3)
	}
	return s
}
