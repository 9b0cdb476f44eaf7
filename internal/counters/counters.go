// Package counters keeps the process-wide event counters reported by the
// status table, together with their smoothed per-second rates.
package counters

import (
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter identifies one global counter.
type Counter int

const (
	NebCallbacks Counter = iota
	Requests
	Connections
	ServiceChecks
	HostChecks
	Forks
	LogMessages
	Commands
	Overflows
	numCounters
)

var names = [numCounters]string{
	"neb_callbacks",
	"requests",
	"connections",
	"service_checks",
	"host_checks",
	"forks",
	"log_messages",
	"external_commands",
	"livestatus_overflows",
}

// Name returns the column prefix used for the counter in the status table.
func (c Counter) Name() string {
	if c < 0 || c >= numCounters {
		return "unknown"
	}
	return names[c]
}

// All lists every counter in status-table order.
func All() []Counter {
	all := make([]Counter, numCounters)
	for i := range all {
		all[i] = Counter(i)
	}
	return all
}

// StatisticsInterval is the minimum time between two rate recomputations.
const StatisticsInterval = 5 * time.Second

// rateWeight is the share of the newest observation in the smoothed rate.
const rateWeight = 0.25

var (
	values [numCounters]atomic.Int64

	mu         sync.Mutex
	lastValues [numCounters]int64
	rates      [numCounters]float64
	lastUpdate time.Time
)

// Increment adds one to c.
func Increment(c Counter) { values[c].Add(1) }

// Value returns the current value of c.
func Value(c Counter) int64 { return values[c].Load() }

// Rate returns the smoothed per-second rate of c.
func Rate(c Counter) float64 {
	mu.Lock()
	defer mu.Unlock()
	return rates[c]
}

// Update recomputes the rates unless the last recomputation is more recent
// than StatisticsInterval.
func Update(now time.Time) {
	mu.Lock()
	defer mu.Unlock()
	if lastUpdate.IsZero() {
		for i := range lastValues {
			lastValues[i] = values[i].Load()
		}
		lastUpdate = now
		return
	}
	elapsed := now.Sub(lastUpdate).Seconds()
	if elapsed < StatisticsInterval.Seconds() {
		return
	}
	for i := range rates {
		v := values[i].Load()
		current := float64(v-lastValues[i]) / elapsed
		if rates[i] == 0 {
			rates[i] = current
		} else {
			rates[i] = rates[i]*(1-rateWeight) + current*rateWeight
		}
		if math.IsNaN(rates[i]) {
			rates[i] = 0
		}
		lastValues[i] = v
	}
	lastUpdate = now
}

// Reset zeroes all counters and rates. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	for i := range values {
		values[i].Store(0)
		lastValues[i] = 0
		rates[i] = 0
	}
	lastUpdate = time.Time{}
}

// Register exposes every counter and rate on reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range All() {
		metric := strings.TrimPrefix(c.Name(), "livestatus_")
		total := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "livestatus",
			Name:      metric + "_total",
			Help:      "Number of " + strings.ReplaceAll(metric, "_", " ") + " since startup.",
		}, func() float64 { return float64(Value(c)) })
		rate := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "livestatus",
			Name:      metric + "_rate",
			Help:      "Smoothed per-second rate of " + strings.ReplaceAll(metric, "_", " ") + ".",
		}, func() float64 { return Rate(c) })
		if err := reg.Register(total); err != nil {
			return err
		}
		if err := reg.Register(rate); err != nil {
			return err
		}
	}
	return nil
}
