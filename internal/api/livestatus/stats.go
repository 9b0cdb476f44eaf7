package livestatus

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/oceanplexian/livestatus/internal/api"
)

// aggregation is the function of a "Stats: fn column" header.
type aggregation int

const (
	aggSum aggregation = iota
	aggMin
	aggMax
	aggAvg
	aggStd
	aggSumInv
	aggAvgInv
)

var aggregationNames = map[string]aggregation{
	"sum":    aggSum,
	"min":    aggMin,
	"max":    aggMax,
	"avg":    aggAvg,
	"std":    aggStd,
	"suminv": aggSumInv,
	"avginv": aggAvgInv,
}

// statsColumn is one entry of the stats stack. Count columns carry a filter
// and can be combined with StatsAnd, StatsOr and StatsNegate.
type statsColumn struct {
	filter Filter
	fn     aggregation
	column *Column
}

func newAggregationColumn(fn aggregation, col *Column) (*statsColumn, error) {
	switch col.Type() {
	case ColumnInt, ColumnDouble, ColumnTime:
		return &statsColumn{fn: fn, column: col}, nil
	}
	return nil, errors.Errorf("aggregation on %s column '%s' not supported", col.Type(), col.Name())
}

func (c *statsColumn) isCount() bool { return c.filter != nil }

func (c *statsColumn) newAggregator() aggregator {
	if c.isCount() {
		return &countAggregator{filter: c.filter}
	}
	return &numericAggregator{fn: c.fn, column: c.column}
}

type aggregator interface {
	consume(r Row, user api.User, tz time.Duration)
	value() interface{}
}

type countAggregator struct {
	filter Filter
	count  int64
}

func (a *countAggregator) consume(r Row, user api.User, tz time.Duration) {
	if a.filter.Accepts(r, user, tz) {
		a.count++
	}
}

func (a *countAggregator) value() interface{} { return a.count }

type numericAggregator struct {
	fn     aggregation
	column *Column

	count  int64
	sum    float64
	sumSq  float64
	sumInv float64
	min    float64
	max    float64
}

func (a *numericAggregator) consume(r Row, _ api.User, _ time.Duration) {
	var x float64
	switch a.column.Type() {
	case ColumnInt:
		x = float64(a.column.IntValue(r))
	case ColumnDouble:
		x = a.column.DoubleValue(r)
	case ColumnTime:
		x = float64(unixTime(a.column.TimeValue(r), 0))
	}
	if a.count == 0 || x < a.min {
		a.min = x
	}
	if a.count == 0 || x > a.max {
		a.max = x
	}
	a.count++
	a.sum += x
	a.sumSq += x * x
	if x != 0 {
		a.sumInv += 1 / x
	}
}

func (a *numericAggregator) value() interface{} {
	if a.count == 0 {
		return float64(0)
	}
	n := float64(a.count)
	switch a.fn {
	case aggSum:
		return a.sum
	case aggMin:
		return a.min
	case aggMax:
		return a.max
	case aggAvg:
		return a.sum / n
	case aggStd:
		mean := a.sum / n
		return math.Sqrt(math.Max(0, a.sumSq/n-mean*mean))
	case aggSumInv:
		return a.sumInv
	case aggAvgInv:
		return a.sumInv / n
	}
	return float64(0)
}

// statsGroup accumulates the rows sharing the values of the group columns.
type statsGroup struct {
	key   string
	cells []interface{}
	aggs  []aggregator
}

func newStatsGroup(key string, cells []interface{}, columns []*statsColumn) *statsGroup {
	g := &statsGroup{key: key, cells: cells, aggs: make([]aggregator, len(columns))}
	for i, c := range columns {
		g.aggs[i] = c.newAggregator()
	}
	return g
}

func (g *statsGroup) row() []interface{} {
	out := make([]interface{}, 0, len(g.cells)+len(g.aggs))
	out = append(out, g.cells...)
	for _, a := range g.aggs {
		out = append(out, a.value())
	}
	return out
}

// groupKey renders group cells into a sortable, unambiguous key.
func groupKey(cells []interface{}) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(0)
		}
		switch v := c.(type) {
		case []string:
			b.WriteString(strings.Join(v, ","))
		case []int64:
			b.WriteString(joinInts(v, ","))
		case map[string]string:
			for j, k := range sortedKeys(v) {
				if j > 0 {
					b.WriteByte(',')
				}
				b.WriteString(k + "|" + v[k])
			}
		case []byte:
			b.Write(v)
		default:
			b.WriteString(plainCell(c))
		}
	}
	return b.String()
}
