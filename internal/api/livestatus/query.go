package livestatus

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oceanplexian/livestatus/internal/api"
	"github.com/oceanplexian/livestatus/internal/config"
)

// headerMode is the tri-state of ColumnHeaders.
type headerMode int

const (
	headersDefault headerMode = iota
	headersOn
	headersOff
)

// Query is one parsed GET request. Parse errors are recorded in the output
// buffer, a query with an error does not scan.
type Query struct {
	table *Table
	core  api.MonitoringCore
	cfg   *config.Config
	out   *OutputBuffer
	log   logrus.FieldLogger

	columns      []*Column
	columnsGiven bool
	headers      headerMode
	filters      []Filter
	stats        []*statsColumn
	waitStack    []Filter
	filter       Filter
	waitCond     Filter

	user         api.User
	limit        int
	timeLimit    time.Duration
	deadline     time.Time
	format       OutputFormat
	seps         Separators
	keepAlive    bool
	tz           time.Duration
	waitTrigger  api.Trigger
	waitObject   Row
	waitTimeout  time.Duration
	waitGiven    bool
	maxRespBytes int

	renderer    Renderer
	single      *statsGroup
	groups      map[string]*statsGroup
	rowsScanned int
	rowsMatched int
}

// ParseQuery parses the header lines following "GET table". It needs the
// core read lock for AuthUser and WaitObject lookups.
func ParseQuery(lines []string, table *Table, core api.MonitoringCore, cfg *config.Config, out *OutputBuffer, log logrus.FieldLogger) *Query {
	q := &Query{
		table:        table,
		core:         core,
		cfg:          cfg,
		out:          out,
		log:          log,
		user:         api.NoAuthUser,
		limit:        -1,
		seps:         DefaultSeparators,
		maxRespBytes: int(cfg.MaxResponseSize.Bytes()),
	}
	for _, line := range lines {
		q.parseHeader(line)
	}
	q.filter = NewAndFilter(RowFilter, q.filters)
	q.waitCond = NewAndFilter(WaitConditionFilter, q.waitStack)
	if !q.columnsGiven && len(q.stats) == 0 {
		q.columns = table.Columns()
	}
	return q
}

func (q *Query) KeepAlive() bool { return q.keepAlive }

func (q *Query) invalidHeader(format string, args ...interface{}) {
	q.out.SetError(CodeInvalidHeader, fmt.Sprintf(format, args...))
}

func (q *Query) parseHeader(line string) {
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		q.invalidHeader("invalid header line '%s', expected 'Header: value'", line)
		return
	}
	value = strings.TrimSpace(value)
	var err error
	switch name {
	case "Filter":
		err = q.pushFilter(&q.filters, RowFilter, value)
	case "And":
		err = combine(&q.filters, RowFilter, value, "And", NewAndFilter)
	case "Or":
		err = combine(&q.filters, RowFilter, value, "Or", NewOrFilter)
	case "Negate":
		err = negateTop(&q.filters, "Negate")
	case "Stats":
		err = q.parseStats(value)
	case "StatsAnd":
		err = q.combineStats(value, "StatsAnd", NewAndFilter)
	case "StatsOr":
		err = q.combineStats(value, "StatsOr", NewOrFilter)
	case "StatsNegate":
		err = q.negateStats()
	case "Columns":
		q.parseColumns(value)
	case "StatsGroupBy":
		q.log.Warn("StatsGroupBy is deprecated, use Columns instead")
		q.parseColumns(value)
	case "ColumnHeaders":
		var on bool
		if on, err = parseOnOff(name, value); err == nil {
			q.headers = headersOff
			if on {
				q.headers = headersOn
			}
		}
	case "Limit":
		err = parseNonNegative(name, value, &q.limit)
	case "Timelimit":
		var secs int
		if err = parseNonNegative(name, value, &secs); err == nil {
			q.timeLimit = time.Duration(secs) * time.Second
		}
	case "AuthUser":
		q.user = api.NewUser(q.core.FindContact(value), q.cfg.ServiceAuthorization, q.cfg.GroupAuthorization)
	case "Separators":
		err = q.parseSeparators(value)
	case "OutputFormat":
		q.format, err = parseOutputFormat(value)
	case "ResponseHeader":
		switch value {
		case "off":
			q.out.SetResponseHeader(HeaderOff)
		case "fixed16":
			q.out.SetResponseHeader(HeaderFixed16)
		default:
			err = errors.Errorf("invalid value '%s' for ResponseHeader: must be 'off' or 'fixed16'", value)
		}
	case "KeepAlive":
		q.keepAlive, err = parseOnOff(name, value)
	case "WaitCondition":
		q.waitGiven = true
		err = q.pushFilter(&q.waitStack, WaitConditionFilter, value)
	case "WaitConditionAnd":
		err = combine(&q.waitStack, WaitConditionFilter, value, "WaitConditionAnd", NewAndFilter)
	case "WaitConditionOr":
		err = combine(&q.waitStack, WaitConditionFilter, value, "WaitConditionOr", NewOrFilter)
	case "WaitConditionNegate":
		err = negateTop(&q.waitStack, "WaitConditionNegate")
	case "WaitTrigger":
		q.waitGiven = true
		q.waitTrigger, err = api.ParseTrigger(value)
	case "WaitObject":
		if q.waitObject = q.table.findObject(value); q.waitObject == nil {
			err = errors.Errorf("WaitObject: object '%s' not found or not supported by table '%s'", value, q.table.Name())
		}
	case "WaitTimeout":
		var ms int
		if err = parseNonNegative(name, value, &ms); err == nil {
			q.waitTimeout = time.Duration(ms) * time.Millisecond
		}
	case "Localtime":
		err = q.parseLocaltime(value)
	default:
		err = errors.Errorf("Undefined request header '%s'", name)
	}
	if err != nil {
		q.invalidHeader("%s", err.Error())
	}
}

// nextField splits off the first space separated word of s.
func nextField(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	field, rest, _ := strings.Cut(s, " ")
	return field, strings.TrimLeft(rest, " \t")
}

func (q *Query) parseFilter(kind FilterKind, value string) (Filter, error) {
	colName, rest := nextField(value)
	if colName == "" {
		return nil, errors.New("empty filter line")
	}
	opTok, rest := nextField(rest)
	if opTok == "" {
		return nil, errors.Errorf("missing operator in filter line '%s'", value)
	}
	col := q.table.Column(colName)
	if col == nil {
		return nil, errors.Errorf("table '%s' has no column '%s'", q.table.Name(), colName)
	}
	op, err := ParseOperator(opTok)
	if err != nil {
		return nil, err
	}
	return NewColumnFilter(kind, col, op, rest, q.log)
}

func (q *Query) pushFilter(stack *[]Filter, kind FilterKind, value string) error {
	f, err := q.parseFilter(kind, value)
	if err != nil {
		return err
	}
	*stack = append(*stack, f)
	return nil
}

// combine replaces the top n filters of stack by their conjunction or
// disjunction.
func combine(stack *[]Filter, kind FilterKind, value, header string, mk func(FilterKind, []Filter) Filter) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return errors.Errorf("%s: expected non-negative integer, got '%s'", header, value)
	}
	if n > len(*stack) {
		return errors.Errorf("error combining filters with '%s': expected %d filters, but only %d on stack", header, n, len(*stack))
	}
	start := len(*stack) - n
	subs := append([]Filter(nil), (*stack)[start:]...)
	*stack = append((*stack)[:start], mk(kind, subs))
	return nil
}

func negateTop(stack *[]Filter, header string) error {
	if len(*stack) == 0 {
		return errors.Errorf("%s: nothing to negate", header)
	}
	top := len(*stack) - 1
	(*stack)[top] = (*stack)[top].Negate()
	return nil
}

func (q *Query) parseStats(value string) error {
	first, rest := nextField(value)
	if fn, ok := aggregationNames[first]; ok {
		name := strings.TrimSpace(rest)
		col := q.table.Column(name)
		if col == nil {
			return errors.Errorf("table '%s' has no column '%s'", q.table.Name(), name)
		}
		sc, err := newAggregationColumn(fn, col)
		if err != nil {
			return err
		}
		q.stats = append(q.stats, sc)
		return nil
	}
	f, err := q.parseFilter(StatsFilter, value)
	if err != nil {
		return err
	}
	q.stats = append(q.stats, &statsColumn{filter: f})
	return nil
}

func (q *Query) combineStats(value, header string, mk func(FilterKind, []Filter) Filter) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return errors.Errorf("%s: expected non-negative integer, got '%s'", header, value)
	}
	if n > len(q.stats) {
		return errors.Errorf("error combining filters with '%s': expected %d filters, but only %d on stack", header, n, len(q.stats))
	}
	start := len(q.stats) - n
	subs := make([]Filter, 0, n)
	for _, sc := range q.stats[start:] {
		if !sc.isCount() {
			return errors.Errorf("%s: only valid on Stats: headers of filter type", header)
		}
		subs = append(subs, sc.filter)
	}
	q.stats = append(q.stats[:start], &statsColumn{filter: mk(StatsFilter, subs)})
	return nil
}

func (q *Query) negateStats() error {
	if len(q.stats) == 0 {
		return errors.New("StatsNegate: nothing to negate")
	}
	top := q.stats[len(q.stats)-1]
	if !top.isCount() {
		return errors.New("StatsNegate: only valid on Stats: headers of filter type")
	}
	top.filter = top.filter.Negate()
	return nil
}

func (q *Query) parseColumns(value string) {
	q.columnsGiven = true
	for _, name := range strings.Fields(value) {
		col := q.table.Column(name)
		if col == nil {
			q.log.Warnf("replacing non-existing column '%s' of table '%s' with null column", name, q.table.Name())
			col = nullColumn(name)
		}
		q.columns = append(q.columns, col)
	}
}

func (q *Query) parseSeparators(value string) error {
	dst := []*byte{&q.seps.Dataset, &q.seps.Field, &q.seps.List, &q.seps.HostService}
	for i, tok := range strings.Fields(value) {
		if i >= len(dst) {
			break
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 || n > 255 {
			return errors.Errorf("Separators: invalid separator '%s', expected decimal ASCII code", tok)
		}
		*dst[i] = byte(n)
	}
	return nil
}

func (q *Query) parseLocaltime(value string) error {
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return errors.Errorf("Localtime: invalid value '%s'", value)
	}
	diff := float64(ts - time.Now().Unix())
	offset := math.Round(diff/1800) * 1800
	if math.Abs(offset) >= 24*3600 {
		return errors.New("Localtime: timezone difference greater than or equal to 24 hours")
	}
	q.tz = time.Duration(offset) * time.Second
	if offset != 0 {
		q.log.Debugf("timezone difference is %.1f hours", offset/3600)
	}
	return nil
}

func parseOnOff(header, value string) (bool, error) {
	switch value {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, errors.Errorf("invalid value '%s' for %s: must be 'on' or 'off'", value, header)
}

func parseNonNegative(header, value string, dst *int) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return errors.Errorf("expected non-negative integer value for %s, got '%s'", header, value)
	}
	*dst = n
	return nil
}

func (q *Query) failed() bool {
	_, _, failed := q.out.Error()
	return failed
}

// Wait blocks until the wait condition holds on the wait object, the wait
// timeout expires or ctx is done. It must be called without the core lock.
func (q *Query) Wait(ctx context.Context) {
	if !q.waitGiven || q.failed() {
		return
	}
	if isContradiction(q.waitCond) && q.waitTimeout == 0 {
		q.out.SetError(CodeInvalidHeader, "waiting for WaitCondition would hang forever")
		return
	}
	triggers := q.core.Triggers()
	if isTautology(q.waitCond) {
		triggers.Wait(ctx, q.waitTrigger, q.waitTimeout)
		return
	}

	obj := q.waitObject
	if obj == nil {
		q.core.RLock()
		obj = q.table.defaultObject()
		q.core.RUnlock()
		if obj == nil {
			q.out.SetError(CodeInvalidHeader, "missing WaitObject")
			return
		}
	}
	var deadline time.Time
	if q.waitTimeout > 0 {
		deadline = time.Now().Add(q.waitTimeout)
	}
	for {
		ch := triggers.Channel(q.waitTrigger)
		q.core.RLock()
		ok := q.waitCond.Accepts(obj, q.user, q.tz)
		q.core.RUnlock()
		if ok {
			return
		}
		var left time.Duration
		if !deadline.IsZero() {
			if left = time.Until(deadline); left <= 0 {
				return
			}
		}
		if !api.WaitOn(ctx, ch, left) {
			return
		}
	}
}

// Process scans the table and renders the result into the output buffer.
// The caller holds the core read lock.
func (q *Query) Process() {
	if q.failed() {
		return
	}
	if q.timeLimit > 0 {
		q.deadline = time.Now().Add(q.timeLimit)
	}
	q.renderer = newRenderer(q.format, q.out, q.seps, q.cfg.DataEncoding)
	if q.headers == headersOn || (q.headers == headersDefault && !q.columnsGiven && len(q.stats) == 0) {
		q.renderer.Header(q.headerNames())
	}
	if len(q.stats) > 0 {
		if len(q.columns) == 0 {
			q.single = newStatsGroup("", nil, q.stats)
		} else {
			q.groups = make(map[string]*statsGroup)
		}
	}

	if q.table.rows != nil {
		q.table.rows(q, q.processDataset)
	}

	if q.single != nil {
		q.renderer.Row(q.single.row())
	}
	if q.groups != nil {
		keys := make([]string, 0, len(q.groups))
		for k := range q.groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			q.renderer.Row(q.groups[k].row())
		}
	}
	q.renderer.End()
	q.checkResponseSize()
}

func (q *Query) headerNames() []string {
	names := make([]string, 0, len(q.columns)+len(q.stats))
	for _, c := range q.columns {
		names = append(names, c.Name())
	}
	for i := range q.stats {
		names = append(names, "stats_"+strconv.Itoa(i+1))
	}
	return names
}

func (q *Query) checkResponseSize() bool {
	if q.out.Size() <= q.maxRespBytes {
		return true
	}
	q.out.SetError(CodeLimitExceeded, fmt.Sprintf("Maximum response size of %d bytes exceeded!", q.maxRespBytes))
	return false
}

// processDataset handles one row of the scan and reports whether the scan
// should go on.
func (q *Query) processDataset(r Row) bool {
	q.rowsScanned++
	if !q.checkResponseSize() {
		return false
	}
	if !q.deadline.IsZero() && time.Now().After(q.deadline) {
		q.out.SetError(CodeLimitExceeded, fmt.Sprintf("Maximum query time of %d seconds exceeded!", int(q.timeLimit/time.Second)))
		return false
	}
	if !q.table.isAuthorized(r, q.user) || !q.filter.Accepts(r, q.user, q.tz) {
		return true
	}
	q.rowsMatched++
	if q.limit >= 0 && q.rowsMatched > q.limit {
		return false
	}
	if len(q.stats) > 0 {
		g := q.single
		if g == nil {
			g = q.groupFor(r)
		}
		for _, a := range g.aggs {
			a.consume(r, q.user, q.tz)
		}
		return true
	}
	q.renderer.Row(q.cells(r))
	return true
}

func (q *Query) cells(r Row) []interface{} {
	cells := make([]interface{}, len(q.columns))
	for i, c := range q.columns {
		cells[i] = c.Value(r, q.tz)
	}
	return cells
}

func (q *Query) groupFor(r Row) *statsGroup {
	cells := q.cells(r)
	key := groupKey(cells)
	g, ok := q.groups[key]
	if !ok {
		g = newStatsGroup(key, cells, q.stats)
		q.groups[key] = g
	}
	return g
}

// timeBounds returns the window the filter allows on an int or time column,
// for tables that can skip rows by time.
func (q *Query) timeBounds(column string) (since, until int64) {
	since, ok := q.filter.GreatestLowerBound(column, q.tz)
	if !ok {
		since = math.MinInt64
	}
	until, ok = q.filter.LeastUpperBound(column, q.tz)
	if !ok {
		until = math.MaxInt64
	}
	return since, until
}

// valueSet returns the values 0..31 the filter allows on column, all if it
// does not restrict them.
func (q *Query) valueSet(column string, all uint32) uint32 {
	if mask, ok := q.filter.ValueSetLeastUpperBound(column, q.tz); ok {
		return mask & all
	}
	return all
}

// Limit is the row limit, -1 without one.
func (q *Query) Limit() int { return q.limit }

func (q *Query) TableName() string { return q.table.Name() }

func (q *Query) RowsScanned() int { return q.rowsScanned }

func (q *Query) RowsMatched() int { return q.rowsMatched }
