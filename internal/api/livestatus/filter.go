package livestatus

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oceanplexian/livestatus/internal/api"
)

// FilterKind tells which header stack a filter was built from.
type FilterKind int

const (
	RowFilter FilterKind = iota
	StatsFilter
	WaitConditionFilter
)

// Filter is a predicate over rows. Besides evaluating rows it can report
// bounds it implies on an int or time column, which tables use to narrow
// their scan.
type Filter interface {
	Kind() FilterKind
	Accepts(r Row, user api.User, tz time.Duration) bool
	// Negate returns the filter accepting exactly the rows f rejects.
	Negate() Filter
	Copy() Filter
	// GreatestLowerBound returns the smallest value column can have in an
	// accepted row, if f implies one.
	GreatestLowerBound(column string, tz time.Duration) (int64, bool)
	// LeastUpperBound returns the largest value column can have in an
	// accepted row, if f implies one.
	LeastUpperBound(column string, tz time.Duration) (int64, bool)
	// ValueSetLeastUpperBound returns the set of values 0..31 column can
	// have in an accepted row, as a bit mask.
	ValueSetLeastUpperBound(column string, tz time.Duration) (uint32, bool)
	String() string
}

// NewColumnFilter builds the filter for "column op value" on col.
func NewColumnFilter(kind FilterKind, col *Column, op RelationalOperator, value string, log logrus.FieldLogger) (Filter, error) {
	base := columnFilter{kind: kind, column: col, op: op, value: value}
	switch col.Type() {
	case ColumnInt, ColumnTime:
		if op.isRegex() || op.isIcase() {
			return nil, errors.Errorf("operator '%s' not supported for %s column '%s'", op, col.Type(), col.Name())
		}
		return &intFilter{columnFilter: base, ref: atoi(value), isTime: col.Type() == ColumnTime}, nil
	case ColumnDouble:
		if op.isRegex() || op.isIcase() {
			return nil, errors.Errorf("operator '%s' not supported for float column '%s'", op, col.Name())
		}
		return &doubleFilter{columnFilter: base, ref: atof(value)}, nil
	case ColumnString:
		re, err := stringRegExp(op, value)
		if err != nil {
			return nil, err
		}
		return &stringFilter{columnFilter: base, re: re}, nil
	case ColumnList:
		return newListFilter(base, log)
	case ColumnDict:
		ref, rest := splitDictReference(value)
		re, err := stringRegExp(op, rest)
		if err != nil {
			return nil, err
		}
		return &dictFilter{columnFilter: base, ref: ref, rest: rest, re: re}, nil
	}
	return nil, errors.Errorf("filtering on %s column '%s' not supported", col.Type(), col.Name())
}

// columnFilter carries what every leaf filter has. Leaves without bounds
// inherit the undefined ones from here.
type columnFilter struct {
	kind   FilterKind
	column *Column
	op     RelationalOperator
	value  string
}

func (f *columnFilter) Kind() FilterKind { return f.kind }

func (f *columnFilter) String() string {
	return f.column.Name() + " " + f.op.String() + " " + f.value
}

func (f *columnFilter) GreatestLowerBound(string, time.Duration) (int64, bool) { return 0, false }
func (f *columnFilter) LeastUpperBound(string, time.Duration) (int64, bool)    { return 0, false }
func (f *columnFilter) ValueSetLeastUpperBound(string, time.Duration) (uint32, bool) {
	return 0, false
}

func (f *columnFilter) negated() columnFilter {
	n := *f
	n.op = f.op.Negate()
	return n
}

// stringRegExp compiles the matcher a string comparison needs. Ordering
// operators compare bytes and need none.
func stringRegExp(op RelationalOperator, value string) (*RegExp, error) {
	switch op {
	case OpEqual, OpNotEqual:
		return NewRegExp(value, false, true)
	case OpEqualIcase, OpNotEqualIcase:
		return NewRegExp(value, true, true)
	case OpMatches, OpDoesntMatch:
		return NewRegExp(value, false, false)
	case OpMatchesIcase, OpDoesntMatchIcase:
		return NewRegExp(value, true, false)
	}
	return nil, nil
}

func compareString(op RelationalOperator, re *RegExp, value, s string) bool {
	switch op {
	case OpEqual, OpEqualIcase:
		return re.Match(s)
	case OpNotEqual, OpNotEqualIcase:
		return !re.Match(s)
	case OpMatches, OpMatchesIcase:
		return re.Search(s)
	case OpDoesntMatch, OpDoesntMatchIcase:
		return !re.Search(s)
	case OpLess:
		return s < value
	case OpGreaterOrEqual:
		return s >= value
	case OpGreater:
		return s > value
	case OpLessOrEqual:
		return s <= value
	}
	return false
}

type stringFilter struct {
	columnFilter
	re *RegExp
}

func (f *stringFilter) Accepts(r Row, _ api.User, _ time.Duration) bool {
	return compareString(f.op, f.re, f.value, f.column.StringValue(r))
}

func (f *stringFilter) Negate() Filter {
	// equal and not_equal share the same literal matcher, likewise for the
	// regex pairs, so the compiled expression carries over.
	return &stringFilter{columnFilter: f.negated(), re: f.re}
}

func (f *stringFilter) Copy() Filter { c := *f; return &c }

type intFilter struct {
	columnFilter
	ref    int64
	isTime bool
}

func (f *intFilter) actual(r Row, tz time.Duration) int64 {
	if f.isTime {
		return unixTime(f.column.TimeValue(r), tz)
	}
	return f.column.IntValue(r)
}

func (f *intFilter) Accepts(r Row, _ api.User, tz time.Duration) bool {
	return compareInt(f.op, f.actual(r, tz), f.ref)
}

func compareInt(op RelationalOperator, x, ref int64) bool {
	switch op {
	case OpEqual:
		return x == ref
	case OpNotEqual:
		return x != ref
	case OpLess:
		return x < ref
	case OpGreaterOrEqual:
		return x >= ref
	case OpGreater:
		return x > ref
	case OpLessOrEqual:
		return x <= ref
	}
	return false
}

func (f *intFilter) Negate() Filter {
	return &intFilter{columnFilter: f.negated(), ref: f.ref, isTime: f.isTime}
}

func (f *intFilter) Copy() Filter { c := *f; return &c }

// bound returns the reference in terms of the raw column value. Time filters
// compare shifted values, so the shift is undone.
func (f *intFilter) bound(tz time.Duration) int64 {
	if f.isTime {
		return f.ref - int64(tz/time.Second)
	}
	return f.ref
}

func (f *intFilter) GreatestLowerBound(column string, tz time.Duration) (int64, bool) {
	if column != f.column.Name() {
		return 0, false
	}
	switch f.op {
	case OpEqual, OpGreaterOrEqual:
		return f.bound(tz), true
	case OpGreater:
		return f.bound(tz) + 1, true
	}
	return 0, false
}

func (f *intFilter) LeastUpperBound(column string, tz time.Duration) (int64, bool) {
	if column != f.column.Name() {
		return 0, false
	}
	switch f.op {
	case OpEqual, OpLessOrEqual:
		return f.bound(tz), true
	case OpLess:
		return f.bound(tz) - 1, true
	}
	return 0, false
}

func (f *intFilter) ValueSetLeastUpperBound(column string, tz time.Duration) (uint32, bool) {
	if column != f.column.Name() {
		return 0, false
	}
	ref := f.bound(tz)
	var mask uint32
	for bit := int64(0); bit < 32; bit++ {
		if compareInt(f.op, bit, ref) {
			mask |= 1 << uint(bit)
		}
	}
	return mask, true
}

type doubleFilter struct {
	columnFilter
	ref float64
}

func (f *doubleFilter) Accepts(r Row, _ api.User, _ time.Duration) bool {
	x := f.column.DoubleValue(r)
	switch f.op {
	case OpEqual:
		return x == f.ref
	case OpNotEqual:
		return x != f.ref
	case OpLess:
		return x < f.ref
	case OpGreaterOrEqual:
		return x >= f.ref
	case OpGreater:
		return x > f.ref
	case OpLessOrEqual:
		return x <= f.ref
	}
	return false
}

func (f *doubleFilter) Negate() Filter {
	return &doubleFilter{columnFilter: f.negated(), ref: f.ref}
}

func (f *doubleFilter) Copy() Filter { c := *f; return &c }

// listFilter tests membership. Equality only tests for the empty list, the
// ordering operators stand for element equality.
type listFilter struct {
	columnFilter
	re *RegExp
}

func newListFilter(base columnFilter, log logrus.FieldLogger) (Filter, error) {
	var (
		re  *RegExp
		err error
	)
	switch base.op {
	case OpEqual, OpNotEqual:
		if base.value != "" {
			log.Warnf("sorry, equality for lists implemented only for emptiness: %s", base.String())
		}
	case OpMatches, OpDoesntMatch:
		re, err = NewRegExp(alternatives(base.value), false, false)
	case OpMatchesIcase, OpDoesntMatchIcase:
		re, err = NewRegExp(alternatives(base.value), true, false)
	case OpGreaterOrEqual, OpLess:
		re, err = NewRegExp(base.value, false, true)
	case OpLessOrEqual, OpGreater:
		re, err = NewRegExp(base.value, true, true)
	default:
		return nil, errors.Errorf("operator '%s' not supported for list column '%s'", base.op, base.column.Name())
	}
	if err != nil {
		return nil, err
	}
	return &listFilter{columnFilter: base, re: re}, nil
}

func (f *listFilter) Accepts(r Row, _ api.User, _ time.Duration) bool {
	elems := f.column.ListValue(r)
	switch f.op {
	case OpEqual:
		return f.value == "" && len(elems) == 0
	case OpNotEqual:
		return f.value != "" || len(elems) > 0
	case OpMatches, OpMatchesIcase:
		return anyElement(elems, f.re.Search)
	case OpDoesntMatch, OpDoesntMatchIcase:
		return !anyElement(elems, f.re.Search)
	case OpGreaterOrEqual, OpLessOrEqual:
		return anyElement(elems, f.re.Match)
	case OpLess, OpGreater:
		return !anyElement(elems, f.re.Match)
	}
	return false
}

func anyElement(elems []string, pred func(string) bool) bool {
	for _, e := range elems {
		if pred(e) {
			return true
		}
	}
	return false
}

func (f *listFilter) Negate() Filter {
	return &listFilter{columnFilter: f.negated(), re: f.re}
}

func (f *listFilter) Copy() Filter { c := *f; return &c }

// dictFilter compares the value stored under ref with the rest of the
// filter value using string semantics.
type dictFilter struct {
	columnFilter
	ref  string
	rest string
	re   *RegExp
}

func (f *dictFilter) Accepts(r Row, _ api.User, _ time.Duration) bool {
	return compareString(f.op, f.re, f.rest, f.column.DictValue(r)[f.ref])
}

func (f *dictFilter) Negate() Filter {
	return &dictFilter{columnFilter: f.negated(), ref: f.ref, rest: f.rest, re: f.re}
}

func (f *dictFilter) Copy() Filter { c := *f; return &c }

// splitDictReference splits "KEY value" or "'KEY WITH SPACES' value" into
// key and value. Inside quotes '' stands for a single quote.
func splitDictReference(value string) (ref, rest string) {
	v := strings.TrimLeft(value, " \t")
	if !strings.HasPrefix(v, "'") {
		ref, rest, _ = strings.Cut(v, " ")
		return ref, strings.TrimLeft(rest, " \t")
	}
	var b strings.Builder
	i := 1
	for i < len(v) {
		if v[i] == '\'' {
			if i+1 < len(v) && v[i+1] == '\'' {
				b.WriteByte('\'')
				i += 2
				continue
			}
			i++
			break
		}
		b.WriteByte(v[i])
		i++
	}
	return b.String(), strings.TrimLeft(v[i:], " \t")
}

type andFilter struct {
	kind FilterKind
	subs []Filter
}

type orFilter struct {
	kind FilterKind
	subs []Filter
}

// NewAndFilter accepts a row when every sub filter does. Without sub
// filters it accepts everything.
func NewAndFilter(kind FilterKind, subs []Filter) Filter {
	if len(subs) == 1 {
		return subs[0]
	}
	return &andFilter{kind: kind, subs: subs}
}

// NewOrFilter accepts a row when any sub filter does. Without sub filters
// it accepts nothing.
func NewOrFilter(kind FilterKind, subs []Filter) Filter {
	if len(subs) == 1 {
		return subs[0]
	}
	return &orFilter{kind: kind, subs: subs}
}

func isTautology(f Filter) bool {
	a, ok := f.(*andFilter)
	return ok && len(a.subs) == 0
}

func isContradiction(f Filter) bool {
	o, ok := f.(*orFilter)
	return ok && len(o.subs) == 0
}

func (f *andFilter) Kind() FilterKind { return f.kind }
func (f *orFilter) Kind() FilterKind  { return f.kind }

func (f *andFilter) Accepts(r Row, user api.User, tz time.Duration) bool {
	for _, sub := range f.subs {
		if !sub.Accepts(r, user, tz) {
			return false
		}
	}
	return true
}

func (f *orFilter) Accepts(r Row, user api.User, tz time.Duration) bool {
	for _, sub := range f.subs {
		if sub.Accepts(r, user, tz) {
			return true
		}
	}
	return false
}

func negateAll(subs []Filter) []Filter {
	out := make([]Filter, len(subs))
	for i, sub := range subs {
		out[i] = sub.Negate()
	}
	return out
}

func copyAll(subs []Filter) []Filter {
	out := make([]Filter, len(subs))
	for i, sub := range subs {
		out[i] = sub.Copy()
	}
	return out
}

func (f *andFilter) Negate() Filter { return &orFilter{kind: f.kind, subs: negateAll(f.subs)} }
func (f *orFilter) Negate() Filter  { return &andFilter{kind: f.kind, subs: negateAll(f.subs)} }

func (f *andFilter) Copy() Filter { return &andFilter{kind: f.kind, subs: copyAll(f.subs)} }
func (f *orFilter) Copy() Filter  { return &orFilter{kind: f.kind, subs: copyAll(f.subs)} }

func (f *andFilter) GreatestLowerBound(column string, tz time.Duration) (int64, bool) {
	var (
		result  int64 = math.MinInt64
		defined bool
	)
	for _, sub := range f.subs {
		if v, ok := sub.GreatestLowerBound(column, tz); ok {
			result, defined = max(result, v), true
		}
	}
	return result, defined
}

func (f *andFilter) LeastUpperBound(column string, tz time.Duration) (int64, bool) {
	var (
		result  int64 = math.MaxInt64
		defined bool
	)
	for _, sub := range f.subs {
		if v, ok := sub.LeastUpperBound(column, tz); ok {
			result, defined = min(result, v), true
		}
	}
	return result, defined
}

func (f *andFilter) ValueSetLeastUpperBound(column string, tz time.Duration) (uint32, bool) {
	var (
		result  = ^uint32(0)
		defined bool
	)
	for _, sub := range f.subs {
		if v, ok := sub.ValueSetLeastUpperBound(column, tz); ok {
			result, defined = result&v, true
		}
	}
	return result, defined
}

// The bounds of a disjunction exist only when every branch has one.

func (f *orFilter) GreatestLowerBound(column string, tz time.Duration) (int64, bool) {
	if len(f.subs) == 0 {
		return 0, false
	}
	var result int64 = math.MaxInt64
	for _, sub := range f.subs {
		v, ok := sub.GreatestLowerBound(column, tz)
		if !ok {
			return 0, false
		}
		result = min(result, v)
	}
	return result, true
}

func (f *orFilter) LeastUpperBound(column string, tz time.Duration) (int64, bool) {
	if len(f.subs) == 0 {
		return 0, false
	}
	var result int64 = math.MinInt64
	for _, sub := range f.subs {
		v, ok := sub.LeastUpperBound(column, tz)
		if !ok {
			return 0, false
		}
		result = max(result, v)
	}
	return result, true
}

func (f *orFilter) ValueSetLeastUpperBound(column string, tz time.Duration) (uint32, bool) {
	if len(f.subs) == 0 {
		return 0, false
	}
	var result uint32
	for _, sub := range f.subs {
		v, ok := sub.ValueSetLeastUpperBound(column, tz)
		if !ok {
			return 0, false
		}
		result |= v
	}
	return result, true
}

func (f *andFilter) String() string { return joinFilters("And", f.subs) }
func (f *orFilter) String() string  { return joinFilters("Or", f.subs) }

func joinFilters(name string, subs []Filter) string {
	parts := make([]string, len(subs))
	for i, sub := range subs {
		parts[i] = sub.String()
	}
	return name + "(" + strings.Join(parts, ", ") + ")"
}

// atoi parses a leading decimal integer and ignores the rest, 0 when there
// is none.
func atoi(s string) int64 {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, _ := strconv.ParseInt(s[:end], 10, 64)
	return v
}

// atof parses the longest numeric prefix of s. NaN and infinities count as
// junk and give 0, like anything else that is not a number.
func atof(s string) float64 {
	s = strings.TrimSpace(s)
	for end := len(s); end > 0; end-- {
		if v, err := strconv.ParseFloat(s[:end], 64); err == nil {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0
			}
			return v
		}
	}
	return 0
}
