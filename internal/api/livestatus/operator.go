package livestatus

import "github.com/pkg/errors"

// RelationalOperator is the comparison of a Filter, WaitCondition or Stats
// header.
type RelationalOperator int

const (
	OpEqual RelationalOperator = iota
	OpNotEqual
	OpMatches
	OpDoesntMatch
	OpEqualIcase
	OpNotEqualIcase
	OpMatchesIcase
	OpDoesntMatchIcase
	OpLess
	OpGreaterOrEqual
	OpGreater
	OpLessOrEqual
)

var opTokens = [...]string{"=", "!=", "~", "!~", "=~", "!=~", "~~", "!~~", "<", ">=", ">", "<="}

// Negated spellings of the ordering operators.
var negatedTokens = map[string]RelationalOperator{
	"!<":  OpGreaterOrEqual,
	"!>=": OpLess,
	"!>":  OpLessOrEqual,
	"!<=": OpGreater,
}

func (op RelationalOperator) String() string {
	if op < 0 || int(op) >= len(opTokens) {
		return "?"
	}
	return opTokens[op]
}

// ParseOperator resolves an operator token.
func ParseOperator(tok string) (RelationalOperator, error) {
	for i, t := range opTokens {
		if t == tok {
			return RelationalOperator(i), nil
		}
	}
	if op, ok := negatedTokens[tok]; ok {
		return op, nil
	}
	return 0, errors.Errorf("invalid operator '%s'", tok)
}

// Negate returns the operator accepting exactly what op rejects.
func (op RelationalOperator) Negate() RelationalOperator {
	switch op {
	case OpEqual:
		return OpNotEqual
	case OpNotEqual:
		return OpEqual
	case OpMatches:
		return OpDoesntMatch
	case OpDoesntMatch:
		return OpMatches
	case OpEqualIcase:
		return OpNotEqualIcase
	case OpNotEqualIcase:
		return OpEqualIcase
	case OpMatchesIcase:
		return OpDoesntMatchIcase
	case OpDoesntMatchIcase:
		return OpMatchesIcase
	case OpLess:
		return OpGreaterOrEqual
	case OpGreaterOrEqual:
		return OpLess
	case OpGreater:
		return OpLessOrEqual
	}
	return OpGreater
}

// isRegex reports whether op searches a regular expression.
func (op RelationalOperator) isRegex() bool {
	switch op {
	case OpMatches, OpDoesntMatch, OpMatchesIcase, OpDoesntMatchIcase:
		return true
	}
	return false
}

func (op RelationalOperator) isIcase() bool {
	switch op {
	case OpEqualIcase, OpNotEqualIcase, OpMatchesIcase, OpDoesntMatchIcase:
		return true
	}
	return false
}
