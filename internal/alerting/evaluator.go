package alerting

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/logger"
)

// maxCachedPatterns bounds the compiled regex cache. The cache is reset
// when full.
const maxCachedPatterns = 512

type patternKey struct {
	pattern       string
	caseSensitive bool
}

type compiledPattern struct {
	re  *regexp.Regexp
	err error
}

// Evaluator tests single conditions against events. It never returns an
// error: anything that cannot be evaluated is a non-match.
type Evaluator struct {
	log logger.Logger

	mu       sync.Mutex
	patterns map[patternKey]compiledPattern
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(log logger.Logger) *Evaluator {
	return &Evaluator{
		log:      log,
		patterns: make(map[patternKey]compiledPattern),
	}
}

// Evaluate reports whether the event satisfies cond. A missing field fails
// every operator, including ne and not_in.
func (e *Evaluator) Evaluate(cond *entities.Condition, event map[string]any) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("condition evaluation panicked",
				logger.String("field", cond.Field),
				logger.String("operator", cond.Operator),
				logger.Any("panic", r))
			matched = false
		}
	}()

	fieldVal, ok := Resolve(event, cond.Field)
	if !ok {
		return false
	}
	caseSensitive := cond.IsCaseSensitive()

	switch cond.Operator {
	case OperatorEq:
		return Compare(fieldVal, cond.Value, caseSensitive) == 0
	case OperatorNe:
		return Compare(fieldVal, cond.Value, caseSensitive) != 0
	case OperatorGt:
		return Compare(fieldVal, cond.Value, caseSensitive) > 0
	case OperatorLt:
		return Compare(fieldVal, cond.Value, caseSensitive) < 0
	case OperatorGte:
		return Compare(fieldVal, cond.Value, caseSensitive) >= 0
	case OperatorLte:
		return Compare(fieldVal, cond.Value, caseSensitive) <= 0
	case OperatorIn:
		found, isCollection := contains(cond.Value, fieldVal)
		return isCollection && found
	case OperatorNotIn:
		found, isCollection := contains(cond.Value, fieldVal)
		return isCollection && !found
	case OperatorContains:
		return substring(fieldVal, cond.Value, caseSensitive, true)
	case OperatorNotContains:
		return substring(fieldVal, cond.Value, caseSensitive, false)
	case OperatorRegex:
		return e.matchRegex(fieldVal, cond.Value, caseSensitive)
	default:
		return false
	}
}

// contains looks for needle in a slice or array. The second return is false
// when haystack is not a collection.
func contains(haystack, needle any) (found, isCollection bool) {
	if haystack == nil {
		return false, false
	}
	rv := reflect.ValueOf(haystack)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false, false
	}
	for i := range rv.Len() {
		if valuesEqual(rv.Index(i).Interface(), needle) {
			return true, true
		}
	}
	return false, true
}

// valuesEqual is raw equality: numbers compare by value regardless of width,
// everything else must match in type and value.
func valuesEqual(a, b any) bool {
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// substring is defined for string operands only; any other pairing is a
// non-match for both contains and not_contains.
func substring(fieldVal, value any, caseSensitive, want bool) bool {
	s, ok := fieldVal.(string)
	if !ok {
		return false
	}
	sub, ok := value.(string)
	if !ok {
		return false
	}
	if !caseSensitive {
		s, sub = fold(s), fold(sub)
	}
	return strings.Contains(s, sub) == want
}

func (e *Evaluator) matchRegex(fieldVal, value any, caseSensitive bool) bool {
	s, ok := fieldVal.(string)
	if !ok {
		return false
	}
	pattern, ok := value.(string)
	if !ok {
		return false
	}
	re, err := e.compile(pattern, caseSensitive)
	if err != nil {
		e.log.Warn("invalid regex pattern in condition",
			logger.String("pattern", pattern),
			logger.Error(err))
		return false
	}
	return re.MatchString(s)
}

func (e *Evaluator) compile(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	key := patternKey{pattern: pattern, caseSensitive: caseSensitive}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cp, ok := e.patterns[key]; ok {
		return cp.re, cp.err
	}
	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	if len(e.patterns) >= maxCachedPatterns {
		clear(e.patterns)
	}
	e.patterns[key] = compiledPattern{re: re, err: err}
	return re, err
}
