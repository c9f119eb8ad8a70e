package alerting

import (
	"reflect"
	"regexp"
	"slices"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/errors"
)

// ValidatePolicy rejects malformed policies at authoring time so the
// evaluation path never sees them.
func ValidatePolicy(p *entities.Policy) error {
	switch {
	case p.TenantID == "":
		return validationError("tenant_id is required").Build()
	case p.Name == "":
		return validationError("name is required").Build()
	case !slices.Contains(entities.Severities, p.Severity):
		return validationError("severity must be one of critical, high, medium, low, info").
			Context("severity", p.Severity).Build()
	case p.GroupOperator != "" && !validGroupOperator(p.GroupOperator):
		return validationError("group_operator must be AND or OR").
			Context("group_operator", p.GroupOperator).Build()
	case p.ThrottleMinutes < 0:
		return validationError("throttle_minutes cannot be negative").Build()
	case p.MaxAlertsPerHour < 0:
		return validationError("max_alerts_per_hour cannot be negative").Build()
	}

	if countConditions(p.Conditions, p.Groups) == 0 {
		return validationError("policy needs at least one condition").Build()
	}
	if err := validateConditions(p.Conditions); err != nil {
		return err
	}
	if err := validateGroups(p.Groups); err != nil {
		return err
	}
	if p.TimeWindow != nil {
		if err := validateTimeWindow(p.TimeWindow); err != nil {
			return err
		}
	}
	return nil
}

func validationError(msg string) *errors.ErrorBuilder {
	return errors.New(msg).Component("alerting").Category(errors.CategoryValidation)
}

func validGroupOperator(op string) bool {
	return op == entities.GroupAnd || op == entities.GroupOr
}

func countConditions(conds []entities.Condition, groups []entities.ConditionGroup) int {
	n := len(conds)
	for i := range groups {
		n += countConditions(groups[i].Conditions, groups[i].Groups)
	}
	return n
}

func validateGroups(groups []entities.ConditionGroup) error {
	for i := range groups {
		g := &groups[i]
		if !validGroupOperator(g.Operator) {
			return validationError("group operator must be AND or OR").
				Context("operator", g.Operator).Build()
		}
		if err := validateConditions(g.Conditions); err != nil {
			return err
		}
		if err := validateGroups(g.Groups); err != nil {
			return err
		}
	}
	return nil
}

func validateConditions(conds []entities.Condition) error {
	for i := range conds {
		c := &conds[i]
		if c.Field == "" {
			return validationError("condition field is required").Context("index", i).Build()
		}
		if !slices.Contains(Operators, c.Operator) {
			return validationError("unknown condition operator").
				Context("field", c.Field).Context("operator", c.Operator).Build()
		}
		if c.Value == nil {
			return validationError("condition value is required").
				Context("field", c.Field).Build()
		}

		switch c.Operator {
		case OperatorIn, OperatorNotIn:
			if k := reflect.ValueOf(c.Value).Kind(); k != reflect.Slice && k != reflect.Array {
				return validationError("in and not_in need a list value").
					Context("field", c.Field).Build()
			}
		case OperatorContains, OperatorNotContains:
			if _, ok := c.Value.(string); !ok {
				return validationError("contains needs a string value").
					Context("field", c.Field).Build()
			}
		case OperatorRegex:
			pattern, ok := c.Value.(string)
			if !ok {
				return validationError("regex needs a string pattern").
					Context("field", c.Field).Build()
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return errors.Wrap(err).Component("alerting").Category(errors.CategoryValidation).
					Context("field", c.Field).Context("pattern", pattern).Build()
			}
		}
	}
	return nil
}

func validateTimeWindow(tw *entities.TimeWindow) error {
	for _, d := range tw.Days {
		if d < 0 || d > 6 {
			return validationError("time window days must be between 0 and 6").
				Context("day", d).Build()
		}
	}
	if _, err := parseClock(tw.StartTime); err != nil {
		return errors.Wrap(err).Component("alerting").Category(errors.CategoryValidation).Build()
	}
	if _, err := parseClock(tw.EndTime); err != nil {
		return errors.Wrap(err).Component("alerting").Category(errors.CategoryValidation).Build()
	}
	if _, err := loadLocation(tw.Timezone); err != nil {
		return errors.Wrap(err).Component("alerting").Category(errors.CategoryValidation).Build()
	}
	return nil
}
