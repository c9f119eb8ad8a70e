package alerting

import (
	"time"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/logger"
)

// Matcher decides whether a policy applies to an event.
type Matcher struct {
	eval *Evaluator
	log  logger.Logger
}

// NewMatcher creates a Matcher around eval.
func NewMatcher(eval *Evaluator, log logger.Logger) *Matcher {
	return &Matcher{eval: eval, log: log}
}

// Matches checks the time window first, then the conditions. A window that
// cannot be evaluated lets the policy through. A policy without any
// conditions never matches.
func (m *Matcher) Matches(policy *entities.Policy, event map[string]any, now time.Time) bool {
	if policy.TimeWindow != nil {
		inside, err := windowContains(policy.TimeWindow, now)
		if err != nil {
			m.log.Warn("time window evaluation failed, allowing policy",
				logger.String("policy_id", policy.ID),
				logger.Error(err))
		} else if !inside {
			return false
		}
	}

	if policy.IsCompound() {
		root := entities.ConditionGroup{
			Operator:   policy.GroupOperator,
			Conditions: policy.Conditions,
			Groups:     policy.Groups,
		}
		return m.matchGroup(&root, event)
	}

	if len(policy.Conditions) == 0 {
		return false
	}
	if policy.MatchAll {
		return m.allOf(policy.Conditions, event)
	}
	return m.anyOf(policy.Conditions, event)
}

// matchGroup evaluates a group with its own combinator; anything other than
// OR combines with AND.
func (m *Matcher) matchGroup(group *entities.ConditionGroup, event map[string]any) bool {
	if group.Operator == entities.GroupOr {
		if m.anyOf(group.Conditions, event) {
			return true
		}
		for i := range group.Groups {
			if m.matchGroup(&group.Groups[i], event) {
				return true
			}
		}
		return false
	}

	if !m.allOf(group.Conditions, event) {
		return false
	}
	for i := range group.Groups {
		if !m.matchGroup(&group.Groups[i], event) {
			return false
		}
	}
	return true
}

func (m *Matcher) allOf(conds []entities.Condition, event map[string]any) bool {
	for i := range conds {
		if !m.eval.Evaluate(&conds[i], event) {
			return false
		}
	}
	return true
}

func (m *Matcher) anyOf(conds []entities.Condition, event map[string]any) bool {
	for i := range conds {
		if m.eval.Evaluate(&conds[i], event) {
			return true
		}
	}
	return false
}
