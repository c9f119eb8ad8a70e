package alerting

import (
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// DefaultPolicies returns the starter policies offered to a new tenant.
// They ship disabled and without providers so nothing is delivered until
// an operator enables them.
func DefaultPolicies(tenantID string) []entities.Policy {
	return []entities.Policy{
		{
			TenantID:        tenantID,
			Name:            "Repeated failed logins",
			Description:     "Failed authentication attempts, throttled per 5 minutes",
			Severity:        entities.SeverityHigh,
			MatchAll:        true,
			ThrottleMinutes: 5,
			Conditions: []entities.Condition{
				{Field: FieldEventType, Operator: OperatorEq, Value: "user_login"},
				{Field: "status", Operator: OperatorEq, Value: "failed"},
			},
			MessageTemplate: "Failed login for {user_id} from {ip_address}",
			SummaryTemplate: "{user_id} failed to log in",
		},
		{
			TenantID:         tenantID,
			Name:             "Privilege escalation",
			Description:      "Role grants to administrative roles",
			Severity:         entities.SeverityCritical,
			MatchAll:         true,
			MaxAlertsPerHour: 20,
			Conditions: []entities.Condition{
				{Field: FieldEventType, Operator: OperatorEq, Value: "role_granted"},
				{Field: "role", Operator: OperatorIn, Value: []any{"admin", "owner", "root"}, CaseSensitive: boolPtr(false)},
			},
			MessageTemplate: "{user_id} was granted {role}",
			SummaryTemplate: "Privilege escalation for {user_id}",
		},
		{
			TenantID:        tenantID,
			Name:            "Service errors",
			Description:     "Error codes reported by any service",
			Severity:        entities.SeverityMedium,
			MatchAll:        true,
			ThrottleMinutes: 15,
			Conditions: []entities.Condition{
				{Field: "code", Operator: OperatorRegex, Value: `^ERR-\d+$`},
			},
			MessageTemplate: "{service_name} reported {code}",
			SummaryTemplate: "{code} on {service_name}",
		},
		{
			TenantID:         tenantID,
			Name:             "Off-hours administrative access",
			Description:      "Admin console access outside business hours",
			Severity:         entities.SeverityHigh,
			GroupOperator:    entities.GroupAnd,
			MaxAlertsPerHour: 10,
			Conditions: []entities.Condition{
				{Field: FieldEventType, Operator: OperatorEq, Value: "admin_access"},
			},
			Groups: []entities.ConditionGroup{{
				Operator: entities.GroupOr,
				Conditions: []entities.Condition{
					{Field: "geo.country", Operator: OperatorNotIn, Value: []any{"US", "CA"}},
					{Field: "mfa", Operator: OperatorEq, Value: false},
				},
			}},
			TimeWindow: &entities.TimeWindow{
				Days:      []int{0, 1, 2, 3, 4, 5, 6},
				StartTime: "19:00",
				EndTime:   "07:00",
				Timezone:  "UTC",
			},
			MessageTemplate: "Off-hours admin access by {user_id} from {ip_address}",
			SummaryTemplate: "Off-hours admin access by {user_id}",
		},
	}
}

func boolPtr(b bool) *bool { return &b }
