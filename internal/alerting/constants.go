// Package alerting evaluates inbound events against tenant policies and
// turns matches into delivered alerts.
package alerting

// Condition operators.
const (
	OperatorEq          = "eq"
	OperatorNe          = "ne"
	OperatorGt          = "gt"
	OperatorLt          = "lt"
	OperatorGte         = "gte"
	OperatorLte         = "lte"
	OperatorIn          = "in"
	OperatorNotIn       = "not_in"
	OperatorContains    = "contains"
	OperatorNotContains = "not_contains"
	OperatorRegex       = "regex"
)

// Operators lists every supported condition operator.
var Operators = []string{
	OperatorEq, OperatorNe, OperatorGt, OperatorLt, OperatorGte, OperatorLte,
	OperatorIn, OperatorNotIn, OperatorContains, OperatorNotContains, OperatorRegex,
}

// Well-known event fields.
const (
	FieldUserID      = "user_id"
	FieldIPAddress   = "ip_address"
	FieldEventType   = "event_type"
	FieldServiceName = "service_name"
	FieldEventID     = "event_id"
	FieldID          = "id"
)

// SuppressionKeyFields are the event fields folded into a suppression key,
// in key order.
var SuppressionKeyFields = []string{FieldUserID, FieldIPAddress, FieldEventType, FieldServiceName}

// suppressionKeySeparator joins suppression key segments.
const suppressionKeySeparator = "|"

// fieldPathSeparator splits condition field paths.
const fieldPathSeparator = "."
