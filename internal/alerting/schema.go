package alerting

import (
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
)

// Schema is the catalogue a policy editor needs: operators, severities,
// alert statuses, combinators, provider kinds and the suppression key fields.
type Schema struct {
	Operators            []OperatorSchema `json:"operators"`
	Severities           []string         `json:"severities"`
	AlertStatuses        []string         `json:"alertStatuses"`
	GroupOperators       []string         `json:"groupOperators"`
	ProviderKinds        []string         `json:"providerKinds"`
	SuppressionKeyFields []string         `json:"suppressionKeyFields"`
	TemplatePlaceholder  string           `json:"templatePlaceholder"`
}

// OperatorSchema describes an operator for the UI.
type OperatorSchema struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	ValueType string `json:"valueType"` // "scalar", "list", "string" or "pattern"
}

// GetSchema returns the policy authoring schema.
func GetSchema() Schema {
	return Schema{
		Operators: []OperatorSchema{
			{Name: OperatorEq, Label: "equals", ValueType: "scalar"},
			{Name: OperatorNe, Label: "does not equal", ValueType: "scalar"},
			{Name: OperatorGt, Label: "greater than", ValueType: "scalar"},
			{Name: OperatorLt, Label: "less than", ValueType: "scalar"},
			{Name: OperatorGte, Label: "greater than or equal", ValueType: "scalar"},
			{Name: OperatorLte, Label: "less than or equal", ValueType: "scalar"},
			{Name: OperatorIn, Label: "is one of", ValueType: "list"},
			{Name: OperatorNotIn, Label: "is not one of", ValueType: "list"},
			{Name: OperatorContains, Label: "contains", ValueType: "string"},
			{Name: OperatorNotContains, Label: "does not contain", ValueType: "string"},
			{Name: OperatorRegex, Label: "matches pattern", ValueType: "pattern"},
		},
		Severities:           entities.Severities,
		AlertStatuses:        entities.AlertStatuses,
		GroupOperators:       []string{entities.GroupAnd, entities.GroupOr},
		ProviderKinds:        entities.ProviderKinds,
		SuppressionKeyFields: SuppressionKeyFields,
		TemplatePlaceholder:  "{field}",
	}
}
