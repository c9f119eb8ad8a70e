package alerting

import (
	"context"
	"fmt"
	"io"

	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/logger"
	"gopkg.in/yaml.v3"
)

// PolicyWriter is the subset of the policy repository used for seeding.
type PolicyWriter interface {
	CreatePolicy(ctx context.Context, policy *entities.Policy) error
	CountPoliciesByName(ctx context.Context, tenantID, name string) (int64, error)
}

// SeedPolicies validates and creates each policy whose name does not exist
// yet for its tenant, so repeated seeding is idempotent. It returns the
// number created.
func SeedPolicies(ctx context.Context, repo PolicyWriter, policies []entities.Policy, log logger.Logger) (int, error) {
	var created int
	for i := range policies {
		p := &policies[i]
		if err := ValidatePolicy(p); err != nil {
			return created, fmt.Errorf("policy %q: %w", p.Name, err)
		}
		n, err := repo.CountPoliciesByName(ctx, p.TenantID, p.Name)
		if err != nil {
			return created, err
		}
		if n > 0 {
			continue
		}
		if err := repo.CreatePolicy(ctx, p); err != nil {
			return created, err
		}
		created++
	}
	if created > 0 {
		log.Info("seeded policies", logger.Int("created", created))
	}
	return created, nil
}

// SeedDefaultPolicies seeds the starter policies for a tenant.
func SeedDefaultPolicies(ctx context.Context, repo PolicyWriter, tenantID string, log logger.Logger) (int, error) {
	return SeedPolicies(ctx, repo, DefaultPolicies(tenantID), log)
}

// policyDocument is the YAML layout accepted by LoadPolicies.
type policyDocument struct {
	Policies []entities.Policy `yaml:"policies"`
}

// LoadPolicies reads a YAML policy document. Policies without a tenant get
// tenantID.
func LoadPolicies(r io.Reader, tenantID string) ([]entities.Policy, error) {
	var doc policyDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	for i := range doc.Policies {
		if doc.Policies[i].TenantID == "" {
			doc.Policies[i].TenantID = tenantID
		}
	}
	return doc.Policies, nil
}
