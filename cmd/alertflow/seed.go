package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tphakala/alertflow/internal/alerting"
	"github.com/tphakala/alertflow/internal/datastore/v2/entities"
	"github.com/tphakala/alertflow/internal/datastore/v2/repository"
)

func newSeedCmd(setup func() (*app, error)) *cobra.Command {
	var tenantID, file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create starter policies, or policies from a YAML document",
		Long: "Without --file the built-in starter policies are created disabled for the tenant.\n" +
			"Policies whose name already exists for the tenant are skipped.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.Close()
			if tenantID == "" {
				tenantID = rt.settings.Alerting.DefaultTenant
			}

			policies := alerting.DefaultPolicies(tenantID)
			if file != "" {
				if policies, err = loadPolicyFile(file, tenantID); err != nil {
					return err
				}
			}

			db, err := openDatabase(cmd.Context(), rt)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			created, err := alerting.SeedPolicies(cmd.Context(), repository.NewPolicyRepository(db.DB()), policies, rt.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d policies for tenant %s\n", created, len(policies), tenantID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "tenant to seed (default: alerting.default_tenant)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML policy document")
	return cmd
}

func loadPolicyFile(path, tenantID string) ([]entities.Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open policy file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return alerting.LoadPolicies(f, tenantID)
}
