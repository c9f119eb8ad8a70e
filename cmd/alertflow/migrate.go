package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCmd(setup func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.Close()

			db, err := openDatabase(cmd.Context(), rt)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}
