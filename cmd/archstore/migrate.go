package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/architect3d/storage/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move data between storage modes",
}

var migrateToNormalizedCmd = &cobra.Command{
	Use:   "to-normalized",
	Short: "Fan document records out into the normalized schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(func(ctx context.Context, m *migrate.Migrator) (*migrate.Report, error) {
			return m.ToNormalized(ctx)
		})
	},
}

var migrateToDocumentCmd = &cobra.Command{
	Use:   "to-document",
	Short: "Reconstruct document records from the normalized schema (lossy)",
	Long: `Rebuilds a document-mode record for each normalized instruction.
Styles beyond the first and anything without a document field are dropped;
this direction loses data and is reported as such.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(func(ctx context.Context, m *migrate.Migrator) (*migrate.Report, error) {
			return m.ToDocument(ctx)
		})
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Apply or roll back schema evolution steps",
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply all unapplied schema versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore()
		if err != nil {
			return err
		}
		mgr, err := migrate.NewSchemaManager(db, migrate.DefaultSteps())
		if err != nil {
			return err
		}
		applied, err := mgr.Apply(cmd.Context())
		if err != nil {
			return err
		}
		version, err := mgr.CurrentVersion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("applied %d step(s), current version %d\n", applied, version)
		return nil
	},
}

var schemaRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Undo the most recently applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore()
		if err != nil {
			return err
		}
		mgr, err := migrate.NewSchemaManager(db, migrate.DefaultSteps())
		if err != nil {
			return err
		}
		version, err := mgr.Rollback(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("rolled back version %d\n", version)
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateToNormalizedCmd, migrateToDocumentCmd)
	schemaCmd.AddCommand(schemaApplyCmd, schemaRollbackCmd)
	rootCmd.AddCommand(migrateCmd, schemaCmd)
}

func runMigration(run func(context.Context, *migrate.Migrator) (*migrate.Report, error)) error {
	db, _, err := openStore()
	if err != nil {
		return err
	}
	report, err := run(context.Background(), migrate.NewMigrator(db))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
