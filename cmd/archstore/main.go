package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/architect3d/storage/config"
	"github.com/architect3d/storage/internal/pkg/database"
)

var rootCmd = &cobra.Command{
	Use:   "archstore",
	Short: "Storage layer for AI-generated 3D modeling instructions",
	Long: `archstore manages the persistence layer of the AI architect system:
a document-mode store for raw generation results, a normalized relational
store for analytics, and the migration between them.`,
	SilenceUsage: true,
}

func main() {
	klog.InitFlags(nil)
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	defer klog.Flush()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openStore loads the configuration and opens the database, creating the
// data directory when needed.
func openStore() (*gorm.DB, *config.Config, error) {
	cfg := config.GetConfig()
	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return db, cfg, nil
}
