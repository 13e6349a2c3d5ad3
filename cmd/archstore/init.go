package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/architect3d/storage/config"
	"github.com/architect3d/storage/internal/pkg/database"
)

var forceRecreate bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&forceRecreate, "force", false, "delete the existing sqlite database file first")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.GetConfig()

	if forceRecreate {
		if cfg.Database.Type != "" && cfg.Database.Type != "sqlite" {
			return fmt.Errorf("--force only applies to sqlite databases")
		}
		if err := os.Remove(cfg.Database.DSN); err != nil && !os.IsNotExist(err) {
			return err
		}
		klog.Warningf("removed existing database %s", cfg.Database.DSN)
	}

	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return err
	}
	if _, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN); err != nil {
		return err
	}
	klog.Infof("database initialized (%s, mode=%s)", cfg.Database.Type, cfg.Store.Mode)
	return nil
}
