package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/architect3d/storage/internal/repository"
	"github.com/architect3d/storage/internal/service"
)

var (
	listLimit     int
	statsDays     int
	statsStyles   int
	statsSnapshot bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recently stored instructions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := buildStore()
		if err != nil {
			return err
		}
		records, err := store.ListRecent(cmd.Context(), listLimit)
		if err != nil {
			return err
		}
		printRecords(records)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Search stored instructions by name, case-insensitively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := buildStore()
		if err != nil {
			return err
		}
		records, err := store.SearchByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printRecords(records)
		return nil
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Count stored instructions per calendar day",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := buildStore()
		if err != nil {
			return err
		}
		counts, err := store.CountByDay(cmd.Context())
		if err != nil {
			return err
		}
		for _, day := range counts {
			fmt.Printf("%s  %d\n", day.Date, day.Count)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show generation request statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore()
		if err != nil {
			return err
		}
		stats := service.NewStatsService(repository.NewRequestRepository(db))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if statsSnapshot {
			snap, err := stats.SnapshotToday(cmd.Context())
			if err != nil {
				return err
			}
			return enc.Encode(snap)
		}
		overview, err := stats.Overview(cmd.Context(), statsDays)
		if err != nil {
			return err
		}
		styles, err := stats.PopularStyles(cmd.Context(), statsStyles)
		if err != nil {
			return err
		}
		if err := enc.Encode(overview); err != nil {
			return err
		}
		return enc.Encode(styles)
	},
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of records")
	statsCmd.Flags().IntVar(&statsDays, "days", 30, "statistics period in days")
	statsCmd.Flags().IntVar(&statsStyles, "styles", 10, "number of popular styles to show")
	statsCmd.Flags().BoolVar(&statsSnapshot, "snapshot", false, "persist today's daily usage snapshot and print it")
	rootCmd.AddCommand(listCmd, searchCmd, reportCmd, statsCmd)
}

func buildStore() (*service.Store, error) {
	db, cfg, err := openStore()
	if err != nil {
		return nil, err
	}
	docs := repository.NewInstructionRepository(db)
	norm := repository.NewNormalizedRepository(db)
	return service.NewStore(cfg, docs, norm), nil
}

func printRecords(records []service.Record) {
	for _, rec := range records {
		fmt.Printf("%4d  %s  %-30s  %s\n",
			rec.ID, rec.CreatedAt.Format("2006-01-02 15:04"), rec.Name, previewLine(rec.InputPrompt))
	}
	if len(records) == 0 {
		fmt.Println("no records")
	}
}

func previewLine(s string) string {
	runes := []rune(s)
	if len(runes) > 60 {
		return string(runes[:60]) + "..."
	}
	return s
}
