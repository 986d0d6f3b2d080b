package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pbandeira/solmon/internal/analysis"
	"github.com/pbandeira/solmon/internal/cache"
	"github.com/pbandeira/solmon/internal/config"
	"github.com/pbandeira/solmon/internal/indicators"
	"github.com/pbandeira/solmon/internal/pipeline"
	"github.com/pbandeira/solmon/internal/report"
	"github.com/pbandeira/solmon/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Settings
	log        = logrus.New()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "solmon",
	Short:   "Request monitoring analytics",
	Long:    "solmon ingests a request base, derives lead time, SLA compliance and risk scores, and serves the resulting indicators.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level, err := logrus.ParseLevel(cfg.Logging.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		if verbose {
			level = logrus.DebugLevel
		}
		log.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("solmon", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/solmon/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point input_path at your request base and tune the SLA and risk tables.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and snapshot status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Input: %s\n", cfg.General.InputPath)
		fmt.Printf("Evaluation date: %s\n", cfg.EvaluationDate().Format("2006-01-02"))
		fmt.Printf("Cache enabled: %v\n", cfg.CacheOn())
		fmt.Printf("Cache path: %s\n", cfg.CachePath())

		if _, err := os.Stat(cfg.CachePath()); err != nil {
			fmt.Println("\nNo snapshot present.")
			return nil
		}
		store, err := cache.Open(cfg.CachePath())
		if err != nil {
			fmt.Printf("\nSnapshot unreadable: %v\n", err)
			return nil
		}
		defer store.Close()

		meta, err := store.LoadMeta()
		if err != nil {
			fmt.Printf("\nSnapshot meta unreadable: %v\n", err)
			return nil
		}
		fmt.Println("\nSnapshot:")
		fmt.Printf("  ID: %s\n", meta.SnapshotID)
		fmt.Printf("  Rows: %d\n", meta.Rows)
		fmt.Printf("  Evaluation date: %s\n", meta.EvaluationDate)
		fmt.Printf("  Created at: %s\n", meta.CreatedAt)
		return nil
	},
}

// --- run command ---

var (
	refresh bool
	topN    int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline: load -> normalize -> SLA -> risk",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := pipeline.New(cfg, log).Run(refresh)
		if err != nil {
			return err
		}

		for i, step := range result.Steps {
			fmt.Printf("Step %d: %s\n  %s\n", i+1, step.Name, step.Summary)
		}

		recs := result.Frame.Records
		ex := indicators.ExecutiveKPIs(recs)
		adv := indicators.AdvancedKPIs(recs)

		fmt.Println("\nExecutive KPIs:")
		fmt.Printf("  Total: %d\n", ex.Total)
		fmt.Printf("  Completed: %d (%.2f%%)\n", ex.Completed, ex.CompletionRate)
		fmt.Printf("  Past target: %d (%.2f%%)\n", ex.Breached, ex.BreachRate)
		fmt.Printf("  Cancelled: %d\n", ex.Cancelled)

		fmt.Println("\nLead time:")
		fmt.Printf("  Mean: %.1f  Median: %.1f  P90: %d  P95: %d\n",
			adv.LeadMean, adv.LeadMedian, adv.LeadP90, adv.LeadP95)
		fmt.Printf("  Older than a year: %d  Missing log: %d  Missing owner: %d\n",
			adv.VeryOld, adv.MissingLog, adv.MissingOwner)

		if topN > 0 {
			fmt.Printf("\nTop %d critical (by age):\n", topN)
			for _, r := range indicators.TopCritical(recs, topN) {
				fmt.Printf("  #%d  %s  %s  %d days  risk=%d (%s)\n",
					r.Row, orDash(r.OrgUnit), r.TypeSimplified, r.LeadTime, r.RiskScore, r.RiskCategory)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the snapshot and recompute from the source file")
	runCmd.Flags().IntVar(&topN, "top", 5, "Print the N oldest records (0 disables)")
}

// --- analyze command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Profile the raw base: structure, missing values, distributions",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := pipeline.New(cfg, log).Run(true)
		if err != nil {
			return err
		}
		table := result.Table

		fmt.Println("Structure:")
		for _, p := range analysis.Structure(table) {
			fmt.Printf("  %-30s non-empty=%-6d empty=%-6d distinct=%d\n",
				p.Column, p.NonEmpty, p.Empty, p.Distinct)
		}

		fmt.Println("\nMissing values:")
		for _, m := range analysis.Missing(table) {
			if m.Missing == 0 {
				continue
			}
			fmt.Printf("  %-30s %d (%.2f%%)\n", m.Column, m.Missing, m.Percent)
		}

		fmt.Println("\nTop values per column:")
		for _, c := range analysis.Categories(table, 5) {
			fmt.Printf("  %-30s %-30s %d (%.2f%%)\n", c.Column, c.Value, c.Count, c.Percent)
		}

		months := analysis.MonthlyIntake(table)
		if len(months) > 0 {
			fmt.Println("\nMonthly intake:")
			for _, m := range months {
				fmt.Printf("  %s  %d\n", m.Month, m.Count)
			}
		}
		return nil
	},
}

// --- export command ---

var (
	exportPath string
	exportCSV  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the multi-sheet report and optional CSV of the enriched table",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Full reload so the profiling sheets have the raw table available.
		result, err := pipeline.New(cfg, log).Run(true)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(exportPath), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := report.WriteWorkbook(exportPath, result.Table, result.Frame); err != nil {
			return err
		}
		fmt.Printf("Report written: %s\n", exportPath)

		if exportCSV != "" {
			if err := report.WriteCSV(exportCSV, result.Frame); err != nil {
				return err
			}
			fmt.Printf("CSV export written: %s\n", exportCSV)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "output/analysis_report.xlsx", "Report output path")
	exportCmd.Flags().StringVar(&exportCSV, "csv", "", "Also write the enriched table as CSV to this path")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := pipeline.New(cfg, log).Run(false)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting dashboard at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(result.Frame, port, log)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
