package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/johndauphine/stageload/internal/config"
	_ "github.com/johndauphine/stageload/internal/driver/mssql"
	_ "github.com/johndauphine/stageload/internal/driver/postgres"
	_ "github.com/johndauphine/stageload/internal/driver/sqlite"
	"github.com/johndauphine/stageload/internal/logging"
	"github.com/johndauphine/stageload/internal/orchestrator"
	"github.com/johndauphine/stageload/internal/util"
	"github.com/johndauphine/stageload/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    version.Name,
		Usage:   version.Description,
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding the CSV and JSON files (overrides data_dir)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log every file read and the aggregate summaries",
			},
			&cli.BoolFlag{
				Name:  "no-load",
				Usage: "Collect only, do not upload",
			},
			&cli.StringFlag{
				Name:  "tables",
				Usage: "Comma-separated aggregates to upload (csv_df, json_df)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Value: "text",
				Usage: "Log output format: text or json",
			},
			&cli.StringFlag{
				Name:  "verbosity",
				Usage: "Log level: debug, info, warn, error",
			},
		},
		Action: runStage,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Collect the data directory and upload the aggregates (default)",
				Action: runStage,
			},
			{
				Name:   "collect",
				Usage:  "Collect the data directory and print a summary without uploading",
				Action: collectOnly,
			},
			{
				Name:   "check",
				Usage:  "Test the connection and the destination tables",
				Action: checkTarget,
			},
			{
				Name:  "history",
				Usage: "List recent runs, or view details of a specific run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "run",
						Usage: "Show details for a specific run ID",
					},
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Number of runs to list (0 for all)",
					},
				},
				Action: showHistory,
			},
		},
	}
}

// loadConfig reads .env and the config file, applies command line overrides
// and configures logging.
func loadConfig(c *cli.Context) (*config.Config, error) {
	config.LoadDotEnv()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(c, cfg)
	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logging.SetLevel(level)
	logging.SetFormat(cfg.Logging.Format)
	return cfg, nil
}

func applyOverrides(c *cli.Context, cfg *config.Config) {
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	if c.IsSet("tables") {
		cfg.Load.Tables = util.SplitList(c.String("tables"))
	}
	if c.Bool("no-load") {
		disabled := false
		cfg.Load.Enabled = &disabled
	}
	if c.IsSet("log-format") {
		cfg.Logging.Format = c.String("log-format")
	}
	if c.IsSet("verbosity") {
		cfg.Logging.Level = c.String("verbosity")
	}
	if c.Bool("debug") {
		cfg.Logging.Level = "debug"
		cfg.Reader.Debug = true
	}
}

func newOrchestrator(c *cli.Context) (*orchestrator.Orchestrator, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	orch, err := orchestrator.New(cfg, orchestrator.Options{Out: c.App.Writer})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return orch, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted. Aborting upload...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runStage(c *cli.Context) error {
	orch, err := newOrchestrator(c)
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()

	_, err = orch.Run(ctx)
	return err
}

func collectOnly(c *cli.Context) error {
	orch, err := newOrchestrator(c)
	if err != nil {
		return err
	}
	defer orch.Close()

	res, err := orch.Collect()
	if err != nil {
		return err
	}
	orch.PrintSummary(res)
	return nil
}

func checkTarget(c *cli.Context) error {
	orch, err := newOrchestrator(c)
	if err != nil {
		return err
	}
	defer orch.Close()

	ctx, cancel := signalContext()
	defer cancel()

	result, err := orch.HealthCheck(ctx)
	if err != nil {
		return err
	}
	orch.PrintHealthCheck(result)
	if !result.Healthy {
		return fmt.Errorf("target is not ready")
	}
	return nil
}

func showHistory(c *cli.Context) error {
	orch, err := newOrchestrator(c)
	if err != nil {
		return err
	}
	defer orch.Close()

	if runID := c.String("run"); runID != "" {
		return orch.ShowRun(runID)
	}
	return orch.ShowHistory(c.Int("limit"))
}
