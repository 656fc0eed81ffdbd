package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rxtech-lab/pairtrade/internal/backtest/engine"
	enginev1 "github.com/rxtech-lab/pairtrade/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/pairtrade/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/pairtrade/internal/logger"
	"github.com/rxtech-lab/pairtrade/internal/reporting"
	"github.com/rxtech-lab/pairtrade/internal/server"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v2"
)

// runAction backtests a single pair: it wires an engine, a data source and the
// progress callbacks from the CLI flags, then runs the simulation.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	dataPathA := cmd.String("data-a")
	dataPathB := cmd.String("data-b")
	resultsFolder := cmd.String("output")
	serveAddress := cmd.String("serve")

	configContent, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	// The engine parses the config itself; this parse only extracts the pair
	// for the data source.
	var config enginev1.PairBacktestEngineV1Config
	if err := yaml.Unmarshal(configContent, &config); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	log, err := logger.NewLogger()
	if err != nil {
		return err
	}

	dataSource, err := datasource.NewPairDataSource(":memory:", config.Pair, log)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}
	defer dataSource.Close()

	eng := enginev1.NewPairBacktestEngineV1()
	if err := eng.Initialize(string(configContent)); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := eng.SetDataPaths(dataPathA, dataPathB); err != nil {
		return err
	}

	if err := eng.SetResultsFolder(resultsFolder); err != nil {
		return err
	}

	if err := eng.SetDataSource(dataSource); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, stopping...")
		cancel()
	}()

	callbacks := progressCallbacks()

	var srv *server.Server

	if serveAddress != "" {
		srv = server.NewServer(resultsFolder, log)
		if err := srv.Start(serveAddress); err != nil {
			return fmt.Errorf("failed to start result server: %w", err)
		}

		defer srv.Stop()

		fmt.Printf("Serving results at %s\n", srv.BaseURL())

		callbacks = engine.ComposeCallbacks(callbacks, srv.Callbacks())
	}

	if err := eng.Run(ctx, callbacks); err != nil {
		if errors.HasCode(err, errors.ErrCodeBacktestAborted) {
			fmt.Println("Backtest stopped by user")

			return nil
		}

		return err
	}

	if v1, ok := eng.(*enginev1.PairBacktestEngineV1); ok {
		if summary, serr := v1.LastRun().Take(); serr == nil {
			fmt.Println()
			fmt.Println(reporting.RenderSummary(summary.Stats))
		}
	}

	if srv != nil {
		fmt.Println("Press Ctrl-C to stop serving results")
		<-ctx.Done()
	}

	return nil
}

// progressCallbacks renders a terminal progress bar over the run's bar stream.
func progressCallbacks() engine.LifecycleCallbacks {
	var bar *progressbar.ProgressBar

	onRunStart := engine.OnRunStartCallback(func(runID string, pair string, totalDataPoints int) error {
		bar = progressbar.Default(int64(totalDataPoints))
		bar.Describe(fmt.Sprintf("Backtesting %s", pair))

		return nil
	})
	onProcessData := engine.OnProcessDataCallback(func(current int, total int) error {
		if bar != nil {
			bar.Set(current)
		}

		return nil
	})
	onRunEnd := engine.OnRunEndCallback(func(runID string, pair string, resultFolderPath string) {
		if bar != nil {
			bar.Finish()
		}

		fmt.Printf("Results written to %s\n", resultFolderPath)
	})

	return engine.LifecycleCallbacks{
		OnRunStart:    &onRunStart,
		OnRunEnd:      &onRunEnd,
		OnProcessData: &onProcessData,
	}
}

// schemaAction writes the engine config JSON schema and, if none exists yet,
// a sample yaml config pointing at it.
func schemaAction(ctx context.Context, cmd *cli.Command) error {
	outputDir := cmd.String("output")

	config := enginev1.EmptyConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	schemaName := "pair-backtest-engine-v1-config.json"
	schemaPath := filepath.Join(outputDir, schemaName)
	sampleConfigPath := filepath.Join(outputDir, "pair-backtest-engine-v1-config.yaml")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}

	log.Printf("Schema successfully generated at %s", schemaPath)

	if _, err := os.Stat(sampleConfigPath); os.IsNotExist(err) {
		yamlBytes, err := yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal sample config: %w", err)
		}

		// The header lets yaml language servers validate against the schema
		yamlBytes = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), yamlBytes...)

		if err := os.WriteFile(sampleConfigPath, yamlBytes, 0644); err != nil {
			return fmt.Errorf("failed to write sample config: %w", err)
		}

		log.Printf("Sample config successfully generated at %s", sampleConfigPath)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Backtest pair trading strategies on historical market data",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a pair backtest from a yaml config and two data files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the engine yaml config",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data-a",
						Usage:    "Market data file for the first leg (parquet or csv)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "data-b",
						Usage:    "Market data file for the second leg (parquet or csv)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Directory the run results are written to",
						Value:    "results",
						Required: false,
					},
					&cli.StringFlag{
						Name:     "serve",
						Usage:    "Address to serve results and progress on (e.g. :8080); keeps serving until interrupted",
						Required: false,
					},
				},
				Action: runAction,
			},
			{
				Name:  "schema",
				Usage: "Generate the config JSON schema and a sample yaml config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Directory the schema and sample config are written to",
						Value:    "config",
						Required: false,
					},
				},
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		// A rejected cointegration gate is a research outcome, not a crash;
		// exit 2 so callers can tell the two apart.
		if errors.IsCointegrationRejected(err) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		log.Fatal(err)
	}
}
