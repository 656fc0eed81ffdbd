package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/pairtrade/pkg/marketdata"
	"github.com/urfave/cli/v3"
)

// downloadAction is the core logic executed by the CLI command.
// It parses arguments, sets up the market data client, and downloads both
// legs of the pair over the same date range.
func downloadAction(ctx context.Context, cmd *cli.Command) error {
	symbolA := cmd.String("symbol-a")
	symbolB := cmd.String("symbol-b")
	startDate := cmd.Timestamp("start")
	endDate := cmd.Timestamp("end")
	providerFlag := cmd.String("provider")
	writerFlag := cmd.String("writer")
	dataPath := cmd.String("data")
	multiplier := cmd.Int("multiplier")
	timespan := cmd.String("timespan")

	// Create client configuration
	clientConfig := marketdata.ClientConfig{
		ProviderType:  marketdata.ProviderType(providerFlag),
		WriterType:    marketdata.WriterType(writerFlag),
		DataPath:      dataPath,
		PolygonApiKey: os.Getenv("POLYGON_API_KEY"),
	}

	// The providers render their own progress bars, so no callback here
	client, err := marketdata.NewClient(clientConfig, nil)
	if err != nil {
		return fmt.Errorf("failed to create market data client: %w", err)
	}

	downloadParams := marketdata.PairDownloadParams{
		SymbolA:    symbolA,
		SymbolB:    symbolB,
		StartDate:  startDate,
		EndDate:    endDate,
		Multiplier: int(multiplier),
		Timespan:   models.Timespan(timespan),
	}

	log.Printf("Starting download for %s/%s from %s to %s using %s provider and %s writer...",
		symbolA, symbolB, startDate.Format("2006-01-02"), endDate.Format("2006-01-02"), providerFlag, writerFlag)

	pathA, pathB, err := client.DownloadPair(ctx, downloadParams)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	log.Printf("Download completed successfully: %s, %s", pathA, pathB)

	return nil
}

func main() {
	// Define the CLI application
	cmd := &cli.Command{
		Name:  "market",
		Usage: "Download historical market data for both legs of a pair",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol-a",
				Aliases:  []string{"a"},
				Usage:    "Ticker symbol of the first leg",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "symbol-b",
				Aliases:  []string{"b"},
				Usage:    "Ticker symbol of the second leg",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Start date in `YYYY-MM-DD` format (or other RFC3339 compatible)",
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "end",
				Aliases:  []string{"e"},
				Usage:    "End date in `YYYY-MM-DD` format (or other RFC3339 compatible). Defaults to today.",
				Value:    time.Now(), // Default to today
				Required: false,      // Has a default value
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:     "provider",
				Aliases:  []string{"p"},
				Usage:    fmt.Sprintf("Data provider to use (e.g., %s, %s)", marketdata.ProviderPolygon, marketdata.ProviderBinance),
				Value:    string(marketdata.ProviderPolygon), // Default provider
				Required: false,
			},
			&cli.StringFlag{
				Name:     "writer",
				Aliases:  []string{"w"},
				Usage:    fmt.Sprintf("Data writer format (e.g., %s)", marketdata.WriterDuckDB),
				Value:    string(marketdata.WriterDuckDB), // Default writer
				Required: false,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Path to the data output directory",
				Value:    "data", // Default data directory
				Required: false,
			},
			&cli.IntFlag{
				Name:     "multiplier",
				Aliases:  []string{"m"},
				Usage:    "Size of the timespan multiplier (e.g. 1 day bars)",
				Value:    1,
				Required: false,
			},
			&cli.StringFlag{
				Name:     "timespan",
				Aliases:  []string{"t"},
				Usage:    "Bar resolution (e.g. minute, hour, day)",
				Value:    string(models.Day), // Daily bars by default
				Required: false,
			},
		},
		Action: downloadAction, // Assign the action function
	}

	// Run the CLI application
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
