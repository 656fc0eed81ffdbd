package datasource

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pairtrade/internal/types"
)

type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

// SQLResult represents a row of data from a SQL query
type SQLResult struct {
	Values map[string]interface{}
}

// PairDataSource serves the aligned bar stream of a two-leg pair. Alignment
// is the intersection of the two legs' timestamps; bars present in only one
// leg never reach the caller.
type PairDataSource interface {
	// Initialize loads both legs from the given data paths (parquet or csv)
	// and builds the aligned pair view
	Initialize(pathA string, pathB string) error
	// ReadAll reads all aligned bars from the data source and yields them to the caller
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.PairBar, error) bool)
	// GetRange reads a range of aligned bars, optionally aggregated to the given interval
	GetRange(start time.Time, end time.Time, interval optional.Option[Interval]) ([]types.PairBar, error)
	// ReadLastData reads the most recent aligned bar
	ReadLastData() (types.PairBar, error)
	// GetPreviousNumberOfDataPoints reads count aligned bars ending at the given time
	GetPreviousNumberOfDataPoints(end time.Time, count int) ([]types.PairBar, error)
	// ExecuteSQL executes a raw SQL query and returns the results as SQLResult
	ExecuteSQL(query string, params ...interface{}) ([]SQLResult, error)
	// Count returns the number of aligned bars in the data source
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)
	// Close closes the data source and releases any resources
	Close() error
}
