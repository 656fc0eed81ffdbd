package datasource

import (
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

// PreloadedPairDataSource provides high-performance indexed access to aligned
// pair bars. It preloads the whole timeline into memory and uses array
// indexing for O(1) lookups, avoiding repeated SQL queries when the same
// range is served many times (chart endpoints, report generation).
type PreloadedPairDataSource struct {
	underlying PairDataSource
	pair       types.PairInfo

	// Preloaded bars in chronological order. bars[i].Time is strictly
	// increasing because the aligned view joins on equal timestamps.
	bars []types.PairBar

	// timeIndex maps timestamps to bar indices
	timeIndex map[int64]int

	// Current bar index for GetPreviousNBars
	currentBarIndex int

	// Preload state
	preloaded bool

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// NewPreloadedPairDataSource creates a new PreloadedPairDataSource wrapping the given PairDataSource.
func NewPreloadedPairDataSource(underlying PairDataSource, pair types.PairInfo) *PreloadedPairDataSource {
	return &PreloadedPairDataSource{
		underlying:      underlying,
		pair:            pair,
		bars:            nil,
		timeIndex:       make(map[int64]int),
		currentBarIndex: 0,
		preloaded:       false,
		mu:              sync.RWMutex{},
	}
}

// Preload loads all aligned bars into memory for fast indexed access.
func (ds *PreloadedPairDataSource) Preload(start optional.Option[time.Time], end optional.Option[time.Time]) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	// Clear existing data
	ds.bars = nil
	ds.timeIndex = make(map[int64]int)
	ds.currentBarIndex = 0

	// Load all bars from the underlying source
	var bars []types.PairBar
	for bar, err := range ds.underlying.ReadAll(start, end) {
		if err != nil {
			return errors.Wrap(errors.ErrCodeDataNotFound, "failed to preload pair data", err)
		}

		bars = append(bars, bar)
	}

	// Sort by time to ensure chronological order
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	ds.bars = bars

	for i, bar := range bars {
		ds.timeIndex[bar.Time.UnixNano()] = i
	}

	ds.preloaded = true

	return nil
}

// IsPreloaded returns true if data has been preloaded into memory.
func (ds *PreloadedPairDataSource) IsPreloaded() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.preloaded
}

// SetCurrentBarIndex sets the current bar index for subsequent queries.
func (ds *PreloadedPairDataSource) SetCurrentBarIndex(index int) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.currentBarIndex = index
}

// GetCurrentBarIndex returns the current bar index.
func (ds *PreloadedPairDataSource) GetCurrentBarIndex() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return ds.currentBarIndex
}

// GetPreviousNBars returns the previous N bars ending at the current bar index.
// This is an O(1) operation using array slicing.
func (ds *PreloadedPairDataSource) GetPreviousNBars(count int) ([]types.PairBar, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if !ds.preloaded {
		return nil, errors.New(errors.ErrCodeDataNotFound, "data not preloaded, call Preload() first")
	}

	// We want `count` bars ending at currentBarIndex (inclusive)
	startIdx := ds.currentBarIndex - count + 1
	if startIdx < 0 {
		startIdx = 0
	}

	endIdx := ds.currentBarIndex + 1
	if endIdx > len(ds.bars) {
		endIdx = len(ds.bars)
	}

	actualCount := endIdx - startIdx
	if actualCount < count {
		return nil, errors.NewInsufficientDataErrorf(count, actualCount, ds.pair.String(),
			"insufficient bars for pair %s: requested %d, got %d", ds.pair.String(), count, actualCount)
	}

	// Return a copy to prevent modification of underlying data
	result := make([]types.PairBar, actualCount)
	copy(result, ds.bars[startIdx:endIdx])

	return result, nil
}

// GetBarAtIndex returns the aligned bar at a specific index.
func (ds *PreloadedPairDataSource) GetBarAtIndex(index int) (types.PairBar, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if !ds.preloaded {
		return types.PairBar{}, errors.New(errors.ErrCodeDataNotFound, "data not preloaded, call Preload() first")
	}

	if index < 0 || index >= len(ds.bars) {
		return types.PairBar{}, errors.Newf(errors.ErrCodeDataNotFound,
			"bar index %d out of range [0, %d) for pair %s", index, len(ds.bars), ds.pair.String())
	}

	return ds.bars[index], nil
}

// GetTotalBars returns the total number of aligned bars loaded.
func (ds *PreloadedPairDataSource) GetTotalBars() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return len(ds.bars)
}

// GetPairData returns the aligned bar at an exact timestamp.
func (ds *PreloadedPairDataSource) GetPairData(timestamp time.Time) (types.PairBar, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if !ds.preloaded {
		return types.PairBar{}, errors.New(errors.ErrCodeDataNotFound, "data not preloaded, call Preload() first")
	}

	idx, ok := ds.timeIndex[timestamp.UnixNano()]
	if !ok {
		return types.PairBar{}, errors.Newf(errors.ErrCodeDataNotFound,
			"no aligned data found for pair %s at time %v", ds.pair.String(), timestamp)
	}

	return ds.bars[idx], nil
}

// searchEndIndex returns the index of the last bar at or before end,
// or -1 when every bar is after end. Callers must hold the read lock.
func (ds *PreloadedPairDataSource) searchEndIndex(end time.Time) int {
	if idx, ok := ds.timeIndex[end.UnixNano()]; ok {
		return idx
	}

	// First bar strictly after end; the one before it is our answer.
	n := sort.Search(len(ds.bars), func(i int) bool {
		return ds.bars[i].Time.After(end)
	})

	return n - 1
}

// ========================================
// PairDataSource interface implementation
// ========================================

// Initialize implements PairDataSource.
func (ds *PreloadedPairDataSource) Initialize(pathA string, pathB string) error {
	return ds.underlying.Initialize(pathA, pathB)
}

// ReadAll implements PairDataSource.
// When preloaded, iterates over in-memory bars with automatic index tracking.
func (ds *PreloadedPairDataSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.PairBar, error) bool) {
	return func(yield func(types.PairBar, error) bool) {
		ds.mu.RLock()
		preloaded := ds.preloaded
		bars := ds.bars
		ds.mu.RUnlock()

		if preloaded && bars != nil {
			for i, bar := range bars {
				if start.IsSome() && bar.Time.Before(start.Unwrap()) {
					continue
				}

				if end.IsSome() && bar.Time.After(end.Unwrap()) {
					return
				}

				ds.mu.Lock()
				ds.currentBarIndex = i
				ds.mu.Unlock()

				if !yield(bar, nil) {
					return
				}
			}

			return
		}

		// Fall back to the underlying datasource
		for bar, err := range ds.underlying.ReadAll(start, end) {
			if !yield(bar, err) {
				return
			}
		}
	}
}

// GetRange implements PairDataSource.
// Interval aggregation always goes to the underlying source; the in-memory
// timeline only serves raw-resolution range scans.
func (ds *PreloadedPairDataSource) GetRange(start time.Time, end time.Time, interval optional.Option[Interval]) ([]types.PairBar, error) {
	ds.mu.RLock()
	preloaded := ds.preloaded
	ds.mu.RUnlock()

	if preloaded && interval.IsNone() {
		ds.mu.RLock()
		defer ds.mu.RUnlock()

		// Binary search both bounds on the sorted timeline
		lo := sort.Search(len(ds.bars), func(i int) bool {
			return !ds.bars[i].Time.Before(start)
		})
		hi := sort.Search(len(ds.bars), func(i int) bool {
			return ds.bars[i].Time.After(end)
		})

		if lo >= hi {
			return []types.PairBar{}, nil
		}

		result := make([]types.PairBar, hi-lo)
		copy(result, ds.bars[lo:hi])

		return result, nil
	}

	return ds.underlying.GetRange(start, end, interval)
}

// GetPreviousNumberOfDataPoints implements PairDataSource.
// When preloaded, uses O(1) indexed access instead of SQL queries.
func (ds *PreloadedPairDataSource) GetPreviousNumberOfDataPoints(end time.Time, count int) ([]types.PairBar, error) {
	ds.mu.RLock()
	preloaded := ds.preloaded
	ds.mu.RUnlock()

	if preloaded {
		ds.mu.RLock()
		defer ds.mu.RUnlock()

		endIdx := ds.searchEndIndex(end)
		if endIdx < 0 {
			return nil, errors.Newf(errors.ErrCodeDataNotFound, "no data found before time %v for pair %s", end, ds.pair.String())
		}

		startIdx := endIdx - count + 1
		if startIdx < 0 {
			startIdx = 0
		}

		actualCount := endIdx - startIdx + 1
		if actualCount < count {
			return nil, errors.NewInsufficientDataErrorf(count, actualCount, ds.pair.String(),
				"insufficient bars for pair %s: requested %d, got %d", ds.pair.String(), count, actualCount)
		}

		result := make([]types.PairBar, count)
		copy(result, ds.bars[startIdx:endIdx+1])

		return result, nil
	}

	return ds.underlying.GetPreviousNumberOfDataPoints(end, count)
}

// ReadLastData implements PairDataSource.
func (ds *PreloadedPairDataSource) ReadLastData() (types.PairBar, error) {
	ds.mu.RLock()
	preloaded := ds.preloaded
	ds.mu.RUnlock()

	if preloaded {
		ds.mu.RLock()
		defer ds.mu.RUnlock()

		if len(ds.bars) == 0 {
			return types.PairBar{}, errors.Newf(errors.ErrCodeNoDataFound, "no aligned data found for pair: %s", ds.pair.String())
		}

		return ds.bars[len(ds.bars)-1], nil
	}

	return ds.underlying.ReadLastData()
}

// ExecuteSQL implements PairDataSource.
// SQL queries are passed to the underlying datasource (cannot be served from memory).
func (ds *PreloadedPairDataSource) ExecuteSQL(query string, params ...interface{}) ([]SQLResult, error) {
	return ds.underlying.ExecuteSQL(query, params...)
}

// Count implements PairDataSource.
func (ds *PreloadedPairDataSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	ds.mu.RLock()
	preloaded := ds.preloaded
	ds.mu.RUnlock()

	if preloaded {
		ds.mu.RLock()
		defer ds.mu.RUnlock()

		if start.IsNone() && end.IsNone() {
			return len(ds.bars), nil
		}

		count := 0

		for _, bar := range ds.bars {
			if start.IsSome() && bar.Time.Before(start.Unwrap()) {
				continue
			}

			if end.IsSome() && bar.Time.After(end.Unwrap()) {
				continue
			}

			count++
		}

		return count, nil
	}

	return ds.underlying.Count(start, end)
}

// Close implements PairDataSource.
func (ds *PreloadedPairDataSource) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	// Clear preloaded data
	ds.bars = nil
	ds.timeIndex = nil
	ds.preloaded = false

	return ds.underlying.Close()
}
