package mocks

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/rxtech-lab/pairtrade/internal/types"
)

// PairDataGenerator generates realistic aligned pair data for testing and
// benchmarking. Leg B follows a geometric Brownian motion; leg A is tied to
// it through a linear relationship plus a stationary spread process, so the
// generated pair is cointegrated by construction.
type PairDataGenerator struct {
	rng *rand.Rand
}

// NewPairDataGenerator creates a new PairDataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewPairDataGenerator(seed int64) *PairDataGenerator {
	return &PairDataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// PairGeneratorConfig configures how pair data is generated.
type PairGeneratorConfig struct {
	// Pair names the two legs (e.g. AAPL/GOOGL)
	Pair types.PairInfo
	// StartTime is the beginning of the data series
	StartTime time.Time
	// Interval is the duration between each bar
	Interval time.Duration
	// Count is the number of aligned bars to generate
	Count int
	// InitialPrice is the starting price of leg B
	InitialPrice float64
	// Volatility controls leg B price movement (0.01 = 1% typical daily volatility)
	Volatility float64
	// Trend is the drift factor for leg B (-0.01 to 0.01 for bearish to bullish)
	Trend float64
	// Beta is the hedge ratio linking leg A to leg B: A = Beta*B + Alpha + spread
	Beta float64
	// Alpha is the intercept of the linear relationship
	Alpha float64
	// SpreadVol is the standard deviation of spread innovations, in price units
	SpreadVol float64
	// MeanReversion pulls the spread back toward zero each bar (0 to 1).
	// Zero makes the spread a random walk, so the pair is NOT cointegrated.
	MeanReversion float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
}

// DefaultPairConfig returns a configuration for a well-behaved cointegrated pair.
func DefaultPairConfig() PairGeneratorConfig {
	return PairGeneratorConfig{
		Pair:           types.PairInfo{SymbolA: "AAPL", SymbolB: "GOOGL"},
		StartTime:      time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
		Interval:       time.Minute,
		Count:          10000,
		InitialPrice:   100.0,
		Volatility:     0.002, // 0.2% per bar
		Trend:          0.0,   // neutral
		Beta:           1.5,
		Alpha:          10.0,
		SpreadVol:      0.5,
		MeanReversion:  0.2,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// DivergingPairConfig returns a configuration whose spread is a random walk.
// The resulting pair should fail a cointegration test.
func DivergingPairConfig() PairGeneratorConfig {
	config := DefaultPairConfig()
	config.MeanReversion = 0.0
	config.SpreadVol = 1.5

	return config
}

// normal draws a standard normal variate using the Box-Muller transform.
func (g *PairDataGenerator) normal() float64 {
	u1 := g.rng.Float64()
	u2 := g.rng.Float64()

	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Generate creates a slice of aligned PairBar values based on the configuration.
// Leg B follows a geometric Brownian motion; the spread follows an AR(1)
// process spread_t = (1-MeanReversion)*spread_{t-1} + noise, and leg A closes
// at Beta*closeB + Alpha + spread_t.
func (g *PairDataGenerator) Generate(config PairGeneratorConfig) []types.PairBar {
	bars := make([]types.PairBar, config.Count)
	currentPriceB := config.InitialPrice
	currentTime := config.StartTime
	spread := 0.0

	for i := 0; i < config.Count; i++ {
		openB := currentPriceB

		// Price change with trend and volatility
		priceChange := config.Volatility * g.normal()
		drift := config.Trend / float64(config.Count) // Distribute trend across bars

		closeB := openB * (1 + priceChange + drift)
		if closeB <= 0 {
			closeB = openB * 0.99 // Prevent negative prices
		}

		// Evolve the spread and derive leg A from leg B
		prevSpread := spread
		spread = (1-config.MeanReversion)*spread + config.SpreadVol*g.normal()

		openA := config.Beta*openB + config.Alpha + prevSpread
		closeA := config.Beta*closeB + config.Alpha + spread

		if openA <= 0 {
			openA = 0.01
		}

		if closeA <= 0 {
			closeA = 0.01
		}

		bars[i] = types.PairBar{
			Time: currentTime,
			A:    g.legBar(config, config.Pair.SymbolA, currentTime, openA, closeA),
			B:    g.legBar(config, config.Pair.SymbolB, currentTime, openB, closeB),
		}

		// Update for next iteration
		currentPriceB = closeB
		currentTime = currentTime.Add(config.Interval)
	}

	return bars
}

// legBar builds one leg's OHLCV around the given open and close.
func (g *PairDataGenerator) legBar(config PairGeneratorConfig, symbol string, t time.Time, open, close float64) types.MarketData {
	// High and low are within the open-close range plus some extension
	highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
	lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

	high := math.Max(open, close) + highExtension
	low := math.Min(open, close) - lowExtension

	if low <= 0 {
		low = math.Min(open, close) * 0.99
	}

	// Volume with variance
	volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance
	volume := config.VolumeBase * volumeVariation

	if volume < 0 {
		volume = config.VolumeBase * 0.1
	}

	return types.MarketData{
		Id:     "",
		Symbol: symbol,
		Time:   t,
		Open:   roundToDecimals(open, 4),
		High:   roundToDecimals(high, 4),
		Low:    roundToDecimals(low, 4),
		Close:  roundToDecimals(close, 4),
		Volume: roundToDecimals(volume, 2),
	}
}

// GeneratePair10K is a convenience function to generate 10,000 aligned bars
// with default settings for benchmarking.
func GeneratePair10K() []types.PairBar {
	gen := NewPairDataGenerator(42) // Fixed seed for reproducibility
	config := DefaultPairConfig()
	config.Count = 10000

	return gen.Generate(config)
}

// WriteLegCSVs writes the two legs of the generated bars as CSV files in dir,
// using the raw data layout the datasource ingests (timestamp,open,high,low,
// close,volume). It returns the paths of the two files.
func WriteLegCSVs(dir string, bars []types.PairBar) (string, string, error) {
	pathA := filepath.Join(dir, "leg_a.csv")
	pathB := filepath.Join(dir, "leg_b.csv")

	write := func(path string, leg func(types.PairBar) types.MarketData) error {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := f.WriteString("timestamp,open,high,low,close,volume\n"); err != nil {
			return err
		}

		for _, bar := range bars {
			md := leg(bar)

			_, err := fmt.Fprintf(f, "%s,%.4f,%.4f,%.4f,%.4f,%.2f\n",
				md.Time.UTC().Format("2006-01-02 15:04:05"),
				md.Open, md.High, md.Low, md.Close, md.Volume)
			if err != nil {
				return err
			}
		}

		return nil
	}

	if err := write(pathA, func(b types.PairBar) types.MarketData { return b.A }); err != nil {
		return "", "", err
	}

	if err := write(pathB, func(b types.PairBar) types.MarketData { return b.B }); err != nil {
		return "", "", err
	}

	return pathA, pathB, nil
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
