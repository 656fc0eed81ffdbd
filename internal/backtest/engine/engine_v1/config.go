package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/pairtrade/internal/backtest/engine/engine_v1/commission_fee"
	"github.com/rxtech-lab/pairtrade/internal/types"
	"github.com/rxtech-lab/pairtrade/internal/version"
	"github.com/rxtech-lab/pairtrade/pkg/errors"
)

// ConfigSchemaVersion is the schema version this engine accepts. Configs must
// carry a schema_version with the same major.minor.
const ConfigSchemaVersion = "1.0.0"

// ExecutionLag selects when a signal computed from bar t fills.
type ExecutionLag string

const (
	// ExecutionLagSameBar fills at bar t's close
	ExecutionLagSameBar ExecutionLag = "same_bar"
	// ExecutionLagNextOpen fills at bar t+1's open
	ExecutionLagNextOpen ExecutionLag = "next_open"
)

var AllExecutionLags = []any{
	ExecutionLagSameBar,
	ExecutionLagNextOpen,
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

type PairBacktestEngineV1Config struct {
	SchemaVersion       string                     `yaml:"schema_version" json:"schema_version" jsonschema:"title=Schema Version,description=Config schema version; must match the engine's major.minor" validate:"required"`
	Pair                types.PairInfo             `yaml:"pair" json:"pair" jsonschema:"title=Pair,description=The two legs of the traded pair"`
	EstimationWindow    optional.Option[int]       `yaml:"estimation_window" json:"estimation_window" jsonschema:"title=Estimation Window,description=Rolling window in bars for the hedge-ratio fit; absent means a single full-history fit"`
	EntryThreshold      float64                    `yaml:"entry_threshold" json:"entry_threshold" jsonschema:"title=Entry Threshold,description=Absolute z-score at which a position is opened,default=2.0" validate:"gt=0"`
	ExitThreshold       float64                    `yaml:"exit_threshold" json:"exit_threshold" jsonschema:"title=Exit Threshold,description=Absolute z-score inside which a position is closed,default=0.5" validate:"gte=0,ltfield=EntryThreshold"`
	StopThreshold       optional.Option[float64]   `yaml:"stop_threshold" json:"stop_threshold" jsonschema:"title=Stop Threshold,description=Optional absolute z-score beyond which a position is force-closed"`
	SignificanceLevel   float64                    `yaml:"significance_level" json:"significance_level" jsonschema:"title=Significance Level,description=p-value threshold for the cointegration gate,default=0.05" validate:"gt=0,lt=1"`
	TransactionCostRate float64                    `yaml:"transaction_cost_rate" json:"transaction_cost_rate" jsonschema:"title=Transaction Cost Rate,description=Fraction of notional charged per fill when the broker is 'rate'" validate:"gte=0"`
	Broker              commission_fee.Broker      `yaml:"broker" json:"broker" jsonschema:"title=Broker,description=The cost model used for fills"`
	ExecutionLag        ExecutionLag               `yaml:"execution_lag" json:"execution_lag" jsonschema:"title=Execution Lag,description=When a signal computed from bar t fills" validate:"oneof=same_bar next_open"`
	NotionalPerTrade    float64                    `yaml:"notional_per_trade" json:"notional_per_trade" jsonschema:"title=Notional Per Trade,description=USD notional allocated to leg A on each entry,default=10000" validate:"gt=0"`
	BarsPerYear         int                        `yaml:"bars_per_year" json:"bars_per_year" jsonschema:"title=Bars Per Year,description=Sampling frequency used to annualize the Sharpe ratio,default=252" validate:"gt=0"`
	InitialBalance      float64                    `yaml:"initial_balance" json:"initial_balance" jsonschema:"title=Initial Balance,description=Starting cash balance in USD,default=100000" validate:"gt=0"`
	UseLogPrices        bool                       `yaml:"use_log_prices" json:"use_log_prices" jsonschema:"title=Use Log Prices,description=Fit the hedge ratio on log prices instead of raw prices"`
	DecimalPrecision    int                        `yaml:"decimal_precision" json:"decimal_precision" jsonschema:"title=Decimal Precision,description=Decimal places order quantities are rounded to,default=8" validate:"gte=0"`
	StartTime           optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start of the backtest period"`
	EndTime             optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end of the backtest period"`
}

// UnmarshalYAML implements custom unmarshaling for PairBacktestEngineV1Config
// so that absent optional fields decode to None instead of zero values.
func (c *PairBacktestEngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		SchemaVersion       string                `yaml:"schema_version"`
		Pair                types.PairInfo        `yaml:"pair"`
		EstimationWindow    *int                  `yaml:"estimation_window"`
		EntryThreshold      float64               `yaml:"entry_threshold"`
		ExitThreshold       float64               `yaml:"exit_threshold"`
		StopThreshold       *float64              `yaml:"stop_threshold"`
		SignificanceLevel   float64               `yaml:"significance_level"`
		TransactionCostRate float64               `yaml:"transaction_cost_rate"`
		Broker              commission_fee.Broker `yaml:"broker"`
		ExecutionLag        ExecutionLag          `yaml:"execution_lag"`
		NotionalPerTrade    float64               `yaml:"notional_per_trade"`
		BarsPerYear         int                   `yaml:"bars_per_year"`
		InitialBalance      float64               `yaml:"initial_balance"`
		UseLogPrices        bool                  `yaml:"use_log_prices"`
		DecimalPrecision    *int                  `yaml:"decimal_precision"`
		StartTime           *time.Time            `yaml:"start_time"`
		EndTime             *time.Time            `yaml:"end_time"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.SchemaVersion = config.SchemaVersion
	c.Pair = config.Pair
	c.EntryThreshold = config.EntryThreshold
	c.ExitThreshold = config.ExitThreshold
	c.SignificanceLevel = config.SignificanceLevel
	c.TransactionCostRate = config.TransactionCostRate
	c.Broker = config.Broker
	c.ExecutionLag = config.ExecutionLag
	c.NotionalPerTrade = config.NotionalPerTrade
	c.BarsPerYear = config.BarsPerYear
	c.InitialBalance = config.InitialBalance
	c.UseLogPrices = config.UseLogPrices

	c.EstimationWindow = optional.None[int]()
	if config.EstimationWindow != nil {
		c.EstimationWindow = optional.Some(*config.EstimationWindow)
	}

	c.StopThreshold = optional.None[float64]()
	if config.StopThreshold != nil {
		c.StopThreshold = optional.Some(*config.StopThreshold)
	}

	c.DecimalPrecision = defaultDecimalPrecision
	if config.DecimalPrecision != nil {
		c.DecimalPrecision = *config.DecimalPrecision
	}

	c.StartTime = optional.None[time.Time]()
	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	c.EndTime = optional.None[time.Time]()
	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate checks field ranges, cross-field constraints, and the schema
// version gate.
func (c *PairBacktestEngineV1Config) Validate() error {
	if err := version.CheckVersionCompatibility(ConfigSchemaVersion, c.SchemaVersion); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "unsupported config schema version", err)
	}

	if err := configValidator.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	if c.Pair.SymbolA == "" || c.Pair.SymbolB == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "pair requires both symbol_a and symbol_b")
	}

	if c.Pair.SymbolA == c.Pair.SymbolB {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "pair legs must differ, got %s twice", c.Pair.SymbolA)
	}

	if window, err := c.EstimationWindow.Take(); err == nil && window < 2 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "estimation_window must be at least 2 bars, got %d", window)
	}

	if stop, err := c.StopThreshold.Take(); err == nil && stop <= c.EntryThreshold {
		return errors.Newf(errors.ErrCodeInvalidConfiguration,
			"stop_threshold %.4f must exceed entry_threshold %.4f", stop, c.EntryThreshold)
	}

	if start, err := c.StartTime.Take(); err == nil {
		if end, err := c.EndTime.Take(); err == nil && !end.After(start) {
			return errors.Newf(errors.ErrCodeInvalidConfiguration,
				"end_time %s must be after start_time %s",
				end.Format(time.RFC3339), start.Format(time.RFC3339))
		}
	}

	return nil
}

// GenerateSchema generates a JSON schema for the PairBacktestEngineV1Config
func (c *PairBacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}
			if t.String() == "optional.Option[int]" {
				return &jsonschema.Schema{
					Type: "integer",
				}
			}
			if t.String() == "optional.Option[float64]" {
				return &jsonschema.Schema{
					Type: "number",
				}
			}
			if strings.Contains(t.String(), "commission_fee.Broker") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllBrokers,
				}
			}
			if strings.Contains(t.String(), "engine.ExecutionLag") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: AllExecutionLags,
				}
			}
			return nil
		},
	}

	// Generate schema from PairBacktestEngineV1Config struct
	schema := reflector.Reflect(c)

	// Set schema metadata
	schema.Title = "pair-backtest-engine-v1-config"
	schema.Description = "Configuration schema for PairBacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the PairBacktestEngineV1Config
func (c *PairBacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

const defaultDecimalPrecision = 8

// DefaultConfig returns the defaults of the original research setup: rolling
// 200-bar fit, 2.0/0.5 bands, 5% significance, same-bar fills.
func DefaultConfig(pair types.PairInfo) PairBacktestEngineV1Config {
	return PairBacktestEngineV1Config{
		SchemaVersion:       ConfigSchemaVersion,
		Pair:                pair,
		EstimationWindow:    optional.Some(200),
		EntryThreshold:      2.0,
		ExitThreshold:       0.5,
		StopThreshold:       optional.None[float64](),
		SignificanceLevel:   0.05,
		TransactionCostRate: 0.001,
		Broker:              commission_fee.BrokerRate,
		ExecutionLag:        ExecutionLagSameBar,
		NotionalPerTrade:    10000,
		BarsPerYear:         252,
		InitialBalance:      100000,
		UseLogPrices:        false,
		DecimalPrecision:    defaultDecimalPrecision,
		StartTime:           optional.None[time.Time](),
		EndTime:             optional.None[time.Time](),
	}
}

func TestConfig(pair types.PairInfo, startTime time.Time, endTime time.Time, broker commission_fee.Broker) PairBacktestEngineV1Config {
	config := DefaultConfig(pair)
	config.InitialBalance = 10000
	config.Broker = broker
	config.StartTime = optional.Some(startTime)
	config.EndTime = optional.Some(endTime)

	return config
}

// EmptyConfig returns a PairBacktestEngineV1Config with default values
func EmptyConfig() PairBacktestEngineV1Config {
	return PairBacktestEngineV1Config{
		SchemaVersion:       ConfigSchemaVersion,
		EstimationWindow:    optional.None[int](),
		StopThreshold:       optional.None[float64](),
		Broker:              commission_fee.BrokerRate,
		ExecutionLag:        ExecutionLagSameBar,
		DecimalPrecision:    defaultDecimalPrecision,
		StartTime:           optional.None[time.Time](),
		EndTime:             optional.None[time.Time](),
	}
}
