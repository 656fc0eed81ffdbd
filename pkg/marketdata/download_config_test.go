package marketdata

import (
	"encoding/json"
	"testing"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"
)

type DownloadConfigTestSuite struct {
	suite.Suite
}

func TestDownloadConfigTestSuite(t *testing.T) {
	suite.Run(t, new(DownloadConfigTestSuite))
}

func (suite *DownloadConfigTestSuite) TestPolygonConfigValidation_Valid() {
	config := &PolygonDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "GLD",
			SymbolB:   "GDX",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1d",
		},
		ApiKey: "test-api-key",
	}

	err := config.Validate()
	suite.NoError(err)
}

func (suite *DownloadConfigTestSuite) TestPolygonConfigValidation_MissingSymbolA() {
	config := &PolygonDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "",
			SymbolB:   "GDX",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1d",
		},
		ApiKey: "test-api-key",
	}

	err := config.Validate()
	suite.Error(err)
	suite.Contains(err.Error(), "SymbolA")
}

func (suite *DownloadConfigTestSuite) TestPolygonConfigValidation_MissingSymbolB() {
	config := &PolygonDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "GLD",
			SymbolB:   "",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1d",
		},
		ApiKey: "test-api-key",
	}

	err := config.Validate()
	suite.Error(err)
	suite.Contains(err.Error(), "SymbolB")
}

func (suite *DownloadConfigTestSuite) TestPolygonConfigValidation_SameSymbols() {
	config := &PolygonDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "GLD",
			SymbolB:   "GLD",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1d",
		},
		ApiKey: "test-api-key",
	}

	err := config.Validate()
	suite.Error(err)
	suite.Contains(err.Error(), "SymbolB")
}

func (suite *DownloadConfigTestSuite) TestPolygonConfigValidation_MissingApiKey() {
	config := &PolygonDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "GLD",
			SymbolB:   "GDX",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1d",
		},
		ApiKey: "",
	}

	err := config.Validate()
	suite.Error(err)
	suite.Contains(err.Error(), "ApiKey")
}

func (suite *DownloadConfigTestSuite) TestPolygonConfigValidation_InvalidInterval() {
	config := &PolygonDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "GLD",
			SymbolB:   "GDX",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "invalid",
		},
		ApiKey: "test-api-key",
	}

	err := config.Validate()
	suite.Error(err)
	suite.Contains(err.Error(), "Interval")
}

func (suite *DownloadConfigTestSuite) TestPolygonConfigValidation_InvalidDateFormat() {
	config := &PolygonDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "GLD",
			SymbolB:   "GDX",
			StartDate: "2024-01-01", // Missing time component
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1d",
		},
		ApiKey: "test-api-key",
	}

	err := config.Validate()
	suite.Error(err)
	suite.Contains(err.Error(), "startDate")
}

func (suite *DownloadConfigTestSuite) TestBinanceConfigValidation_Valid() {
	config := &BinanceDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "BTCUSDT",
			SymbolB:   "ETHUSDT",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1h",
		},
	}

	err := config.Validate()
	suite.NoError(err)
}

func (suite *DownloadConfigTestSuite) TestBinanceConfigValidation_MissingFields() {
	config := &BinanceDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "",
			SymbolB:   "ETHUSDT",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1h",
		},
	}

	err := config.Validate()
	suite.Error(err)
}

func (suite *DownloadConfigTestSuite) TestParsePolygonConfig_Valid() {
	jsonConfig := `{
		"symbolA": "GLD",
		"symbolB": "GDX",
		"startDate": "2024-01-01T00:00:00Z",
		"endDate": "2024-12-31T23:59:59Z",
		"interval": "1d",
		"apiKey": "test-api-key"
	}`

	config, err := ParsePolygonConfig(jsonConfig)
	suite.NoError(err)
	suite.Equal("GLD", config.SymbolA)
	suite.Equal("GDX", config.SymbolB)
	suite.Equal("test-api-key", config.ApiKey)
}

func (suite *DownloadConfigTestSuite) TestParsePolygonConfig_InvalidJSON() {
	jsonConfig := `{invalid json}`

	_, err := ParsePolygonConfig(jsonConfig)
	suite.Error(err)
	suite.Contains(err.Error(), "failed to parse JSON")
}

func (suite *DownloadConfigTestSuite) TestParsePolygonConfig_MissingRequiredField() {
	jsonConfig := `{
		"symbolA": "GLD",
		"symbolB": "GDX",
		"startDate": "2024-01-01T00:00:00Z",
		"endDate": "2024-12-31T23:59:59Z",
		"interval": "1d"
	}`

	_, err := ParsePolygonConfig(jsonConfig)
	suite.Error(err)
	suite.Contains(err.Error(), "ApiKey")
}

func (suite *DownloadConfigTestSuite) TestParseBinanceConfig_Valid() {
	jsonConfig := `{
		"symbolA": "BTCUSDT",
		"symbolB": "ETHUSDT",
		"startDate": "2024-01-01T00:00:00Z",
		"endDate": "2024-12-31T23:59:59Z",
		"interval": "1h"
	}`

	config, err := ParseBinanceConfig(jsonConfig)
	suite.NoError(err)
	suite.Equal("BTCUSDT", config.SymbolA)
	suite.Equal("ETHUSDT", config.SymbolB)
	suite.Equal("1h", config.Interval)
}

func (suite *DownloadConfigTestSuite) TestToPairDownloadParams() {
	config := &BaseDownloadConfig{
		SymbolA:   "GLD",
		SymbolB:   "GDX",
		StartDate: "2024-01-01T00:00:00Z",
		EndDate:   "2024-12-31T23:59:59Z",
		Interval:  "15m",
	}

	params, err := config.ToPairDownloadParams()
	suite.NoError(err)
	suite.Equal("GLD", params.SymbolA)
	suite.Equal("GDX", params.SymbolB)
	suite.Equal(15, params.Multiplier)
	suite.Equal(models.Minute, params.Timespan)
}

func (suite *DownloadConfigTestSuite) TestToPairDownloadParams_InvalidDate() {
	config := &BaseDownloadConfig{
		SymbolA:   "GLD",
		SymbolB:   "GDX",
		StartDate: "not-a-date",
		EndDate:   "2024-12-31T23:59:59Z",
		Interval:  "1d",
	}

	_, err := config.ToPairDownloadParams()
	suite.Error(err)
	suite.Contains(err.Error(), "failed to parse startDate")
}

func (suite *DownloadConfigTestSuite) TestPolygonToClientConfig() {
	config := &PolygonDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "GLD",
			SymbolB:   "GDX",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1d",
		},
		ApiKey: "test-api-key",
	}

	clientConfig := config.ToClientConfig("/tmp/data")
	suite.Equal(ProviderPolygon, clientConfig.ProviderType)
	suite.Equal(WriterDuckDB, clientConfig.WriterType)
	suite.Equal("/tmp/data", clientConfig.DataPath)
	suite.Equal("test-api-key", clientConfig.PolygonApiKey)
}

func (suite *DownloadConfigTestSuite) TestBinanceToClientConfig() {
	config := &BinanceDownloadConfig{
		BaseDownloadConfig: BaseDownloadConfig{
			SymbolA:   "BTCUSDT",
			SymbolB:   "ETHUSDT",
			StartDate: "2024-01-01T00:00:00Z",
			EndDate:   "2024-12-31T23:59:59Z",
			Interval:  "1h",
		},
	}

	clientConfig := config.ToClientConfig("/tmp/data")
	suite.Equal(ProviderBinance, clientConfig.ProviderType)
	suite.Equal(WriterDuckDB, clientConfig.WriterType)
	suite.Equal("/tmp/data", clientConfig.DataPath)
}

func (suite *DownloadConfigTestSuite) TestAllIntervals() {
	intervals := []string{"1s", "1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "6h", "8h", "12h", "1d", "3d", "1w", "1M"}

	for _, interval := range intervals {
		config := &BinanceDownloadConfig{
			BaseDownloadConfig: BaseDownloadConfig{
				SymbolA:   "BTCUSDT",
				SymbolB:   "ETHUSDT",
				StartDate: "2024-01-01T00:00:00Z",
				EndDate:   "2024-12-31T23:59:59Z",
				Interval:  interval,
			},
		}

		err := config.Validate()
		suite.NoError(err, "interval %s should be valid", interval)
	}
}

func (suite *DownloadConfigTestSuite) TestPolygonConfigJSONSchema() {
	schema, err := GetDownloadConfigSchema("polygon")
	suite.NoError(err)
	suite.NotEmpty(schema)

	// Verify it's valid JSON
	var schemaMap map[string]interface{}
	err = json.Unmarshal([]byte(schema), &schemaMap)
	suite.NoError(err)

	// Check that required fields are in the schema
	properties, ok := schemaMap["properties"].(map[string]interface{})
	suite.True(ok, "schema should have properties")
	suite.Contains(properties, "symbolA")
	suite.Contains(properties, "symbolB")
	suite.Contains(properties, "startDate")
	suite.Contains(properties, "endDate")
	suite.Contains(properties, "interval")
	suite.NotContains(properties, "dataPath") // dataPath is a separate parameter
	suite.Contains(properties, "apiKey")
}

func (suite *DownloadConfigTestSuite) TestBinanceConfigJSONSchema() {
	schema, err := GetDownloadConfigSchema("binance")
	suite.NoError(err)
	suite.NotEmpty(schema)

	// Verify it's valid JSON
	var schemaMap map[string]interface{}
	err = json.Unmarshal([]byte(schema), &schemaMap)
	suite.NoError(err)

	// Check that required fields are in the schema
	properties, ok := schemaMap["properties"].(map[string]interface{})
	suite.True(ok, "schema should have properties")
	suite.Contains(properties, "symbolA")
	suite.Contains(properties, "symbolB")
	suite.Contains(properties, "startDate")
	suite.Contains(properties, "endDate")
	suite.Contains(properties, "interval")
	suite.NotContains(properties, "dataPath") // dataPath is a separate parameter

	// Binance should not have apiKey in schema
	suite.NotContains(properties, "apiKey")
}
