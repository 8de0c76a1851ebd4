// Package config loads the engine's environment-driven configuration:
// which exchanges run live vs. replay, trading pairs and baskets, Beat
// cadence, Kalman/EMA half-lives, execution-strategy thresholds, and
// per-exchange credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"fairsengine/pkg/utils"
)

// Config holds every environment-driven parameter the engine needs to
// start.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Logging  LoggingConfig
}

// ServerConfig configures the health/metrics HTTP surface.
type ServerConfig struct {
	Port int
	Host string
}

// DatabaseConfig configures the historical-candle store used for WARMUP.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// ExchangeConfig is one configured exchange adapter: either a live
// connection (Live true, credentials required) or a historical replay
// (Live false, ReplaySource names a candle table or file the caller
// resolves).
type ExchangeConfig struct {
	Name         string
	Live         bool
	WSURL        string
	ReplaySource string
	APIKey       string
	Secret       string
	Passphrase   string
	Pairs        []string // "BASE-QUOTE"
}

// BasketConfig names a signal basket and the "EXCHANGE-BASE-QUOTE" pairs
// that contribute to it.
type BasketConfig struct {
	Name  string
	Pairs []string
}

// EngineConfig parameterizes the Beat, the Kalman Strategy, the Execution
// Strategy, and the Signal Aggregator.
type EngineConfig struct {
	Exchanges []ExchangeConfig
	Baskets   []BasketConfig

	BeatInterval time.Duration

	AggregatorWindow int

	KalmanWindowSize       int
	KalmanMovementHalfLife float64

	ExecutionSize           float64
	ExecutionVarianceHL     float64
	ExecutionTrendHL        float64
	ExecutionAccelHL        float64
	ExecutionTrendCutoff    float64
	ExecutionMinEdgeToEnter float64
	ExecutionMinEdgeToClose float64

	WarmupCandles int
	LotSize       float64
}

// LoggingConfig controls the global zap-backed logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load builds a Config from environment variables, applying defaults where
// the environment is silent. ENGINE_EXCHANGES is a comma-separated list of
// exchange names; each name's own variables are read as
// `<NAME>_LIVE`, `<NAME>_WS_URL`, `<NAME>_REPLAY_SOURCE`, `<NAME>_PAIRS`,
// `<NAME>_API_KEY`, `<NAME>_SECRET`, `<NAME>_PASSPHRASE`.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "fairsengine"),
			User:     getEnv("DB_USER", "fairsengine"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Engine: EngineConfig{
			Exchanges: loadExchanges(),
			Baskets:   loadBaskets(),

			BeatInterval: getEnvAsDuration("BEAT_INTERVAL", time.Second),

			AggregatorWindow: getEnvAsInt("AGGREGATOR_WINDOW", 120),

			KalmanWindowSize:       getEnvAsInt("KALMAN_WINDOW_SIZE", 60),
			KalmanMovementHalfLife: getEnvAsFloat("KALMAN_MOVEMENT_HALF_LIFE", 5),

			ExecutionSize:           getEnvAsFloat("EXECUTION_SIZE", 1000),
			ExecutionVarianceHL:     getEnvAsFloat("EXECUTION_VARIANCE_HALF_LIFE", 50),
			ExecutionTrendHL:        getEnvAsFloat("EXECUTION_TREND_HALF_LIFE", 10),
			ExecutionAccelHL:        getEnvAsFloat("EXECUTION_ACCEL_HALF_LIFE", 5),
			ExecutionTrendCutoff:    getEnvAsFloat("EXECUTION_TREND_CUTOFF", 0),
			ExecutionMinEdgeToEnter: getEnvAsFloat("EXECUTION_MIN_EDGE_TO_ENTER", 0.001),
			ExecutionMinEdgeToClose: getEnvAsFloat("EXECUTION_MIN_EDGE_TO_CLOSE", 0),

			WarmupCandles: getEnvAsInt("WARMUP_CANDLES", 200),
			LotSize:       getEnvAsFloat("LOT_SIZE", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Engine.Exchanges) == 0 {
		return fmt.Errorf("config: ENGINE_EXCHANGES must name at least one exchange")
	}
	longestHalfLife := max3(c.Engine.ExecutionVarianceHL, c.Engine.ExecutionTrendHL, c.Engine.ExecutionAccelHL)
	if float64(c.Engine.WarmupCandles) < longestHalfLife*4 {
		return fmt.Errorf("config: WARMUP_CANDLES (%d) must be at least 4x the longest execution half-life (%v)", c.Engine.WarmupCandles, longestHalfLife)
	}
	for _, ex := range c.Engine.Exchanges {
		if ex.Live {
			if err := utils.ValidateAPIKey(ex.APIKey); err != nil {
				return fmt.Errorf("config: exchange %q: %w", ex.Name, err)
			}
			if err := utils.ValidateAPISecret(ex.Secret); err != nil {
				return fmt.Errorf("config: exchange %q: %w", ex.Name, err)
			}
			if err := utils.ValidateAPIPassphrase(ex.Passphrase); err != nil {
				return fmt.Errorf("config: exchange %q: %w", ex.Name, err)
			}
		}
		if !ex.Live && ex.ReplaySource == "" {
			return fmt.Errorf("config: exchange %q is replay but has no REPLAY_SOURCE", ex.Name)
		}
		for _, p := range ex.Pairs {
			if err := utils.ValidateSymbol(p); err != nil {
				return fmt.Errorf("config: exchange %q pair %q: %w", ex.Name, p, err)
			}
		}
	}
	return nil
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func loadExchanges() []ExchangeConfig {
	names := splitCSV(getEnv("ENGINE_EXCHANGES", ""))
	out := make([]ExchangeConfig, 0, len(names))
	for _, name := range names {
		prefix := strings.ToUpper(name)
		out = append(out, ExchangeConfig{
			Name:         name,
			Live:         getEnvAsBool(prefix+"_LIVE", false),
			WSURL:        getEnv(prefix+"_WS_URL", ""),
			ReplaySource: getEnv(prefix+"_REPLAY_SOURCE", ""),
			APIKey:       getEnv(prefix+"_API_KEY", ""),
			Secret:       getEnv(prefix+"_SECRET", ""),
			Passphrase:   getEnv(prefix+"_PASSPHRASE", ""),
			Pairs:        splitCSV(getEnv(prefix+"_PAIRS", "")),
		})
	}
	return out
}

func loadBaskets() []BasketConfig {
	names := splitCSV(getEnv("ENGINE_BASKETS", "total_market"))
	out := make([]BasketConfig, 0, len(names))
	for _, name := range names {
		prefix := "BASKET_" + strings.ToUpper(name)
		out = append(out, BasketConfig{
			Name:  name,
			Pairs: splitCSV(getEnv(prefix+"_PAIRS", "")),
		})
	}
	return out
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
