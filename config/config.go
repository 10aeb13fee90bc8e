package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del orquestador.
type Config struct {
	Trigger   TriggerConfig   `yaml:"trigger"`
	Limits    LimitsConfig    `yaml:"limits"`
	API       APIConfig       `yaml:"api"`
	Workforce WorkforceConfig `yaml:"workforce"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Storage   StorageConfig   `yaml:"storage"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
}

// TriggerConfig controla la cadencia y los gates del trigger controller.
type TriggerConfig struct {
	IntervalHours           float64 `yaml:"interval_hours"`
	StalenessMinutes        int     `yaml:"staleness_minutes"`
	MinGapMinutes           int     `yaml:"min_gap_minutes"`
	CycleTimeoutMinutes     int     `yaml:"cycle_timeout_minutes"`
	WorkforceTimeoutMinutes int     `yaml:"workforce_timeout_minutes"`
}

// LimitsConfig son los límites de trading del limit guard.
// Un valor en cero desactiva esa regla.
type LimitsConfig struct {
	MaxOpenPositions int     `yaml:"max_open_positions"`
	MaxDailyLoss     float64 `yaml:"max_daily_loss"`
	MaxDrawdown      float64 `yaml:"max_drawdown"` // fracción, p.ej. 0.10
}

// APIConfig contiene los base URLs y credenciales de las APIs del exchange.
type APIConfig struct {
	CLOBBase   string `yaml:"clob_base"`
	GammaBase  string `yaml:"gamma_base"`
	APIKey     string `yaml:"api_key"`
	MaxMarkets int    `yaml:"max_markets"`
}

// WorkforceConfig apunta al servicio de decisión.
type WorkforceConfig struct {
	BaseURL       string  `yaml:"base_url"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// PortfolioConfig controla el estado inicial del portfolio.
type PortfolioConfig struct {
	InitialCashUSDC float64 `yaml:"initial_cash_usdc"`
}

// StorageConfig controla dónde se persiste el registro de auditoría.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// AdminConfig controla la API HTTP de administración.
type AdminConfig struct {
	Addr    string `yaml:"addr"` // vacío desactiva la API
	Enabled bool   `yaml:"enabled"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Staleness devuelve el umbral de frescura del cache gate.
func (c *Config) Staleness() time.Duration {
	return time.Duration(c.Trigger.StalenessMinutes) * time.Minute
}

// MinGap devuelve el gap mínimo entre ciclos no programados.
func (c *Config) MinGap() time.Duration {
	return time.Duration(c.Trigger.MinGapMinutes) * time.Minute
}

// CycleTimeout devuelve el timeout global de un ciclo.
func (c *Config) CycleTimeout() time.Duration {
	return time.Duration(c.Trigger.CycleTimeoutMinutes) * time.Minute
}

// WorkforceTimeout devuelve el timeout de la llamada al workforce.
func (c *Config) WorkforceTimeout() time.Duration {
	return time.Duration(c.Trigger.WorkforceTimeoutMinutes) * time.Minute
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("POLYCYCLE_API_KEY"); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv("POLYCYCLE_WORKFORCE_URL"); v != "" {
		cfg.Workforce.BaseURL = v
	}
	if v := os.Getenv("POLYCYCLE_ADMIN_ADDR"); v != "" {
		cfg.Admin.Addr = v
		cfg.Admin.Enabled = true
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.Trigger.IntervalHours <= 0 {
		cfg.Trigger.IntervalHours = 4
	}
	if cfg.Trigger.StalenessMinutes <= 0 {
		cfg.Trigger.StalenessMinutes = 30
	}
	if cfg.Trigger.MinGapMinutes <= 0 {
		cfg.Trigger.MinGapMinutes = 5
	}
	if cfg.Trigger.CycleTimeoutMinutes <= 0 {
		cfg.Trigger.CycleTimeoutMinutes = 10
	}
	if cfg.Trigger.WorkforceTimeoutMinutes <= 0 {
		cfg.Trigger.WorkforceTimeoutMinutes = 5
	}
	if cfg.Limits.MaxOpenPositions < 0 {
		cfg.Limits.MaxOpenPositions = 0
	}
	if cfg.API.CLOBBase == "" {
		cfg.API.CLOBBase = "https://clob.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.MaxMarkets <= 0 {
		cfg.API.MaxMarkets = 50
	}
	if cfg.Workforce.BaseURL == "" {
		cfg.Workforce.BaseURL = "http://localhost:8100"
	}
	if cfg.Portfolio.InitialCashUSDC <= 0 {
		cfg.Portfolio.InitialCashUSDC = 1000
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "polycycle.db"
	}
	if cfg.Admin.Addr == "" {
		cfg.Admin.Addr = "127.0.0.1:8200"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
