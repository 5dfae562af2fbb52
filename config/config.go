package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del bot.
type Config struct {
	Trader     TraderConfig     `yaml:"trader"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Decision   DecisionConfig   `yaml:"decision"`
	Collector  CollectorConfig  `yaml:"collector"`
	API        APIConfig        `yaml:"api"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
}

// TraderConfig controla el loop de decisión y las reglas de salida.
type TraderConfig struct {
	IntervalSeconds    int     `yaml:"interval_seconds"`
	MinRestSeconds     int     `yaml:"min_rest_seconds"` // descanso mínimo aunque el ciclo tarde
	PositionSize       float64 `yaml:"position_size"`    // nocional USD por trade
	MinPrice           float64 `yaml:"min_price"`        // precio <= min_price se rechaza
	StopLossPct        float64 `yaml:"stop_loss_pct"`
	TakeProfitPct      float64 `yaml:"take_profit_pct"`
	TrailingActivation float64 `yaml:"trailing_activation"` // USD de peak PnL
	TrailingCallback   float64 `yaml:"trailing_callback"`   // fracción del peak
	MaxHoldMinutes     int     `yaml:"max_hold_minutes"`
	MinScalpProfit     float64 `yaml:"min_scalp_profit"`
	SignalLookback     int     `yaml:"signal_lookback"` // filas del feed por ciclo
	SeenCapacity       int     `yaml:"seen_capacity"`
	RestartEveryCycles int     `yaml:"restart_every_cycles"`
	HeartbeatSeconds   int     `yaml:"heartbeat_seconds"`
	StopFile           string  `yaml:"stop_file"`
	Strict             bool    `yaml:"strict"` // invariantes rotos hacen panic
}

// ThresholdsConfig controla la adaptación de thresholds.
type ThresholdsConfig struct {
	Path      string `yaml:"path"`
	Window    int    `yaml:"window"`
	MinSample int    `yaml:"min_sample"`
}

// DecisionConfig son los cortes fijos de la matriz.
type DecisionConfig struct {
	DiversityCutoff float64 `yaml:"diversity_cutoff"`
	NewsQuietCutoff float64 `yaml:"news_quiet_cutoff"`
}

// CollectorConfig controla el productor de señales.
type CollectorConfig struct {
	Enabled            bool `yaml:"enabled"`
	IntervalSeconds    int  `yaml:"interval_seconds"`
	MinRestSeconds     int  `yaml:"min_rest_seconds"`
	MaxPosts           int  `yaml:"max_posts"`
	SeenPosts          int  `yaml:"seen_posts"`
	RefreshEveryCycles int  `yaml:"refresh_every_cycles"`
	RestartEveryCycles int  `yaml:"restart_every_cycles"`
	PauseSeconds       int  `yaml:"pause_seconds"` // entre tickers, con jitter
}

// APIConfig contiene los base URLs de los servicios externos.
type APIConfig struct {
	QuoteBase   string `yaml:"quote_base"`
	SidecarBase string `yaml:"sidecar_base"`
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// RedisConfig habilita el cache compartido de precios. Sin addr no se usa.
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	PriceTTLSeconds int    `yaml:"price_ttl_seconds"`
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

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	setDefaults(&cfg)

	return &cfg, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// TraderInterval devuelve la cadencia del loop de decisión.
func (c *Config) TraderInterval() time.Duration { return seconds(c.Trader.IntervalSeconds) }

// TraderMinRest devuelve el descanso mínimo entre ciclos.
func (c *Config) TraderMinRest() time.Duration { return seconds(c.Trader.MinRestSeconds) }

// MaxHold devuelve la edad a partir de la cual un ganador se cierra por tiempo.
func (c *Config) MaxHold() time.Duration {
	return time.Duration(c.Trader.MaxHoldMinutes) * time.Minute
}

// Heartbeat devuelve el período del heartbeat.
func (c *Config) Heartbeat() time.Duration { return seconds(c.Trader.HeartbeatSeconds) }

// CollectorInterval devuelve la cadencia del collector.
func (c *Config) CollectorInterval() time.Duration { return seconds(c.Collector.IntervalSeconds) }

// CollectorMinRest devuelve el descanso mínimo del collector.
func (c *Config) CollectorMinRest() time.Duration { return seconds(c.Collector.MinRestSeconds) }

// CollectorPause devuelve la pausa base entre tickers.
func (c *Config) CollectorPause() time.Duration { return seconds(c.Collector.PauseSeconds) }

// PriceTTL devuelve cuánto vale un precio cacheado en Redis.
func (c *Config) PriceTTL() time.Duration { return seconds(c.Redis.PriceTTLSeconds) }

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SENTIBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SENTIBOT_SIDECAR"); v != "" {
		cfg.API.SidecarBase = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_DB %q: %w", v, err)
		}
		cfg.Redis.DB = db
	}
	return nil
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	t := &cfg.Trader
	if t.IntervalSeconds <= 0 {
		t.IntervalSeconds = 10
	}
	if t.MinRestSeconds <= 0 {
		t.MinRestSeconds = 10
	}
	if t.PositionSize <= 0 {
		t.PositionSize = 100000
	}
	if t.MinPrice <= 0 {
		t.MinPrice = 5
	}
	if t.StopLossPct <= 0 {
		t.StopLossPct = 0.01
	}
	if t.TakeProfitPct <= 0 {
		t.TakeProfitPct = 0.05
	}
	if t.TrailingActivation <= 0 {
		t.TrailingActivation = 100
	}
	if t.TrailingCallback <= 0 {
		t.TrailingCallback = 0.05
	}
	if t.MaxHoldMinutes <= 0 {
		t.MaxHoldMinutes = 30
	}
	if t.MinScalpProfit <= 0 {
		t.MinScalpProfit = 2
	}
	if t.SignalLookback <= 0 {
		t.SignalLookback = 5
	}
	if t.SeenCapacity <= 0 {
		t.SeenCapacity = 5000
	}
	if t.RestartEveryCycles < 0 {
		t.RestartEveryCycles = 0
	} else if t.RestartEveryCycles == 0 {
		t.RestartEveryCycles = 20
	}
	if t.HeartbeatSeconds <= 0 {
		t.HeartbeatSeconds = 30
	}
	if t.StopFile == "" {
		t.StopFile = "STOP"
	}

	th := &cfg.Thresholds
	if th.Path == "" {
		th.Path = "trading_config.json"
	}
	if th.Window <= 0 {
		th.Window = 10
	}
	if th.MinSample <= 0 {
		th.MinSample = 5
	}

	if cfg.Decision.DiversityCutoff <= 0 {
		cfg.Decision.DiversityCutoff = 0.7
	}
	if cfg.Decision.NewsQuietCutoff <= 0 {
		cfg.Decision.NewsQuietCutoff = 0.2
	}

	co := &cfg.Collector
	if co.IntervalSeconds <= 0 {
		co.IntervalSeconds = 120
	}
	if co.MinRestSeconds <= 0 {
		co.MinRestSeconds = 10
	}
	if co.MaxPosts <= 0 {
		co.MaxPosts = 15
	}
	if co.SeenPosts <= 0 {
		co.SeenPosts = 2000
	}
	if co.RefreshEveryCycles <= 0 {
		co.RefreshEveryCycles = 15
	}
	if co.RestartEveryCycles <= 0 {
		co.RestartEveryCycles = 20
	}
	if co.PauseSeconds < 0 {
		co.PauseSeconds = 0
	}

	if cfg.API.QuoteBase == "" {
		cfg.API.QuoteBase = "https://query1.finance.yahoo.com"
	}
	if cfg.API.SidecarBase == "" {
		cfg.API.SidecarBase = "http://127.0.0.1:8765"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "sentibot.db"
	}
	if cfg.Redis.PriceTTLSeconds <= 0 {
		cfg.Redis.PriceTTLSeconds = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
