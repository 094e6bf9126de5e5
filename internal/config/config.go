package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"QuantSentinel/internal/model"
)

// MaxPeriod bounds quant.period so next-due ticks stay far from overflow.
const MaxPeriod = math.MaxUint32

// AssetConfig registers one asset and the holding every seeded account starts
// with.
type AssetConfig struct {
	Symbol    string `yaml:"symbol"`
	Multiples uint64 `yaml:"multiples"`
	Stable    bool   `yaml:"stable"`
	// BasePrice is the simulated price in stable smallest units per whole
	// unit. Ignored for the stable asset.
	BasePrice uint64 `yaml:"base_price"`
	Weight    uint32 `yaml:"weight"`
	// Amount is decimal smallest units so it can exceed 64 bits.
	Amount string `yaml:"amount"`
}

// Config holds all application configuration.
type Config struct {
	InstanceID string `yaml:"instance_id"`
	Owner      string `yaml:"owner"`

	Quant struct {
		InvestmentRatio uint64 `yaml:"investment_ratio"`
		Period          uint64 `yaml:"period"`
		TickSpec        string `yaml:"tick_spec"`
		StartTick       uint64 `yaml:"start_tick"`
	} `yaml:"quant"`

	Assets   []AssetConfig `yaml:"assets"`
	Accounts []string      `yaml:"accounts"`

	// Funding seeds execution-resource balances reservations are paid from.
	Funding map[string]uint64 `yaml:"funding"`

	Reservation struct {
		DefaultAmount uint64 `yaml:"default_amount"`
		DefaultTicks  uint64 `yaml:"default_ticks"`
		CallCost      uint64 `yaml:"call_cost"`
		AlertAmount   uint64 `yaml:"alert_amount"`
		AlertTicks    uint64 `yaml:"alert_ticks"`
	} `yaml:"reservation"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"data_source"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
	StateFile string `yaml:"state_file"`
	Proxy     string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("ORACLE_BASE_URL"); v != "" {
		cfg.DataSource.BaseURL = v
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		cfg.DataSource.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("STATE_FILE"); v != "" {
		cfg.StateFile = v
	}
	if v := os.Getenv("TICK_SPEC"); v != "" {
		cfg.Quant.TickSpec = v
	}
	if v := os.Getenv("METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("OWNER"); v != "" {
		cfg.Owner = v
	}
	if v := os.Getenv("INVESTMENT_RATIO"); v != "" {
		if ratio, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Quant.InvestmentRatio = ratio
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.InstanceID == "" {
		c.InstanceID = "onchain-quant"
	}
	if c.Owner == "" {
		c.Owner = "owner"
	}
	if c.Quant.InvestmentRatio == 0 {
		c.Quant.InvestmentRatio = 100_000 // 10%
	}
	if c.Quant.Period == 0 {
		c.Quant.Period = 2
	}
	if c.Quant.TickSpec == "" {
		c.Quant.TickSpec = "@every 6s"
	}
	if c.Quant.StartTick == 0 {
		c.Quant.StartTick = 1
	}
	if len(c.Assets) == 0 {
		c.Assets = []AssetConfig{
			{Symbol: "ocqBTC", Multiples: 100_000_000, BasePrice: 30_000_000000, Weight: 300},
			{Symbol: "ocqDOT", Multiples: 10_000_000_000, BasePrice: 5_000000, Weight: 200},
			{Symbol: "ocqUSDT", Multiples: 1_000_000, Stable: true, Amount: "100000000000"},
		}
	}
	if len(c.Accounts) == 0 {
		c.Accounts = []string{"alice", "bob", "carol", "dave"}
	}
	if c.Funding == nil {
		c.Funding = map[string]uint64{c.Owner: 1_000_000_000}
	}
	if c.Reservation.DefaultAmount == 0 {
		c.Reservation.DefaultAmount = 50_000_000
	}
	if c.Reservation.DefaultTicks == 0 {
		c.Reservation.DefaultTicks = 1_296_000
	}
	if c.Reservation.CallCost == 0 {
		c.Reservation.CallCost = 10_000
	}
	if c.Reservation.AlertAmount == 0 {
		c.Reservation.AlertAmount = 5_000
	}
	if c.Reservation.AlertTicks == 0 {
		c.Reservation.AlertTicks = 100
	}
	if c.StateFile == "" {
		c.StateFile = "data/quant_state.json"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/quant_sentinel.db"
	}
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if c.Quant.InvestmentRatio > model.RatioScale {
		return fmt.Errorf("quant.investment_ratio must be at most %d", model.RatioScale)
	}
	if c.Quant.Period == 0 || c.Quant.Period > MaxPeriod {
		return fmt.Errorf("quant.period must be between 1 and %d", uint64(MaxPeriod))
	}
	if c.Owner == c.InstanceID {
		return fmt.Errorf("owner must differ from instance_id")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if _, err := c.Registry(); err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	for _, a := range c.Assets {
		if a.Multiples == 0 {
			return fmt.Errorf("asset %s: multiples must be positive", a.Symbol)
		}
		if !a.Stable && a.BasePrice == 0 && c.DataSource.BaseURL == "" {
			return fmt.Errorf("asset %s: base_price is required without a data source", a.Symbol)
		}
		if a.Amount != "" {
			if _, err := model.ParseAmount(a.Amount); err != nil {
				return fmt.Errorf("asset %s: amount: %w", a.Symbol, err)
			}
		}
	}
	if c.Reservation.CallCost > c.Reservation.DefaultAmount {
		return fmt.Errorf("reservation.call_cost exceeds reservation.default_amount")
	}
	return nil
}

// Registry builds the asset registry.
func (c *Config) Registry() (*model.Registry, error) {
	assets := make([]model.Asset, 0, len(c.Assets))
	for _, a := range c.Assets {
		assets = append(assets, model.Asset{Symbol: a.Symbol, Multiples: a.Multiples, Stable: a.Stable})
	}
	return model.NewRegistry(assets)
}

// Prototype returns the holdings every seeded account starts with.
func (c *Config) Prototype() ([]model.Holding, error) {
	rows := make([]model.Holding, 0, len(c.Assets))
	for _, a := range c.Assets {
		h := model.Holding{Symbol: a.Symbol, Weight: a.Weight}
		if a.Amount != "" {
			amt, err := model.ParseAmount(a.Amount)
			if err != nil {
				return nil, fmt.Errorf("asset %s: %w", a.Symbol, err)
			}
			h.Amount = amt
		}
		rows = append(rows, h)
	}
	return rows, nil
}

// SeededAccounts lists the accounts given the prototype holdings at setup,
// the instance itself included.
func (c *Config) SeededAccounts() []model.Account {
	out := make([]model.Account, 0, len(c.Accounts)+1)
	for _, a := range c.Accounts {
		out = append(out, model.Account(a))
	}
	return append(out, model.Account(c.InstanceID))
}

// Balances returns the initial execution-resource balances.
func (c *Config) Balances() map[model.Account]uint64 {
	out := make(map[model.Account]uint64, len(c.Funding))
	for acc, bal := range c.Funding {
		out[model.Account(acc)] = bal
	}
	return out
}
