package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/perpgate/perpgate/internal/gates"
	"github.com/perpgate/perpgate/internal/notify"
)

// Config is the top-level application configuration. Values come from an
// optional YAML file plus PG_* environment overrides; every threshold
// defaults to the production values in gates.DefaultConfig.
type Config struct {
	ListenAddr string
	AuthKey    string

	Symbols []string

	KV struct {
		Backend string // "redis" or "memory"
		Addr    string
		DB      int
	}

	OKXBaseURL string

	Telegram notify.TelegramConfig

	// PostgresDSN enables the alert archive when non-empty.
	PostgresDSN string

	Gates gates.Config
}

// Load reads configuration from the optional file at path and the PG_*
// environment. Unrecognized option names in the file are ignored; every
// recognized option carries a registered default.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := gates.DefaultConfig()

	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("auth_key", "")
	v.SetDefault("symbols", []string{"BTCUSDT", "ETHUSDT"})

	v.SetDefault("kv.backend", "redis")
	v.SetDefault("kv.addr", "localhost:6379")
	v.SetDefault("kv.db", 0)
	v.SetDefault("okx_base_url", "")
	v.SetDefault("postgres_dsn", "")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	// The closed set of recognized gate options.
	v.SetDefault("cooldown_minutes", int(defaults.Cooldown.Minutes()))
	v.SetDefault("default_mode", "")
	v.SetDefault("default_modes", []string{string(gates.ModeSwing)})
	v.SetDefault("default_risk_profile", defaults.DefaultRiskProfile)
	v.SetDefault("momentum_min", defaults.MomentumMin)
	v.SetDefault("shock_oi_min", defaults.ShockOIMin)
	v.SetDefault("shock_price_min", defaults.ShockPriceMin)
	v.SetDefault("edge_pct_1h", defaults.EdgePct1h)
	v.SetDefault("swing_min_oi_pct", defaults.SwingMinOIPct)
	v.SetDefault("swing_reversal_min_5m", defaults.SwingReversalMin5m)
	v.SetDefault("scalp_sweep_lookback", defaults.ScalpSweepLookback)
	v.SetDefault("force_bypass_warmup", defaults.ForceBypassWarmup)
	v.SetDefault("macro_enabled", defaults.Macro.Enabled)
	v.SetDefault("macro_btc_symbol", defaults.Macro.BTCSymbol)
	v.SetDefault("macro_btc_4h_price_min", defaults.Macro.Price4hMin)
	v.SetDefault("macro_btc_4h_oi_min", defaults.Macro.OI4hMin)
	v.SetDefault("macro_block_shorts", defaults.Macro.BlockShorts)
	v.SetDefault("regime_enabled", defaults.Regime.Enabled)
	v.SetDefault("regime_contraction_price_max", defaults.Regime.ContractionPriceMax)
	v.SetDefault("regime_contraction_oi_max", defaults.Regime.ContractionOIMax)
	v.SetDefault("regime_edge_widen_mult", defaults.Regime.EdgeWidenMult)
	v.SetDefault("regime_expansion_price_min", defaults.Regime.ExpansionPriceMin)
	v.SetDefault("regime_expansion_oi_min", defaults.Regime.ExpansionOIMin)
	v.SetDefault("leverage_enabled", defaults.Leverage.Enabled)
	v.SetDefault("leverage_risk_budget_pct", defaults.Leverage.RiskBudgetPct)
	v.SetDefault("leverage_max_cap", defaults.Leverage.MaxCap)
	v.SetDefault("heartbeat_key", defaults.HeartbeatKey)
	v.SetDefault("heartbeat_ttl_seconds", int(defaults.HeartbeatTTL.Seconds()))
	v.SetDefault("drilldown_base_url", defaults.DrilldownBaseURL)
	v.SetDefault("workers", defaults.Workers)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	cfg.ListenAddr = v.GetString("listen_addr")
	cfg.AuthKey = v.GetString("auth_key")
	cfg.Symbols = v.GetStringSlice("symbols")
	cfg.KV.Backend = v.GetString("kv.backend")
	cfg.KV.Addr = v.GetString("kv.addr")
	cfg.KV.DB = v.GetInt("kv.db")
	cfg.OKXBaseURL = v.GetString("okx_base_url")
	cfg.PostgresDSN = v.GetString("postgres_dsn")
	cfg.Telegram.Enabled = v.GetBool("telegram.enabled")
	cfg.Telegram.BotToken = v.GetString("telegram.bot_token")
	cfg.Telegram.ChatID = v.GetString("telegram.chat_id")

	g := defaults
	g.Cooldown = time.Duration(v.GetInt("cooldown_minutes")) * time.Minute
	g.DefaultRiskProfile = v.GetString("default_risk_profile")
	g.MomentumMin = v.GetFloat64("momentum_min")
	g.ShockOIMin = v.GetFloat64("shock_oi_min")
	g.ShockPriceMin = v.GetFloat64("shock_price_min")
	g.EdgePct1h = v.GetFloat64("edge_pct_1h")
	g.SwingMinOIPct = v.GetFloat64("swing_min_oi_pct")
	g.SwingReversalMin5m = v.GetFloat64("swing_reversal_min_5m")
	g.ScalpSweepLookback = v.GetInt("scalp_sweep_lookback")
	g.ForceBypassWarmup = v.GetBool("force_bypass_warmup")
	g.Macro.Enabled = v.GetBool("macro_enabled")
	g.Macro.BTCSymbol = v.GetString("macro_btc_symbol")
	g.Macro.Price4hMin = v.GetFloat64("macro_btc_4h_price_min")
	g.Macro.OI4hMin = v.GetFloat64("macro_btc_4h_oi_min")
	g.Macro.BlockShorts = v.GetBool("macro_block_shorts")
	g.Regime.Enabled = v.GetBool("regime_enabled")
	g.Regime.ContractionPriceMax = v.GetFloat64("regime_contraction_price_max")
	g.Regime.ContractionOIMax = v.GetFloat64("regime_contraction_oi_max")
	g.Regime.EdgeWidenMult = v.GetFloat64("regime_edge_widen_mult")
	g.Regime.ExpansionPriceMin = v.GetFloat64("regime_expansion_price_min")
	g.Regime.ExpansionOIMin = v.GetFloat64("regime_expansion_oi_min")
	g.Leverage.Enabled = v.GetBool("leverage_enabled")
	g.Leverage.RiskBudgetPct = v.GetFloat64("leverage_risk_budget_pct")
	g.Leverage.MaxCap = v.GetInt("leverage_max_cap")
	g.HeartbeatKey = v.GetString("heartbeat_key")
	g.HeartbeatTTL = time.Duration(v.GetInt("heartbeat_ttl_seconds")) * time.Second
	g.DrilldownBaseURL = v.GetString("drilldown_base_url")
	g.Workers = v.GetInt("workers")

	g.DefaultModes = parseModes(v.GetString("default_mode"), v.GetStringSlice("default_modes"))
	cfg.Gates = g

	return cfg, nil
}

// parseModes resolves DEFAULT_MODE (single, wins when set) and
// DEFAULT_MODES. Unknown names are dropped; an empty result falls back to
// swing.
func parseModes(single string, many []string) []gates.Mode {
	var raw []string
	if single != "" {
		raw = []string{single}
	} else {
		raw = many
	}
	out := make([]gates.Mode, 0, len(raw))
	for _, s := range raw {
		if m, ok := gates.ParseMode(strings.ToLower(strings.TrimSpace(s))); ok {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = []gates.Mode{gates.ModeSwing}
	}
	return out
}
