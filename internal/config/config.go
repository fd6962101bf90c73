package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hashtagcpt/psychophysics-parrot/internal/observer"
	"github.com/hashtagcpt/psychophysics-parrot/internal/session"
	"github.com/hashtagcpt/psychophysics-parrot/internal/staircase"
)

// Config is the top-level configuration for parrot
type Config struct {
	Verbose   bool            `mapstructure:"verbose"`
	Staircase StaircaseConfig `mapstructure:"staircase"`
	Observer  ObserverConfig  `mapstructure:"observer"`
	Session   SessionConfig   `mapstructure:"session"`
	Store     StoreConfig     `mapstructure:"store"`
	Server    ServerConfig    `mapstructure:"server"`
}

// StaircaseConfig mirrors staircase.Config. MaxCeilingIncrements of 0 means unlimited.
type StaircaseConfig struct {
	Levels               []float64 `mapstructure:"levels"`
	InitStepSize         float64   `mapstructure:"init_step_size"`
	StepSize             float64   `mapstructure:"step_size"`
	RightRule            int       `mapstructure:"right_rule"`
	WrongRule            int       `mapstructure:"wrong_rule"`
	MaxTrials            int       `mapstructure:"max_trials"`
	MaxReversals         int       `mapstructure:"max_revs"`
	StartLevel           *float64  `mapstructure:"start_level"` // nil: middle of the grid
	CeilingBehaviour     string    `mapstructure:"ceiling_behaviour"`
	MaxCeilingIncrements float64   `mapstructure:"max_ceiling_increments"`
}

// ObserverConfig controls the simulated subject
type ObserverConfig struct {
	NoiseSD  float64 `mapstructure:"noise_sd"`
	Seed     uint64  `mapstructure:"seed"`
	Transfer string  `mapstructure:"transfer"` // "db" or "linear"
}

// SessionConfig controls the experiment loop
type SessionConfig struct {
	Tracks       int `mapstructure:"tracks"`
	MaxResponses int `mapstructure:"max_responses"`
}

// StoreConfig locates the SQLite database
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds listen addresses for serve
type ServerConfig struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`
}

const (
	TransferDecibel = "db"
	TransferLinear  = "linear"
)

// envKeys are bound explicitly so environment variables reach Unmarshal
// even when no config file sets them.
var envKeys = []string{
	"verbose", "staircase.levels",
	"staircase.init_step_size", "staircase.step_size", "staircase.right_rule", "staircase.wrong_rule",
	"staircase.max_trials", "staircase.max_revs", "staircase.start_level",
	"staircase.ceiling_behaviour", "staircase.max_ceiling_increments",
	"observer.noise_sd", "observer.seed", "observer.transfer",
	"session.tracks", "session.max_responses",
	"store.path",
	"server.grpc_addr", "server.http_addr",
}

// Init points v at cfgFile, or at .parrot.yaml in the working directory, and
// enables PARROT_* environment overrides (PARROT_STORE_PATH for store.path).
// A missing default config file is not an error; a missing explicit one is.
func Init(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		v.AddConfigPath(cwd)
		v.SetConfigType("yaml")
		v.SetConfigName(".parrot")
	}

	v.SetEnvPrefix("PARROT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=value pairs from each existing path into the
// environment without overriding variables that are already set.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load unmarshals v and fills keys that were never set with defaults.
// An explicitly set zero is kept so Validate can reject it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg, v.IsSet)

	return cfg, nil
}

// applyDefaults sets default values for keys isSet reports as unset; a nil
// isSet treats every key as unset. The staircase defaults are the
// 3-down/1-up duration grid of the demo experiment.
func applyDefaults(cfg *Config, isSet func(key string) bool) {
	unset := func(key string) bool { return isSet == nil || !isSet(key) }

	sc := &cfg.Staircase
	if unset("staircase.levels") && len(sc.Levels) == 0 {
		sc.Levels = []float64{8, 10, 12, 14, 16, 32, 64}
		if sc.StartLevel == nil {
			start := 12.0
			sc.StartLevel = &start
		}
	}
	if sc.StartLevel == nil && len(sc.Levels) > 0 {
		start := sc.Levels[len(sc.Levels)/2]
		sc.StartLevel = &start
	}
	if unset("staircase.init_step_size") {
		sc.InitStepSize = 6
	}
	if unset("staircase.step_size") {
		sc.StepSize = 3
	}
	if unset("staircase.right_rule") {
		sc.RightRule = 3
	}
	if unset("staircase.wrong_rule") {
		sc.WrongRule = 1
	}
	if unset("staircase.max_trials") {
		sc.MaxTrials = 100
	}
	if unset("staircase.max_revs") {
		sc.MaxReversals = 10
	}
	if unset("staircase.ceiling_behaviour") {
		sc.CeilingBehaviour = string(staircase.Limiting)
	}

	if unset("observer.noise_sd") {
		cfg.Observer.NoiseSD = observer.DefaultNoiseSD
	}
	if unset("observer.seed") {
		cfg.Observer.Seed = 1
	}
	if unset("observer.transfer") {
		cfg.Observer.Transfer = TransferDecibel
	}

	if unset("session.tracks") {
		cfg.Session.Tracks = 1
	}
	if unset("session.max_responses") {
		cfg.Session.MaxResponses = session.DefaultMaxResponses
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "parrot.db"
	}

	if cfg.Server.GRPCAddr == "" {
		cfg.Server.GRPCAddr = ":50051"
	}
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = ":8080"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Session.Tracks < 1 {
		return fmt.Errorf("session tracks must be at least 1, got %d", c.Session.Tracks)
	}
	if c.Session.MaxResponses < 1 {
		return fmt.Errorf("session max_responses must be at least 1, got %d", c.Session.MaxResponses)
	}
	if c.Observer.NoiseSD <= 0 {
		return fmt.Errorf("observer noise_sd must be positive, got %g", c.Observer.NoiseSD)
	}
	switch c.Observer.Transfer {
	case TransferDecibel, TransferLinear:
	default:
		return fmt.Errorf("invalid observer transfer: %s (must be db or linear)", c.Observer.Transfer)
	}
	if c.Staircase.MaxCeilingIncrements < 0 {
		return fmt.Errorf("staircase max_ceiling_increments must not be negative, got %g", c.Staircase.MaxCeilingIncrements)
	}
	if err := c.ToStaircaseConfig().Validate(); err != nil {
		return fmt.Errorf("staircase: %w", err)
	}
	return nil
}

// ToStaircaseConfig converts the staircase section. Call after Load.
func (c *Config) ToStaircaseConfig() staircase.Config {
	sc := c.Staircase
	out := staircase.Config{
		Levels:               append([]float64(nil), sc.Levels...),
		InitStepSize:         sc.InitStepSize,
		StepSize:             sc.StepSize,
		RightRule:            sc.RightRule,
		WrongRule:            sc.WrongRule,
		MaxTrials:            sc.MaxTrials,
		MaxReversals:         sc.MaxReversals,
		StartLevel:           math.NaN(),
		Verbose:              c.Verbose,
		CeilingBehaviour:     staircase.CeilingBehaviour(sc.CeilingBehaviour),
		MaxCeilingIncrements: sc.MaxCeilingIncrements,
	}
	if sc.StartLevel != nil {
		out.StartLevel = *sc.StartLevel
	}
	if out.MaxCeilingIncrements == 0 {
		out.MaxCeilingIncrements = math.Inf(1)
	}
	return out
}

// Transfer returns the observer's level-to-signal mapping.
func (c *Config) Transfer() observer.Transfer {
	if c.Observer.Transfer == TransferLinear {
		return observer.Identity
	}
	return observer.DecibelToLinear
}
