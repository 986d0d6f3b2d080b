package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Weight keys accepted under risk.weights. Unknown keys are rejected at load
// time so a typo cannot silently zero a condition.
const (
	WeightBreached     = "breached"
	WeightCancelled    = "cancelled"
	WeightExtremeAge   = "extreme_age"
	WeightMissingLog   = "missing_log"
	WeightMissingOwner = "missing_owner"
)

var knownWeights = map[string]bool{
	WeightBreached:     true,
	WeightCancelled:    true,
	WeightExtremeAge:   true,
	WeightMissingLog:   true,
	WeightMissingOwner: true,
}

var (
	ErrBadDefaultDate     = errors.New("general.default_date must be YYYY-MM-DD")
	ErrBadEvaluationDate  = errors.New("general.evaluation_date must be YYYY-MM-DD")
	ErrBadSLABase         = errors.New("sla.base_days must be positive")
	ErrNegativeWeight     = errors.New("risk.weights values must be non-negative")
	ErrBadExtremeAge      = errors.New("risk.extreme_age_days must be positive")
	ErrBadSevereThreshold = errors.New("sla.severe_breach_days must be positive")
)

// Settings is the full configuration document. It is loaded once by the
// outermost caller and threaded explicitly through every stage constructor.
type Settings struct {
	General General `yaml:"general"`
	SLA     SLA     `yaml:"sla"`
	Risk    Risk    `yaml:"risk"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type General struct {
	// InputPath points at the source spreadsheet (.xlsx, .xlsm or .csv).
	InputPath string `yaml:"input_path"`
	// DefaultDate replaces missing or unparseable submission dates.
	DefaultDate string `yaml:"default_date" default:"2023-01-01"`
	// EvaluationDate pins "today" for lead-time computation. Empty means the
	// current day; setting it makes runs reproducible.
	EvaluationDate string `yaml:"evaluation_date"`
	CacheEnabled   *bool  `yaml:"cache_enabled" default:"true"`
	// CachePath overrides the snapshot location. Empty uses the data dir.
	CachePath string `yaml:"cache_path"`
}

type SLA struct {
	// BaseDays is the single base turnaround; per-type multipliers scale it.
	// A flat per-type day table is expressed with base_days: 1 and absolute
	// multipliers, never as a separate code path.
	BaseDays float64 `yaml:"base_days" default:"30"`
	// Multipliers is keyed by simplified request type (adesao, arp, registro,
	// outros). Missing keys fall back to multiplier 1.
	Multipliers map[string]float64 `yaml:"multipliers"`
	// SevereBreachDays is an independent coarse threshold, unrelated to the
	// per-type target.
	SevereBreachDays int `yaml:"severe_breach_days" default:"120"`
}

type Risk struct {
	// Weights maps condition name to its point value. Conditions missing from
	// the map score zero.
	Weights map[string]int `yaml:"weights"`
	// ExtremeAgeDays is the lead-time threshold for the extreme-age condition.
	ExtremeAgeDays int `yaml:"extreme_age_days" default:"365"`
}

type Server struct {
	Port int `yaml:"port" default:"8000"`
}

type Logging struct {
	Level string `yaml:"level" default:"info"`
}

// ConfigDir returns the XDG config directory for solmon.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "solmon")
}

// DataDir returns the XDG data directory for solmon.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "solmon")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/solmon/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'solmon init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a settings YAML file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML bytes into Settings, applying defaults and validating.
func Parse(data []byte) (*Settings, error) {
	cfg := &Settings{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}

	if cfg.SLA.Multipliers == nil {
		cfg.SLA.Multipliers = map[string]float64{
			"adesao":   1,
			"arp":      1.5,
			"registro": 2,
			"outros":   1,
		}
	}
	if cfg.Risk.Weights == nil {
		cfg.Risk.Weights = map[string]int{
			WeightBreached:     20,
			WeightCancelled:    25,
			WeightExtremeAge:   30,
			WeightMissingLog:   15,
			WeightMissingOwner: 10,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints not expressible as defaults.
func (c *Settings) Validate() error {
	if _, err := time.Parse("2006-01-02", c.General.DefaultDate); err != nil {
		return ErrBadDefaultDate
	}
	if c.General.EvaluationDate != "" {
		if _, err := time.Parse("2006-01-02", c.General.EvaluationDate); err != nil {
			return ErrBadEvaluationDate
		}
	}
	if c.SLA.BaseDays <= 0 {
		return ErrBadSLABase
	}
	if c.SLA.SevereBreachDays <= 0 {
		return ErrBadSevereThreshold
	}
	if c.Risk.ExtremeAgeDays <= 0 {
		return ErrBadExtremeAge
	}
	for name, w := range c.Risk.Weights {
		if !knownWeights[name] {
			return fmt.Errorf("unknown risk weight %q", name)
		}
		if w < 0 {
			return ErrNegativeWeight
		}
	}
	return nil
}

// CacheOn reports whether the snapshot cache is enabled.
func (c *Settings) CacheOn() bool {
	return c.General.CacheEnabled == nil || *c.General.CacheEnabled
}

// CachePath returns the effective snapshot path.
func (c *Settings) CachePath() string {
	if c.General.CachePath != "" {
		return c.General.CachePath
	}
	return filepath.Join(DataDir(), "snapshot.db")
}

// DefaultDate returns the parsed fallback submission date.
func (c *Settings) DefaultDate() time.Time {
	t, _ := time.Parse("2006-01-02", c.General.DefaultDate)
	return t
}

// EvaluationDate returns the pinned evaluation day, or today at midnight UTC.
func (c *Settings) EvaluationDate() time.Time {
	if c.General.EvaluationDate != "" {
		t, _ := time.Parse("2006-01-02", c.General.EvaluationDate)
		return t
	}
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
