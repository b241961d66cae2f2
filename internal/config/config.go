// Package config provides Viper-based configuration loading for the planner binaries.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Tool re-production policies.
const (
	// ToolPolicyForbid vetoes producing a tool the agent has already made once.
	ToolPolicyForbid = "forbid"
	// ToolPolicyDeprioritize allows re-production but ranks recipes that need it last.
	ToolPolicyDeprioritize = "deprioritize"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is "stderr", "stdout" or a file path. Plans are printed on stdout, so
	// the CLI keeps logs elsewhere.
	Output string `mapstructure:"output"`
	// TraceSample thins the debug search trace: 0 logs every event; n > 0 logs the
	// first n of each message per second and every nth after that.
	TraceSample int `mapstructure:"trace_sample"`
}

// PlannerConfig holds the search-guidance tuning parameters.
type PlannerConfig struct {
	// Agent is the agent ID used for state and tasks when none is given.
	Agent string `mapstructure:"agent"`
	// MaxDepth is the call-chain depth beyond which a branch is pruned.
	MaxDepth int `mapstructure:"max_depth"`
	// CyclePenalty is added to a recipe requiring an item already pursued in the call chain.
	CyclePenalty int `mapstructure:"cycle_penalty"`
	// ToolPenalty is added once per distinct tool a recipe requires.
	ToolPenalty int `mapstructure:"tool_penalty"`
	// TimeWeight multiplies a recipe's time cost.
	TimeWeight int `mapstructure:"time_weight"`
	// RemakePenalty is added per required tool that was made before but is no longer held.
	// Only used with ToolPolicyDeprioritize.
	RemakePenalty int `mapstructure:"remake_penalty"`
	// ToolPolicy is "forbid" or "deprioritize".
	ToolPolicy string `mapstructure:"tool_policy"`
	// SuppressOptionalTools enables the goal-relative optional tool pruning.
	SuppressOptionalTools bool `mapstructure:"suppress_optional_tools"`
	// SuppressScript is an optional Lua file defining suppress(agent, item, depth, in_goal, is_tool).
	SuppressScript string `mapstructure:"suppress_script"`
	// ScriptInstructionLimit caps Lua opcodes per hook call; 0 uses the scripting default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// DatabaseConfig holds PostgreSQL connection settings for the rulebook store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// ServerConfig holds plan service settings.
type ServerConfig struct {
	// GRPCHost is the bind address for the plan service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the plan service.
	GRPCPort int `mapstructure:"grpc_port"`
	// MetricsPort serves Prometheus metrics on /metrics; 0 disables it.
	MetricsPort int `mapstructure:"metrics_port"`
	// RequestTimeout bounds a single plan request.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// DomainCacheSize caps the compiled domains kept in memory; the least recently
	// used is evicted first.
	DomainCacheSize int `mapstructure:"domain_cache_size"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.GRPCHost, s.GRPCPort)
}

// Config is the top-level application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validatePlanner(c.Planner); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDatabase(c.Database); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if l.Output == "" {
		return fmt.Errorf("logging.output must not be empty")
	}
	if l.TraceSample < 0 {
		return fmt.Errorf("logging.trace_sample must be >= 0, got %d", l.TraceSample)
	}
	return nil
}

// validatePlanner enforces the ranking contract: cycle risk outweighs tool count,
// which outweighs time cost.
func validatePlanner(p PlannerConfig) error {
	var errs []string
	if p.Agent == "" {
		errs = append(errs, "planner.agent must not be empty")
	}
	if p.MaxDepth < 1 {
		errs = append(errs, fmt.Sprintf("planner.max_depth must be >= 1, got %d", p.MaxDepth))
	}
	if p.ToolPenalty < 1 {
		errs = append(errs, fmt.Sprintf("planner.tool_penalty must be >= 1, got %d", p.ToolPenalty))
	}
	if p.CyclePenalty <= p.ToolPenalty {
		errs = append(errs, fmt.Sprintf("planner.cycle_penalty (%d) must exceed planner.tool_penalty (%d)", p.CyclePenalty, p.ToolPenalty))
	}
	if p.TimeWeight < 0 {
		errs = append(errs, fmt.Sprintf("planner.time_weight must be >= 0, got %d", p.TimeWeight))
	}
	if p.RemakePenalty < 0 {
		errs = append(errs, fmt.Sprintf("planner.remake_penalty must be >= 0, got %d", p.RemakePenalty))
	}
	if p.ToolPolicy != ToolPolicyForbid && p.ToolPolicy != ToolPolicyDeprioritize {
		errs = append(errs, fmt.Sprintf("planner.tool_policy must be one of [forbid, deprioritize], got %q", p.ToolPolicy))
	}
	if p.ScriptInstructionLimit < 0 {
		errs = append(errs, "planner.script_instruction_limit must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.GRPCHost == "" {
		errs = append(errs, "server.grpc_host must not be empty")
	}
	if s.GRPCPort < 1 || s.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.grpc_port must be 1-65535, got %d", s.GRPCPort))
	}
	if s.MetricsPort < 0 || s.MetricsPort > 65535 {
		errs = append(errs, fmt.Sprintf("server.metrics_port must be 0-65535, got %d", s.MetricsPort))
	}
	if s.RequestTimeout < 0 {
		errs = append(errs, "server.request_timeout must not be negative")
	}
	if s.DomainCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("server.domain_cache_size must be >= 1, got %d", s.DomainCacheSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path yields the defaults plus
// environment overrides.
//
// Precondition: path is empty or names a readable YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with AUTOHTN_ prefix
	v.SetEnvPrefix("AUTOHTN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the validated default configuration.
//
// Postcondition: Default().Validate() == nil.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.trace_sample", 0)

	v.SetDefault("planner.agent", "agent")
	v.SetDefault("planner.max_depth", 80)
	v.SetDefault("planner.cycle_penalty", 1000)
	v.SetDefault("planner.tool_penalty", 10)
	v.SetDefault("planner.time_weight", 1)
	v.SetDefault("planner.remake_penalty", 100)
	v.SetDefault("planner.tool_policy", ToolPolicyForbid)
	v.SetDefault("planner.suppress_optional_tools", true)
	v.SetDefault("planner.suppress_script", "")
	v.SetDefault("planner.script_instruction_limit", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "autohtn")
	v.SetDefault("database.password", "autohtn")
	v.SetDefault("database.name", "autohtn")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("server.grpc_host", "127.0.0.1")
	v.SetDefault("server.grpc_port", 50061)
	v.SetDefault("server.metrics_port", 9161)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.domain_cache_size", 64)
}
