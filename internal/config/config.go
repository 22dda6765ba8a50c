// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Watch   WatchConfig
	Tracker TrackerConfig
	Server  ServerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// WatchConfig holds event source configuration.
type WatchConfig struct {
	// Root is the file or directory to watch. Directories are watched
	// recursively.
	Root string
	// IgnorePatterns are optional filepath.Match patterns checked
	// against base names. Empty by default.
	IgnorePatterns []string
}

// TrackerConfig holds change tracker configuration.
type TrackerConfig struct {
	// ChangeLimit caps the combined size of the new and removed sets.
	ChangeLimit int
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Bind         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// RateLimit is requests per second per client IP; 0 disables
	// rate limiting.
	RateLimit float64
	RateBurst int
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Bind, s.Port)
}

// Load builds configuration from the given command-line arguments with
// precedence:
//  1. Command-line flags (highest priority).
//  2. Environment variables.
//  3. .env file.
//  4. Default values (lowest priority).
//
// The watch root is the single positional argument; it may also be set
// via the WATCH_PATH environment variable.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	limit := fs.String("limit", "", "Maximum number of changes to track (default: 10000)")
	bind := fs.String("bind", "", "Bind address for the HTTP server (default: 0.0.0.0)")
	port := fs.String("port", "", "Port for the HTTP server (default: 8080)")
	ignore := fs.String("ignore", "", "Comma-separated ignore patterns matched against base names")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	var logLevel string
	fs.StringVar(&logLevel, "log-level", "", "Log level (error, warn, info, debug, trace)")
	fs.StringVar(&logLevel, "l", "", "Log level (shorthand)")

	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	rateLimit := fs.String("rate-limit", "", "Requests per second per client, 0 disables (default: 0)")
	rateBurst := fs.String("rate-burst", "", "Rate limiter burst size (default: 10)")

	// flag stops scanning at the first positional argument; accept the
	// watch path and flags in either order by reparsing the remainder
	// after capturing each positional.
	var positionals []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		positionals = append(positionals, fs.Arg(0))
		rest = fs.Args()[1:]
	}
	if len(positionals) > 1 {
		return nil, fmt.Errorf("unexpected argument %q", positionals[1])
	}
	root := ""
	if len(positionals) == 1 {
		root = positionals[0]
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(logLevel, "LOG_LEVEL", "info"),
		},
		Watch: WatchConfig{
			Root: getConfigValue(root, "WATCH_PATH", ""),
		},
		Server: ServerConfig{
			Bind: getConfigValue(*bind, "BIND_ADDR", "0.0.0.0"),
			Port: getConfigValue(*port, "PORT", "8080"),
		},
	}

	// A numeric value that does not parse is a fatal argument error, not
	// an invitation to fall back to the default.
	var err error
	if cfg.Tracker.ChangeLimit, err = getIntConfigValue(*limit, "CHANGE_LIMIT", 10000); err != nil {
		return nil, fmt.Errorf("invalid change limit: %w", err)
	}
	if cfg.Server.RateLimit, err = getFloatConfigValue(*rateLimit, "RATE_LIMIT", 0); err != nil {
		return nil, fmt.Errorf("invalid rate limit: %w", err)
	}
	if cfg.Server.RateBurst, err = getIntConfigValue(*rateBurst, "RATE_BURST", 10); err != nil {
		return nil, fmt.Errorf("invalid rate burst: %w", err)
	}

	if patterns := getConfigValue(*ignore, "IGNORE_PATTERNS", ""); patterns != "" {
		for _, p := range strings.Split(patterns, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Watch.IgnorePatterns = append(cfg.Watch.IgnorePatterns, p)
			}
		}
	}

	// Parse server timeouts.
	if cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	if err := cfg.expandWatchRoot(); err != nil {
		return nil, fmt.Errorf("invalid watch path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.Watch.Root == "" {
		return errors.New("watch path is required (positional argument or WATCH_PATH)")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be error, warn, info, debug, or trace)", c.Logger.Level)
	}

	if c.Tracker.ChangeLimit <= 0 {
		return fmt.Errorf("invalid change limit: %d (must be positive)", c.Tracker.ChangeLimit)
	}

	portNum, err := strconv.Atoi(c.Server.Port)
	if err != nil || portNum < 1 || portNum > 65535 {
		return fmt.Errorf("invalid port: %s", c.Server.Port)
	}

	if c.Server.RateLimit < 0 {
		return fmt.Errorf("invalid rate limit: %v (must be non-negative)", c.Server.RateLimit)
	}

	for _, pattern := range c.Watch.IgnorePatterns {
		if _, err := filepath.Match(pattern, "x"); err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
	}

	return nil
}

// expandWatchRoot expands ~ and makes the watch root absolute.
func (c *Config) expandWatchRoot() error {
	if c.Watch.Root == "" {
		return nil
	}

	path := c.Watch.Root
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	c.Watch.Root = filepath.Clean(path)
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default. A
// value that is present but does not parse is an error.
func getIntConfigValue(flagValue, envKey string, defaultValue int) (int, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", strValue, err)
	}
	return result, nil
}

// getFloatConfigValue returns a float from flag, env var, or default. A
// value that is present but does not parse is an error.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) (float64, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", strValue, err)
	}
	return result, nil
}

// parseDurationValue parses a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
