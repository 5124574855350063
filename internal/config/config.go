// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Server ServerConfig
	Sync   SyncConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds control API server configuration.
type ServerConfig struct {
	Name          string
	Port          string        // Server port (default: 8080)
	ReadTimeout   time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout  time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout   time.Duration // HTTP idle timeout (default: 60s)
	AdvertiseMDNS bool          // Advertise via mDNS/Zeroconf (default: true)
}

// SyncConfig holds the sync engine configuration consumed at engine start.
// SourceDir may be empty, in which case the daemon boots with the engine
// stopped and waits for a start request over the control API.
type SyncConfig struct {
	// SourceDir is the watched tree.
	SourceDir string
	// TargetDir is the mirrored tree. Must not equal, contain, or be
	// contained by SourceDir.
	TargetDir string
	// Extensions lists the file suffixes to mirror (e.g. ".gd,.tscn").
	Extensions []string
	// AllowDeletion propagates source deletions to the target. Off by
	// default since deletion is the only destructive operation.
	AllowDeletion bool
	// IncludeHidden mirrors dotfiles as well.
	IncludeHidden bool
	// UsePolling selects the lower-fidelity polling watch strategy for
	// filesystems where native notifications are unreliable.
	UsePolling bool
	// SyncImportArtifacts additionally mirrors files with the reserved
	// ".import" artifact suffix.
	SyncImportArtifacts bool
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	serverName := flag.String("server-name", "", "Name for the server")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	advertiseMDNS := flag.String("advertise-mdns", "", "Advertise via mDNS/Zeroconf (default: true)")

	// Sync flags
	sourceDir := flag.String("source-dir", "", "Source tree to watch")
	targetDir := flag.String("target-dir", "", "Target tree to mirror into")
	extensions := flag.String("extensions", "", "Comma-separated file suffixes to mirror (e.g. .gd,.tscn)")
	allowDeletion := flag.String("allow-deletion", "", "Propagate deletions to the target (default: false)")
	includeHidden := flag.String("include-hidden", "", "Mirror hidden files (default: false)")
	usePolling := flag.String("use-polling", "", "Use the polling watch strategy (default: false)")
	syncImportArtifacts := flag.String("sync-import-artifacts", "", "Mirror .import artifact files (default: false)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	exts := splitExtensions(getConfigValue(*extensions, "EXTENSIONS", ""))

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Name:          getConfigValue(*serverName, "SERVER_NAME", "mirrord"),
			Port:          getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AdvertiseMDNS: getBoolConfigValue(*advertiseMDNS, "ADVERTISE_MDNS", true),
		},
		Sync: SyncConfig{
			SourceDir:           getConfigValue(*sourceDir, "SOURCE_DIR", ""),
			TargetDir:           getConfigValue(*targetDir, "TARGET_DIR", ""),
			Extensions:          exts,
			AllowDeletion:       getBoolConfigValue(*allowDeletion, "ALLOW_DELETION", false),
			IncludeHidden:       getBoolConfigValue(*includeHidden, "INCLUDE_HIDDEN", false),
			UsePolling:          getBoolConfigValue(*usePolling, "USE_POLLING", false),
			SyncImportArtifacts: getBoolConfigValue(*syncImportArtifacts, "SYNC_IMPORT_ARTIFACTS", hasImportExtension(exts)),
		},
	}

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	// Expand sync roots. Both may be empty (engine configured via API later).
	if err := cfg.expandSyncPaths(); err != nil {
		return nil, fmt.Errorf("invalid sync path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
// Sync roots are validated by the engine at start, not here, so the daemon
// can boot without a sync configuration.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
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
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	return nil
}

// expandSyncPaths expands ~ and makes the sync roots absolute.
// Empty roots are left empty to allow configuration over the API.
func (c *Config) expandSyncPaths() error {
	if c.Sync.SourceDir != "" {
		expanded, err := expandPath(c.Sync.SourceDir, "")
		if err != nil {
			return err
		}
		c.Sync.SourceDir = expanded
	}

	if c.Sync.TargetDir != "" {
		expanded, err := expandPath(c.Sync.TargetDir, "")
		if err != nil {
			return err
		}
		c.Sync.TargetDir = expanded
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// splitExtensions parses a comma-separated suffix list, dropping empties.
// Normalization (lowercase, leading dot) happens at engine start.
func splitExtensions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	exts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		exts = append(exts, p)
	}
	return exts
}

// hasImportExtension reports whether the configured extension list already
// names the reserved .import artifact suffix. When it does, mirroring the
// artifacts is the evident intent, so SyncImportArtifacts defaults on.
func hasImportExtension(exts []string) bool {
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e == ".import" {
			return true
		}
	}
	return false
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
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

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
