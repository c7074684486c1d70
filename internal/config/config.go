package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// defaultDataDir is used when neither TRADER_DATA_DIR nor a CLI override is
// set. Unlike the teacher's single-board deployment target, this module
// runs wherever its operator chooses, so the default lives under the
// user's home directory rather than a fixed device path.
const defaultDataDir = ".questrade-sentinel"

const (
	defaultPort     = 8001
	defaultLogLevel = "info"
)

// Config is the process-level bootstrap configuration cmd/server resolves
// once at startup, before any of C1-C11's stores are opened. It deliberately
// does not carry the teacher's DeploymentConfig/EVALUATOR_SERVICE_URL
// fields: this module has no self-deployment step and no external scoring
// microservice to call out to (see DESIGN.md).
type Config struct {
	DataDir  string
	Port     int
	DevMode  bool
	LogLevel string
}

// Load resolves Config from the environment, creating DataDir if it does
// not already exist. dataDirOverride, when given and non-empty, is the
// value of a CLI flag and takes precedence over every environment variable.
//
// DataDir resolution order: dataDirOverride, then TRADER_DATA_DIR, then
// defaultDataDir under the user's home directory. The legacy DATA_DIR
// variable is never consulted, even when TRADER_DATA_DIR is unset -
// existing deployments exporting only the old name must be migrated.
func Load(dataDirOverride ...string) (*Config, error) {
	// Ignored: absence of a .env file is the common case, not an error.
	_ = godotenv.Load()

	dataDir := ""
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else if v := os.Getenv("TRADER_DATA_DIR"); v != "" {
		dataDir = v
	} else {
		dataDir = defaultDataDirPath()
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Config{
		DataDir:  absDataDir,
		Port:     intEnv("GO_PORT", defaultPort),
		DevMode:  boolEnv("DEV_MODE", false),
		LogLevel: stringEnv("LOG_LEVEL", defaultLogLevel),
	}, nil
}

func defaultDataDirPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDir
	}
	return filepath.Join(home, defaultDataDir)
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func boolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
