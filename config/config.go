package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	DefaultPort             = "9069"
	DefaultStorageRoot      = "index_storage"
	DefaultMemoryBudget     = 100_000_000
	DefaultMaxDocumentBytes = 10 * 1024 * 1024
	DefaultIndexCacheSize   = 16

	registryFileName = "registry.db"
)

const (
	keySocketAddr        = "SOCKET_ADDR"
	keyPort              = "PORT"
	keyDownloadURLPrefix = "DOWNLOAD_URL_PREFIX"
	keyStorageRoot       = "STORAGE_ROOT"
)

var ErrConflictingSocketOptions = errors.New("socket address and port are mutually exclusive")

// Flag names understood by ApplyFlags, mapped to the keys they override.
var flagKeys = map[string]string{
	"socket-addr":         keySocketAddr,
	"port":                keyPort,
	"download-url-prefix": keyDownloadURLPrefix,
	"storage-root":        keyStorageRoot,
}

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	viperConfig.SetDefault("storage.root", DefaultStorageRoot)
	viperConfig.SetDefault("index.memory_budget", DefaultMemoryBudget)
	viperConfig.SetDefault("ingest.max_document_bytes", DefaultMaxDocumentBytes)
	viperConfig.SetDefault("search.index_cache_size", DefaultIndexCacheSize)
	viperConfig.SetDefault("log.level", "info")

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

// ApplyFlags overrides configuration with the command line flags that were explicitly set.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) {
	if flags == nil {
		return
	}
	flags.Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			c.config.Set(key, f.Value.String())
		}
	})
}

func (c *Config) GetSocketAddr() string {
	socketAddr := c.config.GetString(keySocketAddr)
	if len(socketAddr) == 0 {
		socketAddr = c.config.GetString("server.socket_addr")
	}

	return socketAddr
}

func (c *Config) GetPort() string {
	port := c.config.GetString(keyPort)
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}
	if len(port) == 0 {
		port = DefaultPort
	}

	return port
}

// GetBindAddress returns the address the server listens on. An explicit socket address
// wins over the port, but both cannot be set explicitly at the same time.
func (c *Config) GetBindAddress() (string, error) {
	socketAddr := c.GetSocketAddr()
	if len(socketAddr) == 0 {
		return net.JoinHostPort("0.0.0.0", c.GetPort()), nil
	}

	if len(c.config.GetString(keyPort)) > 0 {
		return "", ErrConflictingSocketOptions
	}

	return socketAddr, nil
}

func (c *Config) GetDownloadURLPrefix() string {
	prefix := c.config.GetString(keyDownloadURLPrefix)
	if len(prefix) == 0 {
		prefix = c.config.GetString("server.download_url_prefix")
	}

	return prefix
}

// GetRateLimit returns the allowed requests per second, 0 meaning unlimited.
func (c *Config) GetRateLimit() float64 {
	if rateLimit := c.config.GetFloat64("RATE_LIMIT"); rateLimit > 0 {
		return rateLimit
	}

	return c.config.GetFloat64("server.rate_limit")
}

func (c *Config) GetStorageRoot() string {
	storageRoot := c.config.GetString(keyStorageRoot)
	if len(storageRoot) == 0 {
		storageRoot = c.config.GetString("storage.root")
	}

	return storageRoot
}

func (c *Config) GetKVDBPath() string {
	kvdbPath := c.config.GetString("KVDB_PATH")
	if len(kvdbPath) == 0 {
		kvdbPath = c.config.GetString("storage.kvdb_path")
	}
	if len(kvdbPath) == 0 {
		kvdbPath = filepath.Join(c.GetStorageRoot(), registryFileName)
	}

	return kvdbPath
}

func (c *Config) GetMemoryBudget() int {
	if budget := c.config.GetInt("INDEX_MEMORY_BUDGET"); budget > 0 {
		return budget
	}

	return c.config.GetInt("index.memory_budget")
}

func (c *Config) GetMaxDocumentBytes() int64 {
	if maxBytes := c.config.GetInt64("MAX_DOCUMENT_BYTES"); maxBytes > 0 {
		return maxBytes
	}

	return c.config.GetInt64("ingest.max_document_bytes")
}

func (c *Config) GetIndexCacheSize() int {
	if size := c.config.GetInt("INDEX_CACHE_SIZE"); size > 0 {
		return size
	}

	return c.config.GetInt("search.index_cache_size")
}

func (c *Config) GetLogLevel() string {
	level := c.config.GetString("LOG_LEVEL")
	if len(level) == 0 {
		level = c.config.GetString("log.level")
	}

	return level
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
