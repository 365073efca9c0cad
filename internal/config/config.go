package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	StoreBackend  string `yaml:"store_backend"`
	StorePath     string `yaml:"store_path"`
	DBPath        string `yaml:"db_path"`
	MySQLDSN      string `yaml:"mysql_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
	DocumentKey   string `yaml:"document_key"`
	UserAPIURL    string `yaml:"user_api_url"`
	SessionCookie string `yaml:"session_cookie"`
	SessionSecure bool   `yaml:"session_secure"`
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogFormat     string `yaml:"log_format"`
}

func Default() *Config {
	return &Config{
		ListenAddr:    ":8080",
		StoreBackend:  "sqlite",
		StorePath:     "/data/store",
		DBPath:        "/data/sectorinv.db",
		MySQLDSN:      "root:root@tcp(localhost:3306)/sectorinv?parseTime=true",
		RedisAddr:     "localhost:6379",
		RedisPrefix:   "sectorinv:",
		DocumentKey:   "sectoral-inventory-data",
		UserAPIURL:    "http://localhost:3001",
		SessionCookie: "sectorinv_session",
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// Load starts from the defaults, applies the YAML file at path when path is
// non-empty, then lets environment variables override both.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.StorePath = getEnv("STORE_PATH", c.StorePath)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.MySQLDSN = getEnv("MYSQL_DSN", c.MySQLDSN)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.RedisPrefix = getEnv("REDIS_PREFIX", c.RedisPrefix)
	c.DocumentKey = getEnv("DOCUMENT_KEY", c.DocumentKey)
	c.UserAPIURL = getEnv("USER_API_URL", c.UserAPIURL)
	c.SessionCookie = getEnv("SESSION_COOKIE", c.SessionCookie)
	c.SessionSecure = getEnvBool("SESSION_SECURE", c.SessionSecure)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

// getEnvInt falls back to defaultVal when the variable is unset or not a number.
func getEnvInt(key string, defaultVal int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvBool accepts the strconv.ParseBool spellings and falls back to
// defaultVal for anything else.
func getEnvBool(key string, defaultVal bool) bool {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
