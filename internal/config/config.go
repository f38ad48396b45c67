package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Engine   EngineConfig
	Cache    CacheConfig
	Snapshot SnapshotConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// EncryptionSecret - секрет для шифрования API ключей бирж.
	// Произвольная строка: 32-байтовый ключ AES-256 выводится через scrypt.
	EncryptionSecret string
}

// EngineConfig - настройки клиента внешнего торгового движка
type EngineConfig struct {
	URL     string
	Timeout time.Duration // общий таймаут на один вызов движка
}

// CacheConfig - настройки кэша биржевых клиентов
type CacheConfig struct {
	TTL           time.Duration // время жизни неиспользуемого клиента
	MaxEntries    int           // порог размера, при превышении запускается sweep
	SweepInterval time.Duration // период фоновой очистки
}

// SnapshotConfig - настройки фоновых снапшотов equity
type SnapshotConfig struct {
	Interval  time.Duration // период снятия снапшотов портфелей
	Retention time.Duration // горизонт хранения истории снапшотов
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 5000),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "fydblock"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionSecret: getEnv("ENCRYPTION_SECRET", ""),
		},
		Engine: EngineConfig{
			URL:     getEnv("TRADING_ENGINE_URL", "http://127.0.0.1:8000"),
			Timeout: getEnvAsDuration("TRADING_ENGINE_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			TTL:           getEnvAsDuration("EXCHANGE_CACHE_TTL", time.Hour),
			MaxEntries:    getEnvAsInt("EXCHANGE_CACHE_MAX", 100),
			SweepInterval: getEnvAsDuration("EXCHANGE_CACHE_SWEEP", time.Hour),
		},
		Snapshot: SnapshotConfig{
			Interval:  getEnvAsDuration("SNAPSHOT_INTERVAL", 30*time.Minute),
			Retention: getEnvAsDuration("SNAPSHOT_RETENTION", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_SECRET обязателен: без него нельзя расшифровать ключи бирж
	if c.Security.EncryptionSecret == "" {
		return fmt.Errorf("ENCRYPTION_SECRET is required for encrypting API keys")
	}

	if len(c.Security.EncryptionSecret) < 16 {
		return fmt.Errorf("ENCRYPTION_SECRET must be at least 16 characters, got %d", len(c.Security.EncryptionSecret))
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("TRADING_ENGINE_TIMEOUT must be positive, got %v", c.Engine.Timeout)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("EXCHANGE_CACHE_TTL must be positive, got %v", c.Cache.TTL)
	}

	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("EXCHANGE_CACHE_MAX must be at least 1, got %d", c.Cache.MaxEntries)
	}

	if c.Snapshot.Interval < time.Minute {
		return fmt.Errorf("SNAPSHOT_INTERVAL must be at least 1 minute, got %v", c.Snapshot.Interval)
	}

	if c.Snapshot.Retention < c.Snapshot.Interval {
		return fmt.Errorf("SNAPSHOT_RETENTION must not be shorter than SNAPSHOT_INTERVAL")
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
