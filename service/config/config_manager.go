/*
 * @module service/config/config_manager
 * @description 服务配置加载：默认值 -> YAML配置文件 -> 环境变量覆盖 -> 校验
 * @architecture 分层架构 - 配置层
 * @documentReference ai_docs/data_quality_monitor.md
 * @stateFlow 默认配置 -> 读取配置文件 -> 应用环境变量 -> 配置验证 -> 注入各组件
 * @rules 环境变量优先级最高；配置只在启动时加载一次
 * @dependencies gopkg.in/yaml.v3, github.com/spf13/cast
 * @refs service/init.go, main.go
 */

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Config 服务配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Quality  QualityConfig  `yaml:"quality"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int      `yaml:"port"`
	BaseContext    string   `yaml:"base_context"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // sqlite/postgres
	URL          string `yaml:"url"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	SSLMode      string `yaml:"ssl_mode"`
	Schema       string `yaml:"schema"`
	SQLitePath   string `yaml:"sqlite_path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	LogLevel     string `yaml:"log_level"` // silent/error/warn/info
}

// QualityConfig 质量检查配置
type QualityConfig struct {
	Workers          int           `yaml:"workers"`
	CheckTimeout     time.Duration `yaml:"check_timeout"`
	SchedulerEnabled bool          `yaml:"scheduler_enabled"`
	Schedule         string        `yaml:"schedule"` // 含秒字段的cron表达式
	RulesFile        string        `yaml:"rules_file"`
}

// RedisConfig Redis配置，用于多实例定时执行的分布式锁
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// Addr Redis地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig Kafka配置，用于发布失败结果
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Default 默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			BaseContext:    "",
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{Level: "info"},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Host:         "localhost",
			Port:         5432,
			User:         "postgres",
			Name:         "postgres",
			SSLMode:      "disable",
			Schema:       "public",
			SQLitePath:   "quality_monitor.db",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
			LogLevel:     "warn",
		},
		Quality: QualityConfig{
			Workers:          4,
			CheckTimeout:     30 * time.Second,
			SchedulerEnabled: true,
			Schedule:         "0 0 * * * *",
			RulesFile:        "configs/quality_rules.yaml",
		},
		Redis: RedisConfig{
			Host:    "localhost",
			Port:    6379,
			LockTTL: 10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic: "data-quality-results",
		},
	}
}

// Load 加载配置，CONFIG_FILE 指定配置文件，未指定时不读取文件
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides 应用环境变量覆盖
func applyEnvironmentOverrides(cfg *Config) error {
	var errs []string
	setString := func(key string, target *string) {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}
	setInt := func(key string, target *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := cast.ToIntE(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q 不是整数", key, v))
				return
			}
			*target = n
		}
	}
	setBool := func(key string, target *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := cast.ToBoolE(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q 不是布尔值", key, v))
				return
			}
			*target = b
		}
	}
	setDuration := func(key string, target *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s=%q 不是有效时长", key, v))
				return
			}
			*target = d
		}
	}
	setList := func(key string, target *[]string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*target = splitList(v)
		}
	}

	setInt("LISTEN_PORT", &cfg.Server.Port)
	setString("BASE_CONTEXT", &cfg.Server.BaseContext)
	setList("CORS_ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)
	setString("LOG_LEVEL", &cfg.Logging.Level)

	setString("DB_DRIVER", &cfg.Database.Driver)
	setString("DATABASE_URL", &cfg.Database.URL)
	setString("DB_HOST", &cfg.Database.Host)
	setInt("DB_PORT", &cfg.Database.Port)
	setString("DB_USER", &cfg.Database.User)
	setString("DB_PASSWORD", &cfg.Database.Password)
	setString("DB_NAME", &cfg.Database.Name)
	setString("DB_SSLMODE", &cfg.Database.SSLMode)
	setString("DB_SCHEMA", &cfg.Database.Schema)
	setString("SQLITE_PATH", &cfg.Database.SQLitePath)
	setString("DB_LOG_LEVEL", &cfg.Database.LogLevel)

	setInt("QUALITY_WORKERS", &cfg.Quality.Workers)
	setDuration("QUALITY_CHECK_TIMEOUT", &cfg.Quality.CheckTimeout)
	setBool("QUALITY_SCHEDULER_ENABLED", &cfg.Quality.SchedulerEnabled)
	setString("QUALITY_SCHEDULE", &cfg.Quality.Schedule)
	setString("QUALITY_RULES_FILE", &cfg.Quality.RulesFile)

	setBool("REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("REDIS_HOST", &cfg.Redis.Host)
	setInt("REDIS_PORT", &cfg.Redis.Port)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("REDIS_DB", &cfg.Redis.DB)
	setDuration("REDIS_LOCK_TTL", &cfg.Redis.LockTTL)

	setList("KAFKA_BROKERS", &cfg.Kafka.Brokers)
	setString("KAFKA_TOPIC", &cfg.Kafka.Topic)
	if _, ok := os.LookupEnv("KAFKA_ENABLED"); ok {
		setBool("KAFKA_ENABLED", &cfg.Kafka.Enabled)
	} else if len(cfg.Kafka.Brokers) > 0 {
		cfg.Kafka.Enabled = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("环境变量无效: %s", strings.Join(errs, "; "))
	}
	return nil
}

// parseDuration 纯数字按秒解析，其余按Go时长格式解析
func parseDuration(v string) (time.Duration, error) {
	if n, err := cast.ToInt64E(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return cast.ToDurationE(v)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("服务器端口无效: %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" && c.Database.URL == "" {
			return fmt.Errorf("SQLite 数据库路径不能为空")
		}
	case DriverPostgres:
		if c.Database.URL == "" && c.Database.Host == "" {
			return fmt.Errorf("数据库主机不能为空")
		}
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Quality.Workers <= 0 {
		return fmt.Errorf("质量检查并发数必须大于0")
	}
	if c.Quality.CheckTimeout <= 0 {
		return fmt.Errorf("质量检查超时时间必须大于0")
	}
	if c.Quality.SchedulerEnabled && c.Quality.Schedule == "" {
		return fmt.Errorf("启用定时检查时必须配置 cron 表达式")
	}
	if c.Redis.Enabled && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("分布式锁过期时间必须大于0")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("启用结果通知时必须配置 Kafka brokers 和 topic")
	}
	return nil
}

// PostgresDSN 构建PostgreSQL连接串，DATABASE_URL 优先
func (d DatabaseConfig) PostgresDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Schema)
}

// SQLiteDSN SQLite连接串，DATABASE_URL 优先
func (d DatabaseConfig) SQLiteDSN() string {
	if d.URL != "" {
		return d.URL
	}
	return d.SQLitePath + "?_busy_timeout=5000"
}
