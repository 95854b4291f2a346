package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
// 客户端（leavectl）与参考 API（server）共用一份配置，各取所需
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Session    SessionConfig    `mapstructure:"session"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Export     ExportConfig     `mapstructure:"export"`
	Log        LogConfig        `mapstructure:"log"`

	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

// ── 客户端配置 ──

// APIConfig 远程 API 访问配置
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SessionConfig 本地会话存储配置
type SessionConfig struct {
	Store string        `mapstructure:"store"` // "file" | "redis" | "memory"
	Path  string        `mapstructure:"path"`  // file 模式下的会话文件
	Key   string        `mapstructure:"key"`   // redis 模式下的键名
	TTL   time.Duration `mapstructure:"ttl"`   // redis 模式下的过期时间，0 表示不过期
}

// ProjectionConfig 出勤预估配置
type ProjectionConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// QueueConfig 待审批队列同步配置
type QueueConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SerializePolls bool          `mapstructure:"serialize_polls"` // true: 上一次拉取完成后才进入下一个周期
}

// ExportConfig 导出配置
type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ── 参考 API 配置 ──

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port int        `mapstructure:"port"`
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // "postgres" | "sqlite"
	Path            string `mapstructure:"path"`   // sqlite 文件路径
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// PolicyConfig 请假额度与出勤阈值
type PolicyConfig struct {
	TotalLeaves        int     `mapstructure:"total_leaves"`
	Threshold          float64 `mapstructure:"threshold"`
	DefaultWorkingDays int     `mapstructure:"default_working_days"`
}

// RateLimitConfig 登录限流配置
type RateLimitConfig struct {
	LoginLimit  int           `mapstructure:"login_limit"`
	LoginWindow time.Duration `mapstructure:"login_window"`
}

// NotifyConfig 请假通知配置
type NotifyConfig struct {
	Driver       string        `mapstructure:"driver"`        // "log" | "smtp"
	Timeout      time.Duration `mapstructure:"timeout"`       // 单次投递超时
	FacultyEmail string        `mapstructure:"faculty_email"` // 班级无教师账号时的兜底收件人
	SMTP         SMTPConfig    `mapstructure:"smtp"`
}

// SMTPConfig 邮件服务器配置
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	SSL      bool   `mapstructure:"ssl"` // true: 隐式 TLS（465），false: STARTTLS
}

// Load 从 .env、配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 仅补充未设置的环境变量
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("LEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://127.0.0.1:8000")
	v.SetDefault("api.timeout", "15s")

	v.SetDefault("session.store", "file")
	v.SetDefault("session.path", ".leave_session.json")
	v.SetDefault("session.key", "leave:session")
	v.SetDefault("session.ttl", "0s")

	v.SetDefault("projection.debounce", "500ms")

	v.SetDefault("queue.poll_interval", "30s")
	v.SetDefault("queue.serialize_polls", false)

	v.SetDefault("export.dir", ".")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "leave.db")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "leave_portal")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Kolkata")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_token_ttl", "60m")

	v.SetDefault("policy.total_leaves", 10)
	v.SetDefault("policy.threshold", 75.0)
	v.SetDefault("policy.default_working_days", 100)

	v.SetDefault("rate_limit.login_limit", 10)
	v.SetDefault("rate_limit.login_window", "1m")

	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("notify.faculty_email", "")
	v.SetDefault("notify.smtp.host", "smtp.gmail.com")
	v.SetDefault("notify.smtp.port", 465)
	v.SetDefault("notify.smtp.username", "")
	v.SetDefault("notify.smtp.password", "")
	v.SetDefault("notify.smtp.from", "")
	v.SetDefault("notify.smtp.ssl", true)
}

// Validate 校验客户端关键配置项
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("配置校验失败: api.base_url 不能为空")
	}
	if c.Projection.Debounce < 0 {
		return fmt.Errorf("配置校验失败: projection.debounce 不能为负数")
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("配置校验失败: queue.poll_interval 必须大于 0")
	}
	switch c.Session.Store {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("配置校验失败: session.store 仅支持 file/redis/memory，实际为 %q", c.Session.Store)
	}
	return nil
}

// ValidateServer 校验参考 API 额外需要的配置项
func (c *Config) ValidateServer() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("配置校验失败: db.driver 仅支持 postgres/sqlite")
	}
	switch c.Notify.Driver {
	case "log":
	case "smtp":
		if c.Notify.SMTP.Host == "" || c.Notify.SMTP.From == "" {
			return fmt.Errorf("配置校验失败: notify.smtp.host 与 notify.smtp.from 不能为空")
		}
	default:
		return fmt.Errorf("配置校验失败: notify.driver 仅支持 log/smtp")
	}
	return nil
}
