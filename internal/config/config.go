package config

import (
	"fmt"
	"os"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置（边缘摄像头节点 → 检测事件流的接入桥）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Config 检测报警服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	HTTP struct {
		Addr string
	}

	// 报警管道特定配置
	Alert struct {
		// Redis 键配置
		StreamKeyPrefix string // 检测事件流键前缀，如 "detections:stream:"
		ClaimKeyPrefix  string // 已读标记键前缀，如 "detections:viewed:"
		ClaimTTLHours   int    // 已读标记 TTL（小时），0 表示永不过期

		// 通知策略（命名常量，不要散落在代码里）
		RecencyWindowSec int    // 新鲜度窗口（秒），默认 30秒
		ListLimit        int    // 报警列表查询上限，默认 50条
		ToastDurationSec int    // 前端 toast 自动消失时间（秒），默认 5秒
		WebhookURL       string // 可选的 webhook 通知地址（为空则不启用）
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "autonomous_store")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "store-alert")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "store/+/detections")
	cfg.MQTT.QoS = 1

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// 报警管道配置
	cfg.Alert.StreamKeyPrefix = getEnv("ALERT_STREAM_PREFIX", "detections:stream:")
	cfg.Alert.ClaimKeyPrefix = getEnv("ALERT_CLAIM_PREFIX", "detections:viewed:")
	cfg.Alert.ClaimTTLHours = getEnvInt("ALERT_CLAIM_TTL_HOURS", 24)
	cfg.Alert.RecencyWindowSec = getEnvInt("ALERT_RECENCY_WINDOW_SEC", 30)
	cfg.Alert.ListLimit = getEnvInt("ALERT_LIST_LIMIT", 50)
	cfg.Alert.ToastDurationSec = getEnvInt("ALERT_TOAST_DURATION_SEC", 5)
	cfg.Alert.WebhookURL = getEnv("ALERT_WEBHOOK_URL", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}
