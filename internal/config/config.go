package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

func init() {
	ServiceConfig = Load()
}

var ServiceConfig *Config

type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Consul    ConsulConfig
	Analytics AnalyticsConfig
	Lifecycle LifecycleConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	ServiceName    string
	ServiceAddress string
	ServiceID      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URI      string
	Exchange string
}

type ConsulConfig struct {
	ConsulAddress string
}

type AnalyticsConfig struct {
	SnapshotInterval  time.Duration
	DashboardCacheTTL time.Duration
}

type LifecycleConfig struct {
	ReaperEnabled  bool
	ReaperInterval time.Duration
	AbandonAfter   time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "9350"),
			Host:           getEnv("HOST", "0.0.0.0"),
			ServiceName:    getEnv("TEST_SERVICE_NAME", "test-service"),
			ServiceAddress: getEnv("TEST_SERVICE_ADDRESS", "test-service"),
			ServiceID:      getEnv("TEST_SERVICE_NAME", "test-service") + "-" + getEnv("HOSTNAME", "test"),
			ReadTimeout:    getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("WRITE_TIMEOUT", 15*time.Second),
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGO_URI", ""),
			Database: getEnv("MONGO_DATABASE", "test_service"),
			Timeout:  getEnvAsDuration("MONGO_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PWD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RabbitMQ: RabbitMQConfig{
			URI:      getEnv("RABBITMQ_URI", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "test.events"),
		},
		Consul: ConsulConfig{
			ConsulAddress: getEnv("CONSUL_ADDRESS", ""),
		},
		Analytics: AnalyticsConfig{
			SnapshotInterval:  getEnvAsDuration("ANALYTICS_SNAPSHOT_INTERVAL", 24*time.Hour),
			DashboardCacheTTL: getEnvAsDuration("ANALYTICS_DASHBOARD_CACHE_TTL", 5*time.Minute),
		},
		Lifecycle: LifecycleConfig{
			ReaperEnabled:  getEnvAsBool("ATTEMPT_REAPER_ENABLED", false),
			ReaperInterval: getEnvAsDuration("ATTEMPT_REAPER_INTERVAL", 5*time.Minute),
			AbandonAfter:   getEnvAsDuration("ATTEMPT_ABANDON_AFTER", 2*time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: invalid value for %s, using default %v", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: invalid value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: invalid duration for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}
