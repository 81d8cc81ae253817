// =============================================================================
// 📦 StemChat 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置，开箱即可在本地以 sqlite 运行
func DefaultConfig() *Config {
	return &Config{
		Env:       "development",
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		LLM:       DefaultLLMConfig(),
		Auth:      DefaultAuthConfig(),
		Bot:       DefaultBotConfig(),
		Events:    DefaultEventsConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    90 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Name:            "stemchat.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		TTL:          time.Minute,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:       "http://localhost:8001/v1",
		Model:         "Meta-Llama-3.1-8B-Instruct",
		Timeout:       60 * time.Second,
		Temperature:   0.2,
		MaxTokens:     512,
		HistoryTokens: 1024,
	}
}

// DefaultAuthConfig 返回默认认证配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		TokenTTL: 43200 * time.Minute,
		SkipPaths: []string{
			"/health", "/healthz", "/ready", "/version", "/metrics",
			"/api/signup", "/api/login",
		},
	}
}

// DefaultBotConfig 返回默认机器人配置
func DefaultBotConfig() BotConfig {
	return BotConfig{
		TriggerPrefix: "#",
		Timeout:       60 * time.Second,
		Threshold:     0.3,
		HistorySize:   10,
		Workers:       4,
		QueueSize:     64,
	}
}

// DefaultEventsConfig 返回默认事件配置
func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "stemchat.events",
		WriteTimeout: 5 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "stemchat",
		SampleRate:   0.1,
	}
}
