// =============================================================================
// Process controller default configuration
// =============================================================================
// Provides sane defaults for every configuration section.
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:     DefaultServerConfig(),
		AgentSpec:  DefaultAgentSpecConfig(),
		Redis:      DefaultRedisConfig(),
		Database:   DefaultDatabaseConfig(),
		Mongo:      DefaultMongoConfig(),
		EventStore: DefaultEventStoreConfig(),
		Execution:  DefaultExecutionConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns default HTTP server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultAgentSpecConfig returns default descriptor loading settings.
func DefaultAgentSpecConfig() AgentSpecConfig {
	return AgentSpecConfig{
		Dir: "./agents",
	}
}

// DefaultRedisConfig returns default Redis client settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		LockTTL:      10 * time.Second,
	}
}

// DefaultDatabaseConfig returns default SQL event store settings.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "agentprocessor",
		Password:        "",
		Name:            "agentprocessor.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMongoConfig returns default MongoDB event store settings.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "agentprocessor",
		Collection: "process_events",
		Timeout:    10 * time.Second,
	}
}

// DefaultEventStoreConfig returns the default event store backend.
func DefaultEventStoreConfig() EventStoreConfig {
	return EventStoreConfig{
		Backend: "memory",
	}
}

// DefaultExecutionConfig returns default Execution Runner settings.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		MaxWorkers:      32,
		QueueSize:       256,
		IdleTimeout:     60 * time.Second,
		CallbackTimeout: 10 * time.Second,
	}
}

// DefaultLogConfig returns default zap settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns default OpenTelemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentprocessor",
		SampleRate:   0.1,
	}
}
