// Copyright 2026 HyperInfer Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.
package config

import "time"

// DefaultConfig returns the gateway's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:        DefaultServerConfig(),
		Store:         DefaultStoreConfig(),
		Database:      DefaultDatabaseConfig(),
		Log:           DefaultLogConfig(),
		Observability: DefaultObservabilityConfig(),
		CORS:          DefaultCORSConfig(),
		Admin:         DefaultAdminConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}
}

func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Addr:                "localhost:6379",
		DB:                  0,
		PoolSize:            10,
		MinIdleConns:        2,
		MaxRetries:          3,
		HealthCheckInterval: 30 * time.Second,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "hyperinfer",
		Password:        "",
		Name:            "hyperinfer",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "hyperinfer",
		SampleRate:   0.1,
	}
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
	}
}

func DefaultAdminConfig() AdminConfig {
	return AdminConfig{
		ConfigSyncInterval: 30 * time.Second,
	}
}
