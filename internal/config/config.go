package config

import "time"

type Config struct {
	Endpoint     string `flag:"endpoint"`
	HTTPEndpoint string `flag:"http-endpoint"`
	Namespace    string `flag:"namespace"`
	Database     string `flag:"database"`
	Access       string `flag:"access"`

	Profile        string `flag:"profile"`
	SessionBackend string `flag:"session-backend"`
	NATSURL        string `flag:"nats-url"`
	NATSInit       bool   `flag:"nats-init"`
	RedisURL       string `flag:"redis-url"`
	DatabaseURL    string `flag:"database-url"`
	SessionDir     string `flag:"session-dir"`

	PageSize       int           `flag:"page-size"`
	FetchRetries   int           `flag:"fetch-retries"`
	RequestTimeout time.Duration `flag:"request-timeout"`

	MetricsAddr   string `flag:"metrics-addr"`
	ForwardEvents bool   `flag:"forward-events"`

	LogLevel string `flag:"log-level"`
	Output   string `flag:"output"`
}

const (
	SessionBackendFile     = "file"
	SessionBackendMemory   = "memory"
	SessionBackendNATS     = "nats"
	SessionBackendRedis    = "redis"
	SessionBackendPostgres = "postgres"
)
