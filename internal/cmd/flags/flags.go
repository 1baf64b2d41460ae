package flags

import (
	"fmt"
	"slices"
	"time"

	libnats "github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"murmur/internal/config"
)

var (
	validLogLevels       = []string{"debug", "info", "warn", "error"}
	validOutputs         = []string{"text", "json", "pp"}
	validSessionBackends = []string{
		config.SessionBackendFile,
		config.SessionBackendMemory,
		config.SessionBackendNATS,
		config.SessionBackendRedis,
		config.SessionBackendPostgres,
	}
)

func oneOf(name string, allowed []string) func(string) error {
	return func(value string) error {
		if !slices.Contains(allowed, value) {
			return fmt.Errorf("invalid %s: %s, allowed values are: %s", name, value, allowed)
		}
		return nil
	}
}

var Endpoint = &cli.StringFlag{
	Name:    "endpoint",
	Aliases: []string{"e"},
	Usage:   "The websocket RPC endpoint of the database",
	Value:   "ws://localhost:8000/rpc",
	Sources: cli.EnvVars("MURMUR_ENDPOINT"),
}

var HTTPEndpoint = &cli.StringFlag{
	Name:    "http-endpoint",
	Usage:   "The HTTP endpoint of the database, derived from --endpoint when empty",
	Sources: cli.EnvVars("MURMUR_HTTP_ENDPOINT"),
}

var Namespace = &cli.StringFlag{
	Name:    "namespace",
	Usage:   "The database namespace",
	Value:   "murmur",
	Sources: cli.EnvVars("MURMUR_NAMESPACE"),
}

var Database = &cli.StringFlag{
	Name:    "database",
	Usage:   "The database name",
	Value:   "murmur",
	Sources: cli.EnvVars("MURMUR_DATABASE"),
}

var Access = &cli.StringFlag{
	Name:    "access",
	Usage:   "The record access method used to sign up and sign in",
	Value:   "account",
	Sources: cli.EnvVars("MURMUR_ACCESS"),
}

var Profile = &cli.StringFlag{
	Name:    "profile",
	Aliases: []string{"p"},
	Usage:   "The session profile, every profile keeps its own login",
	Value:   "default",
	Sources: cli.EnvVars("MURMUR_PROFILE"),
}

var SessionBackend = &cli.StringFlag{
	Name:      "session-backend",
	Usage:     fmt.Sprintf("Where sessions are stored, one of %v", validSessionBackends),
	Value:     config.SessionBackendFile,
	Validator: oneOf("session backend", validSessionBackends),
	Sources:   cli.EnvVars("MURMUR_SESSION_BACKEND"),
}

var SessionDir = &cli.StringFlag{
	Name:    "session-dir",
	Usage:   "The directory of the file session backend, the user config dir when empty",
	Sources: cli.EnvVars("MURMUR_SESSION_DIR"),
}

var NATSURL = &cli.StringFlag{
	Name:    "nats-url",
	Aliases: []string{"n"},
	Usage:   "The URL of the NATS server",
	Value:   libnats.DefaultURL,
	Sources: cli.EnvVars("NATS_URL"),
}

var InitNATS = &cli.BoolFlag{
	Name:        "nats-init",
	Usage:       "Initialize the NATS server: create the stream and the key-value bucket",
	DefaultText: "false",
	Value:       false,
	Sources:     cli.EnvVars("NATS_INIT"),
}

var RedisURL = &cli.StringFlag{
	Name:    "redis-url",
	Usage:   "The URL of the Redis server",
	Value:   "redis://localhost:6379/0",
	Sources: cli.EnvVars("REDIS_URL"),
}

var DatabaseURL = &cli.StringFlag{
	Name:    "database-url",
	Usage:   "The Postgres DSN of the postgres session backend",
	Sources: cli.EnvVars("DATABASE_URL"),
}

var PageSize = &cli.IntFlag{
	Name:    "page-size",
	Usage:   "The number of items per page",
	Value:   20,
	Sources: cli.EnvVars("MURMUR_PAGE_SIZE"),
}

var FetchRetries = &cli.IntFlag{
	Name:    "fetch-retries",
	Usage:   "How many times a failed page fetch is repeated",
	Value:   2,
	Sources: cli.EnvVars("MURMUR_FETCH_RETRIES"),
}

var RequestTimeout = &cli.DurationFlag{
	Name:    "request-timeout",
	Usage:   "The timeout of a single database request",
	Value:   10 * time.Second,
	Sources: cli.EnvVars("MURMUR_REQUEST_TIMEOUT"),
}

var MetricsAddr = &cli.StringFlag{
	Name:    "metrics-addr",
	Usage:   "The listen address of the metrics server started by watch, disabled when empty",
	Value:   ":9090",
	Sources: cli.EnvVars("MURMUR_METRICS_ADDR"),
}

var ForwardEvents = &cli.BoolFlag{
	Name:        "forward-events",
	Usage:       "Publish watched reaction events to NATS JetStream instead of printing them",
	DefaultText: "false",
	Sources:     cli.EnvVars("MURMUR_FORWARD_EVENTS"),
}

var LogLevel = &cli.StringFlag{
	Name:      "log-level",
	Aliases:   []string{"l"},
	Usage:     "The level of the logs",
	Value:     "warn",
	Validator: oneOf("log level", validLogLevels),
	Sources:   cli.EnvVars("LOG_LEVEL"),
}

var Output = &cli.StringFlag{
	Name:      "output",
	Aliases:   []string{"o"},
	Usage:     fmt.Sprintf("The output format, one of %v", validOutputs),
	Value:     "text",
	Validator: oneOf("output", validOutputs),
	Sources:   cli.EnvVars("MURMUR_OUTPUT"),
}

var Password = &cli.StringFlag{
	Name:     "password",
	Usage:    "The account password",
	Required: true,
	Sources:  cli.EnvVars("MURMUR_PASSWORD"),
}

var Pages = &cli.IntFlag{
	Name:  "pages",
	Usage: "How many pages to load",
	Value: 1,
}

var User = &cli.StringFlag{
	Name:  "user",
	Usage: "Only show posts of this user",
}

// Global lists the flags every command accepts, they map onto config.Config.
var Global = []cli.Flag{
	Endpoint,
	HTTPEndpoint,
	Namespace,
	Database,
	Access,
	Profile,
	SessionBackend,
	SessionDir,
	NATSURL,
	InitNATS,
	RedisURL,
	DatabaseURL,
	PageSize,
	FetchRetries,
	RequestTimeout,
	MetricsAddr,
	ForwardEvents,
	LogLevel,
	Output,
}
