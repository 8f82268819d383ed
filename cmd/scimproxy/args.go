package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

// upstreamArgs configures the legacy SCIM service the proxy fronts.
type upstreamArgs struct {
	BaseURL     string
	TimeoutSecs int
	NativePatch bool
	PageSize    int
}

func (a *upstreamArgs) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "upstream-base-url",
			Usage:       "Base URL of the legacy SCIM service this proxy fronts",
			EnvVars:     []string{"UPSTREAM_BASE_URL"},
			Required:    true,
			Destination: &a.BaseURL,
		},
		&cli.IntFlag{
			Name:        "upstream-timeout",
			Usage:       "Per-request timeout to the upstream, in seconds",
			EnvVars:     []string{"UPSTREAM_TIMEOUT"},
			Value:       10,
			Destination: &a.TimeoutSecs,
		},
		&cli.BoolFlag{
			Name:        "upstream-native-patch",
			Usage:       "Attempt an upstream PATCH before falling back to read-modify-write",
			EnvVars:     []string{"UPSTREAM_NATIVE_PATCH"},
			Value:       false,
			Destination: &a.NativePatch,
		},
		&cli.IntFlag{
			Name:        "upstream-page-size",
			Usage:       "Maximum page size the upstream honors for list requests",
			EnvVars:     []string{"UPSTREAM_PAGE_SIZE"},
			Value:       100,
			Destination: &a.PageSize,
		},
	}
}

// proxyArgs configures the proxy's own HTTP listener.
type proxyArgs struct {
	Host    string
	Port    int
	Workers int
}

func (a *proxyArgs) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "proxy-host",
			Usage:       "Interface the proxy listens on; empty binds all interfaces",
			EnvVars:     []string{"PROXY_HOST"},
			Destination: &a.Host,
		},
		&cli.IntFlag{
			Name:        "proxy-port",
			Usage:       "Port the proxy listens on",
			EnvVars:     []string{"PROXY_PORT"},
			Value:       8080,
			Destination: &a.Port,
		},
		&cli.IntFlag{
			Name:        "proxy-workers",
			Usage:       "Parallelism hint bounding the upstream client's pooled connections per host",
			EnvVars:     []string{"PROXY_WORKERS"},
			Value:       32,
			Destination: &a.Workers,
		},
	}
}

func (a *proxyArgs) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// cacheArgs configures the response cache.
type cacheArgs struct {
	TTLSecs int
	MaxSize int
}

func (a *cacheArgs) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "cache-ttl",
			Usage:       "Response cache entry TTL, in seconds",
			EnvVars:     []string{"CACHE_TTL"},
			Value:       30,
			Destination: &a.TTLSecs,
		},
		&cli.IntFlag{
			Name:        "cache-max-size",
			Usage:       "Maximum number of response cache entries",
			EnvVars:     []string{"CACHE_MAX_SIZE"},
			Value:       1000,
			Destination: &a.MaxSize,
		},
	}
}

// filterArgs bounds the filter language's worst-case cost.
type filterArgs struct {
	MaxComplexity   int
	MaxFetchSize    int
	FetchMultiplier int
}

func (a *filterArgs) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "max-filter-complexity",
			Usage:       "Maximum filter AST node count before rejecting with tooMany",
			EnvVars:     []string{"MAX_FILTER_COMPLEXITY"},
			Value:       50,
			Destination: &a.MaxComplexity,
		},
		&cli.IntFlag{
			Name:        "max-filter-fetch-size",
			Usage:       "Upper bound on upstream records fetched to satisfy one filtered list request",
			EnvVars:     []string{"MAX_FILTER_FETCH_SIZE"},
			Value:       2000,
			Destination: &a.MaxFetchSize,
		},
		&cli.IntFlag{
			Name:        "filter-fetch-multiplier",
			Usage:       "Multiple of the requested count the adapter is willing to fetch from upstream",
			EnvVars:     []string{"FILTER_FETCH_MULTIPLIER"},
			Value:       20,
			Destination: &a.FetchMultiplier,
		},
	}
}

// loggingArgs configures structured logging, grounded on teacher's
// cmd/internal/args/logger.go.
type loggingArgs struct {
	Level string
}

func (a *loggingArgs) Logger() *zerolog.Logger {
	var level zerolog.Level
	switch a.Level {
	case "INFO":
		level = zerolog.InfoLevel
	case "ERROR":
		level = zerolog.ErrorLevel
	case "DEBUG":
		level = zerolog.DebugLevel
	case "WARN":
		level = zerolog.WarnLevel
	case "FATAL":
		level = zerolog.FatalLevel
	default:
		level = zerolog.InfoLevel
	}

	l := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	return &l
}

func (a *loggingArgs) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Logger output level: INFO|ERROR|DEBUG|WARN|FATAL",
			EnvVars:     []string{"LOG_LEVEL"},
			Value:       "INFO",
			Destination: &a.Level,
		},
	}
}

// arguments aggregates every per-concern flag group into the proxy's full
// configuration surface (§6).
type arguments struct {
	upstream upstreamArgs
	proxy    proxyArgs
	cache    cacheArgs
	filter   filterArgs
	logging  loggingArgs
}

func (a *arguments) Flags() []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, a.upstream.Flags()...)
	flags = append(flags, a.proxy.Flags()...)
	flags = append(flags, a.cache.Flags()...)
	flags = append(flags, a.filter.Flags()...)
	flags = append(flags, a.logging.Flags()...)
	return flags
}
