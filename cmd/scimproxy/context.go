package main

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/imulab/scim-proxy/internal/cache"
	"github.com/imulab/scim-proxy/internal/coordinator"
	"github.com/imulab/scim-proxy/internal/upstream"
)

// applicationContext holds the process-wide dependencies assembled at
// startup (§9 "Process-wide cache and client"): the cache and upstream
// client are exposed as fields on this struct, not package globals, so
// tests can substitute fakes.
type applicationContext struct {
	args   arguments
	logger *zerolog.Logger
	client *upstream.Client
	cache  *cache.Cache
	coord  *coordinator.Coordinator
}

func newApplicationContext(args arguments) *applicationContext {
	logger := args.logging.Logger()

	client := upstream.NewWithPoolSize(args.upstream.BaseURL, time.Duration(args.upstream.TimeoutSecs)*time.Second, args.proxy.Workers)
	respCache := cache.New(time.Duration(args.cache.TTLSecs)*time.Second, args.cache.MaxSize)

	coord := coordinator.New(client, respCache, coordinator.Config{
		MaxFilterComplexity: args.filter.MaxComplexity,
		UpstreamPageSize:    args.upstream.PageSize,
		FetchMultiplier:     args.filter.FetchMultiplier,
		MaxFetchSize:        args.filter.MaxFetchSize,
		UpstreamNativePatch: args.upstream.NativePatch,
	})

	return &applicationContext{
		args:   args,
		logger: logger,
		client: client,
		cache:  respCache,
		coord:  coord,
	}
}
