package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoattr/internal/config"
	"github.com/sells-group/geoattr/internal/dataset"
	"github.com/sells-group/geoattr/internal/mapping"
	"github.com/sells-group/geoattr/internal/resolver"
	"github.com/sells-group/geoattr/internal/resultcache"
)

// lookupEnv holds everything the lookup, serve and cache commands need.
type lookupEnv struct {
	ConfigDir   string
	DatasetsDir string
	Mapping     *mapping.Mapping
	Registry    *dataset.Registry
	Memory      *resultcache.Memory
	Store       resultcache.Store
	Resolver    *resolver.Resolver
}

// Close releases the persistent store.
func (e *lookupEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close result store", zap.Error(err))
		}
	}
}

// locateDirs returns the configuration and datasets directories.
func locateDirs() (string, string, error) {
	configDir, err := config.LocateDirectory(config.LocateOptions{Explicit: cfg.Paths.ConfigDir})
	if err != nil {
		return "", "", err
	}
	datasetsDir := cfg.Paths.DatasetsDir
	if datasetsDir == "" {
		datasetsDir = configDir
	}
	return configDir, datasetsDir, nil
}

// initLookup locates the configuration, loads the variable mapping and opens
// both cache tiers. reg may be nil. Callers should defer env.Close().
func initLookup(ctx context.Context, reg prometheus.Registerer) (*lookupEnv, error) {
	configDir, datasetsDir, err := locateDirs()
	if err != nil {
		return nil, err
	}

	configPath, err := config.ConfigFilePath(configDir, cfg.Paths.ConfigFile)
	if err != nil {
		return nil, err
	}

	m, err := mapping.Load(configPath, datasetsDir)
	if err != nil {
		return nil, eris.Wrap(err, "load variable mapping")
	}

	st, err := resultcache.Open(ctx, cfg.Store, configDir)
	if err != nil {
		return nil, eris.Wrap(err, "open result store")
	}

	registry := dataset.NewRegistry(m, dataset.Options{
		CRS:      cfg.Dataset.CRS,
		Encoding: cfg.Dataset.Encoding,
		MemoSize: cfg.Dataset.MemoSize,
	})
	memory := resultcache.NewMemory(cfg.Cache.MemorySize, cfg.Cache.MemoryTTL)

	var opts []resolver.Option
	if reg != nil {
		opts = append(opts, resolver.WithMetrics(resolver.NewMetrics(reg)))
	}

	zap.L().Debug("lookup environment ready",
		zap.String("config_dir", configDir),
		zap.String("datasets_dir", datasetsDir),
		zap.Int("variables", len(m.Variables())),
		zap.String("store", cfg.Store.Driver),
	)

	return &lookupEnv{
		ConfigDir:   configDir,
		DatasetsDir: datasetsDir,
		Mapping:     m,
		Registry:    registry,
		Memory:      memory,
		Store:       st,
		Resolver:    resolver.New(registry, st, memory, opts...),
	}, nil
}
