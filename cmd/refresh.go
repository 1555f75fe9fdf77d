package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geoattr/internal/config"
	"github.com/sells-group/geoattr/internal/fetcher"
	"github.com/sells-group/geoattr/internal/refresh"
	"github.com/sells-group/geoattr/internal/resilience"
)

var refreshSource string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Download the shapefile configuration and datasets from the source",
	RunE: func(cmd *cobra.Command, args []string) error {
		source := refreshSource
		if source == "" {
			source = cfg.Refresh.SourceURL
		}
		if source == "" {
			return eris.New("refresh: no source (set --source or refresh.source_url)")
		}

		// An explicit directory may not exist before the first refresh.
		if cfg.Paths.ConfigDir != "" {
			if err := os.MkdirAll(cfg.Paths.ConfigDir, 0o755); err != nil {
				return eris.Wrap(err, "refresh: create config dir")
			}
		}
		configDir, err := config.LocateDirectory(config.LocateOptions{Explicit: cfg.Paths.ConfigDir})
		if err != nil {
			return err
		}
		datasetsDir := cfg.Paths.DatasetsDir
		if datasetsDir == "" {
			datasetsDir = configDir
		}

		syncer := &refresh.Syncer{
			Fetcher: fetcher.New(fetcher.Options{
				Timeout:    time.Duration(cfg.Refresh.TimeoutSecs) * time.Second,
				RatePerSec: cfg.Refresh.RatePerSec,
			}),
			Retry:       resilience.FromRefreshConfig(cfg.Refresh),
			Concurrency: refresh.DefaultConcurrency,
		}

		rep, err := syncer.Sync(cmd.Context(), source, configDir, datasetsDir)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "datasets:\t%d\nfiles:\t%d\nbytes:\t%d\n", rep.Datasets, rep.Files, rep.Bytes)
		return err
	},
}

func init() {
	refreshCmd.Flags().StringVar(&refreshSource, "source", "", "base URL (http, https or ftp) holding the configuration and datasets")
	rootCmd.AddCommand(refreshCmd)
}
