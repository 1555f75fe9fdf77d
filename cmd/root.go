package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geoattr/internal/config"
)

var (
	cfg          *config.Config
	configDirArg string
)

var rootCmd = &cobra.Command{
	Use:   "geoattr",
	Short: "Resolve geographic attributes for coordinates",
	Long:  "Maps (x, y, variable) to the label of the polygon containing the point, using configured shapefiles with in-memory and persistent result caches.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if configDirArg != "" {
			c.Paths.ConfigDir = configDirArg
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirArg, "config-dir", "", "shapefile configuration directory (default: located from environment)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
