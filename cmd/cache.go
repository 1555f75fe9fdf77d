package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/geoattr/internal/resultcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the persistent result store",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of stored labels",
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, _, err := locateDirs()
		if err != nil {
			return err
		}
		st, err := resultcache.Open(cmd.Context(), cfg.Store, configDir)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.Count(cmd.Context())
		if err != nil {
			return err
		}

		driver := cfg.Store.Driver
		if driver == "" {
			driver = "sqlite"
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "driver:\t%s\nentries:\t%d\n", driver, n)
		return err
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}
