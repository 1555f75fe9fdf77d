package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/geoattr/internal/config"
	"github.com/sells-group/geoattr/internal/mapping"
)

var variablesCmd = &cobra.Command{
	Use:   "variables",
	Short: "List resolvable variables and the dataset each comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, datasetsDir, err := locateDirs()
		if err != nil {
			return err
		}
		configPath, err := config.ConfigFilePath(configDir, cfg.Paths.ConfigFile)
		if err != nil {
			return err
		}
		m, err := mapping.Load(configPath, datasetsDir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, v := range m.Variables() {
			path, _ := m.DatasetPath(v)
			if _, err := fmt.Fprintf(out, "%s\t%s\n", v, path); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(variablesCmd)
}
