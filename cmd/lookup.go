package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/geoattr/internal/api"
)

var (
	lookupX        float64
	lookupY        float64
	lookupVariable string
	lookupJSON     bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Resolve the label of one variable at a coordinate",
	Example: `  geoattr lookup --x 319000 --y 6399000 --variable location_county`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initLookup(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Resolver.Lookup(cmd.Context(), lookupX, lookupY, lookupVariable)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if lookupJSON {
			return json.NewEncoder(out).Encode(api.AttributeResponse{
				X: lookupX, Y: lookupY, Variable: lookupVariable,
				Label: res.Label, Found: res.Found,
			})
		}
		if !res.Found {
			_, err = fmt.Fprintln(out, "(absent)")
			return err
		}
		_, err = fmt.Fprintln(out, res.Label)
		return err
	},
}

func init() {
	lookupCmd.Flags().Float64Var(&lookupX, "x", 0, "x coordinate (easting) in the dataset CRS")
	lookupCmd.Flags().Float64Var(&lookupY, "y", 0, "y coordinate (northing) in the dataset CRS")
	lookupCmd.Flags().StringVar(&lookupVariable, "variable", "", "variable to resolve, e.g. location_county")
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "print the result as JSON")
	_ = lookupCmd.MarkFlagRequired("x")
	_ = lookupCmd.MarkFlagRequired("y")
	_ = lookupCmd.MarkFlagRequired("variable")
	rootCmd.AddCommand(lookupCmd)
}
