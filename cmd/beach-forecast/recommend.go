package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func recommendCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Fetch all beaches once and print the ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = c.close(context.Background()) }()

			recs := c.service.Recommend(cmd.Context())

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BEACH\tSCORE\tBEST TIME\tWEATHER\tERROR")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\t%s\n", r.Name, r.Score, r.BestTime, r.CurrentWeather, r.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print recommendations as JSON")
	return cmd
}

func beachesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "beaches",
		Short: "List the configured beaches",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = c.close(context.Background()) }()

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tLAT\tLON")
			for _, l := range c.service.Locations() {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\n", l.ID, l.Name, l.Latitude, l.Longitude)
			}
			return w.Flush()
		},
	}
}
