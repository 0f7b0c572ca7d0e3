package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dalemusser/venturecamp/internal/app/system/navigation"
	"github.com/dalemusser/venturecamp/internal/app/system/routes"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes <path>...",
	Short: "Show how the guard classifies each path",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printRoutes(cmd, routes.Default(), args)
	},
}

func printRoutes(cmd *cobra.Command, table *routes.Table, paths []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tKIND\tSIGNED OUT")
	for _, p := range paths {
		kind := table.Classify(p)
		action := "allow"
		if kind == routes.Protected {
			if routes.IsAPI(p) {
				action = "401"
			} else {
				action = "redirect " + navigation.LoginURL(p)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p, kind, action)
	}
	return tw.Flush()
}
