package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/fda-watch/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>...",
	Short: "Show how raw company names normalize and resolve",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := buildResolver(cfg.Resolver)
		if err != nil {
			return err
		}
		return printResolutions(cmd.OutOrStdout(), r, args)
	},
}

func printResolutions(out io.Writer, r *resolve.Resolver, names []string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RAW\tNORMALIZED\tKEY\tCANONICAL\tMETHOD")
	for _, name := range names {
		res := r.ResolveDetail(name)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", res.Raw, res.Normalized, res.Key, res.Canonical, res.Method)
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
