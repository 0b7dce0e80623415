package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"drivermgr/internal/vendors"
)

func newBrowsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browsers",
		Short: "List supported browsers and their drivers",
		Args:  cobra.NoArgs,
		RunE:  runBrowsers,
	}
}

type supportedBrowser struct {
	Browser string `json:"browser"`
	Driver  string `json:"driver"`
}

func runBrowsers(cmd *cobra.Command, _ []string) error {
	var list []supportedBrowser
	for _, name := range vendors.Names() {
		v, err := vendors.ByName(name, vendors.Options{})
		if err != nil {
			return err
		}
		list = append(list, supportedBrowser{Browser: v.BrowserName(), Driver: v.DriverName()})
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BROWSER\tDRIVER")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%s\n", b.Browser, b.Driver)
	}
	return tw.Flush()
}
