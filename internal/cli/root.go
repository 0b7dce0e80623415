package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configPath string
	outputJSON bool
	noProgress bool
	debugMode  bool
)

// Execute runs the root cobra command. SIGINT and SIGTERM cancel in-flight
// requests and downloads.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "drivermgr",
		Short:         "Resolve and cache browser automation drivers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a drivermgr.yaml config file")
	flags.BoolVar(&outputJSON, "json", false, "Output machine-readable JSON")
	flags.BoolVar(&noProgress, "no-progress", false, "Disable interactive progress output")
	flags.BoolVar(&debugMode, "debug", false, "Force debug logging")
	addConfigFlags(flags)

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newBrowserCmd())
	cmd.AddCommand(newDiscoverCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newBrowsersCmd())
	return cmd
}

// addConfigFlags declares one flag per config key. Values are read back
// through config.Load, so only flags the user changed override the file and
// environment.
func addConfigFlags(flags *pflag.FlagSet) {
	flags.String("browser", "", "Browser name, or a comma-separated list for resolve (chrome, edge, firefox)")
	flags.String("browser-version", "", "Browser version: major, full version, or channel (beta, dev, canary, nightly)")
	flags.String("driver-version", "", "Driver version; skips resolution")
	flags.String("browser-path", "", "Path to the browser executable")
	flags.String("driver-path", "", "Path to an existing driver; skips resolution and download")
	flags.String("os", "", "Target operating system (windows, linux, macos)")
	flags.String("arch", "", "Target architecture (x86, x86_64, aarch64)")
	flags.String("proxy", "", "Proxy URL for every request")
	flags.Int("timeout", 0, "Per-request timeout in seconds")
	flags.Int("ttl", 0, "Metadata cache lifetime in seconds; 0 disables the cache")
	flags.Bool("offline", false, "Never touch the network")
	flags.String("cache-path", "", "Cache root directory")
	flags.String("driver-mirror", "", "Base URL replacing the driver download host")
	flags.String("browser-mirror", "", "Base URL replacing the browser download host")
	flags.Bool("avoid-download", false, "Never download browsers")
	flags.Float64("requests-per-second", 0, "Pace outbound requests; 0 disables pacing")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (text, json)")
	flags.String("log-file", "", "Also write logs to a rotating file")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile on exit")
}
