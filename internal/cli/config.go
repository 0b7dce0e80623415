package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"drivermgr/internal/config"
	"drivermgr/internal/vendors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration in YAML",
		RunE:  runConfigShow,
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the effective configuration",
		RunE:  runConfigValidate,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), string(data))
	if len(data) == 0 || data[len(data)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	results := validateConfig(cfg)

	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else if len(results) == 0 {
		fmt.Fprintln(out, "Configuration is valid.")
	} else {
		for _, r := range results {
			fmt.Fprintf(out, "%s: %s\n", strings.ToUpper(r.Level), r.Message)
		}
	}

	if config.HasErrors(results) {
		return fmt.Errorf("configuration has errors")
	}
	return nil
}

// validateConfig checks each entry of a comma-separated browser list,
// aliases included, then the rest of the configuration.
func validateConfig(cfg config.Config) []config.ValidationResult {
	var results []config.ValidationResult
	for _, raw := range strings.Split(cfg.Browser, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if _, ok := vendors.Canonical(raw); !ok {
			results = append(results, config.ValidationResult{
				Level:   "error",
				Message: fmt.Sprintf("browser %q is not supported (known browsers: %s)", raw, strings.Join(vendors.Names(), ", ")),
			})
		}
	}
	rest := cfg
	rest.Browser = ""
	return append(results, rest.Validate(vendors.Names())...)
}
