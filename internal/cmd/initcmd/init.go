// Package initcmd provides the init command for storing default settings.
package initcmd

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/open-cli-collective/sfretrieve/internal/cmd/root"
	"github.com/open-cli-collective/sfretrieve/internal/config"
)

var apiVersionPattern = regexp.MustCompile(`^v?\d{2,3}\.0$`)

// Register registers the init command with the parent command.
func Register(parent *cobra.Command, opts *root.Options) {
	parent.AddCommand(NewCommand(opts))
}

// NewCommand returns the init command.
func NewCommand(opts *root.Options) *cobra.Command {
	var (
		noPrompt bool
		noVerify bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Store default settings",
		Long: `Guided setup for sfretrieve defaults.

Stores the sf executable, the listing API version and the retrieval
concurrency in the config file. Global flags (--sf-path, --api-version,
--concurrency) pre-fill the form; with --no-prompt they are saved as-is.

Authentication is handled by the sf CLI itself: run 'sf org login web'
before using sfretrieve against a new org.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), opts, noPrompt, noVerify)
		},
	}

	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Save flag and existing values without the interactive form")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip running 'sf --version' after setup")

	return cmd
}

func runInit(ctx context.Context, opts *root.Options, noPrompt, noVerify bool) error {
	v := opts.View()

	cfg, err := config.Load()
	if err != nil {
		v.Warning("Ignoring unreadable configuration: %v", err)
		cfg = &config.Config{}
	}

	// Priority: global flag > existing config value > default
	formPath := firstNonEmpty(opts.SFPath, cfg.SFPath, config.DefaultSFPath)
	formVersion := firstNonEmpty(opts.APIVersion, cfg.APIVersion, config.DefaultAPIVersion)
	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = cfg.Concurrency
	}
	if concurrency == 0 {
		concurrency = config.DefaultConcurrency
	}
	formConcurrency := strconv.Itoa(concurrency)

	if !noPrompt {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("sf executable").
					Description("Name on PATH or absolute path to the Salesforce CLI").
					Value(&formPath).
					Validate(validateSFPath),

				huh.NewInput().
					Title("API version").
					Description("Used for 'sf org list metadata-types'").
					Placeholder(config.DefaultAPIVersion).
					Value(&formVersion).
					Validate(validateAPIVersion),

				huh.NewInput().
					Title("Concurrency").
					Description("Maximum number of sf retrieve processes at once").
					Value(&formConcurrency).
					Validate(validateConcurrency),
			),
		)

		if err := form.Run(); err != nil {
			return err
		}
	}

	for _, check := range []error{
		validateSFPath(formPath),
		validateAPIVersion(formVersion),
		validateConcurrency(formConcurrency),
	} {
		if check != nil {
			return check
		}
	}

	cfg.SFPath = strings.TrimSpace(formPath)
	cfg.APIVersion = strings.TrimPrefix(strings.TrimSpace(formVersion), "v")
	cfg.Concurrency, _ = strconv.Atoi(strings.TrimSpace(formConcurrency))

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	path, _ := config.GetConfigPath()
	v.Success("Configuration saved to %s", config.ShortenPath(path))

	if !noVerify {
		client, err := opts.SFClient()
		if err != nil {
			return fmt.Errorf("failed to create sf client: %w", err)
		}
		version, err := client.Version(ctx)
		if err != nil {
			v.Error("Could not run %s --version", client.Path())
			return fmt.Errorf("sf CLI check failed: %w", err)
		}
		v.Success("Found %s", version)
	}

	v.Info("\nSetup complete! Try: sfretrieve --target-org <alias> --output-file metadata.json")
	return nil
}

func validateSFPath(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("sf executable is required")
	}
	return nil
}

func validateAPIVersion(s string) error {
	if !apiVersionPattern.MatchString(strings.TrimSpace(s)) {
		return fmt.Errorf("invalid API version %q (expected e.g. 57.0)", s)
	}
	return nil
}

func validateConcurrency(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("concurrency must be a positive integer, got %q", s)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
