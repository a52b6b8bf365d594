// Package configcmd provides the config command and subcommands.
package configcmd

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/open-cli-collective/sfretrieve/internal/cmd/root"
	"github.com/open-cli-collective/sfretrieve/internal/config"
)

// Register registers the config command with the parent command.
func Register(parent *cobra.Command, opts *root.Options) {
	parent.AddCommand(NewCommand(opts))
}

// NewCommand returns the config command with subcommands.
func NewCommand(opts *root.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  "View and remove the stored sfretrieve defaults.",
	}

	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newClearCommand(opts))

	return cmd
}

func newShowCommand(opts *root.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the effective sfretrieve settings.

Values are resolved from flags, then environment variables
(SFRETRIEVE_SF_PATH, SFRETRIEVE_API_VERSION or SF_API_VERSION,
SFRETRIEVE_CONCURRENCY), then the config file, then built-in defaults.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts)
		},
	}
}

func newClearCommand(opts *root.Options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the config file",
		Long:  "Remove the stored configuration. Built-in defaults apply afterwards.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(opts, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

type settingsDoc struct {
	SFPath      string `json:"sf_path" yaml:"sf_path"`
	APIVersion  string `json:"api_version" yaml:"api_version"`
	Concurrency int    `json:"concurrency" yaml:"concurrency"`
	ConfigFile  string `json:"config_file" yaml:"config_file"`
	FileExists  bool   `json:"config_file_exists" yaml:"config_file_exists"`
}

func runShow(opts *root.Options) error {
	v := opts.View()

	cfg, err := opts.Settings()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	configPath, err := config.GetConfigPath()
	if err != nil {
		configPath = "(unable to determine)"
	}
	exists := config.Exists()

	if v.IsStructured() {
		return v.Document(settingsDoc{
			SFPath:      cfg.SFPath,
			APIVersion:  cfg.APIVersion,
			Concurrency: cfg.Concurrency,
			ConfigFile:  configPath,
			FileExists:  exists,
		})
	}

	fileState := "not present, using defaults"
	if exists {
		fileState = "present"
	}

	v.Info("sfretrieve Configuration")
	v.Info("========================")
	v.Info("")
	v.Info("sf executable:   %s", cfg.SFPath)
	v.Info("API version:     %s", cfg.APIVersion)
	v.Info("Concurrency:     %d", cfg.Concurrency)
	v.Info("")
	v.Info("Config file:     %s (%s)", config.ShortenPath(configPath), fileState)

	return nil
}

func runClear(opts *root.Options, force bool) error {
	v := opts.View()

	if !config.Exists() {
		v.Info("Nothing to clear.")
		return nil
	}

	if !force {
		confirmed := false
		err := huh.NewConfirm().
			Title("Remove the stored sfretrieve configuration?").
			Affirmative("Yes").
			Negative("No").
			Value(&confirmed).
			Run()
		if err != nil {
			return err
		}
		if !confirmed {
			v.Info("Cancelled.")
			return nil
		}
	}

	if err := config.Clear(); err != nil {
		return fmt.Errorf("failed to clear config: %w", err)
	}

	v.Success("Configuration cleared. Run 'sfretrieve init' to reconfigure.")
	return nil
}
