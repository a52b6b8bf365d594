// Package root provides the root command and global options.
package root

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-cli-collective/sfretrieve/api/sf"
	"github.com/open-cli-collective/sfretrieve/internal/config"
	clierrors "github.com/open-cli-collective/sfretrieve/internal/errors"
	"github.com/open-cli-collective/sfretrieve/internal/version"
	"github.com/open-cli-collective/sfretrieve/internal/view"
)

// Options contains global options for commands
type Options struct {
	Format      string
	NoColor     bool
	Verbose     bool
	APIVersion  string
	SFPath      string
	Concurrency int
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer

	// testRunner is used for testing; if set, SFClient() runs commands through it
	testRunner sf.Runner
	// testConfig is used for testing; if set, Settings() skips loading the config file
	testConfig *config.Config
}

// View returns a configured View instance
func (o *Options) View() *view.View {
	v := view.NewWithFormat(o.Format, o.NoColor)
	v.Verbose = o.Verbose
	v.Out = o.Stdout
	v.Err = o.Stderr
	return v
}

// Settings returns the effective configuration.
// Precedence: flags → environment → config file → built-in defaults.
func (o *Options) Settings() (config.Config, error) {
	var cfg config.Config
	if o.testConfig != nil {
		cfg = *o.testConfig
	} else {
		loaded, err := config.Load()
		if err != nil {
			return config.Config{}, err
		}
		cfg = *loaded
	}

	if o.SFPath != "" {
		cfg.SFPath = o.SFPath
	}
	if o.APIVersion != "" {
		cfg.APIVersion = o.APIVersion
	}
	if o.Concurrency != 0 {
		if o.Concurrency < 0 {
			return config.Config{}, fmt.Errorf("--concurrency must be at least 1, got %d", o.Concurrency)
		}
		cfg.Concurrency = o.Concurrency
	}

	return cfg.WithDefaults(), nil
}

// SFClient creates a new sf client from the effective settings
func (o *Options) SFClient() (*sf.Client, error) {
	cfg, err := o.Settings()
	if err != nil {
		return nil, err
	}

	var runner sf.Runner = sf.ExecRunner{}
	if o.testRunner != nil {
		runner = o.testRunner
	}

	return sf.New(sf.ClientConfig{
		Path:       cfg.SFPath,
		APIVersion: cfg.APIVersion,
		Runner:     runner,
	})
}

// SetRunner sets a test runner (for testing only)
func (o *Options) SetRunner(r sf.Runner) {
	o.testRunner = r
}

// SetConfig sets a test configuration (for testing only)
func (o *Options) SetConfig(cfg *config.Config) {
	o.testConfig = cfg
}

// NewCmd creates the root command and returns the options struct
func NewCmd() (*cobra.Command, *Options) {
	opts := &Options{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	cmd := &cobra.Command{
		Use:   "sfretrieve --target-org <orgAlias> --output-file <metadataJsonFile>",
		Short: "Retrieve every metadata type from a Salesforce org",
		Long: `sfretrieve lists the metadata types of a Salesforce org with the sf CLI
and then runs 'sf project retrieve start' once per listed type.

The sf CLI must be installed and authenticated against the target org.
Run 'sfretrieve init' to store defaults such as the sf path.`,
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return view.ValidateFormat(opts.Format)
		},
	}
	cmd.SetVersionTemplate("sfretrieve " + version.Full() + "\n")

	// Any flag parse problem on the root surface is a usage error
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w (%v)", clierrors.ErrUsage, err)
	})

	// Global flags - bound to opts struct
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "table", "Output format: table, json, plain, yaml")
	cmd.PersistentFlags().BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().StringVar(&opts.APIVersion, "api-version", "", "API version for the metadata-type listing (default: 57.0)")
	cmd.PersistentFlags().StringVar(&opts.SFPath, "sf-path", "", "Path to the sf executable (default: sf)")
	cmd.PersistentFlags().IntVarP(&opts.Concurrency, "concurrency", "c", 0, "Maximum concurrent retrievals (default: 4)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return view.ValidFormats(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd, opts
}

// RegisterCommands registers subcommands with the root command
func RegisterCommands(root *cobra.Command, opts *Options, registrars ...func(*cobra.Command, *Options)) {
	for _, register := range registrars {
		register(root, opts)
	}
}
