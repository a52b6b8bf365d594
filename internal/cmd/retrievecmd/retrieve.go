// Package retrievecmd wires the list-then-retrieve pipeline onto the root command.
package retrievecmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-cli-collective/sfretrieve/internal/cmd/root"
	clierrors "github.com/open-cli-collective/sfretrieve/internal/errors"
	"github.com/open-cli-collective/sfretrieve/internal/retrieval"
)

type flags struct {
	targetOrg   string
	outputFile  string
	dryRun      bool
	skipListing bool
	exclude     []string
}

// Register makes the root command run the pipeline.
//
// Unknown flags and positional arguments are ignored; only --target-org and
// --output-file are required.
func Register(parent *cobra.Command, opts *root.Options) {
	var f flags

	parent.Example = `  sfretrieve --target-org Acme_PROD --output-file Acme_PROD_metadata.json
  sfretrieve -o Acme_PROD -f metadata.json --concurrency 8
  sfretrieve -o Acme_PROD -f metadata.json --skip-listing --exclude Document,EmailTemplate
  sfretrieve -o Acme_PROD -f metadata.json --dry-run`
	parent.Args = cobra.ArbitraryArgs
	parent.FParseErrWhitelist.UnknownFlags = true
	parent.RunE = func(cmd *cobra.Command, args []string) error {
		if f.targetOrg == "" || f.outputFile == "" {
			return clierrors.ErrUsage
		}
		return run(cmd.Context(), opts, f)
	}

	parent.Flags().StringVarP(&f.targetOrg, "target-org", "o", "", "Alias or username of the org (required)")
	parent.Flags().StringVarP(&f.outputFile, "output-file", "f", "", "Where sf writes the metadata-type listing (required)")
	parent.Flags().BoolVar(&f.dryRun, "dry-run", false, "Print retrieve commands instead of running them")
	parent.Flags().BoolVar(&f.skipListing, "skip-listing", false, "Reuse an existing listing file instead of running the listing")
	parent.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Metadata types to skip (repeatable, comma-separated)")
}

func run(ctx context.Context, opts *root.Options, f flags) error {
	settings, err := opts.Settings()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	client, err := opts.SFClient()
	if err != nil {
		return fmt.Errorf("failed to create sf client: %w", err)
	}

	// Progress goes to stderr when stdout carries a json/yaml document.
	progress := opts.View()
	if progress.IsStructured() {
		progress.SetOutput(opts.Stderr)
	}
	progress.Debug("Using %s (API %s) with concurrency %d", client.Path(), client.APIVersion(), settings.Concurrency)

	p := retrieval.New(client, progress, retrieval.Options{
		Concurrency: settings.Concurrency,
		DryRun:      f.dryRun,
		SkipListing: f.skipListing,
		Exclude:     f.exclude,
	})

	summary, err := p.Run(ctx, retrieval.Params{
		TargetOrg:  f.targetOrg,
		OutputFile: f.outputFile,
	})
	if summary != nil {
		if rerr := summary.Render(opts.View()); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}
