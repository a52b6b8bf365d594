package metadatacmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-cli-collective/sfretrieve/api/metadata"
	"github.com/open-cli-collective/sfretrieve/internal/cmd/root"
	"github.com/open-cli-collective/sfretrieve/internal/retrieval"
)

func newRetrieveCommand(opts *root.Options) *cobra.Command {
	var (
		targetOrg string
		types     []string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Retrieve specific metadata types from the org",
		Long: `Retrieve the named metadata types from the org without listing first.

Useful for re-running the types that failed in a full run.

Examples:
  sfretrieve metadata retrieve -o Acme --type ApexClass
  sfretrieve metadata retrieve -o Acme --type ApexClass,ApexTrigger --concurrency 2
  sfretrieve metadata retrieve -o Acme --type Flow --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetOrg == "" {
				return fmt.Errorf("--target-org is required")
			}
			if len(types) == 0 {
				return fmt.Errorf("--type is required")
			}
			return runRetrieve(cmd.Context(), opts, targetOrg, types, dryRun)
		},
	}

	cmd.Flags().StringVarP(&targetOrg, "target-org", "o", "", "Alias or username of the org (required)")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Metadata type to retrieve (required, repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print retrieve commands instead of running them")

	return cmd
}

func runRetrieve(ctx context.Context, opts *root.Options, targetOrg string, types []string, dryRun bool) error {
	settings, err := opts.Settings()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	client, err := opts.SFClient()
	if err != nil {
		return fmt.Errorf("failed to create sf client: %w", err)
	}

	listing := &metadata.DescribeMetadataResult{}
	for _, t := range types {
		listing.MetadataObjects = append(listing.MetadataObjects, metadata.MetadataType{XMLName: t})
	}

	progress := opts.View()
	if progress.IsStructured() {
		progress.SetOutput(opts.Stderr)
	}

	p := retrieval.New(client, progress, retrieval.Options{
		Concurrency: settings.Concurrency,
		DryRun:      dryRun,
	})
	summary, err := p.RetrieveAll(ctx, retrieval.Params{TargetOrg: targetOrg}, listing)
	if summary != nil {
		if rerr := summary.Render(opts.View()); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}
