package metadatacmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/open-cli-collective/sfretrieve/internal/cmd/root"
	"github.com/open-cli-collective/sfretrieve/internal/retrieval"
)

func newTypesCommand(opts *root.Options) *cobra.Command {
	var (
		targetOrg   string
		outputFile  string
		skipListing bool
	)

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List available metadata types",
		Long: `List the metadata types available in the org.

The listing is written by 'sf org list metadata-types'. Without --output-file
it goes to a temporary file that is removed afterwards.

Examples:
  sfretrieve metadata types -o Acme
  sfretrieve metadata types -o Acme -f types.json --format json
  sfretrieve metadata types -f types.json --skip-listing`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if skipListing && outputFile == "" {
				return fmt.Errorf("--output-file is required with --skip-listing")
			}
			if !skipListing && targetOrg == "" {
				return fmt.Errorf("--target-org is required")
			}
			return runTypes(cmd.Context(), opts, targetOrg, outputFile, skipListing)
		},
	}

	cmd.Flags().StringVarP(&targetOrg, "target-org", "o", "", "Alias or username of the org (required unless --skip-listing)")
	cmd.Flags().StringVarP(&outputFile, "output-file", "f", "", "Where sf writes the listing (default: temporary file)")
	cmd.Flags().BoolVar(&skipListing, "skip-listing", false, "Read an existing listing file instead of running sf")

	return cmd
}

func runTypes(ctx context.Context, opts *root.Options, targetOrg, outputFile string, skipListing bool) error {
	client, err := opts.SFClient()
	if err != nil {
		return fmt.Errorf("failed to create sf client: %w", err)
	}

	if outputFile == "" {
		// sf creates the file itself; a unique name keeps parallel runs apart
		outputFile = filepath.Join(os.TempDir(), fmt.Sprintf("sfretrieve-types-%s.json", uuid.New().String()))
		defer os.Remove(outputFile)
	}

	v := opts.View()
	progress := opts.View()
	if progress.IsStructured() {
		progress.SetOutput(opts.Stderr)
	}

	p := retrieval.New(client, progress, retrieval.Options{SkipListing: skipListing})
	listing, err := p.Discover(ctx, retrieval.Params{TargetOrg: targetOrg, OutputFile: outputFile})
	if err != nil {
		return err
	}

	// Sort by name for consistent output
	types := listing.Sorted()

	headers := []string{"Type Name", "Directory", "Suffix", "In Folder", "Meta File"}
	rows := make([][]string, 0, len(types))
	for _, mt := range types {
		name := mt.XMLName
		if name == "" {
			name = "-"
		}
		rows = append(rows, []string{
			name,
			mt.DirectoryName,
			mt.Suffix,
			strconv.FormatBool(mt.InFolder),
			strconv.FormatBool(mt.MetaFile),
		})
	}

	if err := v.Render(headers, rows, types); err != nil {
		return err
	}
	if !v.IsStructured() {
		v.Info("\n%d type(s)", len(types))
	}
	return nil
}
