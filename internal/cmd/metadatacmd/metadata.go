// Package metadatacmd provides commands for individual metadata steps.
package metadatacmd

import (
	"github.com/spf13/cobra"

	"github.com/open-cli-collective/sfretrieve/internal/cmd/root"
)

// Register registers the metadata command with the root command.
func Register(parent *cobra.Command, opts *root.Options) {
	parent.AddCommand(NewCommand(opts))
}

// NewCommand creates the metadata command.
func NewCommand(opts *root.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Run the listing or retrieval step on its own",
		Long: `Run a single step of the sfretrieve pipeline.

Running sfretrieve without a subcommand lists every metadata type and
retrieves all of them. These commands do one half of that.

Examples:
  sfretrieve metadata types -o Acme                       # List metadata types
  sfretrieve metadata retrieve -o Acme --type ApexClass   # Retrieve one type
  sfretrieve metadata retrieve -o Acme --type Flow,Layout # Retrieve several`,
	}

	cmd.AddCommand(newTypesCommand(opts))
	cmd.AddCommand(newRetrieveCommand(opts))

	return cmd
}
