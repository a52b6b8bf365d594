// Package completion provides shell completion support.
package completion

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-cli-collective/sfretrieve/internal/cmd/root"
)

// Register registers the completion command
func Register(parent *cobra.Command, opts *root.Options) {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Print a completion script for sfretrieve to stdout.

  bash        source <(sfretrieve completion bash)
  zsh         sfretrieve completion zsh > "${fpath[1]}/_sfretrieve"
  fish        sfretrieve completion fish > ~/.config/fish/completions/sfretrieve.fish
  powershell  sfretrieve completion powershell | Out-String | Invoke-Expression

Completion covers subcommands and flags, including --format values.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out io.Writer = os.Stdout
			if opts != nil && opts.Stdout != nil {
				out = opts.Stdout
			}

			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	parent.AddCommand(cmd)
}
