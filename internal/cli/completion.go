package cli

import (
	"strings"

	"github.com/spf13/cobra"

	depio "github.com/matzehuels/depviz/pkg/io"
)

// completionCommand creates the completion command. Besides subcommands and
// flags, the generated scripts complete dependency dumps for the [file]
// argument and node ids read from that dump for [node], [from] and [to].
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for depviz.

Completion covers subcommands, flags, the JSON dump passed as [file], and
file ids from that dump for 'deps', 'recompile', 'path' and 'export':

  $ depviz deps deps.json lib/<TAB>

Bash:
  $ source <(depviz completion bash)
  $ depviz completion bash > /etc/bash_completion.d/depviz

Zsh (requires compinit):
  $ depviz completion zsh > "${fpath[1]}/_depviz"

Fish:
  $ depviz completion fish > ~/.config/fish/completions/depviz.fish

PowerShell:
  PS> depviz completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		PersistentPreRunE:     func(*cobra.Command, []string) error { return nil },
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
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

	return cmd
}

// completeArgs completes the dump file as the first argument and node ids
// for the following nodeArgs arguments.
func completeArgs(nodeArgs int) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		switch {
		case len(args) == 0:
			return []string{"json"}, cobra.ShellCompDirectiveFilterFileExt
		case len(args) <= nodeArgs:
			return nodeCompletions(args[0], toComplete), cobra.ShellCompDirectiveNoFileComp
		default:
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
	}
}

// nodeCompletions lists node ids of the dump at path that start with prefix.
// An unreadable dump yields no candidates.
func nodeCompletions(path, prefix string) []string {
	if path == "-" {
		return nil
	}
	rows, err := depio.ImportRows(path)
	if err != nil {
		return nil
	}
	var out []string
	for _, n := range rows.Nodes {
		if id := string(n.ID); strings.HasPrefix(id, prefix) {
			out = append(out, id)
		}
	}
	return out
}
