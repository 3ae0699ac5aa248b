package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/certforge/pkg/pipeline"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for certforge.

To load completions:

Bash:
  $ source <(certforge completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ certforge completion bash > /etc/bash_completion.d/certforge
  # macOS:
  $ certforge completion bash > $(brew --prefix)/etc/bash_completion.d/certforge

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ certforge completion zsh > "${fpath[1]}/_certforge"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ certforge completion fish | source

  # To load completions for each session, execute once:
  $ certforge completion fish > ~/.config/fish/completions/certforge.fish

PowerShell:
  PS> certforge completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> certforge completion powershell > certforge.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
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

// registerCompletions adds value completions for the file and format
// flags of every command under root.
func registerCompletions(root *cobra.Command) {
	files := map[string][]string{
		"config":  {"toml"},
		"layout":  {"json", "yaml", "yml"},
		"request": {"json"},
	}
	var walk func(*cobra.Command)
	walk = func(cmd *cobra.Command) {
		for name, exts := range files {
			if cmd.LocalFlags().Lookup(name) != nil {
				_ = cmd.RegisterFlagCompletionFunc(name, fileCompletion(exts))
			}
		}
		if cmd.LocalFlags().Lookup("format") != nil {
			_ = cmd.RegisterFlagCompletionFunc("format", completeFormats)
		}
		if cmd.LocalFlags().Lookup("fetch") != nil {
			_ = cmd.RegisterFlagCompletionFunc("fetch", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
				return nil, cobra.ShellCompDirectiveFilterDirs
			})
		}
		for _, sub := range cmd.Commands() {
			walk(sub)
		}
	}
	walk(root)
}

func fileCompletion(exts []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return exts, cobra.ShellCompDirectiveFilterFileExt
	}
}

// completeFormats completes the last entry of a comma-separated format
// list, skipping formats already given.
func completeFormats(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	done := ""
	seen := make(map[string]bool)
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		done = toComplete[:i+1]
		for _, f := range strings.Split(toComplete[:i], ",") {
			seen[strings.TrimSpace(f)] = true
		}
	}
	var out []string
	for _, f := range pipeline.DefaultFormats {
		if !seen[f] {
			out = append(out, done+f)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}
