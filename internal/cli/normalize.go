package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/enrichcall/internal/config"
	"github.com/roach88/enrichcall/internal/phonenum"
)

// NormalizeOptions holds flags for the normalize command.
type NormalizeOptions struct {
	*RootOptions
	Region string
}

// NormalizedNumber is one line of normalize output.
type NormalizedNumber struct {
	Input     string `json:"input"`
	Canonical string `json:"canonical"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NormalizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "normalize <number>...",
		Short: "Print the canonical form used for matching",
		Long: `Print the form a phone number takes when content is matched to
calls. Two numbers match exactly when their canonical forms are equal.

Examples:
  enrichcall normalize "+1 (415) 555-0100" 4155550100
  enrichcall normalize --region GB "020 7946 0018"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Region, "region", phonenum.DefaultRegion, "default region for numbers without a country code")

	return cmd
}

func runNormalize(opts *NormalizeOptions, numbers []string, cmd *cobra.Command) error {
	cfg := config.Default()
	cfg.DefaultRegion = strings.ToUpper(opts.Region)
	if err := config.Validate(cfg); err != nil {
		return WrapExitError(ExitCommandError, "invalid region", err)
	}

	norm := phonenum.NewE164(cfg.DefaultRegion)
	out := make([]NormalizedNumber, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, NormalizedNumber{Input: n, Canonical: norm.Normalize(n)})
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if formatter.JSON() {
		return formatter.Success(out)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, n := range out {
		fmt.Fprintf(tw, "%s\t%s\n", n.Input, n.Canonical)
	}
	return tw.Flush()
}
