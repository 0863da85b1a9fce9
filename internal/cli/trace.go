package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/enrichcall/internal/bundle"
	"github.com/roach88/enrichcall/internal/config"
	"github.com/roach88/enrichcall/internal/journal"
	"github.com/roach88/enrichcall/internal/phonenum"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal   string
	FlowToken string
	Number    string
	Kind      string
	Region    string
	Limit     int
}

// TraceEntry is one journaled event.
type TraceEntry struct {
	Seq         int64         `json:"seq"`
	FlowToken   string        `json:"flow_token"`
	Kind        string        `json:"kind"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	State       string        `json:"state,omitempty"`
	Outcome     string        `json:"outcome"`
	CallID      string        `json:"call_id,omitempty"`
	Matched     int           `json:"matched,omitempty"`
	Payload     bundle.Bundle `json:"payload,omitempty"`
	ContentHash string        `json:"content_hash,omitempty"`
}

// TraceResult holds the trace output.
type TraceResult struct {
	Entries []TraceEntry `json:"entries"`
	Stats   TraceStats   `json:"stats"`
}

// TraceStats counts entries by outcome.
type TraceStats struct {
	Total    int            `json:"total"`
	Outcomes map[string]int `json:"outcomes"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled events",
		Long: `List events recorded in a journal written by "enrichcall run".

Entries are shown in dispatch order. --number matches every spelling of
the same number, so "+1 415 555 0100" also finds events journaled as
"4155550100".

Examples:
  enrichcall trace --journal ./journal.db
  enrichcall trace --journal ./journal.db --number 4155550100
  enrichcall trace --journal ./journal.db --flow 0190c7f2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the sqlite event journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "only events with this flow token")
	cmd.Flags().StringVar(&opts.Number, "number", "", "only events for this phone number")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only events of this kind (content, state, call, connected)")
	cmd.Flags().StringVar(&opts.Region, "region", phonenum.DefaultRegion, "region used to normalize --number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 for all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	region := strings.ToUpper(strings.TrimSpace(opts.Region))
	if ve := config.ValidateRegion(region); ve != nil {
		return WrapExitError(ExitCommandError, "invalid region", ve)
	}

	// journal.Open would create a missing file.
	if _, err := os.Stat(opts.Journal); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}
	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	filter := journal.Filter{
		FlowToken: opts.FlowToken,
		Kind:      opts.Kind,
		Limit:     opts.Limit,
	}
	if opts.Number != "" {
		filter.NumberKey = phonenum.NewE164(region).Normalize(opts.Number)
	}
	formatter.VerboseLog("reading %s (flow=%q number_key=%q kind=%q)", opts.Journal, filter.FlowToken, filter.NumberKey, filter.Kind)

	entries, err := j.Read(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{
		Entries: make([]TraceEntry, 0, len(entries)),
		Stats:   TraceStats{Total: len(entries), Outcomes: map[string]int{}},
	}
	for _, e := range entries {
		result.Entries = append(result.Entries, TraceEntry{
			Seq:         e.Seq,
			FlowToken:   e.FlowToken,
			Kind:        e.Kind,
			PhoneNumber: e.PhoneNumber,
			State:       e.State,
			Outcome:     e.Outcome,
			CallID:      e.CallID,
			Matched:     e.Matched,
			Payload:     e.Payload,
			ContentHash: e.ContentHash,
		})
		result.Stats.Outcomes[e.Outcome]++
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(cmd, result)
}

func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "No events found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tKIND\tNUMBER\tSTATE\tOUTCOME\tCALL\tFLOW")
	for _, e := range result.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Seq, e.Kind, dash(e.PhoneNumber), dash(e.State), e.Outcome, dash(e.CallID), e.FlowToken)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d events\n", result.Stats.Total)
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
