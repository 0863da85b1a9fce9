package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/enrichcall/internal/config"
	"github.com/roach88/enrichcall/internal/host"
	"github.com/roach88/enrichcall/internal/journal"
	"github.com/roach88/enrichcall/internal/router"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath   string
	Disconnected bool

	// FlowGenerator allows overriding the flow token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	FlowGenerator router.FlowTokenGenerator
}

// RunSummary is the output of the run command.
type RunSummary struct {
	Steps      int           `json:"steps"`
	Dispatched int64         `json:"dispatched"`
	Journal    string        `json:"journal,omitempty"`
	Final      host.Snapshot `json:"final"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Route events from stdin through the correlator",
		Long: `Start an in-memory call registry and RCS service, bind the
correlator to them, and apply one JSON step per input line.

Each line sets exactly one of content, call, state, service, end_call
or select_account. Blank lines and lines starting with # are skipped.

  {"service":"connect"}
  {"content":{"number":"+14155550100","subject":"Lunch?"}}
  {"call":{"id":"c1","handle":"tel:4155550100"}}
  {"state":{"number":"4155550100","state":"SUCCEEDED"}}

When stdin is exhausted the final calls and pending content are printed.

Examples:
  enrichcall run < events.ndjson
  enrichcall run --config enrichcall.yaml --journal ./journal.db < events.ndjson
  enrichcall run --region GB --format json < events.ndjson`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.Flags().BoolVar(&opts.Disconnected, "disconnected", false, "start with the RCS service disconnected")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runHost(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Resolve(opts.ConfigPath, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	setupLogging(cmd.ErrOrStderr(), cfg.SlogLevel(), opts.Verbose)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	flowGen := opts.FlowGenerator
	if flowGen == nil {
		flowGen = router.UUIDv7Generator{}
	}
	hostOpts := host.OptionsFromConfig(cfg)
	hostOpts.RouterOptions = append(hostOpts.RouterOptions, router.WithFlowGenerator(flowGen))

	if cfg.Journal != "" {
		slog.Info("opening journal", "path", cfg.Journal)
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()

		// Resume numbering so entries from earlier runs stay ordered.
		last, err := j.LastSeq(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		hostOpts.RouterOptions = append(hostOpts.RouterOptions,
			router.WithJournal(j),
			router.WithClock(router.NewClockAt(last)),
		)
	}

	h := host.New(hostOpts)
	h.Start(ctx, !opts.Disconnected)
	slog.Info("host started",
		"region", cfg.DefaultRegion,
		"sub", cfg.SubscriptionID,
		"feature_enabled", cfg.FeatureEnabled,
		"connected", !opts.Disconnected,
	)

	steps, applyErr := applySteps(ctx, h, cmd.InOrStdin())
	// The router goroutine owns the correlator until Stop returns.
	if err := h.Stop(); err != nil && applyErr == nil {
		applyErr = WrapExitError(ExitFailure, "router error", err)
	}
	if applyErr != nil {
		return applyErr
	}
	summary := RunSummary{
		Steps:      steps,
		Dispatched: h.Router.Dispatched(),
		Journal:    cfg.Journal,
		Final:      h.Snapshot(),
	}
	slog.Info("host stopped", "steps", steps, "dispatched", summary.Dispatched)

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if formatter.JSON() {
		return formatter.Success(summary)
	}
	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

// applySteps decodes and applies one step per line, draining the router
// after each so that service reconnects take effect before the next push.
// It returns the number of steps applied.
func applySteps(ctx context.Context, h *host.Host, in io.Reader) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	applied := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		if err := ctx.Err(); err != nil {
			return applied, nil
		}

		var step host.Step
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&step); err != nil {
			return applied, WrapExitError(ExitCommandError, fmt.Sprintf("line %d: invalid step", line), err)
		}
		if _, err := h.Apply(step); err != nil {
			return applied, WrapExitError(ExitCommandError, fmt.Sprintf("line %d", line), err)
		}
		if err := h.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return applied, nil
			}
			return applied, WrapExitError(ExitFailure, fmt.Sprintf("line %d: router stopped", line), err)
		}
		applied++
		slog.Debug("step applied", "line", line, "step", step.Name())
	}
	if err := scanner.Err(); err != nil {
		return applied, WrapExitError(ExitCommandError, "failed to read input", err)
	}
	return applied, nil
}

func printSummary(w io.Writer, s RunSummary) {
	fmt.Fprintf(w, "Applied %d steps, dispatched %d events\n", s.Steps, s.Dispatched)
	if s.Journal != "" {
		fmt.Fprintf(w, "Journal: %s\n", s.Journal)
	}

	fmt.Fprintf(w, "\nCalls (%d):\n", len(s.Final.Calls))
	for _, c := range s.Final.Calls {
		fmt.Fprintf(w, "  %s %s puts=%d", c.ID, c.Handle, c.Puts)
		if c.Enriched != nil {
			fmt.Fprintf(w, " %s", describeContent(*c.Enriched))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\nPending (%d):\n", len(s.Final.Pending))
	for _, p := range s.Final.Pending {
		fmt.Fprintf(w, "  %s %s\n", p.Number, describeContent(p))
	}
}

func describeContent(v host.ContentView) string {
	out := fmt.Sprintf("[%s %s]", v.State, v.Priority)
	if v.Subject != "" {
		out += fmt.Sprintf(" subject=%q", v.Subject)
	}
	if v.Image != "" {
		out += " image=" + v.Image
	}
	if v.Location != "" {
		out += " location=" + v.Location
	}
	return out
}
