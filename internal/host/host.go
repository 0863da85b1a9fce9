// Package host assembles the full enrichcall stack around in-memory
// stand-ins for the call registry, the RCS service, and the phone account
// registrar.
//
// It is the composition root used by `enrichcall run` and by the scenario
// harness. Nothing here is global: every Host owns its own correlator.
package host

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/enrichcall/internal/account"
	"github.com/roach88/enrichcall/internal/binder"
	"github.com/roach88/enrichcall/internal/bundle"
	"github.com/roach88/enrichcall/internal/callreg"
	"github.com/roach88/enrichcall/internal/composer"
	"github.com/roach88/enrichcall/internal/config"
	"github.com/roach88/enrichcall/internal/correlator"
	"github.com/roach88/enrichcall/internal/phonenum"
	"github.com/roach88/enrichcall/internal/rcs"
	"github.com/roach88/enrichcall/internal/router"
)

// Options configures a Host.
type Options struct {
	Region         string
	SubscriptionID int
	FeatureEnabled bool
	// Connected starts the service connected instead of waiting for a
	// "connect" step.
	Connected bool
	Accounts  []config.Account

	// Router options: journal, clock, flow generator, observer, queue size.
	RouterOptions []router.Option
}

// OptionsFromConfig maps a resolved config onto host options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Region:         cfg.DefaultRegion,
		SubscriptionID: cfg.SubscriptionID,
		FeatureEnabled: cfg.FeatureEnabled,
		Accounts:       cfg.Accounts,
		RouterOptions:  []router.Option{router.WithQueueSize(cfg.QueueSize)},
	}
}

// Host is a running enrichcall stack.
type Host struct {
	Calls      *callreg.Memory
	Service    *rcs.Memory
	Correlator *correlator.Correlator
	Router     *router.Router
	Binder     *binder.Binder
	Registrar  *account.MemoryRegistrar
	Selector   *account.Selector

	subID  int
	cancel context.CancelFunc
	errCh  chan error
}

// New builds a host. Call Start before applying steps.
func New(opts Options) *Host {
	calls := callreg.NewMemory()
	svc := rcs.NewMemory()
	svc.SetFeatureEnabled(opts.FeatureEnabled)

	reg := account.NewMemoryRegistrar()
	for _, a := range opts.Accounts {
		reg.Register(account.Account{
			Handle:  account.Handle{Component: a.Component, ID: a.ID},
			SubID:   a.SubID,
			Schemes: a.Schemes,
		})
		if a.RCS {
			svc.SetRcsConfig(a.SubID, true)
		}
	}

	corr := correlator.New(calls, phonenum.NewE164(opts.Region))
	return &Host{
		Calls:      calls,
		Service:    svc,
		Correlator: corr,
		Router:     router.New(corr, opts.RouterOptions...),
		Registrar:  reg,
		Selector:   account.NewSelector(reg, svc),
		subID:      opts.SubscriptionID,
	}
}

// Start runs the router and binds the service. With connected set the
// service comes up before binding, so the binder subscribes immediately.
func (h *Host) Start(ctx context.Context, connected bool) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.errCh = make(chan error, 1)
	go func() { h.errCh <- h.Router.Run(ctx) }()

	if connected {
		h.Service.Connect()
	}
	h.Binder = binder.New(h.Service, h.Router, h.subID)
}

// Drain waits until every event posted so far has been dispatched.
func (h *Host) Drain(ctx context.Context) error {
	return h.Router.Drain(ctx)
}

// Stop unbinds the service, lets the router finish its queue, and waits
// for it to exit.
func (h *Host) Stop() error {
	if h.errCh == nil {
		return nil
	}
	if h.Binder != nil {
		h.Binder.Close()
	}
	h.Router.Stop()
	err := <-h.errCh
	h.cancel()
	h.errCh = nil
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// StepResult reports what a step did on the host side. Router outcomes
// are observed separately.
type StepResult struct {
	// Delivered counts service sinks reached by a content or state push.
	Delivered int
	// Account is the selected account for select_account steps.
	Account account.Handle
}

// Apply performs one step. It does not wait for the router.
func (h *Host) Apply(step Step) (StepResult, error) {
	if err := step.Validate(); err != nil {
		return StepResult{}, err
	}

	switch step.Name() {
	case "content":
		rec, _ := step.Content.Record()
		return StepResult{Delivered: h.Service.PushIncoming(h.subID, rec)}, nil

	case "state":
		state, _ := composer.ParseState(step.State.State)
		return StepResult{Delivered: h.Service.PushStateUpdate(h.subID, step.State.Number, state)}, nil

	case "call":
		var intent bundle.Bundle
		if step.Call.Intent != nil {
			rec, _ := step.Call.Intent.Record()
			intent = bundle.Bundle{composer.ExtraKey: rec.Bundle()}
		}
		call := callreg.NewCall(step.Call.ID, step.Call.Handle, intent)
		h.Calls.Add(call)
		if !h.Router.Post(router.CallEvent(call)) {
			return StepResult{}, fmt.Errorf("call %s: %w", step.Call.ID, router.ErrStopped)
		}
		return StepResult{}, nil

	case "end_call":
		if !h.Calls.Remove(step.EndCall) {
			return StepResult{}, fmt.Errorf("end_call: no call %q", step.EndCall)
		}
		return StepResult{}, nil

	case "service":
		if step.Service == ServiceConnect {
			h.Service.Connect()
		} else {
			h.Service.Disconnect()
		}
		return StepResult{}, nil

	case "select_account":
		in := step.SelectAccount
		var data *composer.Record
		if in.Subject != "" {
			data = composer.NewRecord("", in.Subject, "", composer.PriorityNormal)
		}
		return StepResult{Account: h.Selector.PreferredAccount(in.Scheme, data, parseHandle(in.Requested))}, nil
	}
	return StepResult{}, fmt.Errorf("unhandled step %q", step.Name())
}

// parseHandle reads "component/id". A bare id gets an empty component.
func parseHandle(s string) account.Handle {
	if s == "" {
		return account.Handle{}
	}
	if component, id, ok := strings.Cut(s, "/"); ok {
		return account.Handle{Component: component, ID: id}
	}
	return account.Handle{ID: s}
}
