package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matthewbaird/acdc/internal/monitor"
	"github.com/matthewbaird/acdc/internal/syncer"
)

func createEvalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Start, cancel or follow the evaluation of the current analysis",
	}
	cmd.AddCommand(
		createEvalStartCmd(a),
		createEvalCancelCmd(a),
		createEvalWatchCmd(a),
	)
	return cmd
}

func createEvalStartCmd(a *app) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Submit the current analysis for evaluation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sy, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sy.Close()

			mon := a.monitor(sy)
			if !watch {
				if err := mon.Start(ctx, sy.Document()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "evaluation of analysis %s started\n", sy.AnalysisID())
				return nil
			}
			return a.watch(ctx, cmd.OutOrStdout(), sy, mon, false, func(ctx context.Context) error {
				return mon.Start(ctx, sy.Document())
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Follow progress until every condition finishes")
	return cmd
}

func createEvalCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the running evaluation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.CancelEvaluation(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "evaluation canceled")
			return nil
		},
	}
}

func createEvalWatchCmd(a *app) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print evaluation status as it arrives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sy, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer sy.Close()
			return a.watch(ctx, cmd.OutOrStdout(), sy, a.monitor(sy), follow, nil)
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "Keep watching after the evaluation finishes, across new analyses")
	return cmd
}

func (a *app) monitor(sy *syncer.Synchronizer) *monitor.Monitor {
	rc := a.cfg.Reconnect
	return monitor.New(monitor.Config{
		Dialer:  &monitor.WebsocketDialer{URL: a.api.StatusURL},
		Session: sy,
		API:     a.api,
		Backoff: monitor.Backoff{
			Initial:       rc.Initial,
			Max:           rc.Max,
			MaxAttempts:   rc.MaxAttempts,
			JitterPercent: rc.Jitter,
		},
		SessionPoll: a.cfg.SessionPoll,
		Metrics:     a.metrics,
	})
}

// watch runs the monitor and prints snapshots. The session is reloaded
// every SessionPoll so a new analysis on the server is picked up. Unless
// follow is set it returns once a snapshot reports every condition done.
// start, when set, runs once the status channel is open.
func (a *app) watch(ctx context.Context, out io.Writer, sy *syncer.Synchronizer, mon *monitor.Monitor, follow bool, start func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mon.Run(gctx)
	})

	g.Go(func() error {
		t := time.NewTicker(a.cfg.SessionPoll)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if err := sy.Load(gctx); err != nil && gctx.Err() == nil {
					log.Printf("acdc: reloading analysis: %v", err)
				}
			}
		}
	})

	g.Go(func() error {
		// A finished snapshot from an earlier run may arrive before the new
		// run is queued; only stop after this run was seen in progress.
		active := start == nil
		if start != nil {
			if err := waitConnected(gctx, mon); err != nil {
				return err
			}
			if err := start(gctx); err != nil {
				return err
			}
		}
		for {
			select {
			case <-gctx.Done():
				return nil
			case st := <-mon.Updates():
				renderStatus(out, st)
				if !st.Done() {
					active = true
				}
				if st.Done() && active && !follow {
					cancel()
					return nil
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func waitConnected(ctx context.Context, mon *monitor.Monitor) error {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for !mon.Connected() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}
