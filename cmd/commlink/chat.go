package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"commlink/cmd/commlink/ui"
	"commlink/internal/logging"
	"commlink/internal/session"
	"commlink/internal/types"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

// runChat runs the interactive client: the session bootstrap, the reminder
// loop, the history pump and the TUI share one errgroup. Quitting the TUI
// stops everything.
func (c *cli) runChat(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	rt, err := newRuntime(ctx, c.cfg, session.Config{
		OnPhase:    func(p types.SessionPhase) { send(ui.PhaseMsg(p)) },
		OnAnnounce: func(line string) { send(ui.AnnounceMsg(line)) },
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	program = tea.NewProgram(ui.New(ui.Options{
		Context:    ctx,
		Session:    rt.machine,
		Dictionary: rt.dict,
		SaveAudio:  rt.saveClip,
	}), tea.WithAltScreen(), tea.WithContext(ctx))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("chat ui: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := rt.machine.Start(gctx)
		if err != nil && gctx.Err() == nil {
			logging.Get(logging.CategorySession).Error("session failed to start: %v", err)
			return fmt.Errorf("session: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		rt.sched.Start(gctx)
		<-gctx.Done()
		rt.sched.Stop()
		return nil
	})

	g.Go(func() error {
		snapshots, err := rt.store.Subscribe(gctx)
		if err != nil {
			return fmt.Errorf("subscribe to history: %w", err)
		}
		for snap := range snapshots {
			send(ui.HistoryMsg(snap))
		}
		return nil
	})

	return g.Wait()
}
