package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"commlink/internal/audio"
	"commlink/internal/codec"
	"commlink/internal/config"
	"commlink/internal/llm"
	"commlink/internal/logging"
	"commlink/internal/router"
	"commlink/internal/scheduler"
	"commlink/internal/session"
	"commlink/internal/store"
)

// runtime is the wired set of components behind every subcommand.
type runtime struct {
	cfg     *config.Config
	dict    codec.Dictionary
	store   store.Store
	llm     llm.Client
	sched   *scheduler.Scheduler
	machine *session.Machine
}

// newRuntime opens the store and builds the client, the scheduler and the
// session machine. The session is not started.
func newRuntime(ctx context.Context, cfg *config.Config, sc session.Config) (*runtime, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "newRuntime")
	defer timer.Stop()

	dict := codec.DefaultDictionary()
	if len(cfg.Dictionary) > 0 {
		dict = codec.Dictionary(cfg.Dictionary)
	}
	logging.Get(logging.CategoryCodec).Info("dictionary: %d phrases, version %s", len(dict), dict.Version())

	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	sched := scheduler.New(st, scheduler.Config{
		PollInterval: cfg.GetPollInterval(),
		BatchSize:    cfg.Reminders.BatchSize,
	})

	sc.Token = cfg.Session.Token
	sc.HandshakeStep = cfg.GetHandshakeStep()
	sc.Router = router.Options{
		Dictionary: dict,
		IsAdmin:    cfg.IsAdmin,
	}

	return &runtime{
		cfg:     cfg,
		dict:    dict,
		store:   st,
		llm:     client,
		sched:   sched,
		machine: session.New(st, client, sched, sc),
	}, nil
}

func (r *runtime) Close() error {
	r.sched.Stop()
	return r.store.Close()
}

// saveClip writes a synthesized clip into the audio output directory.
func (r *runtime) saveClip(clip audio.Clip) (string, error) {
	dir := r.cfg.Audio.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("speak-%s.wav", time.Now().Format("20060102-150405.000")))
	if err := os.WriteFile(path, clip.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	logging.Get(logging.CategoryAudio).Info("saved %d bytes to %s", clip.Len(), path)
	return path, nil
}
