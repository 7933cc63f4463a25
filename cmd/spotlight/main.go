package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/spotlight/internal/config"
	"github.com/zeusync/spotlight/internal/core/observability/log"
	"github.com/zeusync/spotlight/internal/experiment"
	"github.com/zeusync/spotlight/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to spotlight.yaml")
	subject := flag.Int("subject", -1, "subject id, overrides the config")
	handedness := flag.String("handedness", "", "left, right or unspecified, overrides the config")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *subject, *handedness)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Bridge.Addr != "" {
		err = runEngine(ctx, cfg)
	} else {
		err = runConsole(ctx, cfg)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(path string, subject int, handedness string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if subject >= 0 {
		cfg.Subject.ID = subject
	}
	if handedness != "" {
		h, err := experiment.ParseHandedness(handedness)
		if err != nil {
			return nil, err
		}
		cfg.Subject.Handedness = h
	}
	return cfg, cfg.Validate()
}

func runConsole(ctx context.Context, cfg *config.Config) error {
	app, cleanup, err := injector.InitializeConsole(cfg, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = app.Logger.Sync() }()

	unbind, err := app.Session.Bind(ctx, app.Bus)
	if err != nil {
		return err
	}
	defer unbind()

	return app.Host.Run(ctx, app.Session)
}

func runEngine(ctx context.Context, cfg *config.Config) error {
	app, cleanup, err := injector.InitializeEngine(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = app.Logger.Sync() }()

	unbind, err := app.Session.Bind(ctx, app.Bus)
	if err != nil {
		return err
	}
	defer unbind()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Server.Serve(gctx)
	})
	g.Go(func() error {
		// The server goes down with the session.
		defer cancel()
		return awaitCompletion(gctx, app.Bridge.Do, app.Session, time.Second)
	})
	if err := g.Wait(); err != nil {
		app.Logger.Error("engine run failed", log.Error(err))
		return err
	}
	app.Logger.Info("engine run finished")
	return nil
}

// completion is the part of the session the engine runner watches.
type completion interface {
	Finished() bool
	Err() error
}

// awaitCompletion polls the session through do, which must serialize access
// with the bridge, until it finishes or ctx is done. A session that could not
// be stored is returned as an error.
func awaitCompletion(ctx context.Context, do func(func()), sess completion, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var finished bool
			var err error
			do(func() { finished, err = sess.Finished(), sess.Err() })
			if !finished {
				continue
			}
			if err != nil {
				return fmt.Errorf("store session: %w", err)
			}
			return nil
		}
	}
}
