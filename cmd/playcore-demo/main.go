// SPDX-License-Identifier: MIT

// Command playcore-demo drives a simulated feed through a Manager end to
// end: it ingests a synthetic batch of descriptors, runs scheduler passes
// as a simulated focus index advances, focuses each item in turn, and logs
// state-table transitions as they happen. No platform decoder is involved;
// every handle is a handle.MockHandle.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelstack/playcore/internal/config"
	"github.com/reelstack/playcore/internal/control"
	"github.com/reelstack/playcore/internal/feed"
	"github.com/reelstack/playcore/internal/handle"
	xglog "github.com/reelstack/playcore/internal/log"
	"github.com/reelstack/playcore/internal/manager"
	"github.com/rs/zerolog"
)

var (
	version = "v0.1.0-demo"
	commit  = "none"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	feedSize := flag.Int("feed-size", 20, "number of synthetic descriptors to ingest")
	unplayableEvery := flag.Int("unplayable-every", 7, "every Nth descriptor is given an empty URL (0 disables)")
	listenAddr := flag.String("listen", ":8090", "control-surface listen address")
	focusInterval := flag.Duration("focus-interval", 2*time.Second, "delay between simulated focus changes")
	flag.Parse()

	if *showVersion {
		fmt.Printf("playcore-demo %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	logger := xglog.New(xglog.Options{Level: "info", Pretty: true})

	opts, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load configuration")
	}
	holder := config.NewHolder(opts, *configPath, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *configPath != "" {
		if err := holder.Watch(ctx); err != nil {
			logger.Warn().Err(err).Msg("config hot-reload watch failed, continuing with static config")
		}
	}

	mgr := manager.New(mockDecoderFactory(), holder, logger)
	defer mgr.Close()

	logEvents(ctx, mgr, logger)

	srv := control.NewServer(mgr, mgr.Bus, logger, 120)
	httpSrv := &http.Server{Addr: *listenAddr, Handler: srv}
	go func() {
		logger.Info().Str("addr", *listenAddr).Msg("starting control surface")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("control surface exited")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	items := feed.GenerateDemoFeed(*feedSize, *unplayableEvery)
	mgr.Ingest(items)
	logger.Info().Int("count", len(items)).Msg("ingested synthetic feed")

	focus := 0
	ticker := time.NewTicker(*focusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return
		case <-ticker.C:
			mgr.RunSchedulerPass(ctx, focus, config.NetworkWifi)

			id := items[focus%len(items)].ID
			if err := mgr.Focus(ctx, id); err != nil {
				logger.Debug().Err(err).Str("id", id).Msg("focus not ready yet")
			} else {
				logger.Info().Str("id", id).Int("focus_index", focus).Msg("focused")
			}
			focus = (focus + 1) % len(items)
		}
	}
}

func mockDecoderFactory() handle.Factory {
	return func(url string) handle.Handle {
		if url == "" {
			return &handle.MockHandle{URL: url, Outcome: handle.MockOutcomeFail, Delay: 20 * time.Millisecond}
		}
		return &handle.MockHandle{URL: url, Outcome: handle.MockOutcomeSuccess, Delay: 50 * time.Millisecond}
	}
}

func logEvents(ctx context.Context, mgr *manager.Manager, logger zerolog.Logger) {
	ch, cancel := mgr.Bus.Subscribe(ctx)
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				logger.Debug().
					Str("id", ev.ID).
					Str("old_state", string(ev.OldState)).
					Str("new_state", string(ev.NewState)).
					Str("reason", ev.Reason).
					Msg("state transition")
			}
		}
	}()
}
