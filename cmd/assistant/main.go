package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chadiek/voice-gate/internal/audio"
	"github.com/chadiek/voice-gate/internal/capture"
	"github.com/chadiek/voice-gate/internal/config"
	"github.com/chadiek/voice-gate/internal/exchange"
	"github.com/chadiek/voice-gate/internal/faults"
	"github.com/chadiek/voice-gate/internal/httpserver"
	"github.com/chadiek/voice-gate/internal/playback"
	"github.com/chadiek/voice-gate/internal/session"
	"github.com/chadiek/voice-gate/internal/wake"
)

// defaultPlaybackRate applies to response payloads that carry no WAV envelope.
const defaultPlaybackRate = 24000

func main() {
	// Include sub-second precision in all log timestamps
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.Load()

	surface := faults.NewSurface(cfg.ErrorDisplay, func(rec *faults.Record) {
		if rec != nil {
			log.Printf("error surface: [%s] %s - %s", rec.Category, rec.Title, rec.Message)
		}
	})

	opener := capture.NewMalgoOpener()
	defer opener.Shutdown()
	profile := capture.DefaultProfile()
	profile.DeviceID = cfg.CaptureDevice

	var exch session.Exchanger
	if cfg.ExchangeTransport == "ws" {
		wsc := exchange.NewWSClient(cfg.ExchangeURL, cfg.ExchangeAccessKey)
		if err := wsc.Connect(); err != nil {
			// Sessions surface TransportUnavailable until the channel is up.
			log.Printf("exchange channel not ready: %v", err)
		}
		defer func() { _ = wsc.Close() }()
		exch = wsc
	} else {
		exch = exchange.NewHTTPClient(cfg.ExchangeURL, cfg.ExchangeAccessKey, cfg.ExchangeTimeout)
	}

	player := playback.NewController(playback.NewOtoSink(), defaultPlaybackRate)

	deps := session.Deps{
		NewRecorder: func() session.Recorder {
			return capture.NewRecorder(opener, profile, cfg.RecordingCeiling)
		},
		Exchanger: exch,
		Player:    player,
		Voice:     capture.NewVoiceListener(opener, profile),
		Encode: func(u *capture.Utterance) []byte {
			return audio.EncodeWAV(u.PCM, u.SampleRate)
		},
		Surface: surface,
	}

	sessCfg := session.Config{
		ContinuationWindow: cfg.ContinuationWindow,
		Continuous:         cfg.ContinuationEnabled,
		ExchangeTimeout:    cfg.ExchangeTimeout,
	}

	trigger := wake.NewTrigger()
	mgr := session.NewManager(sessCfg, deps, trigger, session.Hooks{
		OnPhase:  func(p session.Phase) { log.Printf("session phase: %s", p) },
		OnClosed: func() { log.Printf("session closed") },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	srv := httpserver.New(mgr, trigger, surface)
	server := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           srv.Echo,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in background
	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("control surface listening on %s", cfg.HTTPAddress)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("shutdown signal received: %v", sig)
	}

	// Abort any in-flight session; its teardown releases device handles and
	// timers before the process exits.
	cancel()
	mgr.WaitIdle(3 * time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = server.Close()
	}
}
