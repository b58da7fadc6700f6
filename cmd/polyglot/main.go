// Polyglot - watches screen regions and overlays their translations
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/polyglot/internal/cache"
	"github.com/GriffinCanCode/polyglot/internal/config"
	"github.com/GriffinCanCode/polyglot/internal/health"
	"github.com/GriffinCanCode/polyglot/internal/ocr"
	"github.com/GriffinCanCode/polyglot/internal/orchestrator"
	"github.com/GriffinCanCode/polyglot/internal/overlay"
	"github.com/GriffinCanCode/polyglot/internal/screen"
	"github.com/GriffinCanCode/polyglot/internal/server"
	"github.com/GriffinCanCode/polyglot/internal/translate"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := config.LoadSession(cfg, cfg.SessionFile); err != nil {
		slog.Error("failed to load session file", "path", cfg.SessionFile, "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(healthcheck(cfg.GRPCAddr))
	}

	if err := run(cfg); err != nil {
		slog.Error("polyglot failed", "error", err)
		os.Exit(1)
	}
}

func healthcheck(addr string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if addr != "" && addr[0] == ':' {
		addr = "localhost" + addr
	}
	ok, err := health.Check(ctx, addr)
	switch {
	case err != nil:
		slog.Error("health check failed", "addr", addr, "error", err)
		return 2
	case !ok:
		fmt.Println("not serving")
		return 1
	}
	fmt.Println("serving")
	return 0
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Translation chain, settled once
	translator := newTranslator(ctx, cfg)
	translator.Init(ctx)

	// OCR
	recognizer := ocr.NewRecognizer(cfg.TesseractPath, cfg.TesseractLang)
	if c, ok := recognizer.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	if cli, ok := recognizer.(*ocr.TesseractCLI); ok && !cli.Available() {
		slog.Warn("tesseract not found, extraction will fail until installed", "path", cfg.TesseractPath)
	}

	// Overlay host
	hub := server.NewHub()
	var host overlay.Host = hub
	if cfg.Overlay.Host == config.HostLog {
		host = overlay.LogHost{Logger: slog.Default()}
	}
	overlays := overlay.NewManager(host, overlay.Style{
		Background: cfg.Overlay.Background,
		Foreground: cfg.Overlay.Foreground,
		Opacity:    cfg.Overlay.Opacity,
		FontMin:    cfg.Overlay.FontSizeMin,
		FontMax:    cfg.Overlay.FontSizeMax,
	}, cfg.Overlay.TTL)

	sched, err := orchestrator.New(cfg, orchestrator.Deps{
		Capturer:   screen.New(),
		Extractor:  newExtractor(cfg, recognizer),
		Translator: translator,
		Cache:      cache.New(cfg.CacheSize),
		Overlays:   overlays,
	})
	if err != nil {
		return err
	}

	srv := server.New(sched, translator, hub)
	defer srv.Close()

	healthSrv := health.NewServer()
	sched.OnStateChange(func(st orchestrator.State) {
		healthSrv.SetServing(st == orchestrator.Running)
		srv.NotifyState(st)
	})

	// Display context drains overlay commands
	go func() {
		if err := overlays.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("overlay loop error", "error", err)
		}
	}()

	// Start gRPC health server
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}
	go func() {
		if err := healthSrv.Serve(lis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("polyglot starting",
			"http", cfg.HTTPAddr,
			"grpc", cfg.GRPCAddr,
			"backend", translator.Active(),
			"target", sched.TargetLanguage(),
			"overlay_host", cfg.Overlay.Host,
		)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	sched.ClearOverlays()
	sched.Close()
	slog.Info("draining overlay commands", "pending", overlays.Pending())
	overlays.Drain(shutdownCtx)
	cancel()
	healthSrv.Stop()

	slog.Info("shutdown complete")
	return nil
}

// newTranslator builds the backend chain from whatever credentials are set.
// Precedence: Google, DeepL, LibreTranslate, then identity. Credentials that
// cannot be loaded leave that backend out with a warning.
func newTranslator(ctx context.Context, cfg *config.Config) *translate.Service {
	opts := []translate.ServiceOption{translate.WithMaxTextLength(cfg.MaxTextLength)}

	if g := newGoogle(ctx, cfg); g != nil {
		opts = append(opts, translate.WithBackend(g, translate.GoogleRate, translate.GoogleBurst))
	}

	if cfg.DeepLAPIKey != "" {
		opts = append(opts, translate.WithBackend(translate.NewDeepL(cfg.DeepLAPIKey),
			translate.DeepLRate, translate.DeepLBurst))
	}

	if cfg.LibreTranslateURL != "" {
		opts = append(opts, translate.WithBackend(translate.NewLibre(cfg.LibreTranslateURL, cfg.LibreTranslateAPIKey),
			translate.LibreRate, translate.LibreBurst))
	}

	return translate.NewService(opts...)
}

// newGoogle prefers a service account and falls back to the API key.
func newGoogle(ctx context.Context, cfg *config.Config) *translate.Google {
	if cfg.GoogleCredentials != "" {
		g, err := translate.NewGoogleServiceAccount(ctx, cfg.GoogleCredentials)
		if err == nil {
			return g
		}
		slog.Warn("google service account unusable, backend disabled",
			"backend", translate.NameGoogle, "path", cfg.GoogleCredentials, "error", err)
	}
	if cfg.GoogleAPIKey != "" {
		return translate.NewGoogle(cfg.GoogleAPIKey)
	}
	return nil
}

func newExtractor(cfg *config.Config, rec ocr.Recognizer) *ocr.Extractor {
	if !cfg.OCRPreprocess {
		return ocr.NewExtractor(rec, ocr.WithoutPreprocess())
	}
	return ocr.NewExtractor(rec)
}
