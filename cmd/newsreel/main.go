// The newsreel command runs the content-automation video service: it
// ingests articles, lets them be reviewed over the API, and renders timed
// slideshow videos from approved content.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"newsreel/internal/compose"
	"newsreel/internal/config"
	"newsreel/internal/frames"
	"newsreel/internal/publish"
	"newsreel/internal/segmenter"
	"newsreel/internal/server"
	"newsreel/internal/sources"
	"newsreel/internal/store"
	"newsreel/internal/videogen"
)

const version = "1.0.0"

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "Path to YAML config file")
		port        = flag.Int("port", 0, "HTTP port (overrides config)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "newsreel - procedural news video service v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("newsreel v%s\n", version)
		os.Exit(0)
	}

	// Local dev secrets; deployments set real environment variables.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("config file not found, using defaults", "path", *configPath)
			cfg = config.Default()
		} else {
			logger.Error("load config failed", "error", err)
			os.Exit(1)
		}
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger.Info("newsreel starting", "version", version, "port", cfg.Server.Port)

	if err := run(cfg, logger); err != nil {
		logger.Error("application error", "error", err)
		os.Exit(1)
	}

	logger.Info("newsreel stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	st, err := store.Open(cfg.Paths.Data)
	if err != nil {
		return err
	}
	defer st.Close()

	seg := segmenter.New(segmenterOptions(cfg))
	renderer := frames.New(cfg.Video.Width, cfg.Video.Height, cfg.Video.FontFile, logger)
	composer := compose.New(
		cfg.Video.Width, cfg.Video.Height, cfg.Video.FPS,
		cfg.Video.FadeSec, cfg.Video.Preset, cfg.Video.CRF,
		time.Duration(cfg.Video.ComposeTimeoutSec)*time.Second,
		logger,
	)
	service := videogen.NewService(
		seg, renderer, composer,
		cfg.Paths.Output, cfg.Video.BackgroundAudio, cfg.Video.RenderWorkers,
		logger,
	)

	ingester := buildIngester(cfg, st, logger)

	var publisher server.Publisher
	if cfg.Publish.Enabled {
		publisher = publish.New(cfg.Publish, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(service, st, ingester, publisher, cfg.Paths.Output, cfg.Server.Port, logger)
	return srv.Start(ctx)
}

func buildIngester(cfg *config.Config, st *store.Store, logger *slog.Logger) server.Ingester {
	var srcs []sources.Source

	if len(cfg.Sources.Subreddits) > 0 {
		redditSrc, err := sources.NewRedditSource(cfg.Sources.Subreddits, cfg.Sources.MaxArticles)
		if err != nil {
			logger.Warn("reddit source unavailable", "error", err)
		} else {
			srcs = append(srcs, redditSrc)
		}
	}
	if len(cfg.Sources.NewsKeywords) > 0 {
		srcs = append(srcs, sources.NewNewsAPISource(cfg.Sources.NewsKeywords))
	}

	if len(srcs) == 0 {
		return nil
	}
	return sources.NewManager(st, logger, srcs...)
}

func segmenterOptions(cfg *config.Config) segmenter.Options {
	opts := segmenter.DefaultOptions()
	opts.WordsPerSec = cfg.Video.WordsPerSec
	opts.MinBodySec = cfg.Video.MinBodySec
	opts.MaxBodySec = cfg.Video.MaxBodySec
	return opts
}
