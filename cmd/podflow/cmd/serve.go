package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Catonlarge/PodFlow-sub000/internal/asr"
	"github.com/Catonlarge/PodFlow-sub000/internal/clipper"
	"github.com/Catonlarge/PodFlow-sub000/internal/config"
	"github.com/Catonlarge/PodFlow-sub000/internal/database"
	internalhttp "github.com/Catonlarge/PodFlow-sub000/internal/http"
	"github.com/Catonlarge/PodFlow-sub000/internal/http/handlers"
	"github.com/Catonlarge/PodFlow-sub000/internal/repository"
	"github.com/Catonlarge/PodFlow-sub000/internal/scheduler"
	"github.com/Catonlarge/PodFlow-sub000/internal/service"
	"github.com/Catonlarge/PodFlow-sub000/internal/startup"
	"github.com/Catonlarge/PodFlow-sub000/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the podflow server",
	Long: `Start the podflow HTTP server and API.

The server provides:
- REST API for registering episodes and driving transcription
- Health check endpoint
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database", "podflow.db", "Database DSN")
	serveCmd.Flags().String("audio-dir", "data/audio", "Root directory for ingested audio")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
	mustBindPFlag("storage.audio_dir", serveCmd.Flags().Lookup("audio-dir"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	episodeRepo := repository.NewEpisodeRepository(db.DB)
	segmentRepo := repository.NewSegmentRepository(db.DB)
	cueRepo := repository.NewCueRepository(db.DB)

	ffmpegPath, err := clipper.FindFFmpeg()
	if err != nil {
		return fmt.Errorf("locating ffmpeg: %w", err)
	}
	extractor := clipper.NewExtractor(ffmpegPath, cfg.Storage.ClipDir(), cfg.Transcription.ExtractTimeout, logger)

	engine := asr.NewOpenAIEngine(cfg.Transcription.APIKey)
	recognizer := asr.NewAdapter(engine, logger)
	if err := recognizer.EnsureLoaded(cmd.Context(), cfg.Transcription.ModelName); err != nil {
		return fmt.Errorf("loading ASR model: %w", err)
	}

	svc := service.NewTranscriptionService(
		episodeRepo,
		segmentRepo,
		cueRepo,
		extractor,
		recognizer,
		cfg.Transcription,
		logger,
	)
	projector := service.NewProjector(episodeRepo, segmentRepo, cueRepo, cfg.Transcription)

	// Claims left behind by an unclean shutdown are provably stale; repair
	// them before accepting traffic.
	reconciler := startup.NewReconciler(episodeRepo, segmentRepo, svc, logger)
	if err := reconciler.ReconcileOrphans(cmd.Context()); err != nil {
		return fmt.Errorf("reconciling orphaned segments: %w", err)
	}

	sweeper := startup.NewClipSweeper(
		segmentRepo,
		cfg.Storage.ClipDir(),
		cfg.Transcription.ClipSweepAge,
		cfg.Transcription.MaxRetries,
		logger,
	)

	sched := scheduler.NewScheduler(logger)
	if err := sched.Register(cfg.Transcription.ClipSweepCron, scheduler.NewSweepTask(sweeper)); err != nil {
		return fmt.Errorf("registering clip sweep: %w", err)
	}
	if err := sched.Start(context.Background()); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db.DB)
	healthHandler.Register(server.API())

	episodeHandler := handlers.NewEpisodeHandler(episodeRepo, segmentRepo, cueRepo, svc, projector, logger)
	episodeHandler.Register(server.API())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("podflow server running",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-errCh
}
