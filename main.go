package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourorg/rendercore/internal/blobstore"
	"github.com/yourorg/rendercore/internal/browser"
	"github.com/yourorg/rendercore/internal/config"
	"github.com/yourorg/rendercore/internal/database"
	"github.com/yourorg/rendercore/internal/logging"
	"github.com/yourorg/rendercore/internal/rendering"
	"github.com/yourorg/rendercore/internal/version"
	"github.com/yourorg/rendercore/internal/videotool"
	"github.com/yourorg/rendercore/internal/workerrt"
)

func main() {
	_ = godotenv.Load()
	logging.InfoWithComponent(logging.ComponentStartup, "starting rendercore worker", "version", version.String())

	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(version.String())
		os.Exit(0)
	}

	if err := database.Initialize(); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer database.Close()

	store, err := buildStore()
	if err != nil {
		log.Fatalf("failed to initialize blob store: %v", err)
	}

	driver, err := buildDriver()
	if err != nil {
		log.Fatalf("failed to initialize browser driver: %v", err)
	}

	workDir := config.Get("WORK_DIR", "/data/work")
	cacheDir := config.Get("SCENE_CACHE_DIR", "/data/scene-cache")

	pipeline := &rendering.Pipeline{
		DB:       database.GetDB(),
		Sink:     rendering.NewDBSink(database.GetDB()),
		Blob:     store,
		Tool:     videotool.Tool{FFmpegBin: config.Get("FFMPEG_BIN", ""), FFprobeBin: config.Get("FFPROBE_BIN", "")},
		Driver:   driver,
		WorkDir:  workDir,
		CacheDir: cacheDir,
	}

	opts := workerrt.OptionsFromEnv()
	rt := workerrt.NewRuntime(database.GetDB(), pipeline, workDir, opts)

	healthPort := config.Get("HEALTH_PORT", "3001")
	healthListener, boundPort, err := workerrt.ListenWithPortFallback(healthPort)
	if err != nil {
		log.Fatalf("failed to bind health server: %v", err)
	}
	if boundPort != healthPort {
		logging.WarnWithComponent(logging.ComponentHealth, "health port in use, fell back to next free port", "requested", healthPort, "bound", boundPort)
	}
	healthServer := rt.NewHealthServer(":" + boundPort)
	go func() {
		if err := healthServer.Serve(healthListener); err != nil {
			logging.InfoWithComponent(logging.ComponentHealth, "health server stopped", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runErr := make(chan error, 1)
	go func() {
		runErr <- rt.Run(ctx)
	}()

	select {
	case sig := <-sigCh:
		logging.InfoWithComponent(logging.ComponentWorker, "received shutdown signal", "signal", sig.String())
		rt.Shutdown()
		cancel()
		<-runErr
	case err := <-runErr:
		if err != nil {
			logging.ErrorWithComponent(logging.ComponentWorker, "worker loop exited with error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	workerrt.ShutdownHealthServer(shutdownCtx, healthServer, opts.ShutdownDrain)

	logging.InfoWithComponent(logging.ComponentStartup, "rendercore worker stopped")
}

func buildStore() (blobstore.Store, error) {
	switch config.Get("BLOB_BACKEND", "filesystem") {
	case "s3":
		return blobstore.NewS3Store(context.Background(), blobstore.S3Options{
			Bucket:           config.Get("S3_BUCKET", ""),
			Region:           config.Get("S3_REGION", "us-east-1"),
			Endpoint:         config.Get("S3_ENDPOINT", ""),
			UsePathStyle:     config.GetBool("S3_USE_PATH_STYLE", false),
			CDNBaseURL:       config.Get("CDN_BASE_URL", ""),
			AccessKeyID:      config.Get("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey:  config.Get("S3_SECRET_ACCESS_KEY", ""),
			SessionToken:     config.Get("S3_SESSION_TOKEN", ""),
			UploadRatePerSec: 8,
		})
	default:
		return blobstore.NewFilesystemStore(config.Get("BLOB_ROOT", "/data/blob"), config.Get("BLOB_PUBLIC_BASE_URL", "http://localhost:8000/blob"))
	}
}

func buildDriver() (browser.Driver, error) {
	tool := videotool.Tool{FFmpegBin: config.Get("FFMPEG_BIN", ""), FFprobeBin: config.Get("FFPROBE_BIN", "")}
	if config.GetBool("USE_STEEL", false) {
		return browser.RemoteDriver{DebugURL: config.Get("STEEL_DEBUG_URL", ""), Tool: tool}, nil
	}
	return browser.LocalDriver{ChromeBin: config.Get("CHROME_BIN", ""), Tool: tool}, nil
}
