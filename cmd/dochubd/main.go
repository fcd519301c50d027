package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kmrl/dochub/internal/app"
	"github.com/kmrl/dochub/internal/archive"
	"github.com/kmrl/dochub/internal/async"
	"github.com/kmrl/dochub/internal/common"
	"github.com/kmrl/dochub/internal/core"
	"github.com/kmrl/dochub/internal/ingest"
	"github.com/kmrl/dochub/internal/jobs"
	"github.com/kmrl/dochub/internal/server"
)

func main() {
	logger := app.NewTextLogger(os.Stdout, app.LevelFromEnv())

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("dochubd.config.invalid", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := jobs.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("dochubd.store.open_failed", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("dochubd.store.close_failed", "error", err)
		}
	}()
	if cfg.Server.SeedExample {
		if err := jobs.SeedExample(ctx, store, time.Now()); err != nil {
			logger.Warn("dochubd.seed_failed", "error", err)
		}
	}

	orchestrator, release, err := app.NewOrchestrator(ctx, cfg, logger)
	if err != nil {
		logger.Error("dochubd.llm.init_failed", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	defer func() { _ = release() }()

	hub := server.NewHub(logger)
	procOpts := []core.Option{core.WithPublisher(hub)}
	if cfg.Archive.Bucket != "" {
		archiver, err := archive.NewGCSArchiver(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix, logger)
		if err != nil {
			logger.Error("dochubd.archive.init_failed", "bucket", cfg.Archive.Bucket, "error", err)
			os.Exit(1)
		}
		defer func() { _ = archiver.Close() }()
		procOpts = append(procOpts, core.WithArchiver(archiver))
	}
	processor := core.NewProcessor(logger, store, orchestrator, procOpts...)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	srv := server.New(server.Config{
		UploadDir:      cfg.Server.UploadDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, store, queue, hub, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, healthServer := server.NewHealthServer()
	lis, err := net.Listen("tcp", cfg.Server.GRPCHealthAddr)
	if err != nil {
		logger.Error("dochubd.grpc.listen_failed", "addr", cfg.Server.GRPCHealthAddr, "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("dochubd.http.listen", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("dochubd.grpc.listen", "addr", cfg.Server.GRPCHealthAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		server.WatchStore(gctx, store, healthServer, 15*time.Second, logger)
		return nil
	})

	if cfg.Ingest.InboxDir != "" {
		ledger, err := ingest.OpenLedger(ctx, cfg.Ingest.LedgerPath, logger)
		if err != nil {
			logger.Error("dochubd.ingest.ledger_failed", "path", cfg.Ingest.LedgerPath, "error", err)
			os.Exit(1)
		}
		defer func() { _ = ledger.Close() }()
		if err := os.MkdirAll(cfg.Ingest.InboxDir, 0o755); err != nil {
			logger.Error("dochubd.ingest.mkdir_failed", "dir", cfg.Ingest.InboxDir, "error", err)
			os.Exit(1)
		}
		paths, watchErrs, err := ingest.Watch(gctx, ingest.WatchConfig{
			Roots:       []string{cfg.Ingest.InboxDir},
			InitialScan: true,
			Debounce:    cfg.Ingest.Debounce,
		}, logger)
		if err != nil {
			logger.Error("dochubd.ingest.watch_failed", "dir", cfg.Ingest.InboxDir, "error", err)
			os.Exit(1)
		}
		inbox := ingest.NewInbox(store, queue, ledger, cfg.Server.UploadDir, logger)
		g.Go(func() error {
			inbox.Run(gctx, paths, watchErrs)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("dochubd.shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		queue.Shutdown(shutdownCtx)
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("dochubd.exit", "error", err)
		os.Exit(1)
	}
	logger.Info("dochubd.stopped")
}
