package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/expense-docs/internal/common"
	"github.com/joseph-ayodele/expense-docs/internal/export"
	"github.com/joseph-ayodele/expense-docs/internal/intake"
	"github.com/joseph-ayodele/expense-docs/internal/repository"
	"github.com/joseph-ayodele/expense-docs/internal/server"
	"github.com/joseph-ayodele/expense-docs/internal/storage"
)

func newServeCmd() *cobra.Command {
	var (
		inmem    bool
		httpAddr string
		grpcAddr string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the persistence service (HTTP API plus gRPC health)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := daemonLogger()

			if httpAddr != "" {
				cfg.Server.HTTPAddr = httpAddr
			}
			if grpcAddr != "" {
				cfg.Server.GRPCAddr = grpcAddr
			}
			if err := cfg.ValidateServer(inmem); err != nil {
				return err
			}
			return runServer(ctx, cfg, inmem, logger)
		},
	}
	cmd.Flags().BoolVar(&inmem, "inmem", false, "Use an in-memory sqlite database instead of DB_URL")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (default $HTTP_ADDR)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC health listen address (default $GRPC_ADDR)")
	return cmd
}

func runServer(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) error {
	var (
		db  *repository.DB
		err error
	)
	if inmem {
		db, err = repository.OpenInMemory(ctx, logger)
	} else {
		db, err = repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	}
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return err
	}
	defer db.Close(logger)

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		return err
	}

	store, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}

	docs := repository.NewDocumentRepository(db, logger)
	srv := server.New(docs, store, export.NewService(docs, logger),
		intake.New(intake.Config{MaxBytes: cfg.Intake.MaxUploadBytes}, logger),
		logger,
	)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		return err
	}
	health := server.NewHealth(logger)
	if err := health.MarkServing(ctx, db); err != nil {
		_ = lis.Close()
		logger.Error("failed to ping database", "error", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("expense-docs listening", "addr", cfg.Server.HTTPAddr, "inmem", inmem)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return health.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		health.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("stopped.")
	return err
}

func openStore(ctx context.Context, sc common.StorageConfig, logger *slog.Logger) (storage.ObjectStore, error) {
	if sc.Endpoint == "" {
		logger.Warn("S3_ENDPOINT not set, keeping uploaded files in memory")
		return storage.NewMemory(), nil
	}
	store, err := storage.NewMinio(sc, logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Error("failed to ensure bucket", "bucket", sc.Bucket, "error", err)
		return nil, err
	}
	return store, nil
}
