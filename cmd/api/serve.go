package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/department-tree/internal/cache"
	"github.com/department-tree/internal/handler"
	"github.com/department-tree/internal/service"
)

func newServeCmd(load loader) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := connect(ctx, load)
			if err != nil {
				return err
			}
			defer a.close()

			if !skipMigrations {
				if err := a.migrate(ctx); err != nil {
					a.logger.Error("failed to run migrations", slog.Any("error", err))
					return err
				}
			}

			store, err := a.newStore(ctx)
			if err != nil {
				a.logger.Error("failed to init cache", slog.Any("error", err))
				return err
			}
			defer store.Close()

			notifier := cache.NewAsyncNotifier(store, a.logger)
			defer notifier.Wait()

			deps := a.deps(store, notifier)
			deptService := service.NewDepartmentService(deps)
			catalogService := service.NewCatalogService(deps)
			reaper := service.NewReaperService(deps, a.cfg.Reaper.Retention)

			router := handler.NewRouter(
				handler.NewDepartmentHandler(deptService, a.logger),
				handler.NewCatalogHandler(catalogService, a.logger),
				a.logger,
			)

			server := &http.Server{
				Addr:         ":" + a.cfg.Server.Port,
				Handler:      router.Setup(),
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
				IdleTimeout:  60 * time.Second,
			}

			if a.cfg.Reaper.Interval > 0 {
				go runReaper(ctx, reaper, a.cfg.Reaper.Interval, a.logger)
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				<-ctx.Done()
				a.logger.Info("server is shutting down...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("could not gracefully shutdown the server", slog.Any("error", err))
				}
			}()

			a.logger.Info("server is starting", slog.String("port", a.cfg.Server.Port))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("could not listen on port", slog.String("port", a.cfg.Server.Port), slog.Any("error", err))
				return err
			}

			<-done
			a.logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply migrations on start")
	return cmd
}

// runReaper периодически запускает сборщик, пока не отменён контекст
func runReaper(ctx context.Context, reaper service.ReaperService, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := reaper.DeleteInactive(ctx); err != nil {
				logger.Error("reaper run failed", slog.Any("error", err))
			}
		}
	}
}
