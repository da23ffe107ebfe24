package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"medialib/api"
	"medialib/handlers"
	"medialib/internal/database"
	"medialib/services/nmj"
	"medialib/services/providers"
)

var portOverride int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, settings, err := loadSettings()
		if err != nil {
			return err
		}
		setupLogging(settings.Log)
		if portOverride > 0 {
			settings.Server.Port = portOverride
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := database.Open(ctx, settings.Cache.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()

		store := providers.NewStore(db, time.Duration(settings.Cache.RecentTTLMins)*time.Minute)
		registry := providers.NewRegistry(settings.Providers)
		notifier := nmj.NewNotifier(mgr, nil, nil)

		router := api.NewRouter(
			handlers.NewNMJHandler(notifier),
			handlers.NewProvidersHandler(registry, store),
		)

		addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("Server starting on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Println("Shutdown signal received, cleaning up...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
		log.Println("Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&portOverride, "port", 0, "override server port from config")
	rootCmd.AddCommand(serveCmd)
}
