// Package serve implements the HTTP server command.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fancyplanties/fancy-planties/internal/api"
	"github.com/fancyplanties/fancy-planties/internal/conf"
	"github.com/fancyplanties/fancy-planties/internal/datastore"
	"github.com/fancyplanties/fancy-planties/internal/imagestore"
	"github.com/fancyplanties/fancy-planties/internal/notification"
	"github.com/fancyplanties/fancy-planties/internal/observability"
)

// Command creates the serve command that runs the web server.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Fancy Planties web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", viper.GetString("webserver.host"), "Host address to bind to")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func runServer(settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no database backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Printf("Failed to close datastore: %v", err)
		}
	}()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	ds.SetMetrics(metrics.Datastore)

	notifier, err := notification.New(settings)
	if err != nil {
		return fmt.Errorf("initializing notifications: %w", err)
	}

	images, err := imagestore.New(context.Background(), settings)
	if err != nil {
		return fmt.Errorf("initializing image store: %w", err)
	}

	e := echo.New()
	e.HideBanner = true

	controller, err := api.New(e, ds, settings, log.Default(), metrics,
		api.WithNotifier(notifier),
		api.WithImageService(images),
	)
	if err != nil {
		return fmt.Errorf("initializing api: %w", err)
	}
	defer controller.Shutdown()

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	addr := net.JoinHostPort(settings.WebServer.Host, settings.WebServer.Port)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server stopped: %v", err)
		}
	}()
	log.Printf("Fancy Planties %s listening on %s", settings.Version, addr)

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
