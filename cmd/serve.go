package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobhunter/internal/checklist"
	"jobhunter/internal/logger"
	"jobhunter/internal/tracker"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultServePort = "8750"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the checklist for review in a browser",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("port", "p", "", "port for the checklist server")
	viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
}

func serve() {
	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zlog.Fatal("getting a config", zap.Error(err))
	}

	store, err := tracker.Open(config.StateFile, config.ReviewThreshold, zlog)
	if err != nil {
		zlog.Fatal("opening the tracker state", zap.Error(err))
	}

	exporter, err := checklist.NewExporter(store, config.ChecklistDir, zlog)
	if err != nil {
		zlog.Fatal("building the checklist exporter", zap.Error(err))
	}

	// Regenerate on startup so the page reflects the current tracker state.
	if err := exporter.Export(); err != nil {
		zlog.Fatal("exporting the checklist", zap.Error(err))
	}

	port := defaultServePort
	if config.Serve != nil && config.Serve.Port != "" {
		port = config.Serve.Port
	}
	addr, err := checklist.ListenAddr(port)
	if err != nil {
		zlog.Fatal("invalid serve port", zap.Error(err))
	}

	server := checklist.NewServer(exporter, zlog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			zlog.Fatal("checklist server failed", zap.Error(err))
		}
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			zlog.Error("shutdown error", zap.Error(err))
		}
	}
}
