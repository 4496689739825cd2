package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"chatd/config"
	"chatd/server"
	"chatd/storage"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the chat server",
	Run:   runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) {
	cfg := config.Load()

	store := storage.New(cfg.StorageRoot)
	if err := store.EnsureRoot(); err != nil {
		jww.FATAL.Printf("failed to prepare storage: %v", err)
		os.Exit(1)
	}

	srv := server.New(store, &server.Config{
		Port:           cfg.Port,
		MaxConnections: cfg.MaxConnections,
		ShutdownGrace:  time.Duration(cfg.ShutdownGrace) * time.Second,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		jww.INFO.Printf("received signal %v, shutting down", sig)
		srv.Shutdown()
		os.Exit(0)
	}()

	if err := srv.Start(); err != nil {
		jww.FATAL.Printf("server failed to start: %v", err)
		os.Exit(1)
	}
}
