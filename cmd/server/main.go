package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgeworks/appforge/internal/infrastructure/config"
	"github.com/forgeworks/appforge/internal/infrastructure/server"
)

func main() {
	port := flag.String("port", "", "server port (overrides PORT)")
	workspace := flag.String("workspace", "", "generated app directory (overrides WORKSPACE_DIR)")
	generatorAddr := flag.String("generator", "", "remote generator address (overrides GENERATOR_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *workspace != "" {
		cfg.Workspace.Dir = *workspace
	}
	if *generatorAddr != "" {
		cfg.Generator.Address = *generatorAddr
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("server error: %v", err)
	}
}
