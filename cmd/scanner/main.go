package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/buehnenwerk/stagesync/internal/client/api"
	"github.com/buehnenwerk/stagesync/internal/client/cli"
	"github.com/buehnenwerk/stagesync/internal/client/iocli"
	"github.com/buehnenwerk/stagesync/internal/client/storage/boltdb"
	"github.com/buehnenwerk/stagesync/internal/client/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	io := iocli.NewStdio()

	// Глобальные флаги; значения по умолчанию перекрываются окружением
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", envOrDefault("STAGESYNC_SERVER_URL", "http://localhost:8080"), "Server URL")
	dbPath := flag.String("db", envOrDefault("STAGESYNC_DB_PATH", "stagesync-scanner.db"), "Path to local database")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.New(io, nil, nil, nil, nil).PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	ctx := context.Background()

	boltStorage, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	apiClient := api.NewClient(*serverURL)
	if token, err := deviceToken(io, command); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	} else if token != "" {
		apiClient.SetToken(token)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	syncService := sync.NewService(apiClient, boltStorage, boltStorage, boltStorage, logger)

	c := cli.New(io, boltStorage, boltStorage, boltStorage, syncService)
	if err := c.Run(ctx, command, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// deviceToken берёт токен из окружения, а для сетевых команд
// при его отсутствии запрашивает интерактивно
func deviceToken(io iocli.IO, command string) (string, error) {
	token := os.Getenv("STAGESYNC_TOKEN")
	if token != "" {
		return token, nil
	}

	// Локальным командам сервер не нужен
	if command != "sync" && command != "bootstrap" {
		return "", nil
	}

	token, err := io.ReadSecret("Device token: ")
	if err != nil {
		return "", fmt.Errorf("failed to read device token: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("device token is required for %s (set STAGESYNC_TOKEN)", command)
	}
	return token, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printVersion() {
	fmt.Printf("StageSync Scanner\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
