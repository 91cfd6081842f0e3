package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aviellagerev/shareterm/internal/api"
	"github.com/aviellagerev/shareterm/internal/config"
	"github.com/aviellagerev/shareterm/internal/history"
	"github.com/aviellagerev/shareterm/internal/session"
	"github.com/aviellagerev/shareterm/internal/transfer"
	"github.com/aviellagerev/shareterm/internal/watch"
)

// shareterm-drop watches a drop directory and uploads every file that
// lands in it. Uploaded files are moved to a sent/ subdirectory so a
// restart does not send them again.
func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	username := flag.String("user", "", "account username")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *username == "" {
		log.Fatal("Missing -user")
	}
	password := os.Getenv("SHARETERM_PASSWORD")
	if password == "" {
		log.Fatal("SHARETERM_PASSWORD is not set")
	}

	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	sentDir := filepath.Join(cfg.Paths.DropDir, "sent")
	if err := os.MkdirAll(sentDir, 0755); err != nil {
		log.Fatalf("Failed to create sent directory: %v", err)
	}

	database, err := history.Open(cfg.Paths.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()
	repo := history.NewRepo(database.DB)

	client, err := api.NewClient(api.Config{BaseURL: cfg.Server.BaseURL})
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.CloseIdleConnections()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Login(ctx, *username, password); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	perm, err := client.RefreshSession(ctx)
	if err != nil {
		log.Fatalf("Session check failed: %v", err)
	}
	if !perm.CanUpload() {
		log.Fatalf("Account %s has the %s role and cannot upload", *username, perm)
	}
	log.Printf("Logged in as %s (%s)", *username, perm)

	dispatcher := transfer.New(transfer.Config{
		Remote:            client,
		Guard:             session.NewGuard(*username, perm),
		DownloadDir:       cfg.Paths.Downloads,
		MaxUploadSize:     cfg.Transfer.MaxUploadSize,
		AllowedExtensions: cfg.Transfer.AllowedExtensions,
	})

	onFile := func(path string) {
		res := dispatcher.Upload(ctx, []string{path})
		for _, f := range res.Uploaded {
			log.Printf("Uploaded %s (%d bytes)", f.Name, f.Record.Size)
			repo.Record(history.Entry{
				Action: history.ActionUpload, Filename: f.Name,
				Size: f.Record.Size, Actor: *username, Succeeded: true,
			})
			if err := os.Rename(path, filepath.Join(sentDir, f.Name)); err != nil {
				log.Printf("Could not move %s to sent/: %v", f.Name, err)
			}
		}
		for _, f := range res.Failed {
			log.Printf("Upload of %s failed: %v", f.Name, f.Err)
			repo.Record(history.Entry{
				Action: history.ActionUpload, Filename: f.Name,
				Actor: *username, Detail: f.Err.Error(),
			})
		}
	}

	w, err := watch.New(watch.Config{
		Dir:          cfg.Paths.DropDir,
		SettleDelay:  cfg.Transfer.SettleDelay,
		Validator:    transfer.NewSourceValidator([]string{cfg.Paths.DropDir}),
		OnFile:       onFile,
		ScanExisting: true,
	})
	if err != nil {
		log.Fatalf("Failed to create watcher: %v", err)
	}

	log.Printf("Watching %s", cfg.Paths.DropDir)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Watcher error: %v", err)
	}

	log.Print("Shutting down")
	if err := client.Logout(context.Background()); err != nil {
		log.Printf("Logout failed: %v", err)
	}
}
