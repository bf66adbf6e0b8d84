package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ramesius/wez-sonos/internal/config"
	"github.com/ramesius/wez-sonos/internal/maintenance"
	"github.com/ramesius/wez-sonos/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	addr := cfg.Host + ":" + cfg.Port

	svc, err := server.New(cfg)
	if err != nil {
		log.Fatalf("service init error: %v", err)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.Start(startCtx); err != nil {
		startCancel()
		log.Fatalf("service start error: %v", err)
	}
	startCancel()

	housekeeping := maintenance.Start(svc.Journal(), svc.Manager,
		time.Duration(cfg.JournalRetentionHours)*time.Hour)

	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewHandler(cfg, svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		housekeeping.Stop()
		if err := svc.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	log.Printf("sonosd listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
