package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lordblackfox/aircox/internal/api"
	"github.com/lordblackfox/aircox/internal/config"
	database "github.com/lordblackfox/aircox/internal/db"
	"github.com/lordblackfox/aircox/internal/liquidsoap"
	"github.com/lordblackfox/aircox/internal/streamer"
)

func main() {
	seed := flag.Bool("seed", false, "Seed the database with a demo program grid")
	noEngine := flag.Bool("no-engine", false, "Do not launch the engine process (control files/API only)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("🚀 Starting Aircox Station Control...")

	cfg := config.Load()

	db := database.New(cfg)
	db.AutoMigrate()
	if *seed {
		database.SeedPrograms(db.DB)
	}

	renderer, err := liquidsoap.New()
	if err != nil {
		log.Fatalf("Bad station template: %v", err)
	}

	ctl, err := streamer.NewController(cfg, db, renderer)
	if err != nil {
		log.Fatalf("Controller init failed: %v", err)
	}
	sup := streamer.NewSupervisor(ctl, cfg)

	streamer.RegisterMetrics()
	go startMetricsServer(cfg.Server.MetricsPort)

	// The engine must die with us: explicit shutdown path, no exit
	// hooks.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down, killing engine...")
		sup.Terminate()
		os.Exit(0)
	}()

	if !*noEngine {
		if err := sup.Run(); err != nil {
			log.Fatalf("Engine start failed: %v", err)
		}
		for !sup.Ready() {
			log.Println("⏳ Waiting for engine socket...")
			time.Sleep(time.Second)
		}
		log.Println("✅ Engine ready")
	}

	// Keep sources and files in sync with the database.
	go refreshLoop(ctl, cfg)

	server := api.New(cfg, ctl, sup)
	log.Printf("🌍 Control API at %s", cfg.Server.APIPort)
	if err := server.Start(cfg.Server.APIPort); err != nil {
		sup.Terminate()
		log.Fatalf("API server: %v", err)
	}
}

func refreshLoop(ctl *streamer.Controller, cfg *config.Config) {
	interval := time.Duration(cfg.Engine.RefreshInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if err := ctl.Refresh(false); err != nil {
			log.Printf("⚠️ Refresh failed: %v", err)
			continue
		}
		if err := ctl.Write(true, false); err != nil {
			log.Printf("⚠️ Playlist write failed: %v", err)
		}
	}
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/_metrics", promhttp.Handler())
	log.Printf("📈 Metrics at %s", addr)
	http.ListenAndServe(addr, mux)
}
