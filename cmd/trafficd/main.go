package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blessed-py/traffic-management/internal/analytics"
	"github.com/blessed-py/traffic-management/internal/api"
	"github.com/blessed-py/traffic-management/internal/config"
	"github.com/blessed-py/traffic-management/internal/ingest"
	"github.com/blessed-py/traffic-management/internal/metrics"
	"github.com/blessed-py/traffic-management/internal/simulate"
	"github.com/blessed-py/traffic-management/internal/store"
	"github.com/blessed-py/traffic-management/internal/ws"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Owned service objects, constructed once and passed by handle. No
	// package-level mutable state.
	eventStore := store.NewMemoryStore()
	engine := analytics.NewEngine()
	m := metrics.New()
	hub := ws.NewHub(eventStore, engine, m, cfg.Hub.UpdateInterval)
	go hub.Run()

	handler := api.NewHandler(eventStore, engine, hub, m)
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(handler),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Simulator.Enabled {
		sim := simulate.New(eventStore, hub, cfg.Simulator.MinInterval, cfg.Simulator.MaxInterval)
		go sim.Run(ctx)
	}

	var mqttSource *ingest.MQTTSource
	if cfg.MQTT.Enabled {
		mqttSource = ingest.NewMQTTSource(eventStore, hub, m, cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, cfg.MQTT.Topic)
		if err := mqttSource.Start(); err != nil {
			log.Printf("mqtt source unavailable, continuing without it: %v", err)
			mqttSource = nil
		}
	}

	go func() {
		log.Printf("trafficd listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()
	if mqttSource != nil {
		mqttSource.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced server shutdown: %v", err)
	}
	hub.Shutdown()

	log.Println("stopped")
}
