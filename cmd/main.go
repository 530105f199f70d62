package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"roombook/config"
	"roombook/internal/api"
	"roombook/internal/broker"
	"roombook/internal/db"
	"roombook/internal/db/repos"
	"roombook/internal/holdstore"
	"roombook/internal/messages"
	"roombook/internal/processor"
	"roombook/internal/publisher"
	"roombook/internal/sweeper"
	"roombook/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.AppConfig

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database := db.NewDB()
	defer database.Close()
	reservationRepo := repos.NewReservationRepository(database)

	holds, err := holdstore.NewFromAddr(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to hold store: %v", err)
	}
	defer holds.Close()

	requestBroker, err := broker.NewBroker(cfg.RabbitMQURL, messages.ExchangeReservations, "direct")
	if err != nil {
		log.Fatalf("Failed to connect request broker: %v", err)
	}

	stateBroker, err := broker.NewBroker(cfg.RabbitMQURL, messages.ExchangeStateChanges, "fanout")
	if err != nil {
		log.Fatalf("Failed to connect state broker: %v", err)
	}
	defer stateBroker.Close()

	changePublisher := publisher.New(stateBroker)

	proc := processor.New(requestBroker, holds, reservationRepo, changePublisher, processor.Config{
		NumWorkers:    cfg.NumWorkers,
		PrefetchCount: cfg.PrefetchCount,
		HoldTTL:       cfg.HoldTTL,
	})
	if err := proc.Start(); err != nil {
		log.Fatalf("Failed to start reservation processor: %v", err)
	}

	hub := ws.NewHub()
	broadcaster := ws.NewBroadcaster(stateBroker, hub)
	if err := broadcaster.Start(); err != nil {
		log.Fatalf("Failed to start fan-out broadcaster: %v", err)
	}

	go sweeper.New(reservationRepo, holds, changePublisher, cfg.HoldTTL, cfg.SweepInterval).Run(ctx)

	router := gin.Default()
	api.SetupRoutes(router, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		log.Printf("Reservation core listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	hub.Shutdown()
	if err := proc.Shutdown(30 * time.Second); err != nil {
		log.Printf("Processor shutdown error: %v", err)
	}
}
