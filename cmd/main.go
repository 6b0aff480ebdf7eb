package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/onpointsoft-solutions/shulegram/internal/config"
	"github.com/onpointsoft-solutions/shulegram/internal/db"
	"github.com/onpointsoft-solutions/shulegram/internal/handlers"
	"github.com/onpointsoft-solutions/shulegram/internal/paystack"
	"github.com/onpointsoft-solutions/shulegram/internal/services"
	"github.com/onpointsoft-solutions/shulegram/internal/store"
	"github.com/onpointsoft-solutions/shulegram/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	database := client.Database(cfg.MongoDB)

	transactions := store.NewTransactionStore(database)
	if err := transactions.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to ensure transaction indexes: %v", err)
	}
	bookings := store.NewBookingStore(database)

	gateway := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey, nil)
	runner := tasks.NewRunner(30 * time.Second)

	paymentService := services.NewPaymentService(transactions, bookings, gateway, runner, cfg.CallbackURL)
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg.Debug)
	webhookHandler := handlers.NewWebhookHandler(paymentService, cfg.PaystackSecretKey)

	router := handlers.NewRouter(paymentHandler, webhookHandler, cfg.JWTSecret, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server running on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	if err := runner.Close(shutdownCtx); err != nil {
		log.Printf("Background tasks did not drain: %v", err)
	}
}
