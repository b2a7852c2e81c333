package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-server/internal/auth"
	"chat-server/internal/chat"
	"chat-server/internal/config"
	"chat-server/internal/store"
	"chat-server/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize store
	db, err := store.NewPostgresStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize services
	authService := auth.NewService(cfg)
	gateway := chat.NewGateway(cfg, authService, db, db)

	// Setup routes
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gateway.HandleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"chat backend running"}`))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}
