// Command main is the entry point for the IntelliBlog backend server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"intelliblog/internal/config"
	"intelliblog/internal/middleware"
	"intelliblog/internal/server"

	"github.com/gofiber/fiber/v2"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	middleware.InitMiddleware(cfg)

	// Create server with dependency injection
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Start the job engine and re-enqueue jobs interrupted by the previous
	// shutdown.
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := srv.StartEngine(startCtx); err != nil {
		log.Printf("Job requeue error: %v", err)
	}
	startCancel()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:   "IntelliBlog API",
		BodyLimit: 5 * 1024 * 1024, // 5MB limit
	})

	// Setup middleware and routes
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}

		// Drain in-flight jobs; anything still running is requeued on the
		// next boot.
		if err := srv.StopEngine(ctx); err != nil {
			log.Printf("Engine shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("Server starting on port %s...", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
