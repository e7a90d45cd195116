/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Schichtwerk shift engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and parse command-line flags
  2. Initialize SQLite store
  3. Wire the domain services (conflict detector, scheduling,
     timesheet, automation)
  4. Configure HTTP router and auth gates
  5. Start the background automation scheduler
  6. Start server with graceful shutdown

CONFIGURATION:
  Flags (override the environment):
    -port      HTTP server port (default: 8080)
    -db        SQLite database path (default: shiftwerk.db)
               Use ":memory:" for an in-memory database
    -sweep     Automation sweep interval (default: 15m, 0 disables)

  Environment (.env is loaded when present):
    PORT              HTTP server port
    DB_PATH           SQLite database path
    SESSION_SECRET    HMAC key for session token verification (required)
    SCHEDULER_SECRET  Shared bearer credential for automation endpoints
    TZ                Workspace-local timezone (default: Europe/Berlin)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the automation scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: The background sweeps
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/schichtwerk/shift-engine/api"
	"github.com/schichtwerk/shift-engine/automation"
	"github.com/schichtwerk/shift-engine/conflict"
	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/scheduling"
	"github.com/schichtwerk/shift-engine/store/sqlite"
	"github.com/schichtwerk/shift-engine/timesheet"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envString("DB_PATH", "shiftwerk.db"), "SQLite database path")
	sweep := flag.Duration("sweep", 15*time.Minute, "automation sweep interval (0 disables)")
	flag.Parse()

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		log.Fatal("SESSION_SECRET must be set")
	}
	schedulerSecret := os.Getenv("SCHEDULER_SECRET")
	if schedulerSecret == "" {
		log.Println("Warning: SCHEDULER_SECRET not set, secret-authenticated automation calls disabled")
	}

	location, err := time.LoadLocation(envString("TZ", "Europe/Berlin"))
	if err != nil {
		log.Fatalf("Invalid TZ: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Wire the domain services
	notifier := core.LogNotifier{}
	detector := conflict.NewDetector(store, store)
	automationSvc := automation.NewService(store, notifier)
	schedulingSvc := scheduling.NewService(store, detector, notifier, automationSvc)
	timesheetSvc := timesheet.NewService(store, notifier, automationSvc)
	timesheetSvc.Location = location

	handler := api.NewHandler(store, schedulingSvc, timesheetSvc, automationSvc)
	auth := &api.Auth{
		SessionSecret:   []byte(sessionSecret),
		SchedulerSecret: schedulerSecret,
		Store:           store,
	}
	router := api.NewRouter(handler, auth)

	// Background automation sweeps
	scheduler := &api.AutomationScheduler{
		Store:         store,
		Automation:    automationSvc,
		CheckInterval: *sweep,
		Enabled:       *sweep > 0,
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
