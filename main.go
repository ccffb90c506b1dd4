// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"clubbackend/internal/config"
	"clubbackend/internal/data"
	"clubbackend/internal/instagram"
	"clubbackend/internal/ledger"
	"clubbackend/internal/logger"
	"clubbackend/internal/middleware"
	"clubbackend/internal/notice"
	"clubbackend/internal/schedule"
	"clubbackend/internal/session"
	"clubbackend/internal/teaser"
)

type App struct {
	addr          string
	mux           *http.ServeMux
	connections   sync.WaitGroup
	totalRequests int64
}

func init() {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err == nil {
		time.Local = loc // This affects the standard log package
	}
}

func main() {
	// Step 1: Setup configuration first
	config.LoadEnv()

	// Step 2: Setup logging
	loggerConfig := config.LoggerConfig()
	if err := logger.SetupLogger(loggerConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Only NOW is logging safe to use!
	logger.LogInfo("Environment loaded. Logger ready.")

	config.ConfigurePaths()
	config.LoadCORSConfig()
	config.CheckAdminConfig()

	// Step 3: Open the relational store and prepare schema + seed data
	if err := data.InitDB(config.DatabaseFile); err != nil {
		logger.LogFatal("Failed to initialize database: %v", err)
	}
	if err := data.CreateTables(); err != nil {
		logger.LogFatal("Failed to create tables: %v", err)
	}

	scheduleRepo := data.NewScheduleRepository()
	if err := scheduleRepo.SeedIfEmpty(); err != nil {
		logger.LogFatal("Failed to seed schedules: %v", err)
	}

	// Step 4: Build services
	ledgerSvc := ledger.New(config.StockFile, config.BorrowLogFile, nil)
	teaserSvc := teaser.NewService(config.TeaserEntriesFile)
	instaClient := instagram.NewClient(config.InstagramToken)
	noticeRepo := data.NewNoticeRepository()

	// Step 5: Setup app
	app := &App{
		addr: serverAddress(),
		mux:  routes(ledgerSvc, teaserSvc, instaClient, noticeRepo, scheduleRepo),
	}

	// Step 6: Start background tasks
	go session.CleanExpiredSessions()

	// Step 7: Run server
	app.Run()
}

// serverAddress builds the server address from environment variables
func serverAddress() string {
	host := os.Getenv("SERVER_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "5000"
	}
	return host + ":" + port
}

// routes sets up all API routes
func routes(
	ledgerSvc *ledger.Ledger,
	teaserSvc *teaser.Service,
	instaClient *instagram.Client,
	noticeRepo *data.NoticeRepository,
	scheduleRepo *data.ScheduleRepository,
) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	lend := ledger.NewHandlers(ledgerSvc)
	notices := notice.NewHandlers(noticeRepo)
	schedules := schedule.NewHandlers(scheduleRepo)

	chain := middleware.Chain
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return chain(session.RequireAdmin(h))
	}
	borrowLimit := middleware.RateLimit(10, time.Minute)
	teaserLimit := middleware.RateLimit(5, time.Minute)
	noticeLimit := middleware.RateLimit(30, time.Minute)

	// Lending
	mux.HandleFunc("GET /api/items", chain(lend.Items))
	mux.HandleFunc("GET /api/departments", chain(lend.Departments))
	mux.HandleFunc("POST /api/borrow", chain(borrowLimit(lend.Borrow)))
	mux.HandleFunc("POST /api/check", chain(lend.Check))

	// Admin session
	mux.HandleFunc("POST /api/admin/login", chain(session.LoginHandler))
	mux.HandleFunc("POST /api/admin/logout", chain(session.LogoutHandler))
	mux.HandleFunc("GET /api/admin/check-session", chain(session.CheckSessionHandler))

	// Admin lending operations
	mux.HandleFunc("GET /api/admin/dashboard", admin(lend.Dashboard))
	mux.HandleFunc("GET /api/admin/requests", admin(lend.Requests))
	mux.HandleFunc("POST /api/admin/approve", admin(lend.Approve))
	mux.HandleFunc("POST /api/admin/reject", admin(lend.Reject))
	mux.HandleFunc("GET /api/admin/ongoing", admin(lend.Ongoing))
	mux.HandleFunc("POST /api/admin/return", admin(lend.Return))
	mux.HandleFunc("GET /api/admin/logs", admin(lend.Logs))
	mux.HandleFunc("GET /api/admin/download_log", admin(lend.DownloadLog))

	// Admin stock management
	mux.HandleFunc("POST /api/admin/stock/update", admin(lend.UpdateStock))
	mux.HandleFunc("POST /api/admin/stock/add", admin(lend.AddStockItem))
	mux.HandleFunc("POST /api/admin/stock/delete", admin(lend.DeleteStockItem))

	// Teaser event
	mux.HandleFunc("POST /api/teaser/entry", chain(teaserLimit(teaserSvc.EntryHandler)))
	mux.HandleFunc("GET /api/admin/teaser", admin(teaserSvc.ListHandler))

	// Notice board
	mux.HandleFunc("GET /api/notices", chain(noticeLimit(notices.List)))
	mux.HandleFunc("GET /api/notices/{id}", chain(noticeLimit(notices.Detail)))
	mux.HandleFunc("POST /api/notices", admin(notices.Create))
	mux.HandleFunc("PUT /api/notices/{id}", admin(notices.Update))
	mux.HandleFunc("DELETE /api/notices/{id}", admin(notices.Delete))
	mux.HandleFunc("DELETE /api/notices/file/{file_id}", admin(notices.DeleteFile))
	mux.HandleFunc("GET /api/notices/download/{notice_id}/{filename}", chain(notices.Download))

	// Instagram mirror
	mux.HandleFunc("GET /api/instagram/posts", chain(instaClient.PostsHandler))

	// Schedule lookup
	mux.HandleFunc("GET /api/schedule", chain(schedules.List))

	return mux
}

// Run starts the HTTP server
func (a *App) Run() {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in a separate goroutine
	go func() {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogFatal("Server failed: %v", err)
		}
	}()

	// Wait for a shutdown signal
	<-stop
	logger.LogInfo("Shutdown signal received")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown the server gracefully
	if err := server.Shutdown(ctx); err != nil {
		logger.LogError("Server shutdown error: %v", err)
	}

	// Wait for active connections to finish
	logger.LogInfo("Waiting for active connections to finish...")
	a.connections.Wait()

	if err := data.CloseDB(); err != nil {
		logger.LogError("Database close error: %v", err)
	}
	logger.LogInfo("All connections closed. Total requests handled: %d", atomic.LoadInt64(&a.totalRequests))
	logger.LogInfo("Server shut down gracefully")
}

// Handler assembles all middleware around the main mux
func (a *App) Handler() http.Handler {
	var handler http.Handler = a.mux

	handler = a.trackConnections(handler)
	handler = middleware.CORS(handler)
	handler = withTimeout(handler, 15*time.Second)

	return handler
}

// Middleware: timeout handler
func withTimeout(h http.Handler, timeout time.Duration) http.Handler {
	return http.TimeoutHandler(h, timeout, "Request timed out")
}

// Middleware: track active connections and total requests
func (a *App) trackConnections(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.connections.Add(1)
		atomic.AddInt64(&a.totalRequests, 1)
		defer a.connections.Done()

		h.ServeHTTP(w, r)
	})
}
