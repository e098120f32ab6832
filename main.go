package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/database"
	"github.com/username/coinfolio/backend/src/handlers"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/parsers"
	"github.com/username/coinfolio/backend/src/processors"
	"github.com/username/coinfolio/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Coinfolio backend server starting...")

	logger.L.Info("Loading tax rules...", "path", config.Cfg.TaxRulesPath)
	rules, err := config.LoadTaxRules(config.Cfg.TaxRulesPath)
	if err != nil {
		logger.L.Error("Failed to load tax rules", "error", err)
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)
	logger.L.Info("Report cache initialized.")

	logger.L.Info("Initializing services and handlers...")
	priceService := services.NewPriceService(rules, config.Cfg.PriceTablePath, config.Cfg.PriceAPIBaseURL)

	ledgerParser := parsers.NewLedgerCSVParser()
	normalizer := processors.NewBatchNormalizer(rules, config.Cfg.IncludeSends, config.Cfg.IncludeReceives)
	matcher := processors.NewHIFOMatcher(config.Cfg.LargeGainWarnThreshold)
	aggregator := processors.NewAggregator()

	taxService := services.NewTaxService(
		rules, ledgerParser, normalizer, matcher, aggregator,
		priceService, reportCache,
	)

	uploadHandler := handlers.NewUploadHandler(taxService)
	reportHandler := handlers.NewReportHandler(taxService)
	txHandler := handlers.NewTransactionHandler(taxService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("POST /api/upload", uploadHandler.HandleUpload)
	apiRouter.HandleFunc("GET /api/report/summary", reportHandler.HandleGetSummary)
	apiRouter.HandleFunc("GET /api/report/detail", reportHandler.HandleGetDetail)
	apiRouter.HandleFunc("GET /api/report/pivot", reportHandler.HandleGetPivot)
	apiRouter.HandleFunc("GET /api/report/unsold", reportHandler.HandleGetUnsoldLots)
	apiRouter.HandleFunc("GET /api/report/symbol/{symbol}", reportHandler.HandleGetSymbolReport)
	apiRouter.HandleFunc("GET /api/transactions/processed", txHandler.HandleGetTransactions)
	apiRouter.HandleFunc("DELETE /api/transactions/all", txHandler.HandleDeleteTransactions)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "COINFOLIO Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
