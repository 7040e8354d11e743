package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/api"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/auth"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/config"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/editor"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/session"
	httptransport "github.com/Talhakhan-pm/CRM-AutoXpress/internal/transport/http"
	"github.com/Talhakhan-pm/CRM-AutoXpress/internal/upstream"
)

func main() {
	cfg := config.Load()

	client := upstream.New(cfg.UpstreamBaseURL, cfg.UpstreamTimeout)
	log.Printf("upstream CRM API -> %s", cfg.UpstreamBaseURL)

	var blockKey []byte
	if cfg.SessionBlockKey != "" {
		blockKey = []byte(cfg.SessionBlockKey)
	}
	sessions := session.NewManager(client, []byte(cfg.SessionHashKey), blockKey, cfg.SessionCookieName, cfg.SessionMaxAge)

	forms := editor.NewStore(cfg.EditorFormTTL, cfg.Agents)

	handler := api.NewHandler(sessions, client, forms, cfg.Agents)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Simple CORS middleware for the browser frontend
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.AllowedOrigin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	middleware := auth.NewMiddleware(sessions)

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, cors(logger(middleware.Wrap(mux))))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("callback-console listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
