package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/gatetimer/go/internal/api"
	"github.com/mcdev12/gatetimer/go/internal/live"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *ServerConfig, services *Services) *http.Server {
	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	handler := c.Handler(setupRoutes(cfg, services))

	return &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     h2c.NewHandler(handler, &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
}

func setupRoutes(cfg *ServerConfig, services *Services) *http.ServeMux {
	mux := http.NewServeMux()

	api.NewHandler(
		services.Coordinator,
		api.WithStats(services.Counters, services.Broadcaster),
	).RegisterRoutes(mux)

	live.NewHandler(services.Broadcaster).RegisterRoutes(mux)

	if cfg.StaticDir != "" {
		api.NewStaticHandler(cfg.StaticDir).RegisterRoutes(mux)
	}
	return mux
}
