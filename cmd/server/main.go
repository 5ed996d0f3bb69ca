package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/teeforge/customizer/internal/asset"
	"github.com/teeforge/customizer/internal/auth"
	"github.com/teeforge/customizer/internal/collab"
	"github.com/teeforge/customizer/internal/config"
	mw "github.com/teeforge/customizer/internal/middleware"
	"github.com/teeforge/customizer/internal/store"
	"github.com/teeforge/customizer/internal/template"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		slog.Error("migrate database", "error", err)
		os.Exit(1)
	}

	assetHandler := asset.NewHandler(cfg.AssetDir, "/assets/mockups")

	templateService := template.NewService(pool, cfg.Fractions()).WithMockupSizer(assetHandler.MeasureURL)

	hub := collab.NewHub(templateService.LoadRoom, logger.With("component", "collab"))
	go hub.Run()

	templateHandler := template.NewHandler(templateService).WithPrintAreaHook(func(t *template.Template) {
		hub.UpdatePrintArea(t.ID, t.PrintArea, templateService.Resolver(t))
	})

	tokens := auth.NewTokens(cfg.SessionSecret, 0)
	authHandler := auth.NewHandler(tokens, templateService).WithAdminKey(cfg.AdminKey)

	r := newRouter(server{
		templates: templateHandler,
		auth:      authHandler,
		tokens:    tokens,
		assets:    assetHandler,
		hub:       hub,
		ping:      pool.Ping,
		origins:   cfg.AllowedOrigins,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "printArea", cfg.Fractions())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

type server struct {
	templates *template.Handler
	auth      *auth.Handler
	tokens    *auth.Tokens
	assets    *asset.Handler
	hub       *collab.Hub
	ping      func(context.Context) error
	origins   []string
}

func newRouter(s server) *mux.Router {
	r := mux.NewRouter()

	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(s.origins))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/auth/session", s.auth.CreateSession).Methods("POST", "OPTIONS")
	r.HandleFunc("/auth/admin", s.auth.AdminSession).Methods("POST", "OPTIONS")

	// Mockup management needs an admin token; serving is public.
	r.Handle("/assets/mockups", s.tokens.AdminOnly(http.HandlerFunc(s.assets.Upload))).Methods("POST", "OPTIONS")
	r.Handle("/assets/mockups/{mockupId}", s.tokens.AdminOnly(http.HandlerFunc(s.assets.Remove))).Methods("DELETE", "OPTIONS")
	r.PathPrefix("/assets/mockups/").Handler(s.assets.Serve()).Methods("GET")

	// Template reads are public so the storefront can render product pages.
	api := r.PathPrefix("/api").Subrouter()
	s.templates.Routes(api, s.tokens.AdminOnly)
	api.Handle("/session", s.tokens.Middleware(http.HandlerFunc(s.auth.Me))).Methods("GET")

	r.HandleFunc("/ws/design/{templateId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, s.hub, s.tokens, s.origins)
	})

	return r
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, tokens *auth.Tokens, allowedOrigins []string) {
	templateID := mux.Vars(r)["templateId"]

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := tokens.Validate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.TemplateID != templateID {
		http.Error(w, "token is for a different template", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(allowedOrigins),
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := collab.NewClient(hub, conn, claims.SessionID(), claims.DisplayName, templateID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// originPatterns turns configured origins into the host patterns
// websocket.Accept matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
