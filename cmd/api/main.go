package main

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/adhamel/storefront/internal/auth"
	"github.com/adhamel/storefront/internal/cache"
	"github.com/adhamel/storefront/internal/config"
	"github.com/adhamel/storefront/internal/database"
)

type server struct {
	db     *sql.DB
	cache  *cache.Cache
	cfg    *config.Config
	tokens *auth.TokenIssuer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	log.Printf("Connected to database successfully")

	tokens, err := auth.NewTokenIssuer(&cfg.Auth)
	if err != nil {
		log.Fatalf("Configure auth: %v", err)
	}

	s := &server{
		db:     db,
		cache:  cache.New(&cfg.Redis),
		cfg:    cfg,
		tokens: tokens,
	}
	defer s.cache.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	log.Printf("Server starting on port %s", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)

	mux.HandleFunc("GET /products", s.handleListProducts)
	mux.HandleFunc("GET /products/{id}", s.handleGetProduct)
	mux.Handle("POST /products", s.authed(s.handleCreateProduct))
	mux.Handle("PUT /products/{id}", s.authed(s.handleUpdateProduct))
	mux.Handle("DELETE /products/{id}", s.authed(s.handleDeleteProduct))
	mux.Handle("POST /products/{id}/images", s.authed(s.handleAddImage))
	mux.Handle("PUT /products/{id}/images/{imageID}/primary", s.authed(s.handleSetPrimaryImage))
	mux.Handle("DELETE /images/{id}", s.authed(s.handleRemoveImage))

	mux.Handle("GET /me/profile", s.authed(s.handleGetProfile))
	mux.Handle("PUT /me/profile", s.authed(s.handleUpsertProfile))

	mux.Handle("POST /orders", s.authed(s.handleSubmitOrder))
	mux.Handle("GET /orders", s.authed(s.handleListOrders))
	mux.Handle("GET /orders/{id}", s.authed(s.handleGetOrder))
	mux.Handle("GET /order-items/{id}/download", s.authed(s.handleGetDownload))

	mux.Handle("GET /admin/orders/pending", s.authed(s.handleListPendingOrders))
	mux.Handle("POST /admin/orders/{id}/approve", s.authed(s.handleApproveOrder))
	mux.Handle("POST /admin/orders/{id}/reject", s.authed(s.handleRejectOrder))
	mux.Handle("PUT /admin/users/{id}/role", s.authed(s.handleAssignRole))

	mux.Handle("GET /chat", s.authed(s.handleGetChat))
	mux.Handle("POST /chats/{id}/messages", s.authed(s.handlePostMessage))
	mux.Handle("GET /chats/{id}/messages", s.authed(s.handleListMessages))
	mux.Handle("POST /admin/chats/{id}/read", s.authed(s.handleMarkChatRead))
	mux.Handle("GET /admin/chats", s.authed(s.handleListChats))

	return mux
}
