package handlers

import (
	"net/http"

	"minetrade/internal/config"
	"minetrade/internal/db"
	"minetrade/internal/metrics"
	"minetrade/internal/middleware"
	"minetrade/internal/models"
	"minetrade/internal/store"
	"minetrade/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	reconcileDB store.Selecter
	txRunner    db.TxRunner
	cfg         config.Config
	users       UserStore
	wallets     WalletStore
	entries     EntryStore
	plans       PlanStore
	orders      OrderStore
	topups      TopupStore
	prices      PriceStore
	admin       AdminStore
	audit       AuditStore
	wallet      WalletService
	mining      MiningService
	approval    ApprovalWorkflow
	hub         *websocket.Hub
}

func New(reconcileDB store.Selecter, txRunner db.TxRunner, cfg config.Config, users UserStore, wallets WalletStore, entries EntryStore, plans PlanStore, orders OrderStore, topups TopupStore, prices PriceStore, admin AdminStore, audit AuditStore, wallet WalletService, mining MiningService, approval ApprovalWorkflow, hub *websocket.Hub) *Handler {
	return &Handler{
		reconcileDB: reconcileDB,
		txRunner:    txRunner,
		cfg:         cfg,
		users:       users,
		wallets:     wallets,
		entries:     entries,
		plans:       plans,
		orders:      orders,
		topups:      topups,
		prices:      prices,
		admin:       admin,
		audit:       audit,
		wallet:      wallet,
		mining:      mining,
		approval:    approval,
		hub:         hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/wallet", h.GetWallet)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/wallet/entries", h.ListEntries)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/wallet/exchange", h.Exchange)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/plans", h.ListPlans)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/orders", h.CreateOrder)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/orders", h.ListOrders)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Get("/orders/{id}", h.GetOrder)
	router.With(middleware.Auth(h.cfg.JWTSecret)).Post("/orders/{id}/abort", h.AbortOrder)
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		anyAdmin := middleware.RequireRole(h.admin, models.RoleAdmin, models.RoleSubAdmin)
		fullAdmin := middleware.RequireRole(h.admin, models.RoleAdmin)
		r.With(anyAdmin).Post("/topups", h.RecordTopup)
		r.With(anyAdmin).Get("/topups", h.ListTopups)
		r.With(anyAdmin).Post("/orders/{id}/approve", h.ApproveOrder)
		r.With(anyAdmin).Post("/orders/{id}/reject", h.RejectOrder)
		r.With(anyAdmin).Post("/orders/{id}/accrue", h.AccrueOrder)
		r.With(anyAdmin).Get("/orders", h.AdminListOrders)
		r.With(fullAdmin).Post("/plans", h.CreatePlan)
		r.With(fullAdmin).Post("/prices", h.SetPrice)
		r.With(fullAdmin).Post("/promote", h.PromoteAdmin)
		r.With(anyAdmin).Get("/users", h.AdminListUsers)
		r.With(anyAdmin).Get("/audit", h.ListAuditLogs)
		r.With(anyAdmin).Get("/reconcile", h.Reconcile)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", metrics.Handler())
	return router
}
