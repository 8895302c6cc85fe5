package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emlakhub/apiserver/config"
	"github.com/emlakhub/apiserver/internal/db"
	"github.com/emlakhub/apiserver/internal/handlers"
	"github.com/emlakhub/apiserver/internal/mq"
	"github.com/emlakhub/apiserver/internal/realtime"
	"github.com/emlakhub/apiserver/internal/services"
	"github.com/emlakhub/apiserver/internal/storage"
	"github.com/emlakhub/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 10 * time.Second
	resubscribeBackoff = 2 * time.Second
)

// Server wraps the HTTP server, its router and the background event consumer.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sqlx.DB
	storage    *storage.Storage
	mq         *mq.MQ
	events     *mq.ListingEvents
	hub        *realtime.Hub
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New connects every dependency and builds the router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	logger := slog.Default()

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg)
	if err != nil {
		_ = objects.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}
	events := mq.NewListingEvents(broker, cfg.EventsChannel)
	hub := realtime.NewHub(logger)

	userRepo := store.NewUserRepository(dbConn)
	listingRepo := store.NewListingRepository(dbConn)
	notificationRepo := store.NewNotificationRepository(dbConn)
	favoriteRepo := store.NewFavoriteRepository(dbConn)
	imageRepo := store.NewImageRepository(dbConn)
	txManager := store.NewTxManager(dbConn)

	userService := services.NewUserService(userRepo)
	listingService := services.NewListingService(
		listingRepo,
		notificationRepo,
		imageRepo,
		txManager,
		services.WithEventPublisher(events),
		services.WithObjectRemover(objects),
		services.WithLogger(logger),
	)
	favoriteService := services.NewFavoriteService(favoriteRepo, listingRepo)
	notificationService := services.NewNotificationService(notificationRepo)
	photoService := services.NewPhotoService(listingRepo, imageRepo, objects, logger)

	auth := handlers.NewAuthenticator(userService, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.AccessLogger(nil),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Get("/readyz", handlers.Readyz(dbConn))

	// websocket connections outlive any request timeout
	router.Route("/ws", func(r chi.Router) {
		handlers.RealtimeRouter(r, hub, auth)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, auth)
		})
		r.Route("/listings", func(r chi.Router) {
			handlers.ListingRouter(r, listingService, photoService, auth)
		})
		r.Route("/favorites", func(r chi.Router) {
			handlers.FavoriteRouter(r, favoriteService, auth)
		})
		r.Route("/notifications", func(r chi.Router) {
			handlers.NotificationRouter(r, notificationService, auth)
		})
		r.Route("/admin", func(r chi.Router) {
			handlers.AdminRouter(r, userService, auth)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		storage:    objects,
		mq:         broker,
		events:     events,
		hub:        hub,
		logger:     logger,
		ctx:        runCtx,
		cancel:     cancel,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start serves HTTP and relays listing events to websocket clients until
// Shutdown is called or either loop fails.
func (s *Server) Start() error {
	g, ctx := errgroup.WithContext(s.ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		s.relayEvents(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// relayEvents consumes listing events and resubscribes after broker failures.
func (s *Server) relayEvents(ctx context.Context) {
	for {
		err := s.events.Consume(ctx, s.hub.Deliver)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("listing event consumer stopped", "backend", s.mq.Name(), "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeBackoff):
		}
	}
}

// Shutdown stops the server and releases every connection.
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)

	s.hub.Close()
	if closeErr := s.mq.Close(); closeErr != nil {
		s.logger.Warn("close mq failed", "error", closeErr)
	}
	if closeErr := s.storage.Close(); closeErr != nil {
		s.logger.Warn("close storage failed", "error", closeErr)
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
