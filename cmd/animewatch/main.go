package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/animewatch/internal/avatars"
	cataloghandlers "github.com/example/animewatch/internal/catalog/handlers"
	catalogstore "github.com/example/animewatch/internal/catalog/store"
	identityhandlers "github.com/example/animewatch/internal/identity/handlers"
	"github.com/example/animewatch/internal/identity/mail"
	identitystore "github.com/example/animewatch/internal/identity/store"
	"github.com/example/animewatch/internal/identity/tokens"
	"github.com/example/animewatch/internal/platform/analytics"
	"github.com/example/animewatch/internal/platform/auth"
	"github.com/example/animewatch/internal/platform/config"
	"github.com/example/animewatch/internal/platform/db"
	"github.com/example/animewatch/internal/platform/httpserver"
	"github.com/example/animewatch/internal/platform/logging"
	"github.com/example/animewatch/internal/platform/natsconn"
	"github.com/example/animewatch/internal/platform/run"
	"github.com/example/animewatch/internal/platform/signing"
	"github.com/example/animewatch/internal/rbac"
	socialhandlers "github.com/example/animewatch/internal/social/handlers"
	socialstore "github.com/example/animewatch/internal/social/store"
	"github.com/example/animewatch/internal/streaming"
	"github.com/example/animewatch/internal/ticker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connect", zap.Error(err))
		run.Exit(1)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool, log); err != nil {
		log.Error("migrate", zap.Error(err))
		run.Exit(1)
	}

	// NATS is optional: without it analytics events are dropped.
	var js nats.JetStreamContext
	if nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL}); err != nil {
		log.Warn("nats unavailable, analytics disabled", zap.Error(err))
	} else {
		defer nc.Close()
		if js, err = nc.JetStream(); err != nil {
			js = nil
			log.Warn("jetstream unavailable, analytics disabled", zap.Error(err))
		}
	}
	events := analytics.New(js, log)

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}
	signer := signing.New(cfg.StreamSecret)
	relayBase := cfg.BaseURL + "/hls"

	users := identitystore.Store{DB: pool}
	comments := socialstore.NewPostgresCommentStore(pool)
	catalog := catalogstore.NewPostgresCatalogStore(pool)
	tickerStore := ticker.NewPostgresStore(pool)
	avatarStore := avatars.NewPostgresStore(pool)
	rbacStore := rbac.NewPostgresStore(pool)

	accounts := &identityhandlers.Auth{
		Store: users,
		Tokens: tokens.Service{
			Secret:          []byte(cfg.JWTSecret),
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
		},
		Mail:   mail.New(cfg.SMTP, cfg.BaseURL, log),
		Events: events,
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(pingCtx)
	}})

	// Public routes. Reads attach viewer identity when a bearer token is
	// present so reaction flags and view events carry the user.
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(verifier))
		r.Get("/api/anime", cataloghandlers.ListShows(catalog))
		r.Get("/api/anime/featured", cataloghandlers.ListFeatured(catalog))
		r.Get("/api/anime/{show_id}", cataloghandlers.GetShow(catalog, events))
		r.Get("/api/genres", cataloghandlers.ListGenres(catalog))
		r.Get("/api/ticker", ticker.ListItems(tickerStore))
		r.Get("/api/avatars", avatars.ListAvatars(avatarStore))
		r.Get("/api/comments/{show_id}", socialhandlers.ListComments(comments))
	})

	r.Post("/api/auth/register", accounts.Register)
	r.Post("/api/auth/login", accounts.Login)
	r.Post("/api/auth/refresh", accounts.Refresh)
	r.Post("/api/auth/logout", accounts.Logout)
	r.Get("/api/auth/verify", accounts.VerifyEmail)

	// Signed HLS relay; access control is the signature itself.
	r.Get("/hls", streaming.Relay(signer, log))

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Get("/api/auth/me", accounts.Me)
		r.Put("/api/users/me/avatar", accounts.SetProfilePicture)

		r.Post("/api/comments/{show_id}", socialhandlers.CreateComment(comments, events))
		r.Put("/api/comments/{comment_id}", socialhandlers.UpdateComment(comments))
		r.Delete("/api/comments/{comment_id}", socialhandlers.DeleteComment(comments, events))
		r.Post("/api/comments/{comment_id}/like", socialhandlers.ToggleLike(comments, events))
		r.Post("/api/comments/{comment_id}/dislike", socialhandlers.ToggleDislike(comments, events))

		r.Get("/api/anime/{show_id}/watch", streaming.WatchMovie(catalog, signer, relayBase, events))
		r.Get("/api/anime/{show_id}/episodes/{episode_id}/watch", streaming.WatchEpisode(catalog, signer, relayBase, events))
	})

	// Admin routes.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Use(auth.RequireAdmin)

		r.Post("/api/admin/anime", cataloghandlers.CreateShow(catalog))
		r.Put("/api/admin/anime/{show_id}", cataloghandlers.UpdateShow(catalog))
		r.Delete("/api/admin/anime/{show_id}", cataloghandlers.DeleteShow(catalog))
		r.Put("/api/admin/anime/{show_id}/movie-url", cataloghandlers.SetMovieURL(catalog))
		r.Post("/api/admin/anime/{show_id}/episodes", cataloghandlers.AddEpisode(catalog))
		r.Delete("/api/admin/episodes/{episode_id}", cataloghandlers.DeleteEpisode(catalog))
		r.Put("/api/admin/anime/{show_id}/episodes/order", cataloghandlers.ReorderEpisodes(catalog))
		r.Get("/api/admin/featured", cataloghandlers.GetFeatured(catalog))
		r.Post("/api/admin/featured", cataloghandlers.SetFeatured(catalog))
		r.Post("/api/admin/genres", cataloghandlers.CreateGenre(catalog))
		r.Delete("/api/admin/genres/{genre_id}", cataloghandlers.DeleteGenre(catalog))

		r.Post("/api/admin/ticker", ticker.CreateItem(tickerStore))
		r.Put("/api/admin/ticker/{item_id}", ticker.UpdateItem(tickerStore))
		r.Delete("/api/admin/ticker/{item_id}", ticker.DeleteItem(tickerStore))

		r.Post("/api/admin/avatars", avatars.CreateAvatar(avatarStore))
		r.Put("/api/admin/avatars/{avatar_id}", avatars.UpdateAvatar(avatarStore))
		r.Delete("/api/admin/avatars/{avatar_id}", avatars.DeleteAvatar(avatarStore))

		r.Get("/api/admin/permissions", rbac.ListPermissions(rbacStore))
		r.Get("/api/admin/roles", rbac.ListRoles(rbacStore))
		r.Post("/api/admin/roles", rbac.CreateRole(rbacStore))
		r.Put("/api/admin/roles/{role_id}", rbac.UpdateRole(rbacStore))
		r.Delete("/api/admin/roles/{role_id}", rbac.DeleteRole(rbacStore))
		r.Get("/api/admin/users/roles", rbac.ListUserRoles(rbacStore))
		r.Put("/api/admin/users/{user_id}/roles", rbac.SetUserRoles(rbacStore))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
