package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shion-ptpe/oauth/internal/auth"
	"github.com/shion-ptpe/oauth/internal/auth/handler"
	"github.com/shion-ptpe/oauth/internal/auth/oauthclient"
	"github.com/shion-ptpe/oauth/internal/config"
	"github.com/shion-ptpe/oauth/internal/logger"
	"github.com/shion-ptpe/oauth/internal/middleware"
	"github.com/shion-ptpe/oauth/internal/session"
	"github.com/shion-ptpe/oauth/internal/user"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	router, err := newRouter(ctx, cfg, infra.Sessions, user.NewPostgresRepository(infra.DB))
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	return router, infra.Close, nil
}

func newRouter(
	ctx context.Context,
	cfg config.Config,
	store session.Store,
	users user.Repository,
) (*gin.Engine, error) {

	// ----------------------------
	// Dependencies
	// ----------------------------

	authURL, tokenURL := cfg.OAuth.AuthURL, cfg.OAuth.TokenURL
	if cfg.OAuth.Issuer != "" {
		ep, err := oauthclient.Discover(ctx, cfg.OAuth.Issuer)
		if err != nil {
			return nil, err
		}
		if authURL == "" {
			authURL = ep.AuthURL
		}
		if tokenURL == "" {
			tokenURL = ep.TokenURL
		}
	}

	client, err := oauthclient.New(oauthclient.Config{
		AuthURL:      authURL,
		TokenURL:     tokenURL,
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RedirectURL:  cfg.OAuth.CallbackURL,
		Scopes:       cfg.OAuth.ScopeList(),
		Origin:       cfg.OAuth.TokenOrigin,
		Timeout:      cfg.OAuth.TokenTimeout,
	})
	if err != nil {
		return nil, err
	}

	authService := auth.NewService(client, users, auth.Options{PKCE: cfg.OAuth.PKCE})

	sessions := session.NewManager(store, cfg.Session.TTL, session.CookieOptions{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	})

	authHandler := handler.NewHandler(authService, sessions, handler.Config{
		ErrorURL: cfg.OAuth.ErrorURL,
		HomeURL:  cfg.OAuth.HomeURL,
	})

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ----------------------------
	// OAuth Routes
	// ----------------------------

	oauth := router.Group(cfg.OAuth.RoutePrefix, sessions.Middleware())
	authHandler.RegisterRoutes(oauth)

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api", sessions.Middleware(), middleware.RequireAuth(authService))

	api.GET("/me", func(c *gin.Context) {
		u, _ := middleware.UserFromContext(c)
		c.JSON(http.StatusOK, gin.H{
			"id":         u.ID,
			"subject_id": u.SubjectID,
		})
	})

	for _, route := range router.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}

	return router, nil
}
