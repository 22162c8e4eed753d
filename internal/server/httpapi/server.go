// Package httpapi exposes the service layer over HTTP/JSON using echo.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/funews/funews/internal/logging"
	"github.com/funews/funews/internal/server/config"
	"github.com/funews/funews/internal/server/services"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// Server owns the echo instance and the handler wiring.
type Server struct {
	echo     *echo.Echo
	addr     string
	logger   logging.Logger
	sessions *services.SessionService
	accounts *services.AccountService
	news     *services.NewsService
	assets   *services.AssetService
}

func NewServer(cfg *config.Config, logger logging.Logger,
	sessions *services.SessionService, accounts *services.AccountService,
	news *services.NewsService, assets *services.AssetService) *Server {

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())

	s := &Server{
		echo:     e,
		addr:     cfg.EndpointAddrHTTP,
		logger:   logger,
		sessions: sessions,
		accounts: accounts,
		news:     news,
		assets:   assets,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")

	// session endpoints
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/refresh", s.handleRefresh)
	api.GET("/auth/validate", s.handleValidate)

	authed := api.Group("", s.authRequired())
	authed.POST("/auth/revoke", s.handleRevoke)
	authed.POST("/auth/logout", s.handleLogout)
	authed.GET("/auth/profile", s.handleProfile)
	authed.POST("/auth/password", s.handleChangePassword)

	// public reading surface
	api.GET("/articles", s.handleListArticles)
	api.GET("/articles/:id", s.handleGetArticle)
	api.GET("/categories", s.handleListCategories)
	api.GET("/tags", s.handleListTags)

	// staff manage news content
	staff := api.Group("", s.authRequired(), s.roleRequired(roleStaff, roleAdmin))
	staff.POST("/articles", s.handleCreateArticle)
	staff.PUT("/articles/:id", s.handleUpdateArticle)
	staff.DELETE("/articles/:id", s.handleDeleteArticle)
	staff.POST("/articles/:id/assets", s.handleAssetUploadURL)
	staff.GET("/assets", s.handleAssetDownloadURL)
	staff.POST("/categories", s.handleCreateCategory)
	staff.PUT("/categories/:id", s.handleUpdateCategory)
	staff.DELETE("/categories/:id", s.handleDeleteCategory)
	staff.POST("/tags", s.handleCreateTag)
	staff.PUT("/tags/:id", s.handleUpdateTag)
	staff.DELETE("/tags/:id", s.handleDeleteTag)

	// admins manage accounts
	admin := api.Group("/accounts", s.authRequired(), s.roleRequired(roleAdmin))
	admin.POST("", s.handleCreateAccount)
	admin.GET("", s.handleListAccounts)
	admin.GET("/:id", s.handleGetAccount)
	admin.PUT("/:id", s.handleUpdateAccount)
	admin.PUT("/:id/active", s.handleSetAccountActive)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server starting", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info(shutdownCtx, "http server shutting down")
	return s.echo.Shutdown(shutdownCtx)
}
