package middleware

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/FrameNetBrasil/daisy/internal/queue"
	"github.com/FrameNetBrasil/daisy/pkg/daisy"
	"github.com/FrameNetBrasil/daisy/pkg/metrics"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// Disambiguator is the part of *daisy.Client the routes use.
type Disambiguator interface {
	Disambiguate(ctx context.Context, req daisy.Request) (*daisy.Result, error)
}

// KeyProvider resolves the verification key of a JWT. keyfunc.Keyfunc
// implements it.
type KeyProvider interface {
	Keyfunc(token *jwt.Token) (any, error)
}

type App struct {
	Daisy          Disambiguator
	Queue          queue.Publisher
	Key            KeyProvider
	Metrics        *metrics.Collector
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
