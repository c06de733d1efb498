package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/caseline-io/caseline-backend/internal/models"
	"github.com/caseline-io/caseline-backend/internal/repository"
	"github.com/labstack/echo/v4"
)

// actorContextKey is the echo context key holding the resolved user
const actorContextKey = "actor"

// ActorResolver resolves the acting user from the X-User-ID header and
// stores it on the request context. It stands in for the session layer
// that lives outside this service.
func ActorResolver(users repository.UserRepository, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get("X-User-ID")
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "missing X-User-ID header",
					"code":  "UNAUTHORIZED",
				})
			}

			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
					"error": "invalid X-User-ID header",
					"code":  "UNAUTHORIZED",
				})
			}

			user, err := users.GetByID(c.Request().Context(), uint(id))
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					if logger != nil {
						logger.Warn("unknown actor",
							slog.Uint64("user_id", id),
							slog.String("remote_ip", c.RealIP()))
					}
					return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
						"error": "unknown user",
						"code":  "UNAUTHORIZED",
					})
				}
				return echo.NewHTTPError(http.StatusInternalServerError, map[string]string{
					"error": "failed to resolve user",
					"code":  "INTERNAL_ERROR",
				})
			}

			c.Set(actorContextKey, user)
			return next(c)
		}
	}
}

// Actor returns the resolved user for the request, or nil
func Actor(c echo.Context) *models.User {
	user, _ := c.Get(actorContextKey).(*models.User)
	return user
}

// SetActor stores the acting user on the context, bypassing header
// resolution. Used by handler tests.
func SetActor(c echo.Context, user *models.User) {
	c.Set(actorContextKey, user)
}
