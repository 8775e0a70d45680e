package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"masterclass/internal/dto"
	"masterclass/pkg/auth"
)

// AdminUserKey is the context key the session gate sets for handlers.
const AdminUserKey = "admin_user"

const flashCookie = "flash"

func LoggingMiddleware() func(c *ginext.Context) {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()
		zlog.Logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}

// SetFlash stores a one-shot notice for the next rendered page.
func SetFlash(c *ginext.Context, kind, message string) {
	c.SetCookie(flashCookie, url.QueryEscape(kind+"|"+message), 60, "/", "", false, true)
}

// PopFlash returns the pending notice, if any, and clears it.
func PopFlash(c *ginext.Context) (kind, message string) {
	raw, err := c.Cookie(flashCookie)
	if err != nil {
		return "", ""
	}
	c.SetCookie(flashCookie, "", -1, "/", "", false, true)

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "", ""
	}
	parts := strings.SplitN(decoded, "|", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func sessionUser(c *ginext.Context, secret string) (string, bool) {
	token, err := c.Cookie(auth.SessionCookie)
	if err != nil || token == "" {
		return "", false
	}
	username, err := auth.ParseSessionToken(secret, token)
	if err != nil {
		return "", false
	}
	return username, true
}

// RequireAdminHTML gates browser pages: unauthenticated requests are
// redirected to the login form.
func RequireAdminHTML(secret string) func(c *ginext.Context) {
	return func(c *ginext.Context) {
		username, ok := sessionUser(c, secret)
		if !ok {
			SetFlash(c, "error", "Please log in first.")
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Set(AdminUserKey, username)
		c.Next()
	}
}

// RequireAdminAPI gates JSON routes with a 401 envelope.
func RequireAdminAPI(secret string) func(c *ginext.Context) {
	return func(c *ginext.Context) {
		username, ok := sessionUser(c, secret)
		if !ok {
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}
		c.Set(AdminUserKey, username)
		c.Next()
	}
}
