package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/models"
	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

const (
	authStateKey      = "auth_state"
	accessTokenCookie = "access_token"
)

// SessionAuth resolves the caller's auth state once per request and gates
// routes on it.
type SessionAuth struct {
	resolver  *services.SessionResolver
	loginPath string
	logger    utils.Logger
}

func NewSessionAuth(resolver *services.SessionResolver, loginPath string, logger utils.Logger) *SessionAuth {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &SessionAuth{resolver: resolver, loginPath: loginPath, logger: logger}
}

// Authenticate attaches the resolved *AuthState to the request. It never
// rejects; gating is left to RequireProfile and RequireRole.
func (a *SessionAuth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := a.resolver.Resolve(c.Request.Context(), bearerToken(c))
		c.Set(authStateKey, state)
		if state.User != nil {
			c.Set("user_id", state.User.ID)
		}
		c.Next()
	}
}

// RequireProfile admits any signed-in user with a profile.
func (a *SessionAuth) RequireProfile() gin.HandlerFunc {
	return a.gate(nil)
}

// RequireRole admits only users whose profile carries role.
func (a *SessionAuth) RequireRole(role models.Role) gin.HandlerFunc {
	return a.gate(&role)
}

func (a *SessionAuth) gate(required *models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := GetAuthState(c)

		switch services.Decide(state, required) {
		case services.AccessGranted:
			c.Next()
			return
		case services.AccessLoading:
			c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"status": "loading"})
			return
		}

		target := a.loginPath
		if wantsHTML(c) {
			c.Redirect(http.StatusSeeOther, target+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		if _, hasProfile := state.Role(); !hasProfile {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"message":     "Sign in required",
				"redirect_to": target,
			})
			return
		}

		role, _ := state.Role()
		utils.GetLogger(c, a.logger).Info("Route denied for role",
			"user_id", state.User.ID, "role", role, "required", *required, "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"message":     "Forbidden - insufficient permissions",
			"redirect_to": target,
			"dashboard":   role.DashboardPath(),
		})
	}
}

// GetAuthState returns the state attached by Authenticate, or a signed-out
// state when the request never went through it.
func GetAuthState(c *gin.Context) *models.AuthState {
	if v, ok := c.Get(authStateKey); ok {
		if state, ok := v.(*models.AuthState); ok && state != nil {
			return state
		}
	}
	return &models.AuthState{}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := c.Cookie(accessTokenCookie); err == nil {
		return cookie
	}
	return ""
}

func wantsHTML(c *gin.Context) bool {
	accept := c.GetHeader("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
