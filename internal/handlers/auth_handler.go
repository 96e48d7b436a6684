package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yolymatics/tutoring-service/internal/services"
	"github.com/yolymatics/tutoring-service/internal/utils"
)

type AuthHandler struct {
	BaseHandler
	service      services.AuthService
	secureCookie bool
}

func NewAuthHandler(service services.AuthService, secureCookie bool, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler:  NewBaseHandler(logger),
		service:      service,
		secureCookie: secureCookie,
	}
}

// SignUp registers a new account. With email confirmation on, the response
// carries confirmation_required and no session.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req services.SignUpRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.SignUp(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.setSessionCookie(c, resp)
	c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req services.SignInRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.SignIn(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.setSessionCookie(c, resp)
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.service.SignOut(c.Request.Context(), token); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, SuccessResponse{Message: "Signed out"})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req services.RefreshRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.setSessionCookie(c, resp)
	c.JSON(http.StatusOK, resp)
}

// ConfirmEmail takes the token either as JSON or as the ?token= of the
// emailed link.
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	var req services.ConfirmEmailRequest
	if c.Request.Method == http.MethodGet {
		req.Token = c.Query("token")
	} else if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.ConfirmEmail(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.setSessionCookie(c, resp)
	if wantsHTML(c) {
		c.Redirect(http.StatusSeeOther, resp.RedirectTo)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me reports the caller's resolved state and where they belong.
func (h *AuthHandler) Me(c *gin.Context) {
	state := GetAuthState(c)
	if state.Loading {
		c.JSON(http.StatusAccepted, gin.H{"status": "loading"})
		return
	}

	resp, err := h.service.Me(c.Request.Context(), state)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, resp *services.AuthResponse) {
	if resp == nil || resp.Session == nil {
		return
	}
	maxAge := int(time.Until(resp.Session.ExpiresAt).Seconds())
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessTokenCookie, resp.Session.AccessToken, maxAge, "/", "", h.secureCookie, true)
}
