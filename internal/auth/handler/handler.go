package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shion-ptpe/oauth/internal/auth"
	"github.com/shion-ptpe/oauth/internal/logger"
	"github.com/shion-ptpe/oauth/internal/session"
)

type Config struct {
	ErrorURL string
	HomeURL  string
}

type Handler struct {
	service  *auth.Service
	sessions *session.Manager
	errorURL string
	homeURL  string
}

func NewHandler(
	service *auth.Service,
	sessions *session.Manager,
	cfg Config,
) *Handler {
	return &Handler{
		service:  service,
		sessions: sessions,
		errorURL: cfg.ErrorURL,
		homeURL:  cfg.HomeURL,
	}
}

// RegisterRoutes mounts the flow on r, which must run the session
// middleware.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.BeginAuth)
	r.GET("/callback", h.CompleteAuth)
	r.GET("/session", h.CurrentSession)
	r.POST("/logout", h.Logout)
}

func (h *Handler) BeginAuth(c *gin.Context) {
	sess := session.FromContext(c)

	authURL, err := h.service.BeginAuth(sess)
	if err != nil {
		logger.Error("oauth redirect failed", map[string]any{
			"error": err.Error(),
		})
		c.Redirect(http.StatusFound, h.errorURL)
		return
	}

	// The state must be stored before the browser can come back with it.
	if err := h.sessions.Commit(c); err != nil {
		logger.Error("oauth state not persisted", map[string]any{
			"error": err.Error(),
		})
		c.Redirect(http.StatusFound, h.errorURL)
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

func (h *Handler) CompleteAuth(c *gin.Context) {
	sess := session.FromContext(c)

	grant, err := h.service.CompleteAuth(c.Request.Context(), sess, auth.Callback{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	})

	if err != nil {
		// Persist the consumed state.
		if commitErr := h.sessions.Commit(c); commitErr != nil {
			logger.Error("oauth session not persisted", map[string]any{
				"error": commitErr.Error(),
			})
		}

		fields := map[string]any{"error": err.Error()}
		var failure *auth.Failure
		if errors.As(err, &failure) {
			fields = failure.Fields()
		}
		fields["client_ip"] = c.ClientIP()
		logger.Error("oauth callback failed", fields)

		c.Redirect(http.StatusFound, h.errorURL)
		return
	}

	// An authenticated session never keeps its anonymous id.
	if err := h.sessions.Regenerate(c); err != nil {
		sess.ClearToken()
		logger.Error("oauth session not rotated", map[string]any{
			"subject_id": grant.SubjectID,
			"error":      err.Error(),
		})
		c.Redirect(http.StatusFound, h.errorURL)
		return
	}

	if err := h.sessions.Commit(c); err != nil {
		logger.Error("oauth session not persisted", map[string]any{
			"subject_id": grant.SubjectID,
			"error":      err.Error(),
		})
		c.Redirect(http.StatusFound, h.errorURL)
		return
	}

	logger.Info("oauth login succeeded", map[string]any{
		"subject_id": grant.SubjectID,
		"token":      logger.Fingerprint(grant.AccessToken),
		"scope":      grant.Scope,
		"client_ip":  c.ClientIP(),
	})

	c.Redirect(http.StatusFound, h.homeURL)
}

// CurrentSession answers with the session token as a JSON string, or
// JSON null when the session is anonymous or its token is no longer bound.
func (h *Handler) CurrentSession(c *gin.Context) {
	token, ok, err := h.service.CurrentSession(c.Request.Context(), session.FromContext(c))
	if err != nil {
		logger.Error("session check failed", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "session check failed",
		})
		return
	}

	if !ok {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, token)
}

func (h *Handler) Logout(c *gin.Context) {
	err := h.service.Logout(c.Request.Context(), session.FromContext(c))

	// The session token is gone either way.
	if commitErr := h.sessions.Commit(c); commitErr != nil {
		logger.Error("logout session not persisted", map[string]any{
			"error": commitErr.Error(),
		})
	}

	if err != nil {
		logger.Error("logout failed", map[string]any{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "logout failed",
		})
		return
	}

	logger.Info("logout", map[string]any{
		"client_ip": c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}
