package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shion-ptpe/oauth/internal/logger"
)

const contextKey = "session"

// Manager loads the caller's session for every request and persists it
// when handlers change it.
type Manager struct {
	store  Store
	ttl    time.Duration
	cookie CookieOptions
}

func NewManager(store Store, ttl time.Duration, cookie CookieOptions) *Manager {
	return &Manager{
		store:  store,
		ttl:    ttl,
		cookie: cookie.normalize(),
	}
}

// Middleware attaches the session to the gin context. A missing, unknown
// or expired cookie yields a fresh session with a new id; a client never
// chooses its own session id.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := m.load(c)
		if err != nil {
			logger.Error("session load failed", map[string]any{
				"error": err.Error(),
				"path":  c.Request.URL.Path,
			})
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "session unavailable",
			})
			return
		}

		c.Set(contextKey, sess)
		c.Next()

		// Handlers are expected to Commit before writing; this only
		// catches changes made afterwards.
		if sess.Dirty() {
			if err := m.Commit(c); err != nil {
				logger.Error("session commit failed", map[string]any{
					"error": err.Error(),
				})
			}
		}
	}
}

// FromContext returns the session attached by Middleware, or nil.
func FromContext(c *gin.Context) *Session {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*Session)
	return sess
}

// Commit persists pending changes and updates the cookie. It must run
// before the response is written for the cookie to reach the client.
func (m *Manager) Commit(c *gin.Context) error {
	sess := FromContext(c)
	if sess == nil || !sess.Dirty() {
		return nil
	}
	ctx := c.Request.Context()

	if sess.IsEmpty() {
		if !sess.isNew {
			if err := m.store.Delete(ctx, sess.ID); err != nil {
				return err
			}
			ClearCookie(c.Writer, m.cookie)
		}
		sess.dirty = false
		return nil
	}

	if err := m.store.Save(ctx, sess, m.ttl); err != nil {
		return err
	}
	SetCookie(c.Writer, sess.ID, time.Now().Add(m.ttl), m.cookie)

	sess.isNew = false
	sess.dirty = false
	return nil
}

// Regenerate moves the session to a fresh id, to be called when the
// session gains privileges. The new id is written by the next Commit.
func (m *Manager) Regenerate(c *gin.Context) error {
	sess := FromContext(c)
	if sess == nil {
		return nil
	}

	id, err := GenerateID()
	if err != nil {
		return err
	}

	oldID, wasNew := sess.ID, sess.isNew
	sess.ID = id
	sess.isNew = true
	sess.dirty = true

	if !wasNew {
		// The old entry holds nothing the new one does not; a stale
		// copy only lingers until its ttl.
		if err := m.store.Delete(c.Request.Context(), oldID); err != nil {
			logger.Warn("old session not deleted", map[string]any{
				"error": err.Error(),
			})
		}
	}
	return nil
}

func (m *Manager) load(c *gin.Context) (*Session, error) {
	cookie, err := c.Request.Cookie(m.cookie.Name)
	if err == nil && cookie.Value != "" {
		sess, err := m.store.Get(c.Request.Context(), cookie.Value)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrNoSession) {
			return nil, err
		}
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	return New(id), nil
}
