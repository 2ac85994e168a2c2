package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/audionoise/jam/internal/app"
	"github.com/audionoise/jam/internal/domain"
)

// Controller exposes the control-plane operations over the store.
type Controller struct {
	Coord *app.Coordinator
}

func (ctl *Controller) CreateSession(c *gin.Context) {
	ws := domain.WorkspaceID(c.Param("workspace"))
	pr := principal(c)

	sess, existing, err := ctl.Coord.Create(c.Request.Context(), ws, pr.User)
	if err != nil {
		abortWith(c, err)
		return
	}
	status := http.StatusCreated
	if existing {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"sessionId": sess.Meta().ID,
		"existing":  existing,
	})
}

func (ctl *Controller) GetSession(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))
	pr := principal(c)

	sess, err := ctl.Coord.Info(c.Request.Context(), id, pr.User)
	if err != nil {
		abortWith(c, err)
		return
	}
	meta := sess.Meta()
	c.JSON(http.StatusOK, gin.H{
		"sessionId":    meta.ID,
		"workspaceId":  meta.Workspace,
		"capacity":     meta.Capacity,
		"createdAt":    meta.CreatedAt,
		"participants": sess.Snapshot(),
	})
}

func (ctl *Controller) ListSessions(c *gin.Context) {
	ws := domain.WorkspaceID(c.Param("workspace"))
	pr := principal(c)

	summaries, err := ctl.Coord.List(c.Request.Context(), ws, pr.User)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": summaries})
}

func (ctl *Controller) DeleteSession(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))
	pr := principal(c)

	if err := ctl.Coord.Delete(c.Request.Context(), id, pr.User); err != nil {
		abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// abortWith translates the domain taxonomy to HTTP. Unrecognized
// errors are logged and hidden behind a 502: a broken role lookup
// must not leak or take other requests with it.
func abortWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "auth_required"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "conflict"})
	case errors.Is(err, domain.ErrCapacity):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "capacity"})
	case errors.Is(err, domain.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid"})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("control plane failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream failure", "code": "internal"})
	}
}
