package fireboard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const httpTimeout = 30 * time.Second

// httpAPI serves the plugin's routes under /api/fireboard.
type httpAPI struct {
	client      *Client
	coordinator *Coordinator
	services    *Services
}

func (h httpAPI) register(r *gin.RouterGroup) {
	r.GET("/snapshot", h.snapshot)
	r.GET("/devices", h.devices)
	r.GET("/devices/:id", h.device)
	r.GET("/devices/:id/alerts", h.deviceAlerts)
	r.GET("/devices/:id/temps", h.deviceTemps)
	r.POST("/alerts", h.createAlert)
	r.PUT("/alerts/:id", h.updateAlert)
	r.DELETE("/alerts/:id", h.deleteAlert)
	r.POST("/refresh", h.refresh)
	r.GET("/sessions", h.sessions)
	r.GET("/sessions/:id", h.session)
	r.GET("/sessions/:id/temps", h.sessionTemps)
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), httpTimeout)
}

func (h httpAPI) snapshot(c *gin.Context) {
	snap, ok := h.coordinator.Snapshot()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no data yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// devices serves the last snapshot; ?live=true asks the API directly.
func (h httpAPI) devices(c *gin.Context) {
	if live, _ := strconv.ParseBool(c.Query("live")); !live {
		if snap, ok := h.coordinator.Snapshot(); ok {
			c.JSON(http.StatusOK, gin.H{"devices": snap.Devices})
			return
		}
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	devices, err := h.client.GetDevices(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

func (h httpAPI) device(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	device, ok, err := h.client.GetDevice(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
		return
	}
	c.JSON(http.StatusOK, device)
}

func (h httpAPI) deviceAlerts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	alerts, err := h.client.GetAlerts(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h httpAPI) deviceTemps(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	temps, err := h.client.GetTemperatures(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"temps": temps})
}

func (h httpAPI) createAlert(c *gin.Context) {
	args, ok := bindArgs(c)
	if !ok {
		return
	}
	req, err := ParseCreateAlert(args)
	if err != nil {
		writeError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	alert, err := h.services.CreateAlert(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h httpAPI) updateAlert(c *gin.Context) {
	args, ok := bindArgs(c)
	if !ok {
		return
	}
	args["alert_id"] = c.Param("id")
	req, err := ParseUpdateAlert(args)
	if err != nil {
		writeError(c, err)
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	alert, err := h.services.UpdateAlert(ctx, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h httpAPI) deleteAlert(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.services.DeleteAlert(ctx, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h httpAPI) refresh(c *gin.Context) {
	args, ok := bindArgs(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	c.JSON(http.StatusOK, h.services.RefreshData(ctx, ParseDeviceID(args)))
}

func (h httpAPI) sessions(c *gin.Context) {
	limit := DefaultSessionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	sessions, err := h.client.GetSessions(ctx, c.Query("device_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h httpAPI) session(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	session, ok, err := h.client.GetSession(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h httpAPI) sessionTemps(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	temps, err := h.client.GetSessionTemps(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"temps": temps})
}

// bindArgs decodes an optional JSON object body. It writes a 400 and
// returns false on malformed input.
func bindArgs(c *gin.Context) (map[string]any, bool) {
	args := map[string]any{}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return args, true
	}
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a json object"})
		return nil, false
	}
	return args, true
}

func writeError(c *gin.Context, err error) {
	c.JSON(httpStatus(err), gin.H{"error": err.Error()})
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case IsAuthError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
