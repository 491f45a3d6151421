package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"extruder_hmi/internal/service"
)

type setModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// setAcquisitionMode switches between poll and push. Re-requesting the
// active mode is a no-op and still answers 200.
func (h *Handler) setAcquisitionMode(c *gin.Context) {
	var input setModeRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	if err := h.services.SetMode(service.AcquisitionMode(input.Mode)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.services.Acquisition.Status())
}

func (h *Handler) getAcquisitionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Acquisition.Status())
}

type commandRequest struct {
	Command string `json:"command" binding:"required"`
	Value   any    `json:"value"`
}

// sendCommand proxies a control command to the process backend. The
// effect is observed only through a later snapshot, so the response
// carries no state.
func (h *Handler) sendCommand(c *gin.Context) {
	var input commandRequest
	if ok := h.bindJSONOrBadRequest(c, &input); !ok {
		return
	}

	if err := h.services.Send(c.Request.Context(), input.Command, input.Value); err != nil {
		if h.log != nil {
			h.log.Warnw("command_forward_failed", "command", input.Command, "err", err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
