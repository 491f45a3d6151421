package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getAlarms returns the non-cleared alarms from the current state.
func (h *Handler) getAlarms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alarms": h.services.Active()})
}

// getAlarmGate reports whether the blocking overlay must be shown for
// the view named in ?view=. The gate opens only while an unacknowledged
// critical alarm exists and the operator is not already on the alarms
// view.
func (h *Handler) getAlarmGate(c *gin.Context) {
	view := c.Query("view")
	c.JSON(http.StatusOK, gin.H{"view": view, "gate": h.services.CriticalGate(view)})
}
