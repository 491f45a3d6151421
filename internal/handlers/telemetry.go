package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// getState returns the latest reconciled state. 503 until the first
// snapshot has landed, so clients can tell "no data yet" from an empty
// state.
func (h *Handler) getState(c *gin.Context) {
	st, ok := h.services.CurrentState()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot received yet"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// getHistory returns the recorded entries, optionally filtered with
// ?since=<RFC3339 timestamp>.
func (h *Handler) getHistory(c *gin.Context) {
	if s := c.Query("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp: " + err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": h.services.EntriesSince(since)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": h.services.Entries()})
}

// getSegments returns activity segments for one boolean signal, e.g.
// /segments/fan or /segments/motor.
func (h *Handler) getSegments(c *gin.Context) {
	signal := c.Param("signal")
	if signal == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing signal key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal": signal, "segments": h.services.Segments(signal)})
}

// getPhases returns the classified phase intervals. An empty list means
// there is not enough history yet to classify.
func (h *Handler) getPhases(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"phases": h.services.Phases()})
}
