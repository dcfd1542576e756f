package httpServer

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	eventBufferSize   = 4
	eventKeepalive    = 30 * time.Second
	eventAnalysisName = "analysis"
)

// handleEvents streams finished analyses of one media as server-sent events
// until the client disconnects or the media is deleted
func (s *Server) handleEvents(c *gin.Context) {
	media, ok := s.lookupMedia(c)
	if !ok {
		return
	}

	results, cleanup, err := s.media.Subscribe(media.ID, eventBufferSize)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	defer cleanup()
	s.metrics.RecordSubscriberStart()
	defer s.metrics.RecordSubscriberStop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	keepalive := time.NewTicker(eventKeepalive)
	defer keepalive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case result, open := <-results:
			if !open {
				return
			}
			c.SSEvent(eventAnalysisName, result)
			c.Writer.Flush()
		case <-keepalive.C:
			if _, err := c.Writer.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
