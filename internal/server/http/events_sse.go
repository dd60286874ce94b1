package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const sseKeepAlive = 15 * time.Second

// streamEvents serves the progress stream as SSE. With task_id the stream
// ends after that task's terminal event; without it every task is relayed.
func (s *Server) streamEvents(c *gin.Context) {
	if s.d.Bus == nil {
		s.unavailable(c, "event bus")
		return
	}
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.JSON(c, http.StatusInternalServerError, errBody{Code: "UNKNOWN", Message: "stream unsupported"})
		return
	}
	sub := s.d.Bus.Subscribe(c.Query("task_id"), 0)
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)
	flusher.Flush()

	enc := jsonAPI.NewEncoder(c.Writer)
	tick := time.NewTicker(sseKeepAlive)
	defer tick.Stop()
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-tick.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: %s\n", ev.Kind)
			fmt.Fprint(c.Writer, "data: ")
			_ = enc.Encode(ev)
			fmt.Fprint(c.Writer, "\n")
			flusher.Flush()
		}
	}
}
