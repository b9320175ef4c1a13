package httpapi

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StreamEvents relays lifecycle events of the caller's project as server-sent events named after
// the event type.
func (handlers *OwnerHandlers) StreamEvents(context *gin.Context) {
	ownerID, ok := handlers.ownerID(context)
	if !ok {
		return
	}
	project, err := handlers.service.Project(context.Request.Context(), ownerID)
	if err != nil {
		respondError(context, handlers.logger, err)
		return
	}
	if handlers.broadcaster == nil {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}
	subscription := handlers.broadcaster.Subscribe(project.ID)
	if subscription == nil {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}
	defer subscription.Close()

	context.Header("Content-Type", "text/event-stream")
	context.Header("Cache-Control", "no-cache")
	context.Header("Connection", "keep-alive")

	flusher, flushable := context.Writer.(http.Flusher)
	if !flushable {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueStreamUnavailable})
		return
	}

	context.Writer.WriteHeaderNow()
	flusher.Flush()

	requestContext := context.Request.Context()
	for {
		select {
		case <-requestContext.Done():
			return
		case event, open := <-subscription.Events():
			if !open {
				return
			}
			serializedEvent, marshalErr := event.Marshal()
			if marshalErr != nil {
				handlers.logger.Debug("marshal_stream_event_failed", zap.Error(marshalErr))
				continue
			}
			var buffer bytes.Buffer
			buffer.WriteString("event: ")
			buffer.WriteString(event.Type)
			buffer.WriteString("\ndata: ")
			buffer.Write(serializedEvent)
			buffer.WriteString("\n\n")
			if _, writeErr := context.Writer.Write(buffer.Bytes()); writeErr != nil {
				return
			}
			flusher.Flush()
		}
	}
}
