package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sigillo-app/backend/internal/auth"
	"github.com/sigillo-app/backend/internal/messaging"
	"go.uber.org/zap"
)

type messagePayload struct {
	ID           string                 `json:"id"`
	SubmissionID string                 `json:"submission_id"`
	SenderType   string                 `json:"sender_type"`
	SenderID     string                 `json:"sender_id"`
	Content      string                 `json:"content"`
	Attachments  []messaging.Attachment `json:"attachments,omitempty"`
	Read         bool                   `json:"read"`
	ReadAt       *time.Time             `json:"read_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (h *httpHandler) messageToPayload(message messaging.Message) messagePayload {
	attachments, err := message.Attachments()
	if err != nil {
		h.logger.Warn("undecodable attachment list", zap.String("message_id", message.ID), zap.Error(err))
	}
	return messagePayload{
		ID:           message.ID,
		SubmissionID: message.SubmissionID,
		SenderType:   message.SenderType,
		SenderID:     message.SenderID,
		Content:      message.Content,
		Attachments:  attachments,
		Read:         message.Read,
		ReadAt:       message.ReadAt,
		CreatedAt:    message.CreatedAt,
	}
}

func (h *httpHandler) handleListMessages(c *gin.Context) {
	submission, ok := h.loadVisibleSubmission(c)
	if !ok {
		return
	}
	messages, err := h.messaging.List(c.Request.Context(), submission.ID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	payload := make([]messagePayload, 0, len(messages))
	for _, message := range messages {
		payload = append(payload, h.messageToPayload(message))
	}
	c.JSON(http.StatusOK, gin.H{"messages": payload})
}

// handleSendMessage accepts multipart form data: a content field plus any
// number of file parts under "attachments".
func (h *httpHandler) handleSendMessage(c *gin.Context) {
	submission, ok := h.loadVisibleSubmission(c)
	if !ok {
		return
	}

	senderType, err := messaging.ParseSenderType(c.GetString(roleContextKey))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	request := messaging.SendRequest{
		SubmissionID: submission.ID,
		SenderType:   senderType,
		SenderID:     c.GetString(userIDContextKey),
		Content:      c.PostForm("content"),
	}

	form, err := c.MultipartForm()
	if err == nil && form != nil {
		for _, header := range form.File["attachments"] {
			file, openErr := header.Open()
			if openErr != nil {
				h.logger.Warn("failed to open uploaded file",
					zap.String("filename", header.Filename), zap.Error(openErr))
				continue
			}
			defer file.Close()
			request.Uploads = append(request.Uploads, messaging.Upload{
				Name:     header.Filename,
				MimeType: header.Header.Get("Content-Type"),
				Size:     header.Size,
				Content:  file,
			})
		}
	}

	message, err := h.messaging.Send(c.Request.Context(), request)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.messageToPayload(message))
}

func (h *httpHandler) handleMarkRead(c *gin.Context) {
	submission, ok := h.loadVisibleSubmission(c)
	if !ok {
		return
	}
	viewerType, err := messaging.ParseSenderType(c.GetString(roleContextKey))
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	updated, err := h.messaging.MarkRead(c.Request.Context(), submission.ID, viewerType)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *httpHandler) handleUnreadCount(c *gin.Context) {
	viewer := messaging.Viewer{}
	role := c.GetString(roleContextKey)
	switch role {
	case auth.RoleAdmin:
		viewer.Type = messaging.SenderAdmin
	case auth.RoleNotary:
		viewer.Type = messaging.SenderNotary
		viewer.NotaryID = c.GetString(userIDContextKey)
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	count, err := h.messaging.UnreadCount(c.Request.Context(), viewer)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// handleMessageStream serves the per-submission conversation as a server-sent
// event stream: one channel per submission, torn down when the client
// disconnects.
func (h *httpHandler) handleMessageStream(c *gin.Context) {
	submission, ok := h.loadVisibleSubmission(c)
	if !ok {
		return
	}
	if h.realtime == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime_unavailable"})
		return
	}

	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream, cleanup := h.realtime.Subscribe(c.Request.Context(), submission.ID)
	defer cleanup()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", realtimeEventHeartbeat)
			flusher.Flush()
		case event, open := <-stream:
			if !open {
				return
			}
			payload, err := json.Marshal(h.messageToPayload(event.Message))
			if err != nil {
				h.logger.Warn("failed to encode stream event", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", RealtimeEventMessage, payload)
			flusher.Flush()
		}
	}
}
