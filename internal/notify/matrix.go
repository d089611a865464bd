// ABOUTME: Matrix notification backend built on mautrix
// ABOUTME: Chat IDs are Matrix room IDs; photos are uploaded then sent as m.image events

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Matrix sends notifications to Matrix rooms. The configured account must
// already be a member of any room used as a chat destination.
type Matrix struct {
	client *mautrix.Client
	logger *slog.Logger
}

// NewMatrix creates a Matrix sender from an existing access token.
func NewMatrix(homeserver, userID, accessToken string, logger *slog.Logger) (*Matrix, error) {
	client, err := mautrix.NewClient(homeserver, id.UserID(userID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return &Matrix{
		client: client,
		logger: logger.With("component", "matrix"),
	}, nil
}

// SendText implements Sender.
func (m *Matrix) SendText(ctx context.Context, chatID, text string) bool {
	_, err := m.client.SendText(ctx, id.RoomID(chatID), text)
	if err != nil {
		m.logger.Debug("matrix send failed", "room", chatID, "error", err)
		return false
	}
	return true
}

// SendPhoto implements Sender. The image is uploaded to the homeserver's
// media repository first, then referenced from an m.image event.
func (m *Matrix) SendPhoto(ctx context.Context, chatID, path, caption string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		m.logger.Debug("reading image for upload", "path", path, "error", err)
		return false
	}

	upload, err := m.client.UploadMedia(ctx, mautrix.ReqUploadMedia{
		ContentBytes: data,
		ContentType:  "image/jpeg",
		FileName:     filepath.Base(path),
	})
	if err != nil {
		m.logger.Debug("matrix media upload failed", "room", chatID, "error", err)
		return false
	}

	content := event.MessageEventContent{
		MsgType: event.MsgImage,
		Body:    filepath.Base(path),
		URL:     upload.ContentURI.CUString(),
		Info: &event.FileInfo{
			MimeType: "image/jpeg",
			Size:     len(data),
		},
	}
	if _, err := m.client.SendMessageEvent(ctx, id.RoomID(chatID), event.EventMessage, &content); err != nil {
		m.logger.Debug("matrix image event failed", "room", chatID, "error", err)
		return false
	}

	if caption != "" {
		// Captions ride as a follow-up text event; failure here does not
		// undo the delivered image.
		_, _ = m.client.SendText(ctx, id.RoomID(chatID), caption)
	}
	return true
}

var _ Sender = (*Matrix)(nil)
