package camnotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/httprunner/CamNotify/internal/feishusdk"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type imClient interface {
	UploadImage(ctx context.Context, token, fileName string, content []byte) (string, error)
	SendPost(ctx context.Context, token, chatID string, p feishusdk.Post, idempotencyKey string) (string, error)
}

// FeishuUploader posts artifacts to a Feishu/Lark chat: the image is uploaded
// first, then a post message referencing it is sent to the chat.
type FeishuUploader struct {
	client    imClient
	transport string
	host      string
	newID     func() string
}

// NewFeishuUploader wraps a configured Feishu client.
func NewFeishuUploader(client *feishusdk.Client) *FeishuUploader {
	return &FeishuUploader{client: client, transport: client.Transport(), host: hostLabel(), newID: uuid.NewString}
}

// NewFeishuUploaderFromEnv builds the client from FEISHU_* variables.
func NewFeishuUploaderFromEnv() *FeishuUploader {
	return NewFeishuUploader(feishusdk.NewClientFromEnv())
}

// Upload implements UploadClient.
func (u *FeishuUploader) Upload(ctx context.Context, artifact *ImageArtifact, destinationID, credential, title string) (Confirmation, error) {
	if artifact == nil || len(artifact.Data) == 0 {
		return Confirmation{}, &RemoteError{Message: "nothing to upload"}
	}
	destinationID = strings.TrimSpace(destinationID)
	if destinationID == "" {
		return Confirmation{}, errors.Wrap(ErrDestinationInvalid, "destination id is empty")
	}
	if strings.TrimSpace(credential) == "" {
		return Confirmation{}, errors.Wrap(ErrAuthRejected, "credential is empty")
	}
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	imageKey, err := u.client.UploadImage(ctx, credential, artifact.FileName(), artifact.Data)
	if err != nil {
		return Confirmation{}, classifyFeishuError("upload image", err)
	}
	post := feishusdk.Post{
		Title:    title,
		ImageKey: imageKey,
		Lines:    u.caption(artifact),
	}
	messageID, err := u.client.SendPost(ctx, credential, destinationID, post, u.newID())
	if err != nil {
		return Confirmation{}, classifyFeishuError("send message", err)
	}
	if messageID == "" {
		return Confirmation{ImageKey: imageKey}, &RemoteError{Message: "response missing message_id"}
	}
	log.Debug().
		Str("transport", u.transport).
		Str("destination_id", destinationID).
		Str("image_key", imageKey).
		Str("message_id", messageID).
		Msg("artifact posted")
	return Confirmation{MessageID: messageID, ImageKey: imageKey}, nil
}

func (u *FeishuUploader) caption(a *ImageArtifact) []string {
	line := fmt.Sprintf("device %d · %dx%d %s · %s", a.DeviceIndex, a.Width, a.Height, a.Format,
		a.CapturedAt.UTC().Format(time.RFC3339))
	if u.host != "" {
		line += " · " + u.host
	}
	return []string{line}
}

func classifyFeishuError(op string, err error) error {
	switch {
	case feishusdk.IsAuthError(err):
		return errors.Wrapf(ErrAuthRejected, "%s: %v", op, err)
	case feishusdk.IsDestinationError(err):
		return errors.Wrapf(ErrDestinationInvalid, "%s: %v", op, err)
	case feishusdk.IsTransportError(err):
		return errors.Wrapf(ErrTransportFailure, "%s: %v", op, err)
	}
	var apiErr *feishusdk.APIError
	if errors.As(err, &apiErr) {
		return &RemoteError{Code: apiErr.Code, Message: fmt.Sprintf("%s: %s", op, apiErr.Msg)}
	}
	return &RemoteError{Message: fmt.Sprintf("%s: %v", op, err)}
}
