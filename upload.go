package camnotify

import "context"

// Confirmation identifies the delivered message.
type Confirmation struct {
	MessageID string
	ImageKey  string
}

// UploadClient sends one artifact to a destination. Errors match
// ErrAuthRejected, ErrDestinationInvalid, ErrTransportFailure or ErrRemote.
// Implementations never retry; the scheduler's next tick is the retry.
type UploadClient interface {
	Upload(ctx context.Context, artifact *ImageArtifact, destinationID, credential, title string) (Confirmation, error)
}
