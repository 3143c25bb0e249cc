package capture

import (
	"context"
	"image"
)

// Device hands out camera streams. Open returns ErrCameraPermission when the
// operator has not allowed camera access.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an acquired camera. Close stops every track and must be safe to call twice.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}
