package image

import (
	"context"
	"errors"
	"fmt"
)

// Params is one image-to-image request. Image is base64 JPEG and is relayed as is.
type Params struct {
	Prompt string
	Image  string
}

// Generator returns the base64 payload of the first generated image.
type Generator interface {
	Generate(context.Context, Params) (string, error)
}

// ErrNoImage means the upstream call succeeded but no part carried inline image data.
var ErrNoImage = errors.New("no inline image data in response")

// UpstreamError is a non-success status or an error object returned by the image API.
// Message is the raw upstream text and must not be shown to callers.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("image api status %d: %s", e.Status, e.Message)
}
