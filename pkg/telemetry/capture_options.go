package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	enc "github.com/Avi18971911/flare/pkg/json_encoder"
)

type captureOptions struct {
	errorType  string
	stack      string
	route      *string
	screen     *string
	httpStatus *int
	requestID  *string
	userIDHash *string
	metadata   enc.Object
}

type CaptureOption func(*captureOptions)

func WithRoute(route string) CaptureOption {
	return func(o *captureOptions) { o.route = &route }
}

func WithScreen(screen string) CaptureOption {
	return func(o *captureOptions) { o.screen = &screen }
}

func WithHTTPStatus(status int) CaptureOption {
	return func(o *captureOptions) { o.httpStatus = &status }
}

func WithRequestID(requestID string) CaptureOption {
	return func(o *captureOptions) { o.requestID = &requestID }
}

// WithUserID stores the SHA-256 of userID; the raw id never leaves the process.
func WithUserID(userID string) CaptureOption {
	sum := sha256.Sum256([]byte(userID))
	hash := hex.EncodeToString(sum[:])
	return func(o *captureOptions) { o.userIDHash = &hash }
}

func WithUserIDHash(hash string) CaptureOption {
	return func(o *captureOptions) { o.userIDHash = &hash }
}

func WithErrorType(errorType string) CaptureOption {
	return func(o *captureOptions) { o.errorType = errorType }
}

func WithStack(stack string) CaptureOption {
	return func(o *captureOptions) { o.stack = stack }
}

func WithoutStack() CaptureOption {
	return func(o *captureOptions) { o.stack = "" }
}

func WithMetadata(metadata enc.Object) CaptureOption {
	return func(o *captureOptions) { o.metadata = enc.Merge(o.metadata, metadata) }
}

// WithMetadataMap converts loosely typed metadata; keys are sorted.
func WithMetadataMap(metadata map[string]any) CaptureOption {
	return WithMetadata(enc.ObjectFromMap(metadata))
}
