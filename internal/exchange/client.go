// Package exchange sends one utterance payload to the remote inference
// service and returns the response audio. Both transports sit behind one
// interface; neither retries — retry is a caller policy.
package exchange

import (
	"context"
	"errors"
)

var (
	// ErrTransportUnavailable means no usable connection exists.
	ErrTransportUnavailable = errors.New("exchange: transport unavailable")
	// ErrRemoteRejected means the remote reported a non-success status.
	ErrRemoteRejected = errors.New("exchange: remote rejected request")
	// ErrEmptyResponse means the remote returned a zero-byte payload.
	ErrEmptyResponse = errors.New("exchange: empty response payload")
)

// Client performs a single request/response exchange.
type Client interface {
	// Send transmits the payload and returns the response audio. Exactly one
	// attempt; the error is one of the sentinel errors above (wrapped).
	Send(ctx context.Context, payload []byte) ([]byte, error)
}
