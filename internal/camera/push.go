// Package camera provides capture devices. The operator's browser owns the
// real camera; PushDevice receives its frames over HTTP.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/jwalitptl/dispensing-api/internal/capture"
)

var (
	ErrNotStreaming  = errors.New("no camera stream is open")
	ErrFrameTooLarge = errors.New("frame exceeds the size limit")
	ErrBadFrame      = errors.New("frame is not a PNG or JPEG image")
)

const defaultFrameWait = 3 * time.Second

// PushDevice is a camera fed by frames the client pushes while a stream is open.
// Opening requires the operator to have granted camera access.
type PushDevice struct {
	mu            sync.Mutex
	granted       bool
	stream        *pushStream
	maxFrameBytes int64
	frameWait     time.Duration
}

func NewPushDevice(maxFrameBytes int64) *PushDevice {
	return &PushDevice{maxFrameBytes: maxFrameBytes, frameWait: defaultFrameWait}
}

// Grant records the operator's answer to the camera permission prompt.
func (d *PushDevice) Grant(allowed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.granted = allowed
}

func (d *PushDevice) Granted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.granted
}

// Streaming reports whether a stream is open and accepting frames.
func (d *PushDevice) Streaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream != nil
}

func (d *PushDevice) Open(ctx context.Context) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.granted {
		return nil, capture.ErrCameraPermission
	}
	if d.stream != nil {
		return nil, capture.ErrCameraBusy
	}
	d.stream = &pushStream{device: d, ready: make(chan struct{}), done: make(chan struct{})}
	return d.stream, nil
}

// Push decodes a frame and makes it the current one of the open stream.
func (d *PushDevice) Push(data []byte) error {
	if d.maxFrameBytes > 0 && int64(len(data)) > d.maxFrameBytes {
		return ErrFrameTooLarge
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	d.mu.Lock()
	s := d.stream
	d.mu.Unlock()
	if s == nil {
		return ErrNotStreaming
	}
	return s.set(img)
}

func (d *PushDevice) detach(s *pushStream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == s {
		d.stream = nil
	}
}

type pushStream struct {
	device *PushDevice

	mu     sync.Mutex
	latest image.Image
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

func (s *pushStream) set(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotStreaming
	}
	if s.latest == nil {
		close(s.ready)
	}
	s.latest = img
	return nil
}

// Frame returns the latest frame, waiting briefly for the first one. Closing
// the stream ends the wait.
func (s *pushStream) Frame(ctx context.Context) (image.Image, error) {
	timer := time.NewTimer(s.device.frameWait)
	defer timer.Stop()

	select {
	case <-s.ready:
	case <-s.done:
		return nil, ErrNotStreaming
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, capture.ErrNoFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrNotStreaming
	}
	return s.latest, nil
}

func (s *pushStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.latest = nil
	close(s.done)
	s.mu.Unlock()

	s.device.detach(s)
	return nil
}
