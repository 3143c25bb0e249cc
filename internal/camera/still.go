package camera

import (
	"context"
	"image"
	"image/color"
	"sync"

	"github.com/jwalitptl/dispensing-api/internal/capture"
)

// StillDevice always shows the same picture. It stands in for a camera in
// demos and tests.
type StillDevice struct {
	mu     sync.Mutex
	frame  image.Image
	deny   bool
	open   int
	opened int
}

func NewStillDevice(frame image.Image) *StillDevice {
	return &StillDevice{frame: frame}
}

// NewTestCard returns a StillDevice showing a plain w by h card.
func NewTestCard(w, h int) *StillDevice {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := color.RGBA{R: 230, G: 236, B: 245, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, bg)
		}
	}
	return NewStillDevice(img)
}

// Deny makes later Open calls fail with a permission error.
func (d *StillDevice) Deny(deny bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deny = deny
}

// OpenStreams is the number of streams not yet closed.
func (d *StillDevice) OpenStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *StillDevice) Open(ctx context.Context) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deny {
		return nil, capture.ErrCameraPermission
	}
	d.open++
	d.opened++
	return &stillStream{device: d}, nil
}

type stillStream struct {
	device *StillDevice
	closed bool
}

func (s *stillStream) Frame(ctx context.Context) (image.Image, error) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if s.closed {
		return nil, ErrNotStreaming
	}
	return s.device.frame, nil
}

func (s *stillStream) Close() error {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.device.open--
	}
	return nil
}
