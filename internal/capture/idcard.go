package capture

import (
	"fmt"
	"image"
)

// IDCardStage is the position in the two-sided ID card capture.
type IDCardStage string

const (
	IDCardAwaitingFront IDCardStage = "awaiting_front"
	IDCardAwaitingBack  IDCardStage = "awaiting_back"
	IDCardMerging       IDCardStage = "merging"
	IDCardDone          IDCardStage = "done"
)

// IDCardCapture holds the front side until the back side arrives.
// Once merged, neither side is retained.
type IDCardCapture struct {
	stage IDCardStage
	front image.Image
}

func NewIDCardCapture() *IDCardCapture {
	return &IDCardCapture{stage: IDCardAwaitingFront}
}

func (c *IDCardCapture) Stage() IDCardStage {
	return c.stage
}

// Pending reports whether a front side is held waiting for its back.
func (c *IDCardCapture) Pending() bool {
	return c.stage == IDCardAwaitingBack
}

// Front records the front side.
func (c *IDCardCapture) Front(img image.Image) error {
	if c.stage != IDCardAwaitingFront {
		return fmt.Errorf("%w: front side in stage %s", ErrInvalidState, c.stage)
	}
	c.front = img
	c.stage = IDCardAwaitingBack
	return nil
}

// Back records the back side and returns the composite.
func (c *IDCardCapture) Back(img image.Image) (image.Image, error) {
	if c.stage != IDCardAwaitingBack {
		return nil, fmt.Errorf("%w: back side in stage %s", ErrInvalidState, c.stage)
	}
	c.stage = IDCardMerging
	merged := MergeVertical(c.front, img)
	c.front = nil
	c.stage = IDCardDone
	return merged, nil
}

// Reset drops any held side and starts over.
func (c *IDCardCapture) Reset() {
	c.front = nil
	c.stage = IDCardAwaitingFront
}
