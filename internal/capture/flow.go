// Package capture runs the document capture workflow of one operator: find the
// patient, collect the documents by camera or upload, and save them together.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispensing-api/internal/lookup"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/pkg/logger"
	"github.com/jwalitptl/dispensing-api/pkg/metrics"
)

// State is the position of a Flow in the capture workflow.
type State string

const (
	StateIdle             State = "idle"
	StateSearching        State = "searching"
	StatePatientFound     State = "patient_found"
	StateCapturing        State = "capturing"
	StateAwaitingBackSide State = "awaiting_back_side"
	StateSaving           State = "saving"
	StateError            State = "error"
)

const defaultMaxUploadBytes = 10 << 20

// Persister stores a complete submission.
type Persister interface {
	Persist(ctx context.Context, sub *model.Submission) (*model.SaveReceipt, error)
}

type Options struct {
	// Owner is recorded as the saver of every document.
	Owner          uuid.UUID
	MaxUploadBytes int64
	Metrics        *metrics.Metrics
	Logger         *logger.Logger
}

// SaveOptions are the flags collected with the save action.
type SaveOptions struct {
	PendingDelivery bool `json:"pending_delivery"`
}

// Flow is the capture session of one operator. All methods are safe for
// concurrent use. The lock is not held while a patient search or a save is in
// flight; the state machine refuses conflicting operations meanwhile.
type Flow struct {
	mu sync.Mutex

	id        string
	owner     uuid.UUID
	lookup    lookup.Client
	device    Device
	persister Persister
	maxUpload int64
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time

	state      State
	patient    *model.PatientRecord
	generation uint64
	closed     bool

	category model.Category
	stream   Stream
	// grabbing is the stream a Capture is waiting on without holding mu.
	grabbing Stream
	idcard   *IDCardCapture

	store      *Store
	storeOwner string

	lastErr     string
	lastReceipt *model.SaveReceipt
	lastActive  atomic.Int64
}

func NewFlow(id string, lc lookup.Client, device Device, persister Persister, opts Options) *Flow {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	f := &Flow{
		id:        id,
		owner:     opts.Owner,
		lookup:    lc,
		device:    device,
		persister: persister,
		maxUpload: opts.MaxUploadBytes,
		metrics:   opts.Metrics,
		logger:    opts.Logger.WithFields(map[string]interface{}{"flow_id": id}),
		now:       time.Now,
		state:     StateIdle,
		idcard:    NewIDCardCapture(),
		store:     NewStore(),
	}
	f.lastActive.Store(f.now().UnixNano())
	return f
}

func (f *Flow) ID() string {
	return f.id
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastActive is the time of the last operation on the flow.
func (f *Flow) LastActive() time.Time {
	return time.Unix(0, f.lastActive.Load())
}

// Search looks a patient up and makes the first match the active patient.
// Only the most recent search may change the flow; an older one that
// finishes later returns ErrSuperseded.
func (f *Flow) Search(ctx context.Context, kind model.SearchKind, term string) (*model.PatientRecord, error) {
	term = strings.TrimSpace(term)

	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if !kind.Valid() {
		f.mu.Unlock()
		return nil, &ValidationError{Field: "type", Message: "search type must be invoice or national_id"}
	}
	if term == "" {
		f.mu.Unlock()
		return nil, &ValidationError{Field: "term", Message: "search term is required"}
	}
	switch f.state {
	case StateCapturing, StateAwaitingBackSide, StateSaving:
		f.mu.Unlock()
		return nil, ErrInvalidState
	}

	f.generation++
	gen := f.generation
	f.state = StateSearching
	f.lastErr = ""
	f.touchLocked()
	f.mu.Unlock()

	q, _ := lookup.NewQuery(kind, term)
	records, err := f.lookup.Search(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrFlowClosed
	}
	if gen != f.generation {
		return nil, ErrSuperseded
	}
	f.touchLocked()

	if err != nil {
		f.countSearch(kind, "error")
		f.settleLocked()
		f.lastErr = err.Error()
		f.logger.Warn("patient lookup failed", "error", err.Error())
		return nil, fmt.Errorf("failed to search patient: %w", err)
	}

	if len(records) == 0 {
		f.countSearch(kind, "not_found")
		f.patient = nil
		f.state = StateIdle
		f.lastErr = ErrPatientNotFound.Error()
		return nil, ErrPatientNotFound
	}

	f.countSearch(kind, "found")
	found := records[0]
	if f.storeOwner != found.NationalID {
		f.store.Clear()
		f.storeOwner = found.NationalID
	}
	f.patient = &found
	f.state = StatePatientFound
	f.lastReceipt = nil

	out := found
	return &out, nil
}

// OpenCamera acquires a camera for one document category.
func (f *Flow) OpenCamera(ctx context.Context, category model.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.usableLocked(); err != nil {
		return err
	}
	if !category.Valid() {
		return ErrInvalidCategory
	}
	if f.stream != nil {
		return ErrCameraBusy
	}
	if !f.readyLocked() {
		return ErrInvalidState
	}
	f.touchLocked()

	if err := f.acquireLocked(ctx); err != nil {
		return err
	}

	f.category = category
	f.idcard.Reset()
	f.state = StateCapturing
	f.lastErr = ""
	return nil
}

// Capture takes the current frame. The camera is released whatever the
// outcome. For the ID card the first call holds the front side and moves the
// flow to awaiting_back_side; nil is returned for the artifact in that case.
// The wait for a frame happens outside the flow lock, so Cancel and Close can
// stop a capture that is still waiting.
func (f *Flow) Capture(ctx context.Context) (*ArtifactView, error) {
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if f.state != StateCapturing || f.stream == nil || f.grabbing != nil {
		f.mu.Unlock()
		return nil, ErrInvalidState
	}
	f.touchLocked()
	stream := f.stream
	f.grabbing = stream
	f.mu.Unlock()

	frame, err := stream.Frame(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.grabbing == stream {
		f.grabbing = nil
	}
	if f.closed {
		return nil, ErrFlowClosed
	}
	if f.stream != stream {
		return nil, fmt.Errorf("%w: capture cancelled", ErrInvalidState)
	}
	f.touchLocked()
	f.releaseLocked()
	if err != nil {
		f.abortCaptureLocked(err)
		return nil, fmt.Errorf("failed to capture frame: %w", err)
	}

	category := f.category
	if category == model.CategoryIDCard {
		if !f.idcard.Pending() {
			if err := f.idcard.Front(frame); err != nil {
				f.abortCaptureLocked(err)
				return nil, err
			}
			f.state = StateAwaitingBackSide
			return nil, nil
		}
		merged, err := f.idcard.Back(frame)
		if err != nil {
			f.abortCaptureLocked(err)
			return nil, err
		}
		frame = merged
	}

	data, err := EncodePNG(frame)
	if err != nil {
		f.abortCaptureLocked(err)
		return nil, err
	}

	b := frame.Bounds()
	a := &Artifact{
		Category:    category,
		Source:      SourceCamera,
		FileName:    fmt.Sprintf("%s-%d.png", category, f.now().Unix()),
		ContentType: "image/png",
		Width:       b.Dx(),
		Height:      b.Dy(),
		Data:        data,
		Preview:     DataURL("image/png", data),
		CreatedAt:   f.now(),
	}
	f.store.Put(a)
	if f.metrics != nil {
		f.metrics.Captures.WithLabelValues(string(category)).Inc()
	}

	f.idcard.Reset()
	f.category = ""
	f.state = StatePatientFound
	view := viewOf(a)
	return &view, nil
}

// ConfirmBackSide acquires the camera again for the back of the ID card.
func (f *Flow) ConfirmBackSide(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.usableLocked(); err != nil {
		return err
	}
	if f.state != StateAwaitingBackSide {
		return ErrInvalidState
	}
	if f.stream != nil {
		return ErrCameraBusy
	}
	f.touchLocked()

	if err := f.acquireLocked(ctx); err != nil {
		f.abortCaptureLocked(err)
		return err
	}
	f.state = StateCapturing
	return nil
}

// Cancel stops any open camera and drops a pending ID card front side.
func (f *Flow) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touchLocked()
	f.releaseLocked()
	f.idcard.Reset()
	f.category = ""
	if f.state == StateCapturing || f.state == StateAwaitingBackSide {
		f.state = StatePatientFound
	}
}

// Upload stores a file chosen by the operator under a category.
func (f *Flow) Upload(category model.Category, fileName string, data []byte) (*ArtifactView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.usableLocked(); err != nil {
		return nil, err
	}
	if !category.Valid() {
		return nil, ErrInvalidCategory
	}
	if !f.readyLocked() {
		return nil, ErrInvalidState
	}
	info, err := InspectFile(data, f.maxUpload)
	if err != nil {
		return nil, err
	}
	f.touchLocked()

	a := &Artifact{
		Category:    category,
		Source:      SourceUpload,
		FileName:    fileName,
		ContentType: info.ContentType,
		Width:       info.Width,
		Height:      info.Height,
		Data:        append([]byte(nil), data...),
		Preview:     DataURL(info.ContentType, data),
		CreatedAt:   f.now(),
	}
	f.store.Put(a)
	if f.metrics != nil {
		f.metrics.Uploads.WithLabelValues(string(category)).Inc()
	}

	view := viewOf(a)
	return &view, nil
}

// Remove clears a category. Removing an empty category is a no-op.
func (f *Flow) Remove(category model.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mutableLocked(category); err != nil {
		return err
	}
	f.touchLocked()
	f.store.Remove(category)
	return nil
}

// RemoveAt removes one artifact of a category; the rest keep their order.
func (f *Flow) RemoveAt(category model.Category, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.mutableLocked(category); err != nil {
		return err
	}
	f.touchLocked()
	return f.store.RemoveAt(category, index)
}

// Save persists the collected documents for the active patient. The ID card,
// the formula and at least one MSD are required. On failure the documents
// stay in place and the flow is in the error state; on success the flow is
// reset to idle.
func (f *Flow) Save(ctx context.Context, opts SaveOptions) (*model.SaveReceipt, error) {
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if !f.readyLocked() {
		f.mu.Unlock()
		if f.patient == nil {
			return nil, ErrNoActivePatient
		}
		return nil, ErrInvalidState
	}
	if missing := f.store.Missing(); len(missing) > 0 {
		f.mu.Unlock()
		f.countSave("invalid")
		return nil, &ValidationError{Field: "documents", Missing: missing}
	}

	sub := &model.Submission{
		ID:              uuid.New(),
		Patient:         *f.patient,
		SavedBy:         f.owner,
		PendingDelivery: opts.PendingDelivery,
		Files:           f.store.Files(),
		CreatedAt:       f.now().UTC(),
	}
	f.state = StateSaving
	f.touchLocked()
	f.mu.Unlock()

	receipt, err := f.persister.Persist(ctx, sub)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchLocked()

	if err != nil {
		f.countSave("error")
		f.state = StateError
		f.lastErr = err.Error()
		f.logger.Error(err, "failed to save documents", "submission_id", sub.ID.String())
		return nil, fmt.Errorf("failed to save documents: %w", err)
	}

	f.countSave("saved")
	f.store.Clear()
	f.storeOwner = ""
	f.patient = nil
	f.generation++
	f.lastErr = ""
	f.lastReceipt = receipt
	f.state = StateIdle
	f.logger.Info("documents saved", "submission_id", sub.ID.String(), "files", len(sub.Files))
	return receipt, nil
}

// Close tears the flow down, releasing the camera whatever the state.
// Closing twice is a no-op.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.releaseLocked()
	f.idcard.Reset()
	f.closed = true
	f.generation++
	f.store.Clear()
	f.patient = nil
	f.state = StateIdle
}

// CameraOpen reports whether the flow holds a camera stream.
func (f *Flow) CameraOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stream != nil
}

func (f *Flow) usableLocked() error {
	if f.closed {
		return ErrFlowClosed
	}
	return nil
}

// readyLocked reports whether a patient is active and no capture or save is running.
func (f *Flow) readyLocked() bool {
	return f.patient != nil && (f.state == StatePatientFound || f.state == StateError)
}

func (f *Flow) mutableLocked(category model.Category) error {
	if err := f.usableLocked(); err != nil {
		return err
	}
	if !category.Valid() {
		return ErrInvalidCategory
	}
	if f.state == StateSaving {
		return ErrInvalidState
	}
	return nil
}

// settleLocked returns the flow to the resting state that matches its patient.
func (f *Flow) settleLocked() {
	if f.patient != nil {
		f.state = StatePatientFound
		return
	}
	f.state = StateIdle
}

func (f *Flow) acquireLocked(ctx context.Context) error {
	stream, err := f.device.Open(ctx)
	if err != nil {
		f.lastErr = err.Error()
		if errors.Is(err, ErrCameraPermission) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	f.stream = stream
	if f.metrics != nil {
		f.metrics.OpenCameras.Inc()
	}
	return nil
}

func (f *Flow) releaseLocked() {
	if f.stream == nil {
		return
	}
	if err := f.stream.Close(); err != nil {
		f.logger.Warn("failed to stop camera stream", "error", err.Error())
	}
	f.stream = nil
	if f.metrics != nil {
		f.metrics.OpenCameras.Dec()
	}
}

func (f *Flow) abortCaptureLocked(err error) {
	f.releaseLocked()
	f.idcard.Reset()
	f.category = ""
	f.lastErr = err.Error()
	f.settleLocked()
}

func (f *Flow) touchLocked() {
	f.lastActive.Store(f.now().UnixNano())
}

func (f *Flow) countSearch(kind model.SearchKind, result string) {
	if f.metrics != nil {
		f.metrics.PatientSearches.WithLabelValues(string(kind), result).Inc()
	}
}

func (f *Flow) countSave(outcome string) {
	if f.metrics != nil {
		f.metrics.Saves.WithLabelValues(outcome).Inc()
	}
}
