package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dispensing-api/internal/lookup"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/pkg/metrics"
)

type fakeDevice struct {
	mu       sync.Mutex
	frames   []image.Image
	deny     bool
	frameErr error
	open     int
	opened   int
}

func (d *fakeDevice) Open(ctx context.Context) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deny {
		return nil, ErrCameraPermission
	}
	d.open++
	d.opened++
	return &fakeStream{d: d}, nil
}

func (d *fakeDevice) openStreams() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *fakeDevice) push(imgs ...image.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, imgs...)
}

type fakeStream struct {
	d      *fakeDevice
	closed bool
}

func (s *fakeStream) Frame(ctx context.Context) (image.Image, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if s.d.frameErr != nil {
		return nil, s.d.frameErr
	}
	if len(s.d.frames) == 0 {
		return nil, ErrNoFrame
	}
	img := s.d.frames[0]
	s.d.frames = s.d.frames[1:]
	return img, nil
}

func (s *fakeStream) Close() error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.d.open--
	}
	return nil
}

type fakePersister struct {
	mu   sync.Mutex
	subs []*model.Submission
	err  error
}

func (p *fakePersister) Persist(ctx context.Context, sub *model.Submission) (*model.SaveReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.subs = append(p.subs, sub)
	ids := make([]uuid.UUID, len(sub.Files))
	for i := range ids {
		ids[i] = uuid.New()
	}
	return &model.SaveReceipt{SubmissionID: sub.ID, DocumentIDs: ids, Status: model.DocumentStatusComplete}, nil
}

func frame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := EncodePNG(frame(w, h))
	require.NoError(t, err)
	return data
}

type fixture struct {
	flow      *Flow
	device    *fakeDevice
	persister *fakePersister
}

func newFixture(t *testing.T, lc lookup.Client) *fixture {
	t.Helper()
	if lc == nil {
		lc = lookup.NewSeedDirectory()
	}
	dev := &fakeDevice{}
	p := &fakePersister{}
	f := NewFlow("flow-1", lc, dev, p, Options{
		Owner:          uuid.New(),
		MaxUploadBytes: 1 << 20,
		Metrics:        metrics.NewNop(),
	})
	return &fixture{flow: f, device: dev, persister: p}
}

func (fx *fixture) findPatient(t *testing.T) {
	t.Helper()
	p, err := fx.flow.Search(context.Background(), model.SearchByInvoice, "MSD-001")
	require.NoError(t, err)
	require.Equal(t, "1098765432", p.NationalID)
}

func (fx *fixture) captureIDCard(t *testing.T, front, back image.Image) *ArtifactView {
	t.Helper()
	ctx := context.Background()
	fx.device.push(front, back)

	require.NoError(t, fx.flow.OpenCamera(ctx, model.CategoryIDCard))
	view, err := fx.flow.Capture(ctx)
	require.NoError(t, err)
	require.Nil(t, view)
	require.Equal(t, StateAwaitingBackSide, fx.flow.State())
	require.Equal(t, 0, fx.device.openStreams())

	require.NoError(t, fx.flow.ConfirmBackSide(ctx))
	view, err = fx.flow.Capture(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	return view
}

func (fx *fixture) captureOne(t *testing.T, c model.Category, img image.Image) *ArtifactView {
	t.Helper()
	ctx := context.Background()
	fx.device.push(img)
	require.NoError(t, fx.flow.OpenCamera(ctx, c))
	view, err := fx.flow.Capture(ctx)
	require.NoError(t, err)
	require.NotNil(t, view)
	return view
}

func TestFlow_SearchNotFoundThenRetry(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	p, err := fx.flow.Search(ctx, model.SearchByInvoice, "F-1001")
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.Nil(t, p)

	snap := fx.flow.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Patient)
	assert.Equal(t, ErrPatientNotFound.Error(), snap.LastError)

	p, err = fx.flow.Search(ctx, model.SearchByNationalID, "0987654321")
	require.NoError(t, err)
	assert.Equal(t, "MSD-002", p.InvoiceNumber)
	assert.Equal(t, StatePatientFound, fx.flow.State())
}

func TestFlow_SearchValidation(t *testing.T) {
	fx := newFixture(t, nil)

	_, err := fx.flow.Search(context.Background(), model.SearchByInvoice, "   ")
	require.True(t, IsValidation(err))
	assert.Equal(t, StateIdle, fx.flow.State())

	_, err = fx.flow.Search(context.Background(), "passport", "123")
	assert.True(t, IsValidation(err))
}

func TestFlow_IDCardMerge(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)

	view := fx.captureIDCard(t, frame(100, 50), frame(80, 70))
	assert.Equal(t, 120, view.Height)
	assert.Equal(t, 100, view.Width)
	assert.Equal(t, "image/png", view.ContentType)

	snap := fx.flow.Snapshot()
	require.Len(t, snap.Documents[model.CategoryIDCard], 1)
	assert.Equal(t, StatePatientFound, snap.State)
	assert.Equal(t, IDCardAwaitingFront, snap.IDCardStage)

	// a third and fourth capture replace the composite with a fresh merge
	view = fx.captureIDCard(t, frame(60, 30), frame(60, 40))
	assert.Equal(t, 70, view.Height)

	snap = fx.flow.Snapshot()
	require.Len(t, snap.Documents[model.CategoryIDCard], 1)
	assert.Equal(t, view.ID, snap.Documents[model.CategoryIDCard][0].ID)
	assert.Equal(t, 0, fx.device.openStreams())
}

func TestFlow_SingleCategoryReplaces(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)

	fx.captureOne(t, model.CategoryFormula, frame(10, 10))
	second := fx.captureOne(t, model.CategoryFormula, frame(20, 20))

	docs := fx.flow.Snapshot().Documents[model.CategoryFormula]
	require.Len(t, docs, 1)
	assert.Equal(t, second.ID, docs[0].ID)
}

func TestFlow_MSDAppendsAndKeepsOrder(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)

	a := fx.captureOne(t, model.CategoryMSD, frame(10, 10))
	b := fx.captureOne(t, model.CategoryMSD, frame(11, 11))
	c := fx.captureOne(t, model.CategoryMSD, frame(12, 12))

	docs := fx.flow.Snapshot().Documents[model.CategoryMSD]
	require.Len(t, docs, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{docs[0].ID, docs[1].ID, docs[2].ID})

	require.NoError(t, fx.flow.RemoveAt(model.CategoryMSD, 1))
	docs = fx.flow.Snapshot().Documents[model.CategoryMSD]
	require.Len(t, docs, 2)
	assert.Equal(t, a.ID, docs[0].ID)
	assert.Equal(t, c.ID, docs[1].ID)

	assert.ErrorIs(t, fx.flow.RemoveAt(model.CategoryMSD, 5), ErrArtifactNotFound)
}

func TestFlow_UploadThenRemove(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)

	view, err := fx.flow.Upload(model.CategoryAuthorization, "auth.png", pngBytes(t, 30, 20))
	require.NoError(t, err)
	assert.Equal(t, "image/png", view.ContentType)
	assert.Equal(t, 30, view.Width)
	assert.Contains(t, view.Preview, "data:image/png;base64,")

	require.NoError(t, fx.flow.Remove(model.CategoryAuthorization))
	assert.Empty(t, fx.flow.Snapshot().Documents[model.CategoryAuthorization])
	assert.Equal(t, 0, fx.flow.store.Count(model.CategoryAuthorization))
	assert.Empty(t, fx.flow.store.Files())
}

func TestFlow_UploadRules(t *testing.T) {
	fx := newFixture(t, nil)

	_, err := fx.flow.Upload(model.CategoryFormula, "f.png", pngBytes(t, 2, 2))
	assert.ErrorIs(t, err, ErrInvalidState)

	fx.findPatient(t)

	_, err = fx.flow.Upload(model.CategoryFormula, "notes.txt", []byte("hello, plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = fx.flow.Upload(model.CategoryFormula, "empty.png", nil)
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = fx.flow.Upload(model.CategoryFormula, "big.pdf", make([]byte, 2<<20))
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = fx.flow.Upload("receta", "f.png", pngBytes(t, 2, 2))
	assert.ErrorIs(t, err, ErrInvalidCategory)

	view, err := fx.flow.Upload(model.CategoryFormula, "formula.pdf", []byte("%PDF-1.4\n%fake pdf body\n"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", view.ContentType)

	fx.flow.Upload(model.CategoryMSD, "1.png", pngBytes(t, 2, 2))
	fx.flow.Upload(model.CategoryMSD, "2.png", pngBytes(t, 2, 2))
	assert.Len(t, fx.flow.Snapshot().Documents[model.CategoryMSD], 2)
}

func TestFlow_SaveRequiresMandatoryCategories(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)

	_, err := fx.flow.Save(context.Background(), SaveOptions{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []model.Category{model.CategoryIDCard, model.CategoryFormula, model.CategoryMSD}, verr.Missing)
	assert.Contains(t, err.Error(), "Cédula")
	assert.Contains(t, err.Error(), "Fórmula Médica")
	assert.Contains(t, err.Error(), "MSD")

	assert.Equal(t, StatePatientFound, fx.flow.State())
	assert.Empty(t, fx.persister.subs)

	fx.captureOne(t, model.CategoryFormula, frame(5, 5))
	_, err = fx.flow.Save(context.Background(), SaveOptions{})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []model.Category{model.CategoryIDCard, model.CategoryMSD}, verr.Missing)
}

func TestFlow_SaveSuccessClearsEverything(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)

	fx.captureIDCard(t, frame(10, 10), frame(10, 10))
	fx.captureOne(t, model.CategoryFormula, frame(5, 5))
	fx.captureOne(t, model.CategoryMSD, frame(5, 5))
	_, err := fx.flow.Upload(model.CategoryMSD, "msd.png", pngBytes(t, 4, 4))
	require.NoError(t, err)

	receipt, err := fx.flow.Save(context.Background(), SaveOptions{PendingDelivery: true})
	require.NoError(t, err)
	require.Len(t, receipt.DocumentIDs, 4)

	require.Len(t, fx.persister.subs, 1)
	sub := fx.persister.subs[0]
	assert.True(t, sub.PendingDelivery)
	assert.Equal(t, "MSD-001", sub.Patient.InvoiceNumber)
	assert.Equal(t, model.CategoryIDCard, sub.Files[0].Category)
	assert.Equal(t, 1, sub.Files[3].Position)

	snap := fx.flow.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Patient)
	for _, c := range model.Categories {
		assert.Empty(t, snap.Documents[c])
	}
	assert.Equal(t, receipt, snap.LastReceipt)
}

func TestFlow_SaveFailureKeepsStore(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)

	fx.captureIDCard(t, frame(10, 10), frame(10, 10))
	fx.captureOne(t, model.CategoryFormula, frame(5, 5))
	fx.captureOne(t, model.CategoryMSD, frame(5, 5))

	fx.persister.err = errors.New("database unavailable")
	_, err := fx.flow.Save(context.Background(), SaveOptions{})
	require.Error(t, err)

	snap := fx.flow.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.NotNil(t, snap.Patient)
	assert.Len(t, snap.Documents[model.CategoryIDCard], 1)
	assert.Len(t, snap.Documents[model.CategoryFormula], 1)
	assert.Len(t, snap.Documents[model.CategoryMSD], 1)
	assert.Contains(t, snap.LastError, "database unavailable")

	fx.persister.err = nil
	_, err = fx.flow.Save(context.Background(), SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, fx.flow.State())
}

func TestFlow_CameraReleasedOnEveryExit(t *testing.T) {
	ctx := context.Background()

	t.Run("capture", func(t *testing.T) {
		fx := newFixture(t, nil)
		fx.findPatient(t)
		fx.captureOne(t, model.CategoryAuthorization, frame(3, 3))
		assert.Equal(t, 0, fx.device.openStreams())
		assert.False(t, fx.flow.CameraOpen())
	})

	t.Run("cancel", func(t *testing.T) {
		fx := newFixture(t, nil)
		fx.findPatient(t)
		require.NoError(t, fx.flow.OpenCamera(ctx, model.CategoryFormula))
		assert.Equal(t, 1, fx.device.openStreams())

		fx.flow.Cancel()
		assert.Equal(t, 0, fx.device.openStreams())
		assert.Equal(t, StatePatientFound, fx.flow.State())
	})

	t.Run("frame error", func(t *testing.T) {
		fx := newFixture(t, nil)
		fx.findPatient(t)
		fx.device.frameErr = errors.New("track ended")
		require.NoError(t, fx.flow.OpenCamera(ctx, model.CategoryMSD))

		_, err := fx.flow.Capture(ctx)
		require.Error(t, err)
		assert.Equal(t, 0, fx.device.openStreams())
		assert.Equal(t, StatePatientFound, fx.flow.State())
	})

	t.Run("teardown", func(t *testing.T) {
		fx := newFixture(t, nil)
		fx.findPatient(t)
		require.NoError(t, fx.flow.OpenCamera(ctx, model.CategoryIDCard))

		fx.flow.Close()
		fx.flow.Close()
		assert.Equal(t, 0, fx.device.openStreams())
		assert.ErrorIs(t, fx.flow.OpenCamera(ctx, model.CategoryIDCard), ErrFlowClosed)
	})
}

func TestFlow_OneCameraAtATime(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.OpenCamera(ctx, model.CategoryFormula))
	assert.ErrorIs(t, fx.flow.OpenCamera(ctx, model.CategoryMSD), ErrCameraBusy)
	assert.Equal(t, 1, fx.device.openStreams())
	assert.Equal(t, model.CategoryFormula, fx.flow.Snapshot().Category)
}

func TestFlow_CameraPermissionDenied(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)
	fx.device.deny = true

	err := fx.flow.OpenCamera(context.Background(), model.CategoryFormula)
	assert.ErrorIs(t, err, ErrCameraPermission)
	assert.Equal(t, StatePatientFound, fx.flow.State())
	assert.False(t, fx.flow.CameraOpen())
}

func TestFlow_CancelDropsPendingFront(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)
	ctx := context.Background()

	fx.device.push(frame(10, 10))
	require.NoError(t, fx.flow.OpenCamera(ctx, model.CategoryIDCard))
	_, err := fx.flow.Capture(ctx)
	require.NoError(t, err)
	require.Equal(t, IDCardAwaitingBack, fx.flow.Snapshot().IDCardStage)

	fx.flow.Cancel()
	snap := fx.flow.Snapshot()
	assert.Equal(t, StatePatientFound, snap.State)
	assert.Equal(t, IDCardAwaitingFront, snap.IDCardStage)
	assert.Empty(t, snap.Documents[model.CategoryIDCard])
}

func TestFlow_BackSidePermissionDeniedAbortsCapture(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)
	ctx := context.Background()

	fx.device.push(frame(10, 10))
	require.NoError(t, fx.flow.OpenCamera(ctx, model.CategoryIDCard))
	_, err := fx.flow.Capture(ctx)
	require.NoError(t, err)

	fx.device.deny = true
	assert.ErrorIs(t, fx.flow.ConfirmBackSide(ctx), ErrCameraPermission)

	snap := fx.flow.Snapshot()
	assert.Equal(t, StatePatientFound, snap.State)
	assert.Equal(t, IDCardAwaitingFront, snap.IDCardStage)
	assert.Empty(t, snap.Documents[model.CategoryIDCard])
}

type gatedLookup struct {
	next    lookup.Client
	gate    chan struct{}
	started chan struct{}
	term    string
}

func (g *gatedLookup) Search(ctx context.Context, q lookup.Query) ([]model.PatientRecord, error) {
	if q.InvoiceNumber == g.term {
		close(g.started)
		<-g.gate
	}
	return g.next.Search(ctx, q)
}

func TestFlow_StaleSearchIsDiscarded(t *testing.T) {
	g := &gatedLookup{
		next:    lookup.NewSeedDirectory(),
		gate:    make(chan struct{}),
		started: make(chan struct{}),
		term:    "MSD-001",
	}
	fx := newFixture(t, g)
	ctx := context.Background()

	errc := make(chan error, 1)
	go func() {
		_, err := fx.flow.Search(ctx, model.SearchByInvoice, "MSD-001")
		errc <- err
	}()
	<-g.started

	p, err := fx.flow.Search(ctx, model.SearchByInvoice, "MSD-002")
	require.NoError(t, err)
	assert.Equal(t, "0987654321", p.NationalID)

	close(g.gate)
	assert.ErrorIs(t, <-errc, ErrSuperseded)

	snap := fx.flow.Snapshot()
	require.NotNil(t, snap.Patient)
	assert.Equal(t, "0987654321", snap.Patient.NationalID)
	assert.Equal(t, StatePatientFound, snap.State)
}

func TestFlow_NewPatientDiscardsPreviousDocuments(t *testing.T) {
	fx := newFixture(t, nil)
	fx.findPatient(t)
	fx.captureOne(t, model.CategoryFormula, frame(5, 5))

	_, err := fx.flow.Search(context.Background(), model.SearchByInvoice, "F-1001")
	require.ErrorIs(t, err, ErrPatientNotFound)

	fx.findPatient(t)
	assert.Len(t, fx.flow.Snapshot().Documents[model.CategoryFormula], 1)

	_, err = fx.flow.Search(context.Background(), model.SearchByInvoice, "MSD-003")
	require.NoError(t, err)
	assert.Empty(t, fx.flow.Snapshot().Documents[model.CategoryFormula])
}
