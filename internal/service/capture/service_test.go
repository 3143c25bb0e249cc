package capture

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flow "github.com/jwalitptl/dispensing-api/internal/capture"
	"github.com/jwalitptl/dispensing-api/internal/lookup"
	"github.com/jwalitptl/dispensing-api/internal/model"
	"github.com/jwalitptl/dispensing-api/pkg/metrics"
)

type nopPersister struct{}

func (nopPersister) Persist(_ context.Context, sub *model.Submission) (*model.SaveReceipt, error) {
	return &model.SaveReceipt{SubmissionID: sub.ID}, nil
}

func newService(device string, m *metrics.Metrics) *Service {
	return NewService(lookup.NewSeedDirectory(), nopPersister{}, Config{Device: device, MaxFrameBytes: 1 << 20}, m, nil)
}

func TestService_FlowPerSession(t *testing.T) {
	m := metrics.NewNop()
	svc := newService(DevicePush, m)
	owner := uuid.New()

	a := svc.Flow("session-a", owner)
	assert.Same(t, a, svc.Flow("session-a", owner))
	assert.NotSame(t, a, svc.Flow("session-b", owner))
	assert.Equal(t, 2, svc.Active())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ActiveFlows))

	svc.End("session-a")
	assert.Equal(t, 1, svc.Active())
	assert.ErrorIs(t, a.OpenCamera(context.Background(), model.CategoryFormula), flow.ErrFlowClosed)
}

func TestService_CameraDependsOnDevice(t *testing.T) {
	push := newService(DevicePush, nil)
	cam, err := push.Camera("s", uuid.New())
	require.NoError(t, err)
	assert.False(t, cam.Granted())

	still := newService(DeviceStill, nil)
	_, err = still.Camera("s", uuid.New())
	assert.ErrorIs(t, err, ErrNoPushCamera)
}

func TestService_StillDeviceCaptures(t *testing.T) {
	svc := newService(DeviceStill, nil)
	f := svc.Flow("s", uuid.New())
	ctx := context.Background()

	_, err := f.Search(ctx, model.SearchByInvoice, lookup.SeedPatients()[0].InvoiceNumber)
	require.NoError(t, err)
	require.NoError(t, f.OpenCamera(ctx, model.CategoryFormula))
	view, err := f.Capture(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1280, view.Width)
	assert.False(t, f.CameraOpen())
}

func TestService_Reap(t *testing.T) {
	m := metrics.NewNop()
	svc := newService(DevicePush, m)
	svc.Flow("s", uuid.New())

	assert.Equal(t, 0, svc.Reap(time.Hour))
	assert.Equal(t, 1, svc.Reap(-time.Minute))
	assert.Equal(t, 0, svc.Active())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FlowsReaped))
}

func TestService_ReapDoesNotWaitForPendingCapture(t *testing.T) {
	svc := newService(DevicePush, nil)
	ctx := context.Background()

	a := svc.Flow("session-a", uuid.New())
	cam, err := svc.Camera("session-a", uuid.New())
	require.NoError(t, err)
	cam.Grant(true)

	_, err = a.Search(ctx, model.SearchByInvoice, lookup.SeedPatients()[0].InvoiceNumber)
	require.NoError(t, err)
	require.NoError(t, a.OpenCamera(ctx, model.CategoryFormula))

	captured := make(chan error, 1)
	go func() {
		_, err := a.Capture(ctx)
		captured <- err
	}()
	require.Eventually(t, func() bool { return a.State() == flow.StateCapturing && a.CameraOpen() }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	assert.Equal(t, 0, svc.Reap(time.Hour))
	svc.Flow("session-b", uuid.New())
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	a.Cancel()
	select {
	case err := <-captured:
		assert.ErrorIs(t, err, flow.ErrInvalidState)
	case <-time.After(time.Second):
		t.Fatal("capture kept waiting after cancel")
	}
	assert.False(t, a.CameraOpen())
	assert.Equal(t, flow.StatePatientFound, a.State())
}
