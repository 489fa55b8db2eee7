package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/model"
)

type fakeProvider struct {
	syncSnap     *model.TrackingSnapshot
	completeAt   int // poll attempt after which Poll reports done; 0 = never
	requestErr   error
	pollErr      error
	fetchErr     error
	pollCalls    int
	fetchCalls   int
	requestCalls int
}

func (f *fakeProvider) Request(ctx context.Context, id, hint string) (*model.TrackingSnapshot, bool, error) {
	f.requestCalls++
	if f.requestErr != nil {
		return nil, false, f.requestErr
	}
	if f.syncSnap != nil {
		return f.syncSnap, true, nil
	}
	return nil, false, nil
}

func (f *fakeProvider) Poll(ctx context.Context, id string) (bool, error) {
	f.pollCalls++
	if f.pollErr != nil {
		return false, f.pollErr
	}
	return f.completeAt > 0 && f.pollCalls >= f.completeAt, nil
}

func (f *fakeProvider) Fetch(ctx context.Context, id string) (*model.TrackingSnapshot, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return &model.TrackingSnapshot{TrackingID: id, Status: "in_transit"}, nil
}

func fastAdapter(t *testing.T, p Provider) *Adapter {
	t.Helper()
	a, err := NewAdapter(p, model.TrackingConfig{PollInterval: "5ms", PollCeiling: "40ms"})
	require.NoError(t, err)
	return a
}

func TestTrackOnceSynchronousResult(t *testing.T) {
	p := &fakeProvider{syncSnap: &model.TrackingSnapshot{TrackingID: "1Z999AA10123456784", Status: "delivered"}}
	a := fastAdapter(t, p)

	snap, err := a.TrackOnce(context.Background(), "1Z999AA10123456784", "")
	require.NoError(t, err)
	assert.Equal(t, "delivered", snap.Status)
	assert.Zero(t, p.pollCalls)
	assert.Zero(t, p.fetchCalls)
}

func TestTrackOncePollsUntilComplete(t *testing.T) {
	p := &fakeProvider{completeAt: 2}
	a := fastAdapter(t, p)

	snap, err := a.TrackOnce(context.Background(), "1Z999AA10123456784", "")
	require.NoError(t, err)
	assert.Equal(t, "in_transit", snap.Status)
	assert.GreaterOrEqual(t, p.pollCalls, 2)
	assert.Equal(t, 1, p.fetchCalls)
}

func TestTrackOnceCeilingTerminatesNeverCompletingProvider(t *testing.T) {
	p := &fakeProvider{completeAt: 0}
	a := fastAdapter(t, p)

	start := time.Now()
	snap, err := a.TrackOnce(context.Background(), "1Z999AA10123456784", "")
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, p.fetchCalls, "a final fetch must run even without completion")
	// ceiling plus one fetch round-trip, with slack for the scheduler
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestTrackOnceRequestFailure(t *testing.T) {
	p := &fakeProvider{requestErr: errors.New("401 unauthorized")}
	a := fastAdapter(t, p)

	_, err := a.TrackOnce(context.Background(), "1Z999AA10123456784", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrTrackingUnavailable))
}

func TestTrackOncePollErrorStillFetches(t *testing.T) {
	p := &fakeProvider{pollErr: errors.New("rate limited")}
	a := fastAdapter(t, p)

	snap, err := a.TrackOnce(context.Background(), "1Z999AA10123456784", "")
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Equal(t, 1, p.fetchCalls)
}

func TestTrackOnceFetchFailure(t *testing.T) {
	p := &fakeProvider{pollErr: errors.New("down"), fetchErr: errors.New("down")}
	a := fastAdapter(t, p)

	_, err := a.TrackOnce(context.Background(), "1Z999AA10123456784", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrTrackingUnavailable))
}

func TestTrackOnceContextCancellation(t *testing.T) {
	p := &fakeProvider{completeAt: 0}
	a, err := NewAdapter(p, model.TrackingConfig{PollInterval: "10ms", PollCeiling: "10s"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = a.TrackOnce(ctx, "1Z999AA10123456784", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrTrackingUnavailable))
}

func TestShouldTrack(t *testing.T) {
	assert.True(t, ShouldTrack("where can I track my order?", ""))
	assert.True(t, ShouldTrack("my parcel has not arrived", ""))
	assert.True(t, ShouldTrack("what's the delivery status", ""))
	assert.True(t, ShouldTrack("still waiting", "Track parcel"))
	assert.False(t, ShouldTrack("I want a refund", "Refund request"))
}

func TestExtractTrackingID(t *testing.T) {
	assert.Equal(t, "1Z999AA10123456784", ExtractTrackingID("my id is 1Z999AA10123456784 thanks"))
	assert.Equal(t, "RR123456789CN", ExtractTrackingID("package RR123456789CN from overseas"))
	// plain long words do not qualify
	assert.Empty(t, ExtractTrackingID("unfortunately the consignment disappeared"))
	// too short / too long
	assert.Empty(t, ExtractTrackingID("id 12345 or 1234567890123456789012345"))
}

func TestNewAdapterRejectsBadDurations(t *testing.T) {
	_, err := NewAdapter(&fakeProvider{}, model.TrackingConfig{PollInterval: "not-a-duration"})
	require.Error(t, err)

	a, err := NewAdapter(&fakeProvider{}, model.TrackingConfig{})
	require.NoError(t, err)
	assert.Equal(t, defaultPollInterval, a.interval)
	assert.Equal(t, defaultPollCeiling, a.ceiling)
}
