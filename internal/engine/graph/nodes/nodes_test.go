package nodes

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceldesk/core/internal/engine/knowledge"
	"github.com/parceldesk/core/internal/engine/model"
	"github.com/parceldesk/core/internal/engine/tracking"
)

type fakeTrackingProvider struct {
	snap *model.TrackingSnapshot
	err  error
}

func (f *fakeTrackingProvider) Request(_ context.Context, trackingID, _ string) (*model.TrackingSnapshot, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.snap, true, nil
}

func (f *fakeTrackingProvider) Poll(context.Context, string) (bool, error) {
	return true, nil
}

func (f *fakeTrackingProvider) Fetch(context.Context, string) (*model.TrackingSnapshot, error) {
	return f.snap, f.err
}

type fakeStore struct {
	chunks []model.KnowledgeChunk
	err    error
}

func (f *fakeStore) Retrieve(context.Context, knowledge.Query) ([]model.KnowledgeChunk, error) {
	return f.chunks, f.err
}

func newTestTracker(t *testing.T, p tracking.Provider) *tracking.Adapter {
	t.Helper()
	tracker, err := tracking.NewAdapter(p, model.TrackingConfig{PollInterval: "1ms", PollCeiling: "10ms"})
	require.NoError(t, err)
	return tracker
}

func TestTrackShipmentSkipNoteWithoutProvider(t *testing.T) {
	snap, note := trackShipment(context.Background(), nil, "please track parcel 1Z999AA10123456784", "", "track parcel")
	assert.Nil(t, snap)
	assert.Equal(t, "tracking lookup skipped; provider not configured", note)
}

func TestTrackShipmentNonTrackingQueryWithoutProvider(t *testing.T) {
	snap, note := trackShipment(context.Background(), nil, "I want a refund", "", "refund request")
	assert.Nil(t, snap)
	assert.Empty(t, note)
}

func TestTrackShipmentSkipsNonTrackingQuery(t *testing.T) {
	tracker := newTestTracker(t, &fakeTrackingProvider{snap: &model.TrackingSnapshot{TrackingID: "x"}})

	snap, note := trackShipment(context.Background(), tracker, "I want a refund", "", "refund request")
	assert.Nil(t, snap)
	assert.Empty(t, note)
}

func TestTrackShipmentNoIDFound(t *testing.T) {
	tracker := newTestTracker(t, &fakeTrackingProvider{snap: &model.TrackingSnapshot{TrackingID: "x"}})

	snap, note := trackShipment(context.Background(), tracker, "where is my parcel?", "", "")
	assert.Nil(t, snap)
	assert.Equal(t, "tracking requested but no tracking id found in the message", note)
}

func TestTrackShipmentResolvesSnapshot(t *testing.T) {
	want := &model.TrackingSnapshot{TrackingID: "1Z999AA10123456784", Status: "in_transit"}
	tracker := newTestTracker(t, &fakeTrackingProvider{snap: want})

	snap, note := trackShipment(context.Background(), tracker, "track 1Z999AA10123456784 please", "", "")
	require.NotNil(t, snap)
	assert.Equal(t, "in_transit", snap.Status)
	assert.Empty(t, note)
}

func TestTrackShipmentPrefersExplicitID(t *testing.T) {
	provider := &fakeTrackingProvider{snap: &model.TrackingSnapshot{TrackingID: "RR123456789CN"}}
	tracker := newTestTracker(t, provider)

	snap, note := trackShipment(context.Background(), tracker, "track 1Z999AA10123456784", "RR123456789CN", "")
	require.NotNil(t, snap)
	assert.Equal(t, "RR123456789CN", snap.TrackingID)
	assert.Empty(t, note)
}

func TestTrackShipmentDegradesOnProviderError(t *testing.T) {
	tracker := newTestTracker(t, &fakeTrackingProvider{err: fmt.Errorf("carrier API down")})

	snap, note := trackShipment(context.Background(), tracker, "track 1Z999AA10123456784", "", "")
	assert.Nil(t, snap)
	assert.Equal(t, "tracking unavailable; replying without shipment data", note)
}

func TestRetrieveKnowledgeDisabledWithoutStore(t *testing.T) {
	summary, note := retrieveKnowledge(context.Background(), nil, nil, "refund policy", "", "")
	assert.Nil(t, summary)
	assert.Empty(t, note)
}

func TestRetrieveKnowledgeDegradesOnStoreError(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("index offline")}
	summarizer := knowledge.NewSummarizer(nil, model.RetrievalConfig{SnippetCap: 5})

	summary, note := retrieveKnowledge(context.Background(), store, summarizer, "refund policy", "", "")
	assert.Nil(t, summary)
	assert.Equal(t, "knowledge retrieval unavailable; replying without policy guidance", note)
}

func TestRetrieveKnowledgeEmptyCorpus(t *testing.T) {
	store := &fakeStore{}
	summarizer := knowledge.NewSummarizer(nil, model.RetrievalConfig{SnippetCap: 5})

	summary, note := retrieveKnowledge(context.Background(), store, summarizer, "refund policy", "", "")
	assert.Nil(t, summary)
	assert.Empty(t, note)
}

func TestRetrieveKnowledgeSummarizes(t *testing.T) {
	store := &fakeStore{chunks: []model.KnowledgeChunk{
		{ID: "c1", Title: "Refund window", Content: "Refunds within 30 days."},
		{ID: "c2", Title: "Damaged goods", Content: "Photo evidence required."},
	}}
	// nil chat model forces the verbatim fallback path, which is deterministic
	summarizer := knowledge.NewSummarizer(nil, model.RetrievalConfig{SnippetCap: 5})

	summary, note := retrieveKnowledge(context.Background(), store, summarizer, "refund policy", "billing", "refund")
	require.NotNil(t, summary)
	assert.Empty(t, note)
	assert.Equal(t, []string{"c1", "c2"}, summary.SourceIDs())
	assert.Contains(t, summary.Summary, "Refund window")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, model.RunEscalated, statusFor(&model.RoutingDecision{Handover: true}))
	assert.Equal(t, model.RunFallback, statusFor(&model.RoutingDecision{IsFallback: true}))
	assert.Equal(t, model.RunEscalated, statusFor(&model.RoutingDecision{Handover: true, IsFallback: true}))
	assert.Equal(t, model.RunSuccess, statusFor(&model.RoutingDecision{}))
}
