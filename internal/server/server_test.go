package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/model"
)

type fakeRunner struct {
	out     *model.ReplyOutput
	err     error
	lastIn  model.TicketQuery
	invoked int
}

func (f *fakeRunner) Invoke(_ context.Context, in model.TicketQuery) (*model.ReplyOutput, error) {
	f.invoked++
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	out := *f.out
	out.TicketID = in.TicketID
	return &out, nil
}

type memoryConversations struct {
	messages  map[string][]*schema.Message
	priorTurn map[string]*model.PriorTurn
}

func newMemoryConversations() *memoryConversations {
	return &memoryConversations{
		messages:  map[string][]*schema.Message{},
		priorTurn: map[string]*model.PriorTurn{},
	}
}

func (m *memoryConversations) AddMessage(ctx context.Context, ticketID string, msg *schema.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.messages[ticketID] = append(m.messages[ticketID], msg)
	return nil
}

func (m *memoryConversations) LoadHistory(_ context.Context, ticketID string) (*model.ConversationHistory, error) {
	return &model.ConversationHistory{TicketID: ticketID, Messages: m.messages[ticketID]}, nil
}

func (m *memoryConversations) SavePriorTurn(ctx context.Context, ticketID string, turn model.PriorTurn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.priorTurn[ticketID] = &turn
	return nil
}

func (m *memoryConversations) LoadPriorTurn(_ context.Context, ticketID string) (*model.PriorTurn, error) {
	return m.priorTurn[ticketID], nil
}

func (m *memoryConversations) ClearHistory(_ context.Context, ticketID string) error {
	delete(m.messages, ticketID)
	delete(m.priorTurn, ticketID)
	return nil
}

func postReply(t *testing.T, srv *Server, ticketID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/tickets/"+ticketID+"/replies", bytes.NewReader(b))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHandleReplySuccess(t *testing.T) {
	runner := &fakeRunner{out: &model.ReplyOutput{
		Reply:        "Your parcel is out for delivery.",
		IntentID:     "track_order",
		SpecialistID: "logistics",
		Status:       model.RunSuccess,
	}}
	convs := newMemoryConversations()
	srv := New(runner, convs)

	rec := postReply(t, srv, "t-1", replyRequest{Query: "where is my parcel 1Z999AA10123456784"})

	require.Equal(t, http.StatusOK, rec.Code)
	var out model.ReplyOutput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "t-1", out.TicketID)
	assert.Equal(t, "Your parcel is out for delivery.", out.Reply)

	// user and assistant turns persisted in order
	require.Len(t, convs.messages["t-1"], 2)
	assert.Equal(t, schema.User, convs.messages["t-1"][0].Role)
	assert.Equal(t, schema.Assistant, convs.messages["t-1"][1].Role)

	// routing outcome remembered for the next turn
	require.NotNil(t, convs.priorTurn["t-1"])
	assert.Equal(t, "track_order", convs.priorTurn["t-1"].IntentID)
	assert.Equal(t, "logistics", convs.priorTurn["t-1"].SpecialistID)
}

func TestHandleReplyPassesHistoryAndPriorTurn(t *testing.T) {
	runner := &fakeRunner{out: &model.ReplyOutput{Reply: "ok", IntentID: "refund", Status: model.RunSuccess}}
	convs := newMemoryConversations()
	convs.messages["t-2"] = []*schema.Message{schema.UserMessage("hi")}
	convs.priorTurn["t-2"] = &model.PriorTurn{IntentID: "refund", SpecialistID: "billing"}
	srv := New(runner, convs)

	rec := postReply(t, srv, "t-2", replyRequest{Query: "and what about the fee?"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, runner.invoked)
	assert.Len(t, runner.lastIn.History, 1)
	require.NotNil(t, runner.lastIn.PriorTurn)
	assert.Equal(t, "refund", runner.lastIn.PriorTurn.IntentID)
}

func TestHandleReplyNoPriorTurnSavedWithoutIntent(t *testing.T) {
	runner := &fakeRunner{out: &model.ReplyOutput{Reply: "let me connect you", Status: model.RunEscalated}}
	convs := newMemoryConversations()
	srv := New(runner, convs)

	rec := postReply(t, srv, "t-3", replyRequest{Query: "asdf qwerty"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, convs.priorTurn["t-3"])
}

func TestHandleReplyEmptyQuery(t *testing.T) {
	runner := &fakeRunner{out: &model.ReplyOutput{Reply: "ok"}}
	srv := New(runner, newMemoryConversations())

	rec := postReply(t, srv, "t-4", replyRequest{Query: "   "})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, runner.invoked)
}

func TestHandleReplyPipelineErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"configuration", errx.Configuration(fmt.Errorf("empty intent catalog")), http.StatusUnprocessableEntity},
		{"classification", errx.Classification(fmt.Errorf("upstream down")), http.StatusBadGateway},
		{"generation", errx.Generation(fmt.Errorf("upstream down")), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{err: tc.err}
			convs := newMemoryConversations()
			srv := New(runner, convs)

			rec := postReply(t, srv, "t-5", replyRequest{Query: "hello"})

			assert.Equal(t, tc.status, rec.Code)
			// nothing persisted for a failed run
			assert.Empty(t, convs.messages["t-5"])
		})
	}
}

func TestPersistTurnSurvivesClientDisconnect(t *testing.T) {
	runner := &fakeRunner{out: &model.ReplyOutput{
		Reply:        "done",
		IntentID:     "track_order",
		SpecialistID: "logistics",
		Status:       model.RunSuccess,
	}}
	convs := newMemoryConversations()
	srv := New(runner, convs)

	// client goes away while the reply is generated
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, err := json.Marshal(replyRequest{Query: "where is my parcel"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/tickets/t-7/replies", bytes.NewReader(b)).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	// the completed turn is still remembered
	require.Len(t, convs.messages["t-7"], 2)
	require.NotNil(t, convs.priorTurn["t-7"])
	assert.Equal(t, "track_order", convs.priorTurn["t-7"].IntentID)
}

func TestHandleClear(t *testing.T) {
	runner := &fakeRunner{out: &model.ReplyOutput{Reply: "ok"}}
	convs := newMemoryConversations()
	convs.messages["t-6"] = []*schema.Message{schema.UserMessage("hi")}
	convs.priorTurn["t-6"] = &model.PriorTurn{IntentID: "refund"}
	srv := New(runner, convs)

	req := httptest.NewRequest(http.MethodDelete, "/v1/tickets/t-6", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, convs.messages["t-6"])
	assert.Nil(t, convs.priorTurn["t-6"])
}

func TestHealthz(t *testing.T) {
	srv := New(&fakeRunner{out: &model.ReplyOutput{}}, newMemoryConversations())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
