// Package server exposes the reply engine over HTTP. The serving surface owns
// conversation persistence: it loads history and prior-turn memory before a
// run and writes both back after, so the engine stays a pure function of its
// inputs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	errx "github.com/parceldesk/core/internal/core/error"
	"github.com/parceldesk/core/internal/engine/graph"
	"github.com/parceldesk/core/internal/engine/model"
	logx "github.com/parceldesk/core/pkg/logger"
)

type Server struct {
	runner        graph.Runner
	conversations model.ConversationRepository
	mux           *chi.Mux
}

func New(runner graph.Runner, conversations model.ConversationRepository) *Server {
	s := &Server{
		runner:        runner,
		conversations: conversations,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1/tickets/{ticketID}", func(r chi.Router) {
		r.Post("/replies", s.handleReply)
		r.Delete("/", s.handleClear)
	})

	s.mux = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type replyRequest struct {
	Query      string `json:"query"`
	TrackingID string `json:"tracking_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	ctx := r.Context()

	history, err := s.conversations.LoadHistory(ctx, ticketID)
	if err != nil {
		logx.TicketError(ticketID).Err(err).Msg("failed to load conversation history")
		writeJSON(w, errx.StatusFor(err), errorResponse{Error: "failed to load conversation"})
		return
	}
	priorTurn, err := s.conversations.LoadPriorTurn(ctx, ticketID)
	if err != nil {
		logx.TicketError(ticketID).Err(err).Msg("failed to load prior turn")
		writeJSON(w, errx.StatusFor(err), errorResponse{Error: "failed to load conversation"})
		return
	}

	out, err := s.runner.Invoke(ctx, model.TicketQuery{
		TicketID:   ticketID,
		Query:      req.Query,
		History:    history.Messages,
		PriorTurn:  priorTurn,
		TrackingID: req.TrackingID,
	})
	if err != nil {
		logx.TicketError(ticketID).Err(err).Msg("reply pipeline failed")
		writeJSON(w, errx.StatusFor(err), errorResponse{Error: safeMessage(err)})
		return
	}

	s.persistTurn(r, ticketID, req.Query, out)

	writeJSON(w, http.StatusOK, out)
}

// persistTurn writes the completed turn back to the conversation store.
// Persistence failures are logged and swallowed: the reply was already
// generated and must reach the customer. The write-back runs on a context
// detached from the request so a client disconnect after generation cannot
// drop the turn from conversational memory.
func (s *Server) persistTurn(r *http.Request, ticketID, query string, out *model.ReplyOutput) {
	ctx := context.WithoutCancel(r.Context())

	if err := s.conversations.AddMessage(ctx, ticketID, schema.UserMessage(query)); err != nil {
		logx.TicketError(ticketID).Err(err).Msg("failed to persist user message")
	}
	if err := s.conversations.AddMessage(ctx, ticketID, schema.AssistantMessage(out.Reply, nil)); err != nil {
		logx.TicketError(ticketID).Err(err).Msg("failed to persist assistant message")
	}

	if out.IntentID != "" {
		turn := model.PriorTurn{IntentID: out.IntentID, SpecialistID: out.SpecialistID}
		if err := s.conversations.SavePriorTurn(ctx, ticketID, turn); err != nil {
			logx.TicketError(ticketID).Err(err).Msg("failed to persist prior turn")
		}
	}
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketID")
	if err := s.conversations.ClearHistory(r.Context(), ticketID); err != nil {
		logx.TicketError(ticketID).Err(err).Msg("failed to clear conversation")
		writeJSON(w, errx.StatusFor(err), errorResponse{Error: "failed to clear conversation"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// safeMessage maps pipeline errors to stable user-facing strings without
// leaking provider internals.
func safeMessage(err error) string {
	switch {
	case errors.Is(err, errx.ErrConfiguration):
		return "engine is not configured for this tenant"
	case errors.Is(err, errx.ErrClassificationUnavailable):
		return "classification service unavailable"
	case errors.Is(err, errx.ErrGenerationFailure):
		return "reply generation failed"
	default:
		return errx.SystemErrorMessage
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}
