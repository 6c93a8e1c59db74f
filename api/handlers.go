package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/contract"
	phonex "github.com/tanpawarit/Valora-Realty-Lead-Qualification/agent/phone"
)

// sendTimeout bounds the detached agent run kicked off by the webhook.
const sendTimeout = 5 * time.Minute

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type conversationResponse struct {
	Phone string           `json:"phone"`
	Turns []contractx.Turn `json:"turns"`
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	phone := phonex.Normalize(r.PathValue("phone"))
	if phone == "" {
		writeError(w, http.StatusBadRequest, "invalid_phone", "phone is required")
		return
	}

	turns, err := s.conversation.FetchOrdered(r.Context(), phone)
	if err != nil {
		log.Error().Str("phone", phone).Err(err).Msg("failed to fetch conversation")
		writeError(w, http.StatusInternalServerError, "fetch_failed", "could not load conversation")
		return
	}

	// Reads double as a backstop for the history valve.
	if s.maxHistory > 0 && len(turns) > s.maxHistory {
		if err := s.conversation.SetStopped(r.Context(), phone); err != nil {
			log.Warn().Str("phone", phone).Err(err).Msg("failed to stop over-length conversation")
		}
	}

	writeJSON(w, http.StatusOK, conversationResponse{Phone: phone, Turns: turns})
}

func (s *Server) handleLead(w http.ResponseWriter, r *http.Request) {
	phone := phonex.Normalize(r.PathValue("phone"))
	if phone == "" {
		writeError(w, http.StatusBadRequest, "invalid_phone", "phone is required")
		return
	}

	report, err := s.leads.Report(r.Context(), phone)
	if errors.Is(err, contractx.ErrLeadNotFound) {
		writeError(w, http.StatusNotFound, "lead_not_found", "no lead for this phone")
		return
	}
	if err != nil {
		log.Error().Str("phone", phone).Err(err).Msg("failed to build lead report")
		writeError(w, http.StatusInternalServerError, "report_failed", "could not load lead")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type messageRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// handleMessage accepts the inbound webhook and runs the agent loop in the
// background; the webhook caller only needs the acknowledgement.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "expected a JSON body")
		return
	}
	phone := phonex.Normalize(req.Phone)
	if phone == "" {
		writeError(w, http.StatusBadRequest, "invalid_phone", "phone is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_message", "message is required")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if _, err := s.agent.Send(ctx, phone, req.Message); err != nil {
			log.Error().Str("phone", phone).Err(err).Msg("agent send failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
