package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/usecase"
	"github.com/secmon-lab/recall/pkg/utils/errutil"
	"github.com/secmon-lab/recall/pkg/utils/safe"
)

type chatRequest struct {
	Prompt string `json:"prompt"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// chatHandler runs one turn on the session named by the session header. A
// new session is opened when the header is absent.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes)).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		errutil.HandleHTTP(ctx, w, goerr.New("prompt is required"), http.StatusBadRequest)
		return
	}

	sessionID := r.Header.Get(HeaderSessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	user := model.UserID(r.Header.Get(HeaderUserID))
	if user == "" {
		user = s.defaultUser
	}

	conv, err := s.sessions.Get(sessionID, user)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecase.ErrIdentityMismatch) {
			status = http.StatusConflict
		}
		errutil.HandleHTTP(ctx, w, err, status)
		return
	}

	reply, err := conv.Send(ctx, req.Prompt)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, usecase.ErrEmptyTurn):
			status = http.StatusBadRequest
		case errors.Is(err, usecase.ErrGenerationFailed):
			status = http.StatusBadGateway
		}
		w.Header().Set(HeaderSessionID, sessionID)
		errutil.HandleHTTP(ctx, w, err, status)
		return
	}

	w.Header().Set(HeaderSessionID, sessionID)
	safe.WriteJSON(ctx, w, http.StatusOK, chatResponse{
		Response:  reply.Text,
		SessionID: sessionID,
	})
}
