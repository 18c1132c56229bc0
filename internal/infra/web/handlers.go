package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"telegram-storefront-bot/internal/application"
	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
	"telegram-storefront-bot/internal/infra/logging"
	"telegram-storefront-bot/internal/infra/worker"
	"telegram-storefront-bot/internal/usecase"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

type statsResponse struct {
	Recipients int `json:"recipients"`
	ActiveWeek int `json:"active_week"`
	Recallable int `json:"recallable"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	res, err := s.facade.Dispatch(r.Context(), application.StatsRequest{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	st := res.Stats
	writeJSON(w, http.StatusOK, statsResponse{Recipients: st.Recipients, ActiveWeek: st.ActiveWeek, Recallable: st.Recallable})
}

type recipientView struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

type recipientsResponse struct {
	Data   []recipientView `json:"data"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// handleRecipients pages through recipients in first-seen order. It accepts
// 'offset' and 'limit' query parameters.
func (s *Server) handleRecipients(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	if s.facade.UserUC == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	all, err := s.facade.UserUC.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recipients")
		return
	}

	page := []*model.Recipient{}
	if offset < len(all) {
		page = all[offset:min(offset+limit, len(all))]
	}
	resp := recipientsResponse{Data: make([]recipientView, 0, len(page)), Total: len(all), Limit: limit, Offset: offset}
	for _, rc := range page {
		resp.Data = append(resp.Data, recipientView{
			UserID:    rc.TelegramID,
			Username:  rc.Username,
			FirstName: rc.FirstName,
			LastName:  rc.LastName,
			FirstSeen: rc.FirstSeen,
			LastSeen:  rc.LastSeen,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+usecase.ExportFileName(model.FormatCSV, time.Now())+`"`)
	if _, err := s.facade.Dispatch(r.Context(), application.ExportRequest{Format: model.FormatCSV, W: w}); err != nil {
		// Headers may already be out; the client sees a truncated body.
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("csv export failed")
	}
}

type broadcastRequest struct {
	AdminChatID int64  `json:"admin_chat_id"`
	Text        string `json:"text"`
}

type recallRequest struct {
	AdminChatID int64 `json:"admin_chat_id"`
}

type queuedResponse struct {
	Status string `json:"status"`
}

// handleBroadcast queues a text broadcast. Progress and the summary go to the
// admin chat, which must belong to a configured admin.
func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.adminChat(w, req.AdminChatID) {
		return
	}
	payload := model.TextPayload(strings.TrimSpace(req.Text))
	if !payload.Valid() {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if uc := s.facade.UserUC; uc != nil {
		n, err := uc.Count(r.Context())
		if err != nil {
			l := logging.With(r.Context(), s.log)
			l.Error().Err(err).Msg("count recipients failed")
			writeError(w, http.StatusInternalServerError, "could not count recipients")
			return
		}
		if n == 0 {
			writeError(w, http.StatusConflict, domain.ErrNoRecipients.Error())
			return
		}
	}
	s.enqueue(w, r, application.BroadcastRequest{AdminChatID: req.AdminChatID, Payload: payload})
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	var req recallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.adminChat(w, req.AdminChatID) {
		return
	}
	if uc := s.facade.BroadcastUC; uc != nil && uc.Recallable() == 0 {
		writeError(w, http.StatusConflict, domain.ErrNothingToRecall.Error())
		return
	}
	s.enqueue(w, r, application.RecallRequest{AdminChatID: req.AdminChatID})
}

func (s *Server) adminChat(w http.ResponseWriter, chatID int64) bool {
	if chatID <= 0 {
		writeError(w, http.StatusBadRequest, "admin_chat_id is required")
		return false
	}
	if len(s.bot.AdminIDs) == 0 || !s.bot.IsAdmin(chatID) {
		writeError(w, http.StatusForbidden, "admin_chat_id is not an admin")
		return false
	}
	return true
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, req application.AdminRequest) {
	l := logging.With(r.Context(), s.log).With().Str("request", req.Name()).Logger()
	err := s.facade.Enqueue(req, func(_ application.AdminResult, err error) {
		if err != nil {
			l.Warn().Err(err).Msg("queued admin request ended with an error")
		}
	})
	switch {
	case errors.Is(err, domain.ErrBroadcastInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, worker.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "job queue is full")
		return
	case err != nil:
		l.Error().Err(err).Msg("enqueue failed")
		writeError(w, http.StatusServiceUnavailable, "job not accepted")
		return
	}
	writeJSON(w, http.StatusAccepted, queuedResponse{Status: "queued"})
}
