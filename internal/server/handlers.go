package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/groundchat/internal/chat"
	"github.com/hyperjump/groundchat/internal/models"
	"github.com/hyperjump/groundchat/internal/storage"
)

const (
	defaultTurnLimit = 50
	maxTurnLimit     = 500
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, string(chat.KindInvalidRequest), "invalid request body")
		return
	}
	s.logger.Debug("chat request",
		zap.String("thread_id", req.ThreadID),
		zap.String("mode", req.Mode),
		zap.String("model_tier", req.ModelTier))

	sse := newSSEWriter(w)
	reply, err := s.chat.Handle(r.Context(), &req, sse)
	if err != nil {
		var cerr *chat.Error
		if !errors.As(err, &cerr) {
			cerr = &chat.Error{Kind: chat.KindInternal, Status: http.StatusInternalServerError, Message: err.Error()}
		}
		if sse.Started() {
			_ = sse.WriteEvent("error", map[string]string{"error": cerr.Message, "kind": string(cerr.Kind)})
			return
		}
		s.respondError(w, cerr.Status, string(cerr.Kind), cerr.Message)
		return
	}

	if reply.Result.Outcome == chat.OutcomeCancelled {
		return
	}
	_ = sse.WriteEvent("done", map[string]any{
		"thread_id": reply.ThreadID,
		"outcome":   reply.Result.Outcome,
		"strategy":  reply.Strategy.String(),
		"grounded":  reply.Grounded,
		"persisted": reply.Result.Persisted,
	})
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.respondError(w, http.StatusBadRequest, string(chat.KindInvalidRequest), "user_id is required")
		return
	}
	threads, err := s.history.Threads(r.Context(), userID)
	if err != nil {
		s.logger.Error("list threads failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, string(chat.KindInternal), err.Error())
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	key := models.ThreadKey{ThreadID: chi.URLParam(r, "id"), UserID: r.URL.Query().Get("user_id")}
	if key.UserID == "" {
		s.respondError(w, http.StatusBadRequest, string(chat.KindInvalidRequest), "user_id is required")
		return
	}
	limit := defaultTurnLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, string(chat.KindInvalidRequest), "limit must be a positive integer")
			return
		}
		limit = min(n, maxTurnLimit)
	}
	turns := s.history.LoadWindow(r.Context(), key, limit)
	s.respondJSON(w, http.StatusOK, map[string]any{"thread_id": key.ThreadID, "turns": turns})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadCount, err := s.stats.CountThreads(ctx)
	if err != nil {
		s.logger.Error("status: count threads failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, string(chat.KindInternal), err.Error())
		return
	}
	resp := map[string]interface{}{
		"threads": threadCount,
	}
	if s.docs != nil {
		if n, err := s.docs.Count(); err == nil {
			resp["documents"] = n
		}
	}

	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"llm_provider":      s.config.LLM.Provider,
			"default_model":     s.config.LLM.DefaultModel,
			"fast_model":        s.config.LLM.FastModel,
			"retrieval_backend": s.config.Retrieval.Backend,
			"web_searcher":      s.config.Web.Searcher,
			"web_fetcher":       s.config.Web.Fetcher,
			"database_path":     s.config.Storage.DatabasePath,
		}
		diskBytes, err := storage.DiskUsageBytes(
			s.config.Storage.DatabasePath,
			s.config.Storage.KeywordIndexPath,
			s.config.Storage.VectorIndexPath,
		)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, kind, message string) {
	s.respondJSON(w, status, map[string]string{"error": message, "kind": kind})
}
