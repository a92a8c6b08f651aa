package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/internal/query"
	"github.com/hyperjump/taxqa/internal/store"
)

// StatusResponse describes the loaded corpus and the active configuration.
type StatusResponse struct {
	Chunks         int    `json:"chunks"`
	Backend        string `json:"backend"`
	Strategy       string `json:"strategy"`
	TopK           int    `json:"top_k"`
	EmbeddingModel string `json:"embedding_model"`
	ChunkSize      int    `json:"chunk_size"`
	DiskUsageBytes *int64 `json:"disk_usage_bytes,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("chat request", zap.Int("message_len", len(req.Message)))
	resp, err := s.answerer.Answer(r.Context(), req.Message)
	if errors.Is(err, query.ErrEmptyMessage) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		// The engine has already logged the cause.
		s.respondError(w, http.StatusInternalServerError, models.GenericErrorMessage)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, models.GenericErrorMessage)
		return
	}
	resp := StatusResponse{
		Chunks:         count,
		Backend:        s.config.Storage.Backend,
		Strategy:       s.config.Retrieval.Strategy,
		TopK:           s.config.Retrieval.TopK,
		EmbeddingModel: s.config.Embedding.Provider + "/" + s.config.Embedding.Model,
		ChunkSize:      s.config.Ingest.ChunkSize,
	}
	if paths := store.DataPaths(s.config.Storage); len(paths) > 0 {
		if n, err := store.DiskUsageBytes(paths...); err == nil {
			resp.DiskUsageBytes = &n
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, models.ErrorResponse{Error: message})
}
