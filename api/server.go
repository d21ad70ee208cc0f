// Package api exposes the core over a small JSON HTTP surface for the
// application shell.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/fasterchat/ragcore/answer"
	"github.com/fasterchat/ragcore/core"
	"github.com/fasterchat/ragcore/extract"
	"github.com/fasterchat/ragcore/llm"
)

type Server struct {
	svc            *core.Service
	maxUploadBytes int64
	logger         *log.Logger
	handler        http.Handler
}

type errorResponse struct {
	Error string `json:"error"`
}

type ingestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

type askRequest struct {
	Question string `json:"question"`
	History  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history"`
}

type askResponse struct {
	Answer        string `json:"answer"`
	UsedDocuments bool   `json:"used_documents"`
	State         string `json:"state"`
}

func NewServer(svc *core.Service, maxUploadBytes int64, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		svc:            svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents", s.handleIngest)
	mux.HandleFunc("DELETE /documents/{id}", s.handleRemove)
	mux.HandleFunc("POST /ask", s.handleAsk)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.handler = mux

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse upload form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	fileType, err := extract.DetectFileType(header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = header.Filename
	}

	documentID := strings.TrimSpace(r.FormValue("document_id"))
	if documentID == "" {
		documentID = uuid.NewString()
	}

	if err := s.svc.Ingest(r.Context(), documentID, data, fileType, title); err != nil {
		s.logger.Printf("ingest %s: %v", documentID, err)
		writeJSON(w, http.StatusUnprocessableEntity, ingestResponse{DocumentID: documentID, Status: "failed"})
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{DocumentID: documentID, Status: "completed"})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	if documentID == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	if err := s.svc.Remove(r.Context(), documentID); err != nil {
		s.logger.Printf("remove %s: %v", documentID, err)
		writeError(w, http.StatusBadGateway, "could not remove document from the index")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	result, err := s.svc.Ask(r.Context(), req.Question, history)
	if err != nil {
		s.logger.Printf("ask: %v", err)
		var genErr *answer.GenerationError
		if errors.As(err, &genErr) {
			writeError(w, http.StatusBadGateway, "the answer service is unavailable, try again later")
			return
		}
		// Backend details stay in the log; clients get a fixed message.
		writeError(w, http.StatusBadRequest, "could not answer the question")
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:        result.Text,
		UsedDocuments: result.UsedDocuments,
		State:         result.State.String(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
