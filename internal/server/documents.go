package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/54b3r/paperqa-go/internal/agent"
	"github.com/54b3r/paperqa-go/internal/loader"
	"github.com/54b3r/paperqa-go/internal/logging"
)

// handleLoad handles POST /api/documents. The body is either a multipart
// form with a "file" part or JSON {"source": "..."}.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.OperationTimeout)
	defer cancel()
	start := time.Now()

	source, name, cleanup, err := s.resolveUpload(w, r)
	if err != nil {
		s.metrics.observe("load", outcomeClientError, start)
		writeError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	sess, err := s.agent.LoadDocument(ctx, source)
	if err != nil {
		s.metrics.observe("load", fail(ctx, w, "load", err), start)
		return
	}
	s.sessions.add(sess, name)
	s.metrics.observe("load", outcomeOK, start)

	logging.FromContext(ctx).Info("server: document loaded",
		slog.String("session", sess.ID()),
		slog.String("name", name),
		slog.Int("passages", sess.PassageCount()),
	)
	writeJSON(ctx, w, http.StatusCreated, toDocumentResponse(sess, name))
}

// resolveUpload returns the loader source for the request. Multipart
// uploads are spooled to a temp file that cleanup removes.
func (s *Server) resolveUpload(w http.ResponseWriter, r *http.Request) (source, name string, cleanup func(), err error) {
	cleanup = func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return s.spoolUpload(w, r)
	}

	var req loadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return "", "", cleanup, errors.New("invalid request body")
	}
	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		return "", "", cleanup, errors.New("source is required")
	}
	ref, err := loader.Resolve(req.Source)
	if err != nil {
		return "", "", cleanup, err
	}
	if ref.Kind == loader.KindFile && !s.cfg.AllowLocalPaths {
		return "", "", cleanup, errors.New("local paths are not accepted; upload the file or give a URL")
	}
	return req.Source, req.Source, cleanup, nil
}

// spoolUpload copies the "file" part to a temp file that keeps the
// original extension so the loader picks the right extractor.
func (s *Server) spoolUpload(w http.ResponseWriter, r *http.Request) (string, string, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", "", noop, fmt.Errorf("upload exceeds %d bytes", s.cfg.MaxUploadBytes)
		}
		return "", "", noop, errors.New(`multipart form must include a "file" part`)
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	tmp, err := os.CreateTemp("", "paperqa-upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", "", noop, fmt.Errorf("spool upload: %w", err)
	}
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", "", noop, fmt.Errorf("spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", "", noop, fmt.Errorf("spool upload: %w", err)
	}
	return tmp.Name(), name, cleanup, nil
}

// handleGetDocument handles GET /api/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	e, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, toDocumentResponse(e.session, e.name))
}

// handleDeleteDocument handles DELETE /api/documents/{id}.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.remove(chi.URLParam(r, "id")) {
		writeError(r.Context(), w, http.StatusNotFound, "document not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAsk handles POST /api/documents/{id}/ask.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.OperationTimeout)
	defer cancel()
	start := time.Now()

	e, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		s.metrics.observe("ask", outcomeClientError, start)
		writeError(ctx, w, http.StatusNotFound, "document not found")
		return
	}

	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.metrics.observe("ask", outcomeClientError, start)
		writeError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.metrics.observe("ask", outcomeClientError, start)
		writeError(ctx, w, http.StatusBadRequest, "query is required")
		return
	}

	res, err := s.agent.AnswerQuery(ctx, e.session, req.Query)
	if err != nil {
		s.metrics.observe("ask", fail(ctx, w, "ask", err), start)
		return
	}
	if s.cfg.RerankEnabled && !res.Grounding.Reranked && res.Grounding.Len() > 0 {
		s.metrics.rerankFallbacksTotal.Inc()
	}
	s.metrics.observe("ask", outcomeOK, start)

	resp := askResponse{Answer: res.Answer, Reranked: res.Grounding.Reranked, Sources: []sourceRef{}}
	for _, p := range res.Grounding.Passages {
		resp.Sources = append(resp.Sources, sourceRef{Index: p.Index, Score: p.Score, Text: p.Text})
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// handleSummary handles POST /api/documents/{id}/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.OperationTimeout)
	defer cancel()
	start := time.Now()

	e, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		s.metrics.observe("summary", outcomeClientError, start)
		writeError(ctx, w, http.StatusNotFound, "document not found")
		return
	}

	summary, err := s.agent.Summarize(ctx, e.session)
	if err != nil {
		s.metrics.observe("summary", fail(ctx, w, "summary", err), start)
		return
	}
	s.metrics.observe("summary", outcomeOK, start)
	writeJSON(ctx, w, http.StatusOK, summaryResponse{Summary: summary})
}

func toDocumentResponse(s *agent.DocumentSession, name string) documentResponse {
	return documentResponse{
		ID:       s.ID(),
		Name:     name,
		Title:    s.Title(),
		Passages: s.PassageCount(),
		LoadedAt: s.LoadedAt(),
	}
}
