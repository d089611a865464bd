// ABOUTME: HTTP handlers for session creation, token-bound pages, and event ingestion
// ABOUTME: Maps pipeline errors onto the HTTP status surface consumed by frontends

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/lanternlink/lantern/internal/ingest"
	"github.com/lanternlink/lantern/internal/media"
	"github.com/lanternlink/lantern/internal/pages"
	"github.com/lanternlink/lantern/internal/session"
)

// maxBodyBytes bounds inbound request bodies. Sized for a full-size image
// payload in base64 plus JSON framing.
const maxBodyBytes = 8 << 20

// CreateSessionRequest is the JSON request body for POST /create.
type CreateSessionRequest struct {
	Label  string `json:"label"`
	ChatID string `json:"chat_id"`
}

// CreateWrappedRequest is the JSON request body for POST /wrap_create.
type CreateWrappedRequest struct {
	TargetURL string `json:"target_url"`
	Label     string `json:"label"`
	ChatID    string `json:"chat_id"`
}

// CreateSessionResponse is the JSON response for both creation endpoints.
type CreateSessionResponse struct {
	Token string `json:"token"`
	Link  string `json:"link"`
}

// UploadInfoRequest is the JSON request body for POST /upload_info/{token}.
type UploadInfoRequest struct {
	Battery *float64        `json:"battery"`
	Coords  *session.Coords `json:"coords"`
}

// UploadInfoResponse is the JSON response for POST /upload_info/{token}.
type UploadInfoResponse struct {
	Status string        `json:"status"`
	Stored session.Visit `json:"stored"`
}

// UploadImageRequest is the JSON request body for POST /upload_image/{token}.
type UploadImageRequest struct {
	ImageB64 string `json:"image_b64"`
}

// UploadImageResponse is the JSON response for POST /upload_image/{token}.
type UploadImageResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
}

// StoreHealthResponse is the JSON response for GET /health/store.
type StoreHealthResponse struct {
	Status          string `json:"status"`
	Sessions        int    `json:"sessions"`
	PersistFailures int64  `json:"persist_failures"`
	LastError       string `json:"last_error,omitempty"`
}

// errorResponse is the JSON error envelope used by all endpoints.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "lantern: consented device-session server. Use the bot or the API to create sessions.")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleStoreHealth surfaces the persistence health signal: snapshot writes
// do not fail ingesting requests, so degradation is reported here instead.
func (s *Server) handleStoreHealth(w http.ResponseWriter, r *http.Request) {
	failures, lastErr := s.store.Health()

	resp := StoreHealthResponse{
		Status:          "ok",
		Sessions:        s.store.Len(),
		PersistFailures: failures,
	}
	status := http.StatusOK
	if lastErr != nil {
		resp.Status = "degraded"
		resp.LastError = lastErr.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	rec, err := s.store.Create(req.Label, req.ChatID)
	if err != nil {
		s.internalError(w, "creating session", err)
		return
	}

	link := s.baseURL + "/s/" + rec.Token
	s.announce(rec.ChatID, fmt.Sprintf(
		"Session created.\nToken: %s\nOpen: %s\nKeep permissions allowed while the page is open.",
		rec.Token, link))

	writeJSON(w, http.StatusOK, CreateSessionResponse{Token: rec.Token, Link: link})
}

func (s *Server) handleWrapCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateWrappedRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	rec, err := s.store.CreateWrapped(req.TargetURL, req.Label, req.ChatID)
	if errors.Is(err, session.ErrInvalidTargetURL) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_url"})
		return
	}
	if err != nil {
		s.internalError(w, "creating wrap session", err)
		return
	}

	link := s.baseURL + "/w/" + rec.Token
	s.announce(rec.ChatID, fmt.Sprintf("Wrap session created for %s\nOpen: %s", rec.TargetURL, link))

	writeJSON(w, http.StatusOK, CreateSessionResponse{Token: rec.Token, Link: link})
}

func (s *Server) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	tok := r.PathValue("token")
	if _, err := s.store.Get(tok); err != nil {
		http.Error(w, "Invalid token", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.RenderSession(w, pages.SessionData{Token: tok}); err != nil {
		s.logger.Error("rendering session page", "error", err)
	}
}

func (s *Server) handleWrapperPage(w http.ResponseWriter, r *http.Request) {
	tok := r.PathValue("token")
	rec, err := s.store.Get(tok)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.RenderWrapper(w, pages.WrapperData{Token: tok, TargetURL: rec.TargetURL}); err != nil {
		s.logger.Error("rendering wrapper page", "error", err)
	}
}

func (s *Server) handleUploadInfo(w http.ResponseWriter, r *http.Request) {
	tok := r.PathValue("token")

	var req UploadInfoRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	visit, err := s.ingestor.IngestInfo(r.Context(), tok,
		ingest.InfoPayload{Battery: req.Battery, Coords: req.Coords},
		r.RemoteAddr, r.Header.Get("X-Forwarded-For"))
	if errors.Is(err, session.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown_token"})
		return
	}
	if err != nil {
		s.internalError(w, "ingesting info", err)
		return
	}

	writeJSON(w, http.StatusOK, UploadInfoResponse{Status: "ok", Stored: visit})
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	tok := r.PathValue("token")

	var req UploadImageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	ref, err := s.ingestor.IngestImage(r.Context(), tok, req.ImageB64)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown_token"})
		return
	case errors.Is(err, media.ErrPayloadTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "image_too_large"})
		return
	case errors.Is(err, media.ErrBadPayload):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_payload"})
		return
	case err != nil:
		s.internalError(w, "ingesting image", err)
		return
	}

	writeJSON(w, http.StatusOK, UploadImageResponse{Status: "saved", Filename: ref.Name})
}

func (s *Server) handleSessionData(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.PathValue("token"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown_token"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleServeUpload serves stored image blobs. Like the reference system,
// this endpoint is unauthenticated: filenames embed the 128-bit session
// token, which is the only capability guarding them.
func (s *Server) handleServeUpload(w http.ResponseWriter, r *http.Request) {
	path, err := s.media.Path(r.PathValue("filename"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

// announce fires a best-effort creation notice without blocking the request.
func (s *Server) announce(chatID, text string) {
	if chatID == "" || !s.dispatcher.Enabled() {
		return
	}
	go s.dispatcher.SendText(chatID, text)
}

// decodeBody parses a JSON request body into dst, enforcing the size bound
// and rejecting malformed input with 400. Returns false if a response was
// already written.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request_too_large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request"})
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal_error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
