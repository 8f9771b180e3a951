// Package server exposes the library and reader session over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/UjjwalSharma01/reader/internal/app"
	"github.com/UjjwalSharma01/reader/internal/format"
	"github.com/UjjwalSharma01/reader/internal/ratelimit"
	"github.com/UjjwalSharma01/reader/internal/reader"
	"github.com/UjjwalSharma01/reader/internal/util"
	"github.com/UjjwalSharma01/reader/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
	// UploadLimiter throttles upload requests per client; nil disables it.
	UploadLimiter *ratelimit.FixedWindowLimiter
	// TrustProxyHeaders honors X-Forwarded-For when identifying clients.
	// Leave false unless a trusted reverse proxy fronts this service; the
	// header is client-controlled and would let callers pick their own
	// throttle key.
	TrustProxyHeaders bool
}

// Server exposes HTTP endpoints for the library service.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	uploadLimiter  *ratelimit.FixedWindowLimiter
	trustProxy     bool
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 100 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		uploadLimiter:  cfg.UploadLimiter,
		trustProxy:     cfg.TrustProxyHeaders,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.HandleFunc("/books", s.handleBooks)
	s.mux.HandleFunc("/books/", s.handleBookByID)

	s.mux.HandleFunc("/reader", s.handleReaderView)
	s.mux.HandleFunc("/reader/goto", s.handleGoTo)
	s.mux.HandleFunc("/reader/next", s.sessionMove(func() (reader.View, error) { return s.app.Sessions().Next() }))
	s.mux.HandleFunc("/reader/prev", s.sessionMove(func() (reader.View, error) { return s.app.Sessions().Prev() }))
	s.mux.HandleFunc("/reader/bookmarks", s.handleBookmarks)
	s.mux.HandleFunc("/reader/bookmarks/", s.handleBookmarkByID)
	s.mux.HandleFunc("/reader/close", s.handleCloseSession)

	s.mux.HandleFunc("/settings", s.handleSettings)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBooks(w, r)
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.app.ListBooks(r.URL.Query().Get("q"), r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": books,
		"count": len(books),
	})
}

// uploadResult is the per-file outcome of a multi-file upload.
type uploadResult struct {
	FileName string       `json:"fileName"`
	Book     *domain.Book `json:"book,omitempty"`
	Error    string       `json:"error,omitempty"`
	Code     string       `json:"code,omitempty"`
}

// handleUpload ingests each file of the multipart form independently. One
// rejected file never blocks the others; the response reports every outcome.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.uploadLimiter.Allow(s.clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, "too many uploads")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "at least one file is required (field: files)")
		return
	}

	results := make([]uploadResult, 0, len(files))
	created := 0
	for _, header := range files {
		result := uploadResult{FileName: header.Filename}
		f, err := header.Open()
		if err != nil {
			result.Error = "failed to open uploaded file"
			result.Code = "UPLOAD_READ_FAILURE"
			results = append(results, result)
			continue
		}
		book, err := s.app.Ingest(r.Context(), header.Filename, header.Header.Get("Content-Type"), f)
		f.Close()
		if err != nil {
			result.Error = err.Error()
			result.Code = ingestErrorCode(err)
		} else {
			view := book.WithoutData()
			result.Book = &view
			created++
		}
		results = append(results, result)
	}

	response := map[string]any{
		"results": results,
		"created": created,
	}
	status := http.StatusCreated
	if created == 0 {
		status = http.StatusUnprocessableEntity
		response["allowedExtensions"] = format.AllowedExtensions()
	}
	writeJSON(w, status, response)
}

func ingestErrorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return "UPLOAD_UNSUPPORTED_FORMAT"
	case errors.Is(err, domain.ErrReadFailure):
		return "UPLOAD_READ_FAILURE"
	default:
		return "SYSTEM_INTERNAL_ERROR"
	}
}

// /books/{id} and /books/{id}/open
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/books/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}
	if len(parts) == 2 {
		if parts[1] == "open" && r.Method == http.MethodPost {
			s.handleOpenSession(w, r, id)
			return
		}
		notFound(w, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		book, ok, err := s.app.GetBook(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !ok {
			notFound(w, "book not found")
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(r.Context(), id); err != nil {
			if errors.Is(err, domain.ErrBookNotFound) {
				notFound(w, "book not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request, id string) {
	view, err := s.app.Sessions().Open(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBookDataNotFound):
			writeError(w, http.StatusNotFound, "book data not found")
		case errors.Is(err, domain.ErrInvalidContainer):
			writeError(w, http.StatusUnprocessableEntity, "invalid document container")
		case errors.Is(err, domain.ErrDecodeFailure):
			writeError(w, http.StatusUnprocessableEntity, "stored payload corrupted")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReaderView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	view, err := s.app.Sessions().View()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Page int `json:"page"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	view, err := s.app.Sessions().GoTo(req.Page)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// sessionMove builds the next/prev handlers; both differ only in the cursor
// call.
func (s *Server) sessionMove(move func() (reader.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		view, err := move()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) handleBookmarks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if r.Body != nil {
		// Body is optional; a bare POST bookmarks the current page.
		_ = json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)
	}
	view, err := s.app.Sessions().AddBookmark(req.Note)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleBookmarkByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	bookmarkID := strings.TrimPrefix(r.URL.Path, "/reader/bookmarks/")
	if bookmarkID == "" || strings.Contains(bookmarkID, "/") {
		notFound(w, "not found")
		return
	}
	view, err := s.app.Sessions().RemoveBookmark(bookmarkID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.Sessions().Close(r.Context()); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.app.Settings()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var settings domain.ReaderSettings
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&settings); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		saved, err := s.app.SaveSettings(settings)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNoSession) {
		writeError(w, http.StatusConflict, "no open session")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

// clientKey identifies the client for throttling. The forwarded address is
// consulted only when the deployment declared its proxy trusted; otherwise
// the connection's remote host is authoritative.
func (s *Server) clientKey(r *http.Request) string {
	if s.trustProxy {
		if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
			if i := strings.IndexByte(fwd, ','); i >= 0 {
				fwd = fwd[:i]
			}
			return strings.TrimSpace(fwd)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "book not found":
		return "BOOK_NOT_FOUND"
	case message == "book data not found":
		return "BOOK_DATA_NOT_FOUND"
	case message == "invalid document container":
		return "BOOK_INVALID_CONTAINER"
	case message == "stored payload corrupted":
		return "BOOK_DECODE_FAILURE"
	case message == "no open session":
		return "READER_NO_SESSION"
	case message == "invalid form data":
		return "UPLOAD_INVALID_FORM"
	case strings.Contains(message, "file is required"):
		return "UPLOAD_FILE_REQUIRED"
	case message == "invalid json body":
		return "REQUEST_INVALID_BODY"
	case message == "too many uploads":
		return "UPLOAD_RATE_LIMITED"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_ERROR"
	case http.StatusNotFound:
		return "BOOK_NOT_FOUND"
	case http.StatusConflict:
		return "READER_NO_SESSION"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
