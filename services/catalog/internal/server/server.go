package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gamerneson12-art/learnhub-portal/internal/ratelimit"
	"github.com/gamerneson12-art/learnhub-portal/internal/servicetoken"
	"github.com/gamerneson12-art/learnhub-portal/internal/usertoken"
	"github.com/gamerneson12-art/learnhub-portal/internal/util"
	"github.com/gamerneson12-art/learnhub-portal/pkg/domain"
	"github.com/gamerneson12-art/learnhub-portal/pkg/store"
	"github.com/gamerneson12-art/learnhub-portal/services/catalog/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                         *app.App
	TokenVerifier               *usertoken.Verifier
	RateLimiter                 *ratelimit.FixedWindowLimiter
	InternalJWTKeyID            string
	InternalJWTPublicKeyPath    string
	InternalJWTVerifyPublicKeys map[string]string
	MaxUploadBytes              int64
}

// Server exposes HTTP endpoints for the catalog service.
type Server struct {
	app            *app.App
	tokenVerifier  *usertoken.Verifier
	internalVerify *servicetoken.Verifier
	limiter        *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		limiter:        cfg.RateLimiter,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	if strings.TrimSpace(cfg.InternalJWTPublicKeyPath) != "" || len(cfg.InternalJWTVerifyPublicKeys) > 0 {
		verifier, err := servicetoken.NewVerifierWithOptions(servicetoken.VerifierOptions{
			PublicKeyPath:      strings.TrimSpace(cfg.InternalJWTPublicKeyPath),
			VerifyPublicKeyMap: cfg.InternalJWTVerifyPublicKeys,
			DefaultKeyID:       cfg.InternalJWTKeyID,
			Audience:           "catalog",
			AllowedIssuers:     []string{"auth-service", "delivery-service"},
			Leeway:             servicetoken.DefaultLeeway,
		})
		if err != nil {
			return nil, err
		}
		s.internalVerify = verifier
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("catalog", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// catalog reads are public
	s.mux.HandleFunc("/categories", s.handleCategories)
	s.mux.HandleFunc("/categories/", s.handleCategoryBySlug)
	s.mux.Handle("/pdfs", http.HandlerFunc(s.handlePDFs))
	s.mux.Handle("/pdfs/", http.HandlerFunc(s.handlePDFByID))

	// signed-in surface
	s.mux.Handle("/me/downloads", s.withUser(s.handleMyDownloads))
	s.mux.Handle("/me/profile", s.withUser(s.handleMyProfile))
	s.mux.Handle("/me/username", s.withUser(s.handleConfirmUsername))
	s.mux.Handle("/username/check", s.withUser(s.handleUsernameCheck))

	// service-to-service surface
	s.mux.Handle("/internal/pdfs/", s.withInternal(s.handleInternalPDF))
	s.mux.Handle("/internal/users/", s.withInternal(s.handleInternalRole))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, userID)
	})
}

func (s *Server) withAdmin(next userHandler) http.Handler {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
		isAdmin, err := s.app.IsAdmin(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !isAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, userID)
	})
}

func (s *Server) authenticate(r *http.Request) (string, bool) {
	if s.tokenVerifier == nil {
		return "", false
	}
	token, ok := usertoken.BearerToken(r)
	if !ok {
		return "", false
	}
	userID, err := s.tokenVerifier.VerifySubject(token)
	if err != nil {
		return "", false
	}
	return userID, true
}

func (s *Server) withInternal(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.internalVerify == nil {
			writeError(w, http.StatusInternalServerError, "internal auth not configured")
			return
		}
		token, ok := servicetoken.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if _, err := s.internalVerify.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

// /internal/pdfs/{id}/download-count
func (s *Server) handleInternalPDF(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/internal/pdfs/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "download-count" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.app.IncrementDownloadCount(r.Context(), parts[0]); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "incremented"})
}

// /internal/users/{id}/roles/{role}
func (s *Server) handleInternalRole(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/internal/users/")
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] != "roles" || parts[2] == "" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	role, ok := parseRole(parts[2])
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}
	hasRole, err := s.app.HasRole(r.Context(), parts[0], role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"hasRole": hasRole})
}

func parseRole(raw string) (domain.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(domain.RoleUser):
		return domain.RoleUser, true
	case string(domain.RoleAdmin):
		return domain.RoleAdmin, true
	default:
		return "", false
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	categories, err := s.app.ListCategories(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": categories,
		"count": len(categories),
	})
}

func (s *Server) handleCategoryBySlug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	slug := strings.TrimPrefix(r.URL.Path, "/categories/")
	if slug == "" || strings.Contains(slug, "/") {
		notFound(w, "not found")
		return
	}
	category, err := s.app.GetCategoryBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			notFound(w, "category not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *Server) handlePDFs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListPDFs(w, r)
	case http.MethodPost:
		s.withAdmin(s.handleCreatePDF).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListPDFs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := store.ListPDFOptions{
		CategorySlug: strings.TrimSpace(q.Get("category")),
		Search:       strings.TrimSpace(q.Get("search")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		opts.Limit = limit
	}
	pdfs, err := s.app.ListPDFs(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": pdfs,
		"count": len(pdfs),
	})
}

// /pdfs/{id} or /pdfs/{id}/download
func (s *Server) handlePDFByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/pdfs/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}

	if len(parts) == 2 && parts[1] == "download" {
		s.withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
			s.handleTrackDownload(w, r, userID, id)
		}).ServeHTTP(w, r)
		return
	}
	if len(parts) == 2 {
		notFound(w, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetPDF(w, r, id)
	case http.MethodPut:
		s.withAdmin(func(w http.ResponseWriter, r *http.Request, _ string) {
			s.handleUpdatePDF(w, r, id)
		}).ServeHTTP(w, r)
	case http.MethodDelete:
		s.withAdmin(func(w http.ResponseWriter, r *http.Request, _ string) {
			s.handleDeletePDF(w, r, id)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGetPDF(w http.ResponseWriter, r *http.Request, id string) {
	pdf, err := s.app.GetPDF(r.Context(), id)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			notFound(w, "pdf not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, pdf)
}

func (s *Server) handleCreatePDF(w http.ResponseWriter, r *http.Request, _ string) {
	input, ok := s.parsePDFForm(w, r)
	if !ok {
		return
	}
	created, err := s.app.CreatePDF(r.Context(), app.CreatePDFInput{
		Title:       input.title,
		Description: input.description,
		CategoryID:  input.categoryID,
		Author:      input.author,
		PageCount:   input.pageCount,
		PDF:         input.pdf,
		Thumbnail:   input.thumbnail,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdatePDF(w http.ResponseWriter, r *http.Request, id string) {
	existing, err := s.app.GetPDF(r.Context(), id)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			notFound(w, "pdf not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	input, ok := s.parsePDFForm(w, r)
	if !ok {
		return
	}
	err = s.app.UpdatePDF(r.Context(), app.UpdatePDFInput{
		ID:                   id,
		Title:                input.title,
		Description:          input.description,
		CategoryID:           input.categoryID,
		Author:               input.author,
		PageCount:            input.pageCount,
		ExistingFileURL:      existing.FileURL,
		ExistingThumbnailURL: existing.ThumbnailURL,
		ExistingFileSize:     existing.FileSize,
		PDF:                  input.pdf,
		Thumbnail:            input.thumbnail,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeletePDF(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.app.DeletePDF(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleTrackDownload(w http.ResponseWriter, r *http.Request, userID, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	pdf, err := s.app.GetPDF(r.Context(), id)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			notFound(w, "pdf not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	tracked := true
	if err := s.app.TrackDownload(r.Context(), id, userID); err != nil {
		// Tracking failures never block the download itself.
		var trackErr *app.TrackError
		if !errors.As(err, &trackErr) {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		tracked = false
		util.LoggerFromContext(r.Context()).Warn("download tracking failed",
			"pdfId", id, "historyRecorded", trackErr.HistoryRecorded, "err", trackErr)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":     pdf.FileURL,
		"tracked": tracked,
	})
}

func (s *Server) handleMyDownloads(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	history, err := s.app.DownloadHistory(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": history,
		"count": len(history),
	})
}

func (s *Server) handleMyProfile(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	profile, err := s.app.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			notFound(w, "profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUsernameCheck(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.limiter != nil && !s.limiter.Allow(util.ClientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	name := r.URL.Query().Get("name")
	result, err := s.app.CheckUsername(r.Context(), name)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleConfirmUsername(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req usernameRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	profile, err := s.app.ConfirmUsername(r.Context(), userID, req.Username)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type pdfForm struct {
	title       string
	description string
	categoryID  string
	author      string
	pageCount   int
	pdf         *app.Asset
	thumbnail   *app.Asset
}

func (s *Server) parsePDFForm(w http.ResponseWriter, r *http.Request) (pdfForm, bool) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return pdfForm{}, false
	}
	form := pdfForm{
		title:       r.FormValue("title"),
		description: r.FormValue("description"),
		categoryID:  r.FormValue("categoryId"),
		author:      r.FormValue("author"),
	}
	if raw := r.FormValue("pageCount"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			form.pageCount = n
		}
	}
	pdfAsset, ok := readFormFile(w, r, "file")
	if !ok {
		return pdfForm{}, false
	}
	form.pdf = pdfAsset
	thumbAsset, ok := readFormFile(w, r, "thumbnail")
	if !ok {
		return pdfForm{}, false
	}
	form.thumbnail = thumbAsset
	return form, true
}

// readFormFile returns nil without error when the field is absent.
func readFormFile(w http.ResponseWriter, r *http.Request, field string) (*app.Asset, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, true
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return nil, false
	}
	return &app.Asset{Name: header.Filename, Data: data}, true
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrPDFFileRequired),
		errors.Is(err, app.ErrTitleRequired),
		errors.Is(err, app.ErrUsernameTooShort):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUsernameUnavailable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrNotFound):
		notFound(w, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
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
		Code:      errorCodeForCatalog(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeForCatalog(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "unauthorized":
		return "AUTH_INVALID_TOKEN"
	case message == "forbidden":
		return "CATALOG_FORBIDDEN"
	case message == "pdf not found":
		return "PDF_NOT_FOUND"
	case message == "category not found":
		return "CATEGORY_NOT_FOUND"
	case message == "profile not found":
		return "PROFILE_NOT_FOUND"
	case strings.Contains(message, "pdf file is required"):
		return "PDF_FILE_REQUIRED"
	case strings.Contains(message, "title is required"):
		return "PDF_TITLE_REQUIRED"
	case strings.Contains(message, "username must be"):
		return "USERNAME_TOO_SHORT"
	case strings.Contains(message, "username is not available"):
		return "USERNAME_UNAVAILABLE"
	case message == "invalid form data":
		return "CATALOG_INVALID_UPLOAD_FORM"
	case message == "invalid json body":
		return "CATALOG_INVALID_REQUEST"
	case message == "invalid limit", message == "invalid role":
		return "CATALOG_INVALID_REQUEST"
	case message == "too many requests":
		return "CATALOG_RATE_LIMITED"
	case message == "internal auth not configured":
		return "SYSTEM_INTERNAL_ERROR"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "CATALOG_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "CATALOG_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusConflict:
		return "USERNAME_UNAVAILABLE"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}

type usernameRequest struct {
	Username string `json:"username"`
}
