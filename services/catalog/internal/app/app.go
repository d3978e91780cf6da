package app

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gamerneson12-art/learnhub-portal/internal/util"
	"github.com/gamerneson12-art/learnhub-portal/pkg/cache"
	"github.com/gamerneson12-art/learnhub-portal/pkg/domain"
	"github.com/gamerneson12-art/learnhub-portal/pkg/events"
	"github.com/gamerneson12-art/learnhub-portal/pkg/storage"
	"github.com/gamerneson12-art/learnhub-portal/pkg/store"
)

const (
	defaultCacheTTL       = 5 * time.Minute
	maxSuggestions        = 3
	suggestionScanCap     = 50
	minimumUsernameLength = 3
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store

	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioUseSSL        bool
	MinioPublicBaseURL string
	PDFBucket          string
	ThumbnailBucket    string

	PDFs       storage.ObjectStore
	Thumbnails storage.ObjectStore

	Cache    cache.QueryCache
	CacheTTL time.Duration
	Events   events.Publisher
}

// App wires the catalog store, the two asset buckets, the query cache, and
// the event publisher behind the service operations.
type App struct {
	store    store.Store
	pdfs     storage.ObjectStore
	thumbs   storage.ObjectStore
	cache    cache.QueryCache
	cacheTTL time.Duration
	events   events.Publisher
}

// New constructs the application with database-backed metadata storage and
// object-store asset storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	pdfStore := cfg.PDFs
	if pdfStore == nil {
		var err error
		pdfStore, err = storage.NewMinioStore(storage.MinioConfig{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.PDFBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init pdf bucket: %w", err)
		}
	}
	thumbStore := cfg.Thumbnails
	if thumbStore == nil {
		var err error
		thumbStore, err = storage.NewMinioStore(storage.MinioConfig{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.ThumbnailBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init thumbnail bucket: %w", err)
		}
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &App{
		store:    dataStore,
		pdfs:     pdfStore,
		thumbs:   thumbStore,
		cache:    cfg.Cache,
		cacheTTL: cacheTTL,
		events:   publisher,
	}, nil
}

// Asset is an uploaded binary (PDF document or thumbnail image).
type Asset struct {
	Name string
	Data []byte
}

// CreatePDFInput carries the admin create form.
type CreatePDFInput struct {
	Title       string
	Description string
	CategoryID  string
	Author      string
	PageCount   int
	PDF         *Asset
	Thumbnail   *Asset
}

// UpdatePDFInput carries the admin edit form. Existing URLs are passed
// through by the caller; the layer does not look them up itself.
type UpdatePDFInput struct {
	ID                   string
	Title                string
	Description          string
	CategoryID           string
	Author               string
	PageCount            int
	ExistingFileURL      string
	ExistingThumbnailURL string
	ExistingFileSize     int64
	PDF                  *Asset
	Thumbnail            *Asset
}

// ListCategories returns all categories sorted by name.
func (a *App) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var cached []domain.Category
	if a.cacheGet(ctx, "categories:list", &cached) {
		return cached, nil
	}
	categories, err := a.store.ListCategories()
	if err != nil {
		return nil, err
	}
	a.cacheSet(ctx, "categories:list", categories, cache.TagCategories)
	return categories, nil
}

// GetCategoryBySlug resolves a category by its slug.
func (a *App) GetCategoryBySlug(ctx context.Context, slug string) (domain.Category, error) {
	category, ok, err := a.store.GetCategoryBySlug(slug)
	if err != nil {
		return domain.Category{}, err
	}
	if !ok {
		return domain.Category{}, ErrNotFound
	}
	return category, nil
}

// ListPDFs returns catalog records for the given filters.
func (a *App) ListPDFs(ctx context.Context, opts store.ListPDFOptions) ([]domain.PDF, error) {
	key := listKey(opts)
	var cached []domain.PDF
	if a.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	pdfs, err := a.store.ListPDFs(opts)
	if err != nil {
		return nil, err
	}
	a.cacheSet(ctx, key, pdfs, cache.TagPDFs)
	return pdfs, nil
}

// GetPDF retrieves one record.
func (a *App) GetPDF(ctx context.Context, id string) (domain.PDF, error) {
	key := "pdfs:get:" + id
	var cached domain.PDF
	if a.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	pdf, ok, err := a.store.GetPDF(id)
	if err != nil {
		return domain.PDF{}, err
	}
	if !ok {
		return domain.PDF{}, ErrNotFound
	}
	a.cacheSet(ctx, key, pdf, cache.TagPDFs)
	return pdf, nil
}

// DownloadHistory returns a user's downloads, newest first.
func (a *App) DownloadHistory(ctx context.Context, userID string, limit int) ([]domain.Download, error) {
	key := fmt.Sprintf("downloads:user:%s:%d", userID, limit)
	var cached []domain.Download
	if a.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	history, err := a.store.ListDownloadsByUser(userID, limit)
	if err != nil {
		return nil, err
	}
	a.cacheSet(ctx, key, history, cache.TagDownloads)
	return history, nil
}

// CreatePDF uploads the assets and then inserts the catalog row. The row is
// never written before both uploads succeed, so readers see no partial
// state; the reverse window (asset uploaded, row insert failed) surfaces as
// a PartialWriteError with the object left in place.
func (a *App) CreatePDF(ctx context.Context, input CreatePDFInput) (domain.PDF, error) {
	if strings.TrimSpace(input.Title) == "" {
		return domain.PDF{}, ErrTitleRequired
	}
	if input.PDF == nil || len(input.PDF.Data) == 0 {
		return domain.PDF{}, ErrPDFFileRequired
	}

	pdfKey := objectKey(input.PDF.Name)
	if err := a.upload(ctx, a.pdfs, pdfKey, input.PDF); err != nil {
		return domain.PDF{}, fmt.Errorf("upload pdf: %w", err)
	}
	fileURL := a.pdfs.PublicURL(pdfKey)

	thumbnailURL := ""
	if input.Thumbnail != nil && len(input.Thumbnail.Data) > 0 {
		thumbKey := objectKey(input.Thumbnail.Name)
		if err := a.upload(ctx, a.thumbs, thumbKey, input.Thumbnail); err != nil {
			return domain.PDF{}, &PartialWriteError{Key: pdfKey, Err: fmt.Errorf("upload thumbnail: %w", err)}
		}
		thumbnailURL = a.thumbs.PublicURL(thumbKey)
	}

	pages := input.PageCount
	if pages <= 0 {
		if derived, err := pageCount(input.PDF.Data); err == nil {
			pages = derived
		}
	}

	now := time.Now().UTC()
	record := domain.PDF{
		ID:           util.NewID(),
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		FileURL:      fileURL,
		ThumbnailURL: thumbnailURL,
		CategoryID:   input.CategoryID,
		FileSize:     int64(len(input.PDF.Data)),
		PageCount:    pages,
		Author:       input.Author,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.InsertPDF(record); err != nil {
		return domain.PDF{}, &PartialWriteError{Key: pdfKey, Err: err}
	}

	a.invalidate(ctx, mutationCreatePDF)
	a.publish(ctx, events.KeyPDFCreated, record)
	return record, nil
}

// UpdatePDF follows the same asset-then-row ordering as CreatePDF, with
// every asset optional. Omitted assets keep the existing URLs and size the
// caller passed through; file_size changes only when a new PDF asset was
// actually uploaded.
func (a *App) UpdatePDF(ctx context.Context, input UpdatePDFInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return ErrTitleRequired
	}
	fileURL := input.ExistingFileURL
	thumbnailURL := input.ExistingThumbnailURL
	var fileSize *int64
	uploadedKey := ""

	if input.PDF != nil && len(input.PDF.Data) > 0 {
		key := objectKey(input.PDF.Name)
		if err := a.upload(ctx, a.pdfs, key, input.PDF); err != nil {
			return fmt.Errorf("upload pdf: %w", err)
		}
		fileURL = a.pdfs.PublicURL(key)
		size := int64(len(input.PDF.Data))
		fileSize = &size
		uploadedKey = key
	}
	if input.Thumbnail != nil && len(input.Thumbnail.Data) > 0 {
		key := objectKey(input.Thumbnail.Name)
		if err := a.upload(ctx, a.thumbs, key, input.Thumbnail); err != nil {
			err = fmt.Errorf("upload thumbnail: %w", err)
			if uploadedKey != "" {
				return &PartialWriteError{Key: uploadedKey, Err: err}
			}
			return err
		}
		thumbnailURL = a.thumbs.PublicURL(key)
		if uploadedKey == "" {
			uploadedKey = key
		}
	}

	update := domain.PDFUpdate{
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		CategoryID:   input.CategoryID,
		Author:       input.Author,
		PageCount:    input.PageCount,
		FileURL:      fileURL,
		ThumbnailURL: thumbnailURL,
		FileSize:     fileSize,
	}
	if err := a.store.UpdatePDF(input.ID, update); err != nil {
		if uploadedKey != "" {
			return &PartialWriteError{Key: uploadedKey, Err: err}
		}
		return err
	}

	a.invalidate(ctx, mutationUpdatePDF)
	a.publish(ctx, events.KeyPDFUpdated, map[string]string{"id": input.ID})
	return nil
}

// DeletePDF removes the catalog row only. Stored assets are not garbage
// collected, and deleting an unknown id is treated as success.
func (a *App) DeletePDF(ctx context.Context, id string) error {
	if err := a.store.DeletePDF(id); err != nil {
		return err
	}
	a.invalidate(ctx, mutationDeletePDF)
	a.publish(ctx, events.KeyPDFDeleted, map[string]string{"id": id})
	return nil
}

// TrackDownload appends a history entry and then bumps the record's
// counter through the server-side increment. A failed increment after a
// recorded entry is reported but not retried; the counter under-counts
// until reconciled elsewhere. Callers must not fail the download itself on
// a tracking error.
func (a *App) TrackDownload(ctx context.Context, pdfID, userID string) error {
	entry := domain.Download{
		ID:           util.NewID(),
		UserID:       userID,
		PDFID:        pdfID,
		DownloadedAt: time.Now().UTC(),
	}
	if err := a.store.InsertDownload(entry); err != nil {
		return &TrackError{Err: err}
	}
	// Invalidate only after the increment: dropping the tags between the
	// two writes would let a read re-cache the pre-increment count and
	// serve it stale for the full TTL.
	if err := a.store.IncrementDownloadCount(pdfID); err != nil {
		a.invalidate(ctx, mutationTrackDownload)
		return &TrackError{HistoryRecorded: true, Err: err}
	}
	a.invalidate(ctx, mutationTrackDownload)
	a.publish(ctx, events.KeyDownloadTracked, entry)
	return nil
}

// CheckUsername recomputes availability for a candidate. Results are never
// cached past the current input.
func (a *App) CheckUsername(ctx context.Context, desired string) (domain.UsernameCheck, error) {
	name := normalizeUsername(desired)
	if len(name) < minimumUsernameLength {
		return domain.UsernameCheck{}, ErrUsernameTooShort
	}
	taken, err := a.store.UsernameTaken(name)
	if err != nil {
		return domain.UsernameCheck{}, err
	}
	if !taken {
		return domain.UsernameCheck{Available: true, Suggestions: []string{}}, nil
	}
	suggestions, err := a.suggestUsernames(name)
	if err != nil {
		return domain.UsernameCheck{}, err
	}
	return domain.UsernameCheck{Available: false, Suggestions: suggestions}, nil
}

// ConfirmUsername re-validates availability and persists the confirmed
// username. A result from an earlier check is never trusted here.
func (a *App) ConfirmUsername(ctx context.Context, userID, desired string) (domain.Profile, error) {
	name := normalizeUsername(desired)
	if len(name) < minimumUsernameLength {
		return domain.Profile{}, ErrUsernameTooShort
	}
	profile, exists, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !exists || profile.Username != name {
		taken, err := a.store.UsernameTaken(name)
		if err != nil {
			return domain.Profile{}, err
		}
		if taken {
			return domain.Profile{}, ErrUsernameUnavailable
		}
	}
	now := time.Now().UTC()
	if !exists {
		profile = domain.Profile{UserID: userID, CreatedAt: now}
	}
	profile.Username = name
	profile.UsernameConfirmed = true
	profile.UpdatedAt = now
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// GetProfile returns a user's profile.
func (a *App) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	profile, ok, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, err
	}
	if !ok {
		return domain.Profile{}, ErrNotFound
	}
	return profile, nil
}

// IsAdmin reports whether the user holds the admin role.
func (a *App) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return a.store.HasRole(userID, domain.RoleAdmin)
}

// HasRole reports whether the user holds the given role. Exposed for the
// internal service surface.
func (a *App) HasRole(ctx context.Context, userID string, role domain.Role) (bool, error) {
	return a.store.HasRole(userID, role)
}

// IncrementDownloadCount bumps the counter without a history entry. Used by
// peer services that serve the file bytes themselves.
func (a *App) IncrementDownloadCount(ctx context.Context, pdfID string) error {
	if err := a.store.IncrementDownloadCount(pdfID); err != nil {
		return err
	}
	a.invalidate(ctx, mutationBumpCounter)
	return nil
}

func (a *App) suggestUsernames(name string) ([]string, error) {
	suggestions := make([]string, 0, maxSuggestions)
	for i := 1; i <= suggestionScanCap && len(suggestions) < maxSuggestions; i++ {
		candidate := fmt.Sprintf("%s%d", name, i)
		taken, err := a.store.UsernameTaken(candidate)
		if err != nil {
			return nil, err
		}
		if !taken {
			suggestions = append(suggestions, candidate)
		}
	}
	return suggestions, nil
}

func (a *App) upload(ctx context.Context, bucket storage.ObjectStore, key string, asset *Asset) error {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(asset.Name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return bucket.Put(ctx, key, bytes.NewReader(asset.Data), int64(len(asset.Data)), contentType)
}

func (a *App) publish(ctx context.Context, key string, payload any) {
	if err := a.events.Publish(ctx, key, payload); err != nil {
		util.LoggerFromContext(ctx).Warn("event publish failed", "key", key, "err", err)
	}
}

func (a *App) cacheGet(ctx context.Context, key string, dest any) bool {
	if a.cache == nil {
		return false
	}
	ok, err := a.cache.Get(ctx, key, dest)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("cache read failed", "key", key, "err", err)
		return false
	}
	return ok
}

func (a *App) cacheSet(ctx context.Context, key string, value any, tags ...cache.Tag) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, key, value, a.cacheTTL, tags...); err != nil {
		util.LoggerFromContext(ctx).Warn("cache write failed", "key", key, "err", err)
	}
}

func listKey(opts store.ListPDFOptions) string {
	limit := opts.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	return fmt.Sprintf("pdfs:list:%s|%s|%d",
		strings.TrimSpace(opts.CategorySlug), strings.TrimSpace(opts.Search), limit)
}

// objectKey builds a collision-resistant object name: a millisecond prefix
// plus the sanitized original filename.
func objectKey(filename string) string {
	name := sanitizeFilename(filepath.Base(filename))
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("%d-%s", time.Now().UTC().UnixMilli(), name)
}

func normalizeUsername(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if r <= 0x7f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
				b.WriteRune(r)
				lastUnderscore = false
				continue
			}
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
