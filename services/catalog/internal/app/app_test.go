package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gamerneson12-art/learnhub-portal/pkg/cache"
	"github.com/gamerneson12-art/learnhub-portal/pkg/domain"
	"github.com/gamerneson12-art/learnhub-portal/pkg/store"
)

type fakeBucket struct {
	puts    []string
	failPut bool
	baseURL string
}

func (f *fakeBucket) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.failPut {
		return errors.New("bucket unavailable")
	}
	if _, err := io.ReadAll(r); err != nil {
		return err
	}
	f.puts = append(f.puts, key)
	return nil
}

func (f *fakeBucket) PublicURL(key string) string {
	return f.baseURL + "/" + key
}

func (f *fakeBucket) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return f.baseURL + "/" + key + "?signed", nil
}

func (f *fakeBucket) Delete(_ context.Context, key string) error { return nil }

// brokenStore wraps the in-memory store and fails selected writes.
type brokenStore struct {
	store.Store
	failInsertPDF  bool
	failIncrement  bool
	failInsertDown bool
}

func (b *brokenStore) InsertPDF(pdf domain.PDF) error {
	if b.failInsertPDF {
		return errors.New("insert rejected")
	}
	return b.Store.InsertPDF(pdf)
}

func (b *brokenStore) IncrementDownloadCount(pdfID string) error {
	if b.failIncrement {
		return errors.New("increment rejected")
	}
	return b.Store.IncrementDownloadCount(pdfID)
}

func (b *brokenStore) InsertDownload(d domain.Download) error {
	if b.failInsertDown {
		return errors.New("history rejected")
	}
	return b.Store.InsertDownload(d)
}

type appFixture struct {
	app    *App
	store  *store.MemoryStore
	pdfs   *fakeBucket
	thumbs *fakeBucket
	cache  *recordingCache
}

// recordingCache satisfies cache.QueryCache and records invalidations.
type recordingCache struct {
	invalidated []cache.Tag
	sets        map[string][]cache.Tag
}

func (r *recordingCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (r *recordingCache) Set(_ context.Context, key string, _ any, _ time.Duration, tags ...cache.Tag) error {
	if r.sets == nil {
		r.sets = map[string][]cache.Tag{}
	}
	r.sets[key] = tags
	return nil
}

func (r *recordingCache) Invalidate(_ context.Context, tags ...cache.Tag) error {
	r.invalidated = append(r.invalidated, tags...)
	return nil
}

// tagCache is an in-process stand-in for the Redis cache with the same
// tag-indexed invalidation semantics.
type tagCache struct {
	mu     sync.Mutex
	values map[string][]byte
	tags   map[cache.Tag]map[string]bool
}

func newTagCache() *tagCache {
	return &tagCache{
		values: map[string][]byte{},
		tags:   map[cache.Tag]map[string]bool{},
	}
}

func (c *tagCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *tagCache) Set(_ context.Context, key string, value any, _ time.Duration, tags ...cache.Tag) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = raw
	for _, tag := range tags {
		if c.tags[tag] == nil {
			c.tags[tag] = map[string]bool{}
		}
		c.tags[tag][key] = true
	}
	return nil
}

func (c *tagCache) Invalidate(_ context.Context, tags ...cache.Tag) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		for key := range c.tags[tag] {
			delete(c.values, key)
		}
		delete(c.tags, tag)
	}
	return nil
}

func newFixture(t *testing.T, wrap func(store.Store) store.Store) *appFixture {
	t.Helper()
	mem := store.NewMemoryStore()
	var s store.Store = mem
	if wrap != nil {
		s = wrap(s)
	}
	pdfs := &fakeBucket{baseURL: "https://files.test/pdfs"}
	thumbs := &fakeBucket{baseURL: "https://files.test/thumbnails"}
	qc := &recordingCache{}
	a, err := New(Config{Store: s, PDFs: pdfs, Thumbnails: thumbs, Cache: qc})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &appFixture{app: a, store: mem, pdfs: pdfs, thumbs: thumbs, cache: qc}
}

func TestCreatePDFRequiresFile(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.app.CreatePDF(context.Background(), CreatePDFInput{Title: "Algebra"})
	if !errors.Is(err, ErrPDFFileRequired) {
		t.Fatalf("err = %v, want ErrPDFFileRequired", err)
	}
	if len(f.pdfs.puts) != 0 {
		t.Fatalf("no upload should happen for an invalid create, got %v", f.pdfs.puts)
	}
	pdfs, _ := f.app.ListPDFs(context.Background(), store.ListPDFOptions{})
	if len(pdfs) != 0 {
		t.Fatalf("no row should be written for an invalid create, got %d", len(pdfs))
	}
}

func TestCreatePDFRequiresTitle(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "   ",
		PDF:   &Asset{Name: "a.pdf", Data: []byte("x")},
	})
	if !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("err = %v, want ErrTitleRequired", err)
	}
	if len(f.pdfs.puts) != 0 {
		t.Fatalf("no upload should happen, got %v", f.pdfs.puts)
	}
}

func TestCreatePDFUploadsBeforeRow(t *testing.T) {
	f := newFixture(t, nil)
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title:     "Algebra Basics",
		Author:    "R. Lee",
		PDF:       &Asset{Name: "algebra basics.pdf", Data: []byte("%PDF-fake")},
		Thumbnail: &Asset{Name: "cover.png", Data: []byte("png")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	if len(f.pdfs.puts) != 1 || len(f.thumbs.puts) != 1 {
		t.Fatalf("expected one upload per bucket, got %d/%d", len(f.pdfs.puts), len(f.thumbs.puts))
	}
	if !strings.HasSuffix(f.pdfs.puts[0], "-algebra_basics.pdf") {
		t.Fatalf("pdf key %q should keep the sanitized filename", f.pdfs.puts[0])
	}
	if created.FileSize != int64(len("%PDF-fake")) {
		t.Fatalf("FileSize = %d", created.FileSize)
	}
	if !strings.Contains(created.FileURL, f.pdfs.puts[0]) {
		t.Fatalf("FileURL %q should point at the uploaded key", created.FileURL)
	}
	got, err := f.app.GetPDF(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetPDF: %v", err)
	}
	if got.Title != "Algebra Basics" {
		t.Fatalf("Title = %q", got.Title)
	}
}

func TestCreatePDFThumbnailFailureAbortsWholeOp(t *testing.T) {
	f := newFixture(t, nil)
	f.thumbs.failPut = true
	_, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title:     "Doc",
		PDF:       &Asset{Name: "doc.pdf", Data: []byte("x")},
		Thumbnail: &Asset{Name: "cover.png", Data: []byte("y")},
	})
	var partial *PartialWriteError
	if !errors.As(err, &partial) {
		t.Fatalf("err = %v, want PartialWriteError for the orphaned pdf asset", err)
	}
	if len(f.pdfs.puts) != 1 || partial.Key != f.pdfs.puts[0] {
		t.Fatalf("PartialWriteError.Key = %q, uploads = %v", partial.Key, f.pdfs.puts)
	}
	pdfs, _ := f.app.ListPDFs(context.Background(), store.ListPDFOptions{})
	if len(pdfs) != 0 {
		t.Fatalf("row must not be written when an upload fails, got %d", len(pdfs))
	}
}

func TestUpdatePDFThumbnailFailureReportsOrphanedAsset(t *testing.T) {
	f := newFixture(t, nil)
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	f.thumbs.failPut = true
	err = f.app.UpdatePDF(context.Background(), UpdatePDFInput{
		ID:              created.ID,
		Title:           "Doc",
		ExistingFileURL: created.FileURL,
		PDF:             &Asset{Name: "doc-v2.pdf", Data: []byte("new")},
		Thumbnail:       &Asset{Name: "cover.png", Data: []byte("y")},
	})
	var partial *PartialWriteError
	if !errors.As(err, &partial) {
		t.Fatalf("err = %v, want PartialWriteError for the orphaned replacement pdf", err)
	}
	if len(f.pdfs.puts) != 2 || partial.Key != f.pdfs.puts[1] {
		t.Fatalf("PartialWriteError.Key = %q, uploads = %v", partial.Key, f.pdfs.puts)
	}
	got, _ := f.app.GetPDF(context.Background(), created.ID)
	if got.FileURL != created.FileURL {
		t.Fatalf("row must keep the old URL after a failed update, got %q", got.FileURL)
	}
}

func TestUpdatePDFThumbnailOnlyFailureIsPlainError(t *testing.T) {
	f := newFixture(t, nil)
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	f.thumbs.failPut = true
	err = f.app.UpdatePDF(context.Background(), UpdatePDFInput{
		ID:              created.ID,
		Title:           "Doc",
		ExistingFileURL: created.FileURL,
		Thumbnail:       &Asset{Name: "cover.png", Data: []byte("y")},
	})
	if err == nil {
		t.Fatal("expected error when thumbnail upload fails")
	}
	var partial *PartialWriteError
	if errors.As(err, &partial) {
		t.Fatalf("no asset was orphaned, want plain error, got PartialWriteError for %q", partial.Key)
	}
}

func TestCreatePDFRowFailureIsPartialWrite(t *testing.T) {
	f := newFixture(t, func(s store.Store) store.Store {
		return &brokenStore{Store: s, failInsertPDF: true}
	})
	_, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("x")},
	})
	var partial *PartialWriteError
	if !errors.As(err, &partial) {
		t.Fatalf("err = %v, want PartialWriteError", err)
	}
	if len(f.pdfs.puts) != 1 || partial.Key != f.pdfs.puts[0] {
		t.Fatalf("PartialWriteError.Key = %q, uploads = %v", partial.Key, f.pdfs.puts)
	}
}

func TestUpdatePDFWithoutAssetsKeepsExistingURLs(t *testing.T) {
	f := newFixture(t, nil)
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("twelve bytes")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	err = f.app.UpdatePDF(context.Background(), UpdatePDFInput{
		ID:              created.ID,
		Title:           "Doc v2",
		ExistingFileURL: created.FileURL,
	})
	if err != nil {
		t.Fatalf("UpdatePDF: %v", err)
	}
	got, err := f.app.GetPDF(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetPDF: %v", err)
	}
	if got.Title != "Doc v2" {
		t.Fatalf("Title = %q", got.Title)
	}
	if got.FileURL != created.FileURL {
		t.Fatalf("FileURL changed without a new upload: %q", got.FileURL)
	}
	if got.FileSize != created.FileSize {
		t.Fatalf("FileSize changed without a new upload: %d", got.FileSize)
	}
	if len(f.pdfs.puts) != 1 {
		t.Fatalf("metadata-only update must not upload, puts = %v", f.pdfs.puts)
	}
}

func TestUpdatePDFWithNewAssetReplacesURLAndSize(t *testing.T) {
	f := newFixture(t, nil)
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("old")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	err = f.app.UpdatePDF(context.Background(), UpdatePDFInput{
		ID:              created.ID,
		Title:           "Doc",
		ExistingFileURL: created.FileURL,
		PDF:             &Asset{Name: "doc-v2.pdf", Data: []byte("new longer body")},
	})
	if err != nil {
		t.Fatalf("UpdatePDF: %v", err)
	}
	got, _ := f.app.GetPDF(context.Background(), created.ID)
	if got.FileURL == created.FileURL {
		t.Fatal("FileURL should point at the replacement asset")
	}
	if got.FileSize != int64(len("new longer body")) {
		t.Fatalf("FileSize = %d", got.FileSize)
	}
}

func TestDeletePDFRemovesRowOnly(t *testing.T) {
	f := newFixture(t, nil)
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	if err := f.app.DeletePDF(context.Background(), created.ID); err != nil {
		t.Fatalf("DeletePDF: %v", err)
	}
	if _, err := f.app.GetPDF(context.Background(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// Asset cleanup is out of scope; the object stays put.
	if len(f.pdfs.puts) != 1 {
		t.Fatalf("delete must not touch the bucket, puts = %v", f.pdfs.puts)
	}
	// Deleting again is still success.
	if err := f.app.DeletePDF(context.Background(), created.ID); err != nil {
		t.Fatalf("second DeletePDF: %v", err)
	}
}

func TestTrackDownloadRecordsAndIncrements(t *testing.T) {
	f := newFixture(t, nil)
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.app.TrackDownload(context.Background(), created.ID, "user-1"); err != nil {
			t.Fatalf("TrackDownload: %v", err)
		}
	}
	got, _ := f.app.GetPDF(context.Background(), created.ID)
	if got.DownloadCount != 2 {
		t.Fatalf("DownloadCount = %d, want 2", got.DownloadCount)
	}
	history, err := f.app.DownloadHistory(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("DownloadHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
}

// readDuringIncrementStore models a concurrent reader that lands between
// the history insert and the counter increment: it reads the record through
// the app (re-populating the cache) right before the increment runs.
type readDuringIncrementStore struct {
	store.Store
	app *App
}

func (s *readDuringIncrementStore) IncrementDownloadCount(pdfID string) error {
	if s.app != nil {
		if _, err := s.app.GetPDF(context.Background(), pdfID); err != nil {
			return err
		}
	}
	return s.Store.IncrementDownloadCount(pdfID)
}

func TestTrackDownloadIncrementVisibleThroughCache(t *testing.T) {
	mem := store.NewMemoryStore()
	wrapped := &readDuringIncrementStore{Store: mem}
	a, err := New(Config{
		Store:      wrapped,
		PDFs:       &fakeBucket{baseURL: "https://files.test/pdfs"},
		Thumbnails: &fakeBucket{baseURL: "https://files.test/thumbnails"},
		Cache:      newTagCache(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wrapped.app = a
	created, err := a.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	if err := a.TrackDownload(context.Background(), created.ID, "user-1"); err != nil {
		t.Fatalf("TrackDownload: %v", err)
	}
	got, err := a.GetPDF(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetPDF: %v", err)
	}
	if got.DownloadCount != 1 {
		t.Fatalf("DownloadCount = %d after tracked download, want 1 (pre-increment value left in cache)", got.DownloadCount)
	}
}

func TestTrackDownloadIncrementFailureReportsHistoryRecorded(t *testing.T) {
	var broken *brokenStore
	f := newFixture(t, func(s store.Store) store.Store {
		broken = &brokenStore{Store: s}
		return broken
	})
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	broken.failIncrement = true
	f.cache.invalidated = nil
	err = f.app.TrackDownload(context.Background(), created.ID, "user-1")
	var trackErr *TrackError
	if !errors.As(err, &trackErr) {
		t.Fatalf("err = %v, want TrackError", err)
	}
	if !trackErr.HistoryRecorded {
		t.Fatal("HistoryRecorded should be true when only the increment failed")
	}
	// The history insert still mutated downloads; the tags must drop.
	found := false
	for _, tag := range f.cache.invalidated {
		if tag == cache.TagDownloads {
			found = true
		}
	}
	if !found {
		t.Fatalf("invalidated = %v, want downloads tag after recorded history", f.cache.invalidated)
	}
	history, _ := f.app.DownloadHistory(context.Background(), "user-1", 10)
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
}

func TestTrackDownloadInsertFailure(t *testing.T) {
	f := newFixture(t, func(s store.Store) store.Store {
		return &brokenStore{Store: s, failInsertDown: true}
	})
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	err = f.app.TrackDownload(context.Background(), created.ID, "user-1")
	var trackErr *TrackError
	if !errors.As(err, &trackErr) {
		t.Fatalf("err = %v, want TrackError", err)
	}
	if trackErr.HistoryRecorded {
		t.Fatal("HistoryRecorded should be false when the insert itself failed")
	}
	got, _ := f.app.GetPDF(context.Background(), created.ID)
	if got.DownloadCount != 0 {
		t.Fatalf("counter must not move without a history row, got %d", got.DownloadCount)
	}
}

func TestMutationsInvalidateByTag(t *testing.T) {
	f := newFixture(t, nil)
	created, err := f.app.CreatePDF(context.Background(), CreatePDFInput{
		Title: "Doc",
		PDF:   &Asset{Name: "doc.pdf", Data: []byte("x")},
	})
	if err != nil {
		t.Fatalf("CreatePDF: %v", err)
	}
	if got := f.cache.invalidated; len(got) != 1 || got[0] != cache.TagPDFs {
		t.Fatalf("create invalidated %v, want [pdfs]", got)
	}
	f.cache.invalidated = nil
	if err := f.app.TrackDownload(context.Background(), created.ID, "user-1"); err != nil {
		t.Fatalf("TrackDownload: %v", err)
	}
	want := map[cache.Tag]bool{cache.TagPDFs: true, cache.TagDownloads: true}
	for _, tag := range f.cache.invalidated {
		delete(want, tag)
	}
	if len(want) != 0 {
		t.Fatalf("track invalidated %v, missing %v", f.cache.invalidated, want)
	}
}

func TestCheckUsernameAvailable(t *testing.T) {
	f := newFixture(t, nil)
	result, err := f.app.CheckUsername(context.Background(), "  NewUser  ")
	if err != nil {
		t.Fatalf("CheckUsername: %v", err)
	}
	if !result.Available {
		t.Fatal("fresh username should be available")
	}
	if len(result.Suggestions) != 0 {
		t.Fatalf("available result should carry no suggestions, got %v", result.Suggestions)
	}
}

func TestCheckUsernameTakenSuggestsFreeVariants(t *testing.T) {
	f := newFixture(t, nil)
	for _, name := range []string{"reader", "reader1"} {
		if err := f.store.SaveProfile(domain.Profile{UserID: "u-" + name, Username: name}); err != nil {
			t.Fatalf("SaveProfile: %v", err)
		}
	}
	result, err := f.app.CheckUsername(context.Background(), "Reader")
	if err != nil {
		t.Fatalf("CheckUsername: %v", err)
	}
	if result.Available {
		t.Fatal("taken username reported as available")
	}
	want := []string{"reader2", "reader3", "reader4"}
	if len(result.Suggestions) != len(want) {
		t.Fatalf("suggestions = %v, want %v", result.Suggestions, want)
	}
	for i, s := range want {
		if result.Suggestions[i] != s {
			t.Fatalf("suggestions = %v, want %v", result.Suggestions, want)
		}
	}
}

func TestCheckUsernameTooShort(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.app.CheckUsername(context.Background(), "ab"); !errors.Is(err, ErrUsernameTooShort) {
		t.Fatalf("err = %v, want ErrUsernameTooShort", err)
	}
}

func TestConfirmUsernameRevalidates(t *testing.T) {
	f := newFixture(t, nil)
	// The name looked free earlier, then someone else claimed it.
	if err := f.store.SaveProfile(domain.Profile{UserID: "other", Username: "scholar"}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if _, err := f.app.ConfirmUsername(context.Background(), "user-1", "scholar"); !errors.Is(err, ErrUsernameUnavailable) {
		t.Fatalf("err = %v, want ErrUsernameUnavailable", err)
	}
	profile, err := f.app.ConfirmUsername(context.Background(), "user-1", "Scholar99")
	if err != nil {
		t.Fatalf("ConfirmUsername: %v", err)
	}
	if profile.Username != "scholar99" || !profile.UsernameConfirmed {
		t.Fatalf("profile = %+v", profile)
	}
}

func TestConfirmUsernameKeepsOwnName(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.app.ConfirmUsername(context.Background(), "user-1", "scholar"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	// Re-confirming the name the user already holds must not self-collide.
	if _, err := f.app.ConfirmUsername(context.Background(), "user-1", "scholar"); err != nil {
		t.Fatalf("re-confirm: %v", err)
	}
}

func TestGetCategoryBySlugNotFound(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.app.GetCategoryBySlug(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIsAdmin(t *testing.T) {
	f := newFixture(t, nil)
	f.store.GrantRole("admin-1", domain.RoleAdmin)
	ok, err := f.app.IsAdmin(context.Background(), "admin-1")
	if err != nil || !ok {
		t.Fatalf("IsAdmin(admin-1) = %v, %v", ok, err)
	}
	ok, err = f.app.IsAdmin(context.Background(), "user-1")
	if err != nil || ok {
		t.Fatalf("IsAdmin(user-1) = %v, %v", ok, err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Algebra Basics.pdf": "Algebra_Basics.pdf",
		"notes/v1.pdf":       "notes_v1.pdf",
		"résumé.pdf":         "r_sum_.pdf",
		"  weird  name  ":    "weird_name",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
