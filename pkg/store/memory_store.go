package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/gamerneson12-art/learnhub-portal/pkg/domain"
)

// MemoryStore keeps catalog data in-process. It backs tests and local runs
// without Postgres.
type MemoryStore struct {
	mu         sync.RWMutex
	categories map[string]domain.Category // key: category ID
	pdfs       map[string]domain.PDF
	downloads  []domain.Download
	profiles   map[string]domain.Profile // key: user ID
	roles      map[string]map[domain.Role]bool
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]domain.Category),
		pdfs:       make(map[string]domain.PDF),
		profiles:   make(map[string]domain.Profile),
		roles:      make(map[string]map[domain.Role]bool),
	}
}

// SaveCategory stores or replaces a category.
func (m *MemoryStore) SaveCategory(c domain.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = c
}

// GrantRole assigns a role to a user.
func (m *MemoryStore) GrantRole(userID string, role domain.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[userID] == nil {
		m.roles[userID] = make(map[domain.Role]bool)
	}
	m.roles[userID][role] = true
}

// ListCategories returns categories sorted by name.
func (m *MemoryStore) ListCategories() ([]domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Category, 0, len(m.categories))
	for _, c := range m.categories {
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// GetCategoryBySlug looks a category up by slug.
func (m *MemoryStore) GetCategoryBySlug(slug string) (domain.Category, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.categories {
		if c.Slug == slug {
			return c, true, nil
		}
	}
	return domain.Category{}, false, nil
}

// ListPDFs applies the same filter composition as the SQL store: a missing
// slug yields an empty result, search matches title or description
// case-insensitively, results come newest first up to limit.
func (m *MemoryStore) ListPDFs(opts ListPDFOptions) ([]domain.PDF, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	categoryID := ""
	if slug := strings.TrimSpace(opts.CategorySlug); slug != "" {
		found := false
		for _, c := range m.categories {
			if c.Slug == slug {
				categoryID = c.ID
				found = true
				break
			}
		}
		if !found {
			return []domain.PDF{}, nil
		}
	}
	search := strings.ToLower(strings.TrimSpace(opts.Search))
	res := make([]domain.PDF, 0, len(m.pdfs))
	for _, p := range m.pdfs {
		if categoryID != "" && p.CategoryID != categoryID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		res = append(res, m.enrich(p))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// GetPDF retrieves one record with category enrichment.
func (m *MemoryStore) GetPDF(id string) (domain.PDF, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pdfs[id]
	if !ok {
		return domain.PDF{}, false, nil
	}
	return m.enrich(p), true, nil
}

// InsertPDF creates a record.
func (m *MemoryStore) InsertPDF(pdf domain.PDF) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdfs[pdf.ID] = pdf
	return nil
}

// UpdatePDF rewrites a record's fields, touching file size only when given.
func (m *MemoryStore) UpdatePDF(id string, update domain.PDFUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pdfs[id]
	if !ok {
		return nil
	}
	p.Title = update.Title
	p.Description = update.Description
	p.CategoryID = update.CategoryID
	p.Author = update.Author
	p.PageCount = update.PageCount
	p.FileURL = update.FileURL
	p.ThumbnailURL = update.ThumbnailURL
	if update.FileSize != nil {
		p.FileSize = *update.FileSize
	}
	m.pdfs[id] = p
	return nil
}

// DeletePDF removes the record. Deleting an unknown ID is not an error.
func (m *MemoryStore) DeletePDF(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pdfs, id)
	return nil
}

// InsertDownload appends a history entry.
func (m *MemoryStore) InsertDownload(d domain.Download) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, d)
	return nil
}

// IncrementDownloadCount bumps the counter for a record.
func (m *MemoryStore) IncrementDownloadCount(pdfID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pdfs[pdfID]
	if !ok {
		return nil
	}
	p.DownloadCount++
	m.pdfs[pdfID] = p
	return nil
}

// ListDownloadsByUser returns a user's history newest first.
func (m *MemoryStore) ListDownloadsByUser(userID string, limit int) ([]domain.Download, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = DefaultListLimit
	}
	res := make([]domain.Download, 0)
	for _, d := range m.downloads {
		if d.UserID != userID {
			continue
		}
		if p, ok := m.pdfs[d.PDFID]; ok {
			d.PDFTitle = p.Title
			d.ThumbnailURL = p.ThumbnailURL
			d.FileURL = p.FileURL
			if c, ok := m.categories[p.CategoryID]; ok {
				d.CategoryName = c.Name
			}
		}
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].DownloadedAt.After(res[j].DownloadedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// HasRole reports whether a user holds a role.
func (m *MemoryStore) HasRole(userID string, role domain.Role) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.roles[userID][role], nil
}

// GetProfile returns a user's profile.
func (m *MemoryStore) GetProfile(userID string) (domain.Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	return p, ok, nil
}

// SaveProfile creates or replaces a profile.
func (m *MemoryStore) SaveProfile(p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

// UsernameTaken checks whether any profile claims the username.
func (m *MemoryStore) UsernameTaken(username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	username = strings.ToLower(strings.TrimSpace(username))
	for _, p := range m.profiles {
		if p.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) enrich(p domain.PDF) domain.PDF {
	if p.CategoryID == "" {
		return p
	}
	if c, ok := m.categories[p.CategoryID]; ok {
		p.CategoryName = c.Name
		p.CategorySlug = c.Slug
	}
	return p
}
