package domain

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Category groups PDFs for browsing. Slug is the external lookup key.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Color       string    `json:"color,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PDF is one catalog record. CategoryName and CategorySlug are filled in
// from the referenced category on reads; they are not stored on the row.
type PDF struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	FileURL       string    `json:"fileUrl"`
	ThumbnailURL  string    `json:"thumbnailUrl,omitempty"`
	CategoryID    string    `json:"categoryId,omitempty"`
	FileSize      int64     `json:"fileSize,omitempty"`
	PageCount     int       `json:"pageCount,omitempty"`
	Author        string    `json:"author,omitempty"`
	DownloadCount int64     `json:"downloadCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`

	CategoryName string `json:"categoryName,omitempty"`
	CategorySlug string `json:"categorySlug,omitempty"`
}

// PDFUpdate carries the full field set for an update. Callers pass the
// existing file/thumbnail URLs through explicitly; FileSize is nil unless a
// new PDF asset was actually uploaded.
type PDFUpdate struct {
	Title        string
	Description  string
	CategoryID   string
	Author       string
	PageCount    int
	FileURL      string
	ThumbnailURL string
	FileSize     *int64
}

// Download is one append-only download-history entry.
type Download struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	PDFID        string    `json:"pdfId"`
	DownloadedAt time.Time `json:"downloadedAt"`

	PDFTitle     string `json:"pdfTitle,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	FileURL      string `json:"fileUrl,omitempty"`
	CategoryName string `json:"categoryName,omitempty"`
}

// UsernameCheck is the derived availability result. It is recomputed on
// every check and never cached past the current input.
type UsernameCheck struct {
	Available   bool     `json:"available"`
	Suggestions []string `json:"suggestions"`
}

type Profile struct {
	UserID            string            `json:"userId"`
	Username          string            `json:"username"`
	UsernameConfirmed bool              `json:"usernameConfirmed"`
	Preferences       map[string]string `json:"preferences,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}
