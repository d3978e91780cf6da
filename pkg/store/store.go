package store

import (
	"github.com/gamerneson12-art/learnhub-portal/pkg/domain"
)

// ListPDFOptions parameterizes catalog reads. CategorySlug and Search are
// optional and compose conjunctively; Limit defaults to DefaultListLimit.
type ListPDFOptions struct {
	CategorySlug string
	Search       string
	Limit        int
}

// DefaultListLimit bounds list results when the caller gives no limit.
// There is no offset; larger result sets are truncated.
const DefaultListLimit = 50

// Store defines persistence operations for categories, PDFs, downloads,
// profiles, and roles.
type Store interface {
	// categories
	ListCategories() ([]domain.Category, error)
	GetCategoryBySlug(slug string) (domain.Category, bool, error)

	// pdfs
	ListPDFs(opts ListPDFOptions) ([]domain.PDF, error)
	GetPDF(id string) (domain.PDF, bool, error)
	InsertPDF(pdf domain.PDF) error
	UpdatePDF(id string, update domain.PDFUpdate) error
	DeletePDF(id string) error

	// downloads
	InsertDownload(d domain.Download) error
	IncrementDownloadCount(pdfID string) error
	ListDownloadsByUser(userID string, limit int) ([]domain.Download, error)

	// profiles and roles
	HasRole(userID string, role domain.Role) (bool, error)
	GetProfile(userID string) (domain.Profile, bool, error)
	SaveProfile(p domain.Profile) error
	UsernameTaken(username string) (bool, error)
}
