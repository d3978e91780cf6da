package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gamerneson12-art/learnhub-portal/pkg/domain"
)

const migrateLockID int64 = 48150421

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&CategoryModel{},
			&PDFModel{},
			&DownloadModel{},
			&ProfileModel{},
			&UserRoleModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// ListCategories returns all categories ordered by name.
func (s *GormStore) ListCategories() ([]domain.Category, error) {
	var models []CategoryModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Category, 0, len(models))
	for _, m := range models {
		res = append(res, categoryFromModel(m))
	}
	return res, nil
}

// GetCategoryBySlug looks up a category by its slug.
func (s *GormStore) GetCategoryBySlug(slug string) (domain.Category, bool, error) {
	var model CategoryModel
	if err := s.db.Where("slug = ?", slug).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Category{}, false, nil
		}
		return domain.Category{}, false, err
	}
	return categoryFromModel(model), true, nil
}

// pdfRow is a PDF joined with its category's display fields.
type pdfRow struct {
	PDFModel     `gorm:"embedded"`
	CategoryName *string
	CategorySlug *string
}

func (s *GormStore) pdfQuery() *gorm.DB {
	return s.db.Model(&PDFModel{}).
		Select("pdfs.*, categories.name AS category_name, categories.slug AS category_slug").
		Joins("LEFT JOIN categories ON categories.id = pdfs.category_id")
}

// ListPDFs returns catalog records newest first. A category slug that
// matches no category yields an empty result rather than dropping the
// filter.
func (s *GormStore) ListPDFs(opts ListPDFOptions) ([]domain.PDF, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	tx := s.pdfQuery()
	if slug := strings.TrimSpace(opts.CategorySlug); slug != "" {
		category, ok, err := s.GetCategoryBySlug(slug)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []domain.PDF{}, nil
		}
		tx = tx.Where("pdfs.category_id = ?", category.ID)
	}
	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + search + "%"
		tx = tx.Where("pdfs.title ILIKE ? OR pdfs.description ILIKE ?", pattern, pattern)
	}
	var rows []pdfRow
	if err := tx.Order("pdfs.created_at DESC").Limit(limit).Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.PDF, 0, len(rows))
	for _, row := range rows {
		res = append(res, pdfFromRow(row))
	}
	return res, nil
}

// GetPDF retrieves one record with category enrichment.
func (s *GormStore) GetPDF(id string) (domain.PDF, bool, error) {
	var rows []pdfRow
	if err := s.pdfQuery().Where("pdfs.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return domain.PDF{}, false, err
	}
	if len(rows) == 0 {
		return domain.PDF{}, false, nil
	}
	return pdfFromRow(rows[0]), true, nil
}

// InsertPDF creates a new catalog row.
func (s *GormStore) InsertPDF(pdf domain.PDF) error {
	model := pdfToModel(pdf)
	return s.db.Create(&model).Error
}

// UpdatePDF rewrites the record's fields. file_size is touched only when
// the update carries a new size.
func (s *GormStore) UpdatePDF(id string, update domain.PDFUpdate) error {
	updates := map[string]any{
		"title":         update.Title,
		"description":   update.Description,
		"category_id":   nullableID(update.CategoryID),
		"author":        update.Author,
		"page_count":    update.PageCount,
		"file_url":      update.FileURL,
		"thumbnail_url": update.ThumbnailURL,
		"updated_at":    time.Now().UTC(),
	}
	if update.FileSize != nil {
		updates["file_size"] = *update.FileSize
	}
	return s.db.Model(&PDFModel{}).Where("id = ?", id).Updates(updates).Error
}

// DeletePDF removes the row only. Stored assets are left in place.
func (s *GormStore) DeletePDF(id string) error {
	return s.db.Delete(&PDFModel{}, "id = ?", id).Error
}

// InsertDownload appends one history entry.
func (s *GormStore) InsertDownload(d domain.Download) error {
	model := DownloadModel{
		ID:           d.ID,
		UserID:       d.UserID,
		PDFID:        d.PDFID,
		DownloadedAt: d.DownloadedAt,
	}
	return s.db.Create(&model).Error
}

// IncrementDownloadCount bumps the counter with SQL-side arithmetic so
// concurrent downloads never lose an update.
func (s *GormStore) IncrementDownloadCount(pdfID string) error {
	return s.db.Model(&PDFModel{}).Where("id = ?", pdfID).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1)).Error
}

// ListDownloadsByUser returns a user's history newest first, enriched with
// the referenced PDF's display fields.
func (s *GormStore) ListDownloadsByUser(userID string, limit int) ([]domain.Download, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	type downloadRow struct {
		DownloadModel `gorm:"embedded"`
		PDFTitle      *string
		ThumbnailURL  *string
		FileURL       *string
		CategoryName  *string
	}
	var rows []downloadRow
	if err := s.db.Model(&DownloadModel{}).
		Select(`download_history.*, pdfs.title AS pdf_title, pdfs.thumbnail_url,
			pdfs.file_url, categories.name AS category_name`).
		Joins("LEFT JOIN pdfs ON pdfs.id = download_history.pdf_id").
		Joins("LEFT JOIN categories ON categories.id = pdfs.category_id").
		Where("download_history.user_id = ?", userID).
		Order("download_history.downloaded_at DESC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Download, 0, len(rows))
	for _, row := range rows {
		d := domain.Download{
			ID:           row.ID,
			UserID:       row.UserID,
			PDFID:        row.PDFID,
			DownloadedAt: row.DownloadedAt,
		}
		d.PDFTitle = deref(row.PDFTitle)
		d.ThumbnailURL = deref(row.ThumbnailURL)
		d.FileURL = deref(row.FileURL)
		d.CategoryName = deref(row.CategoryName)
		res = append(res, d)
	}
	return res, nil
}

// HasRole reports whether the user holds the given role.
func (s *GormStore) HasRole(userID string, role domain.Role) (bool, error) {
	var count int64
	if err := s.db.Model(&UserRoleModel{}).
		Where("user_id = ? AND role = ?", userID, string(role)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetProfile returns a user's profile.
func (s *GormStore) GetProfile(userID string) (domain.Profile, bool, error) {
	var model ProfileModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Profile{}, false, nil
		}
		return domain.Profile{}, false, err
	}
	return profileFromModel(model), true, nil
}

// SaveProfile creates or updates a profile.
func (s *GormStore) SaveProfile(p domain.Profile) error {
	model := profileToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "username_confirmed", "preferences", "updated_at"}),
	}).Create(&model).Error
}

// UsernameTaken checks whether a username is already claimed.
func (s *GormStore) UsernameTaken(username string) (bool, error) {
	var count int64
	if err := s.db.Model(&ProfileModel{}).
		Where("username = ?", strings.ToLower(strings.TrimSpace(username))).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func categoryFromModel(m CategoryModel) domain.Category {
	return domain.Category{
		ID:          m.ID,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: m.Description,
		Icon:        m.Icon,
		Color:       m.Color,
		CreatedAt:   m.CreatedAt,
	}
}

func pdfToModel(p domain.PDF) PDFModel {
	return PDFModel{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		FileURL:       p.FileURL,
		ThumbnailURL:  p.ThumbnailURL,
		CategoryID:    nullableID(p.CategoryID),
		FileSize:      p.FileSize,
		PageCount:     p.PageCount,
		Author:        p.Author,
		DownloadCount: p.DownloadCount,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func pdfFromRow(row pdfRow) domain.PDF {
	p := domain.PDF{
		ID:            row.ID,
		Title:         row.Title,
		Description:   row.Description,
		FileURL:       row.FileURL,
		ThumbnailURL:  row.ThumbnailURL,
		FileSize:      row.FileSize,
		PageCount:     row.PageCount,
		Author:        row.Author,
		DownloadCount: row.DownloadCount,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.CategoryID != nil {
		p.CategoryID = *row.CategoryID
	}
	p.CategoryName = deref(row.CategoryName)
	p.CategorySlug = deref(row.CategorySlug)
	return p
}

func profileToModel(p domain.Profile) ProfileModel {
	prefs, _ := json.Marshal(p.Preferences)
	return ProfileModel{
		UserID:            p.UserID,
		Username:          p.Username,
		UsernameConfirmed: p.UsernameConfirmed,
		Preferences:       prefs,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func profileFromModel(m ProfileModel) domain.Profile {
	var prefs map[string]string
	if len(m.Preferences) > 0 {
		_ = json.Unmarshal(m.Preferences, &prefs)
	}
	return domain.Profile{
		UserID:            m.UserID,
		Username:          m.Username,
		UsernameConfirmed: m.UsernameConfirmed,
		Preferences:       prefs,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func nullableID(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return &id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
