package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type CategoryModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Slug        string `gorm:"uniqueIndex;not null"`
	Description string
	Icon        string
	Color       string
	CreatedAt   time.Time `gorm:"not null"`
}

func (CategoryModel) TableName() string { return "categories" }

type PDFModel struct {
	ID            string `gorm:"primaryKey"`
	Title         string `gorm:"not null"`
	Description   string
	FileURL       string `gorm:"not null"`
	ThumbnailURL  string
	CategoryID    *string `gorm:"index"`
	FileSize      int64
	PageCount     int
	Author        string
	DownloadCount int64     `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (PDFModel) TableName() string { return "pdfs" }

type DownloadModel struct {
	ID           string    `gorm:"primaryKey"`
	UserID       string    `gorm:"not null;index"`
	PDFID        string    `gorm:"not null;index;column:pdf_id"`
	DownloadedAt time.Time `gorm:"not null;index"`
}

func (DownloadModel) TableName() string { return "download_history" }

type ProfileModel struct {
	UserID            string `gorm:"primaryKey"`
	Username          string `gorm:"uniqueIndex;not null"`
	UsernameConfirmed bool   `gorm:"not null;default:false"`
	Preferences       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time
}

func (ProfileModel) TableName() string { return "profiles" }

type UserRoleModel struct {
	UserID string `gorm:"primaryKey"`
	Role   string `gorm:"primaryKey"`
}

func (UserRoleModel) TableName() string { return "user_roles" }
