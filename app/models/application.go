package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ApplicationStatusDraft     = "draft"
	ApplicationStatusApplied   = "applied"
	ApplicationStatusInterview = "interview"
	ApplicationStatusOffer     = "offer"
	ApplicationStatusRejected  = "rejected"
)

// Application is a tracked job application. The webhook core never
// mutates it; change events re-read it (with children) to build the
// snapshot forwarded downstream.
type Application struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	User       User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Company    string         `gorm:"type:varchar(200);not null" json:"company"`
	Position   string         `gorm:"type:varchar(200);not null" json:"position"`
	Status     string         `gorm:"type:varchar(32);not null;default:'draft';index" json:"status"`
	Location   string         `gorm:"type:varchar(200)" json:"location"`
	SourceURL  string         `gorm:"type:varchar(500)" json:"source_url"`
	Notes      string         `gorm:"type:text" json:"notes"`
	AppliedAt  *time.Time     `gorm:"type:timestamp;default:null" json:"applied_at,omitempty"`
	Documents  []Document     `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	Interviews []Interview    `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"interviews,omitempty"`
	Reminders  []Reminder     `gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" json:"reminders,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// Document is a file attached to an application (resume, cover letter).
type Document struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ApplicationID uint      `gorm:"not null;index" json:"application_id"`
	Kind          string    `gorm:"type:varchar(50);not null" json:"kind"`
	FileName      string    `gorm:"type:varchar(255);not null" json:"file_name"`
	StorageKey    string    `gorm:"type:varchar(500);not null" json:"storage_key"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Interview is a scheduled interview round for an application.
type Interview struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ApplicationID uint       `gorm:"not null;index" json:"application_id"`
	Round         string     `gorm:"type:varchar(100);not null" json:"round"`
	ScheduledAt   *time.Time `gorm:"type:timestamp;default:null" json:"scheduled_at,omitempty"`
	Location      string     `gorm:"type:varchar(200)" json:"location"`
	Notes         string     `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Reminder is a follow-up reminder attached to an application.
type Reminder struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ApplicationID uint       `gorm:"not null;index" json:"application_id"`
	Message       string     `gorm:"type:varchar(500);not null" json:"message"`
	DueAt         *time.Time `gorm:"type:timestamp;default:null" json:"due_at,omitempty"`
	Done          bool       `gorm:"default:false" json:"done"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// FindApplicationWithChildren loads an application including documents,
// interviews and reminders for snapshot forwarding.
func FindApplicationWithChildren(db *gorm.DB, id uint) (*Application, error) {
	var app Application
	err := db.
		Preload("Documents").
		Preload("Interviews").
		Preload("Reminders").
		First(&app, id).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}
