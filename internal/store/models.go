package store

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CourseCategory is one level of the course category tree
type CourseCategory struct {
	ID       int64  `gorm:"primaryKey;autoIncrement:false"`
	Name     string `gorm:"size:255;not null"`
	ParentID int64  `gorm:"index;not null;default:0"`

	Parent *CourseCategory `gorm:"foreignKey:ParentID"`
}

// Course is the course a recording page belongs to
type Course struct {
	ID         int64  `gorm:"primaryKey;autoIncrement:false"`
	FullName   string `gorm:"size:255;not null"`
	CategoryID int64  `gorm:"index;not null;default:0"`
	EndDate    int64  `gorm:"not null;default:0"` // unix seconds, 0 when open ended

	Category *CourseCategory `gorm:"foreignKey:CategoryID"`
}

// Page is a course page whose HTML content receives recording links
type Page struct {
	CMID         int64  `gorm:"column:cm_id;primaryKey;autoIncrement:false"`
	CourseID     int64  `gorm:"index;not null"`
	Name         string `gorm:"size:255"`
	Content      string `gorm:"type:text"`
	UserModified int64
	TimeModified int64

	Course *Course `gorm:"foreignKey:CourseID"`
}

// PageLink binds a Zoom meeting number to the page receiving its recordings.
// LastAddedTimestamp is the start (unix seconds) of the newest occurrence
// already handled for this page.
type PageLink struct {
	ID                 uint  `gorm:"primaryKey"`
	PageCMID           int64 `gorm:"column:page_cm_id;index;not null"`
	ZoomMeetingNumber  int64 `gorm:"uniqueIndex;not null"`
	LastAddedTimestamp int64 `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Page *Page `gorm:"foreignKey:PageCMID;references:CMID"`
}

// CourseName returns the full name of the linked course, if loaded
func (l *PageLink) CourseName() string {
	if l.Page == nil || l.Page.Course == nil {
		return ""
	}
	return l.Page.Course.FullName
}

// Categories returns the category names from the course's own category up to
// the fourth ancestor. Missing levels are empty strings.
func (l *PageLink) Categories() [4]string {
	var names [4]string
	if l.Page == nil || l.Page.Course == nil {
		return names
	}
	category := l.Page.Course.Category
	for i := 0; i < len(names) && category != nil; i++ {
		names[i] = category.Name
		category = category.Parent
	}
	return names
}

// Content returns the linked page content, if loaded
func (l *PageLink) Content() string {
	if l.Page == nil {
		return ""
	}
	return l.Page.Content
}

// RecordingLocation reports where the page's recordings currently live:
// "Z" for Zoom, "G" for Google Drive, "Z/G" for both and "" for none.
func (l *PageLink) RecordingLocation() string {
	content := l.Content()
	var locations []string
	if strings.Contains(content, "zoom.us/rec") || strings.Contains(content, "api.zoom.us") {
		locations = append(locations, "Z")
	}
	if strings.Contains(content, "drive.google.com") {
		locations = append(locations, "G")
	}
	return strings.Join(locations, "/")
}

// PageURL returns the address of the page on the site
func PageURL(siteURL string, cmID int64) string {
	return strings.TrimSuffix(siteURL, "/") + "/mod/page/view.php?id=" + strconv.FormatInt(cmID, 10)
}

// AuditLog is one entry of the administrative log
type AuditLog struct {
	ID            string `gorm:"primaryKey;size:36"`
	Timestamp     int64  `gorm:"index;not null"`
	ClassFunction string `gorm:"size:255;not null"`
	Message       string `gorm:"type:text"`
}

// BeforeCreate assigns a random id
func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Participant is one join/leave interval of a participant in an occurrence.
// Recording rows are synthetic entries for someone who watched the recording
// later; they have zero duration and equal join and leave times.
type Participant struct {
	ID            uint    `gorm:"primaryKey"`
	MeetingUUID   string  `gorm:"column:meeting_uuid;size:255;index;not null"`
	MeetingNumber int64   `gorm:"index;not null"`
	Recording     bool    `gorm:"not null;default:false"`
	UserUUID      string  `gorm:"column:user_uuid;size:255"`
	UserName      string  `gorm:"size:255"`
	UserEmail     string  `gorm:"size:255"`
	JoinTime      int64   `gorm:"not null"`
	LeaveTime     int64   `gorm:"not null"`
	Duration      int64   `gorm:"not null;default:0"` // seconds
	Attentiveness float64 `gorm:"not null;default:0"`
	UserID        string  `gorm:"size:64"`
}

// Models lists every table managed by AutoMigrate
func Models() []interface{} {
	return []interface{}{
		&CourseCategory{},
		&Course{},
		&Page{},
		&PageLink{},
		&AuditLog{},
		&Participant{},
	}
}
