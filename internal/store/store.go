package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateMeeting is returned when a meeting number already has a page link
	ErrDuplicateMeeting = errors.New("meeting number already linked to a page")
)

const pageLinkPreload = "Page.Course.Category.Parent.Parent.Parent"

// Store is the gorm-backed content store
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a store on an open database handle
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB returns the underlying handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// FindPageForMeeting returns the page link for a meeting number, with its page,
// course and category chain loaded.
func (s *Store) FindPageForMeeting(ctx context.Context, meetingNumber int64) (*PageLink, error) {
	var link PageLink
	err := s.db.WithContext(ctx).
		Preload(pageLinkPreload).
		Where("zoom_meeting_number = ?", meetingNumber).
		First(&link).Error
	if err != nil {
		return nil, notFound(err, "page link for meeting %d", meetingNumber)
	}
	return &link, nil
}

// GetPageLink returns a page link by id
func (s *Store) GetPageLink(ctx context.Context, id uint) (*PageLink, error) {
	var link PageLink
	if err := s.db.WithContext(ctx).Preload(pageLinkPreload).First(&link, id).Error; err != nil {
		return nil, notFound(err, "page link %d", id)
	}
	return &link, nil
}

// ListPageLinks returns every page link ordered by course name
func (s *Store) ListPageLinks(ctx context.Context) ([]PageLink, error) {
	return s.ListDuePages(ctx, false, time.Time{})
}

// ListDuePages returns the page links the batch pass visits. With
// withinLastMonth only courses that ended less than a month before now (or end
// later) are included.
func (s *Store) ListDuePages(ctx context.Context, withinLastMonth bool, now time.Time) ([]PageLink, error) {
	query := s.db.WithContext(ctx).
		Preload(pageLinkPreload).
		Joins("LEFT JOIN pages ON pages.cm_id = page_links.page_cm_id").
		Joins("LEFT JOIN courses ON courses.id = pages.course_id")

	if withinLastMonth {
		cutoff := now.AddDate(0, -1, 0).Unix()
		query = query.Where("courses.end_date > ?", cutoff)
	}

	var links []PageLink
	if err := query.Order("courses.full_name, page_links.zoom_meeting_number").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to list page links: %w", err)
	}
	return links, nil
}

// CreatePageLink inserts a page link. A second link for the same meeting
// number fails with ErrDuplicateMeeting.
func (s *Store) CreatePageLink(ctx context.Context, link *PageLink) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&PageLink{}).Where("zoom_meeting_number = ?", link.ZoomMeetingNumber).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check meeting number: %w", err)
		}
		if count > 0 {
			return ErrDuplicateMeeting
		}
		if err := tx.Omit("Page").Create(link).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateMeeting
			}
			return fmt.Errorf("failed to create page link: %w", err)
		}
		return nil
	})
}

// UpdatePageLink changes the page and meeting number of an existing link
func (s *Store) UpdatePageLink(ctx context.Context, link *PageLink) error {
	result := s.db.WithContext(ctx).Model(&PageLink{}).
		Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"page_cm_id":          link.PageCMID,
			"zoom_meeting_number": link.ZoomMeetingNumber,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateMeeting
		}
		return fmt.Errorf("failed to update page link %d: %w", link.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("page link %d: %w", link.ID, ErrNotFound)
	}
	return nil
}

// DeletePageLink removes a page link
func (s *Store) DeletePageLink(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&PageLink{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete page link %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("page link %d: %w", id, ErrNotFound)
	}
	return nil
}

// AdvanceWatermark moves last_added_timestamp forward to startUnix. A value
// older than the stored one leaves the row untouched and reports false.
func (s *Store) AdvanceWatermark(ctx context.Context, pageLinkID uint, startUnix int64) (bool, error) {
	result := s.db.WithContext(ctx).Model(&PageLink{}).
		Where("id = ? AND last_added_timestamp <= ?", pageLinkID, startUnix).
		Update("last_added_timestamp", startUnix)
	if result.Error != nil {
		return false, fmt.Errorf("failed to advance watermark of page link %d: %w", pageLinkID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetPage returns a page with its course and category chain
func (s *Store) GetPage(ctx context.Context, cmID int64) (*Page, error) {
	var page Page
	err := s.db.WithContext(ctx).
		Preload("Course.Category.Parent.Parent.Parent").
		Where("cm_id = ?", cmID).
		First(&page).Error
	if err != nil {
		return nil, notFound(err, "page %d", cmID)
	}
	return &page, nil
}

// UpdatePageContent replaces the page content and stamps who changed it and when
func (s *Store) UpdatePageContent(ctx context.Context, cmID int64, content string, userID int64, now time.Time) error {
	result := s.db.WithContext(ctx).Model(&Page{}).
		Where("cm_id = ?", cmID).
		Updates(map[string]interface{}{
			"content":       content,
			"user_modified": userID,
			"time_modified": now.Unix(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update page %d: %w", cmID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("page %d: %w", cmID, ErrNotFound)
	}
	return nil
}

// AddLog appends an entry to the audit log
func (s *Store) AddLog(ctx context.Context, classFunction, message string) error {
	entry := AuditLog{
		Timestamp:     s.now().Unix(),
		ClassFunction: classFunction,
		Message:       message,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to add log entry: %w", err)
	}
	return nil
}

// ListLogs returns audit entries between from and to, newest first. A zero
// bound is open.
func (s *Store) ListLogs(ctx context.Context, from, to time.Time) ([]AuditLog, error) {
	query := s.db.WithContext(ctx).Model(&AuditLog{})
	if !from.IsZero() {
		query = query.Where("timestamp >= ?", from.Unix())
	}
	if !to.IsZero() {
		query = query.Where("timestamp <= ?", to.Unix())
	}

	var logs []AuditLog
	if err := query.Order("timestamp DESC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return logs, nil
}

// HasParticipants reports whether any participant row exists for an occurrence
func (s *Store) HasParticipants(ctx context.Context, meetingUUID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Participant{}).
		Where("meeting_uuid = ?", meetingUUID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count participants: %w", err)
	}
	return count > 0, nil
}

// InsertParticipants stores participant rows in batches
func (s *Store) InsertParticipants(ctx context.Context, rows []Participant) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return fmt.Errorf("failed to insert participants: %w", err)
	}
	return nil
}

// ListParticipants returns the rows of one occurrence ordered by name, email and join time
func (s *Store) ListParticipants(ctx context.Context, meetingUUID string) ([]Participant, error) {
	var rows []Participant
	err := s.db.WithContext(ctx).
		Where("meeting_uuid = ?", meetingUUID).
		Order("user_name, user_email, join_time").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return rows, nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf("failed to load "+format+": %w", append(args, err)...)
}
