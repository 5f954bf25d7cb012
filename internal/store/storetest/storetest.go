// Package storetest opens in-memory content stores for tests
package storetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/curtbushko/zoom-to-moodle/internal/config"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
)

// Seeded ids
const (
	CourseID int64 = 10
	PageCMID int64 = 100
)

// New opens a migrated sqlite store private to the running test
func New(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: "file:" + name + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return store.New(db)
}

// SeedCourse creates the course "Cálculo I" under four category levels
// ("Escola de Tecnologia" at the top, "Bloco A" nearest) with one page
// holding content
func SeedCourse(t *testing.T, s *store.Store, endDate time.Time, content string) {
	t.Helper()
	db := s.DB()
	require.NoError(t, db.Create(&store.CourseCategory{ID: 1, Name: "Escola de Tecnologia"}).Error)
	require.NoError(t, db.Create(&store.CourseCategory{ID: 2, Name: "Engenharia de Software", ParentID: 1}).Error)
	require.NoError(t, db.Create(&store.CourseCategory{ID: 3, Name: "Turma 2024", ParentID: 2}).Error)
	require.NoError(t, db.Create(&store.CourseCategory{ID: 4, Name: "Bloco A", ParentID: 3}).Error)
	require.NoError(t, db.Create(&store.Course{ID: CourseID, FullName: "Cálculo I", CategoryID: 4, EndDate: endDate.Unix()}).Error)
	require.NoError(t, db.Create(&store.Page{CMID: PageCMID, CourseID: CourseID, Name: "Gravações", Content: content}).Error)
}

// LinkPage binds meetingNumber to the seeded page and returns the loaded link
func LinkPage(t *testing.T, s *store.Store, meetingNumber int64, watermark int64) *store.PageLink {
	t.Helper()
	link := &store.PageLink{PageCMID: PageCMID, ZoomMeetingNumber: meetingNumber, LastAddedTimestamp: watermark}
	require.NoError(t, s.CreatePageLink(context.Background(), link))

	loaded, err := s.GetPageLink(context.Background(), link.ID)
	require.NoError(t, err)
	return loaded
}
