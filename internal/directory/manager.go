// Package directory maps a course page to its Google Drive folder
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/drive"
	"github.com/curtbushko/zoom-to-moodle/internal/filename"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
)

// FolderResolver is the part of the Drive client the manager uses
type FolderResolver interface {
	ResolveFolder(ctx context.Context, segments []string) (*drive.File, error)
}

// DirectoryManager resolves the Drive folder for a page link
type DirectoryManager interface {
	// GenerateDirectory derives the folder path of a page link without
	// touching Drive
	GenerateDirectory(link *store.PageLink) (*DirectoryResult, error)

	// ResolveFolder finds or creates the folder of a page link on Drive.
	// Folders resolved once are served from memory.
	ResolveFolder(ctx context.Context, link *store.PageLink) (*drive.File, *DirectoryResult, error)

	GetStats() DirectoryStats
}

// DirectoryResult is the folder path of a page link
type DirectoryResult struct {
	// Segments run from the top category down to the course; empty
	// category levels are left out
	Segments     []string
	Course       string
	RelativePath string
}

// DirectoryStats provides statistics about folder resolution
type DirectoryStats struct {
	FoldersResolved int
	CacheHits       int
	LastResolved    time.Time
}

type directoryManagerImpl struct {
	resolver  FolderResolver
	sanitizer filename.FileSanitizer

	mu      sync.Mutex
	folders map[string]*drive.File
	stats   DirectoryStats
}

// NewDirectoryManager creates a manager. resolver may be nil when only
// GenerateDirectory is used.
func NewDirectoryManager(resolver FolderResolver, sanitizer filename.FileSanitizer) DirectoryManager {
	if sanitizer == nil {
		sanitizer = filename.NewFileSanitizer(filename.FileSanitizerOptions{})
	}
	return &directoryManagerImpl{
		resolver:  resolver,
		sanitizer: sanitizer,
		folders:   make(map[string]*drive.File),
	}
}

// GenerateDirectory builds [cat4, cat3, cat2, cat1, course] from the course's
// category chain, nearest category last
func (dm *directoryManagerImpl) GenerateDirectory(link *store.PageLink) (*DirectoryResult, error) {
	if link == nil {
		return nil, fmt.Errorf("page link cannot be nil")
	}

	course := dm.sanitizer.CleanSegment(link.CourseName())
	if course == "" {
		return nil, fmt.Errorf("page link %d has no course name", link.ID)
	}

	categories := link.Categories()
	segments := make([]string, 0, len(categories)+1)
	for i := len(categories) - 1; i >= 0; i-- {
		if name := dm.sanitizer.CleanSegment(categories[i]); name != "" {
			segments = append(segments, name)
		}
	}
	segments = append(segments, course)

	return &DirectoryResult{
		Segments:     segments,
		Course:       course,
		RelativePath: strings.Join(segments, "/"),
	}, nil
}

func (dm *directoryManagerImpl) ResolveFolder(ctx context.Context, link *store.PageLink) (*drive.File, *DirectoryResult, error) {
	if dm.resolver == nil {
		return nil, nil, fmt.Errorf("no Drive folder resolver configured")
	}

	result, err := dm.GenerateDirectory(link)
	if err != nil {
		return nil, nil, err
	}

	dm.mu.Lock()
	if folder, ok := dm.folders[result.RelativePath]; ok {
		dm.stats.CacheHits++
		dm.mu.Unlock()
		return folder, result, nil
	}
	dm.mu.Unlock()

	folder, err := dm.resolver.ResolveFolder(ctx, result.Segments)
	if err != nil {
		return nil, result, fmt.Errorf("failed to resolve folder %s: %w", result.RelativePath, err)
	}

	dm.mu.Lock()
	dm.folders[result.RelativePath] = folder
	dm.stats.FoldersResolved++
	dm.stats.LastResolved = time.Now()
	dm.mu.Unlock()

	return folder, result, nil
}

func (dm *directoryManagerImpl) GetStats() DirectoryStats {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.stats
}
