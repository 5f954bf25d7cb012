package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/curtbushko/zoom-to-moodle/internal/drive"
	"github.com/curtbushko/zoom-to-moodle/internal/store"
)

type fakeResolver struct {
	calls [][]string
	err   error
}

func (f *fakeResolver) ResolveFolder(ctx context.Context, segments []string) (*drive.File, error) {
	f.calls = append(f.calls, segments)
	if f.err != nil {
		return nil, f.err
	}
	return &drive.File{ID: "folder-" + strings.Join(segments, "|"), MimeType: drive.FolderMimeType}, nil
}

// pageLink builds a link whose course sits under the given categories,
// nearest first
func pageLink(course string, categories ...string) *store.PageLink {
	var category *store.CourseCategory
	for i := len(categories) - 1; i >= 0; i-- {
		category = &store.CourseCategory{Name: categories[i], Parent: category}
	}
	return &store.PageLink{
		ID: 1,
		Page: &store.Page{
			Course: &store.Course{FullName: course, Category: category},
		},
	}
}

func TestGenerateDirectory(t *testing.T) {
	tests := []struct {
		name          string
		link          *store.PageLink
		expectedPath  string
		expectedError bool
	}{
		{
			name:         "four category levels",
			link:         pageLink("Cálculo I", "Bloco A", "Turma 2024", "Engenharia", "Graduação"),
			expectedPath: "Graduação/Engenharia/Turma 2024/Bloco A/Cálculo I",
		},
		{
			name:         "deeper levels are ignored",
			link:         pageLink("Cálculo I", "Bloco A", "Turma 2024", "Engenharia", "Graduação", "Root"),
			expectedPath: "Graduação/Engenharia/Turma 2024/Bloco A/Cálculo I",
		},
		{
			name:         "missing levels are skipped",
			link:         pageLink("Pós Live", "MBA"),
			expectedPath: "MBA/Pós Live",
		},
		{
			name:         "blank category names are skipped",
			link:         pageLink("Course", "  ", "Top"),
			expectedPath: "Top/Course",
		},
		{
			name:         "course without categories",
			link:         pageLink("  Course  "),
			expectedPath: "Course",
		},
		{
			name:          "no course",
			link:          &store.PageLink{ID: 2},
			expectedError: true,
		},
		{
			name:          "nil link",
			link:          nil,
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewDirectoryManager(nil, nil)
			result, err := manager.GenerateDirectory(tt.link)
			if tt.expectedError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result.RelativePath != tt.expectedPath {
				t.Errorf("Expected %q, got %q", tt.expectedPath, result.RelativePath)
			}
			if result.Segments[len(result.Segments)-1] != result.Course {
				t.Errorf("Expected course as last segment, got %v", result.Segments)
			}
		})
	}
}

func TestResolveFolderIsCached(t *testing.T) {
	resolver := &fakeResolver{}
	manager := NewDirectoryManager(resolver, nil)
	link := pageLink("Cálculo I", "Bloco A")

	for i := 0; i < 3; i++ {
		folder, result, err := manager.ResolveFolder(context.Background(), link)
		if err != nil {
			t.Fatalf("ResolveFolder failed: %v", err)
		}
		if folder.ID != "folder-Bloco A|Cálculo I" {
			t.Errorf("Unexpected folder %s", folder.ID)
		}
		if result.RelativePath != "Bloco A/Cálculo I" {
			t.Errorf("Unexpected path %s", result.RelativePath)
		}
	}

	if len(resolver.calls) != 1 {
		t.Errorf("Expected one Drive lookup, got %d", len(resolver.calls))
	}
	stats := manager.GetStats()
	if stats.FoldersResolved != 1 || stats.CacheHits != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestResolveFolderErrors(t *testing.T) {
	manager := NewDirectoryManager(nil, nil)
	if _, _, err := manager.ResolveFolder(context.Background(), pageLink("Course")); err == nil {
		t.Error("Expected error without resolver")
	}

	resolver := &fakeResolver{err: errors.New("quota exceeded")}
	manager = NewDirectoryManager(resolver, nil)
	if _, _, err := manager.ResolveFolder(context.Background(), pageLink("Course")); err == nil {
		t.Error("Expected resolver error")
	}

	// failures are not cached
	resolver.err = nil
	if _, _, err := manager.ResolveFolder(context.Background(), pageLink("Course")); err != nil {
		t.Errorf("Expected retry to succeed, got %v", err)
	}
}
