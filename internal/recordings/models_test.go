package recordings

import (
	"testing"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

func TestFormatMeetingNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{81234567890, "81-234-567-890"},
		{123456789, "123-456-789"},
		{1234, "1-234"},
		{12, "12"},
		{0, "0"},
	}

	for _, tt := range tests {
		if got := FormatMeetingNumber(tt.number); got != tt.expected {
			t.Errorf("FormatMeetingNumber(%d) = %s, expected %s", tt.number, got, tt.expected)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2 KB"},
		{20 * 1024 * 1024, "20 MB"},
		{20*1024*1024 - 1, "19 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.expected {
			t.Errorf("FormatFileSize(%d) = %s, expected %s", tt.size, got, tt.expected)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "00:00:00"},
		{90 * time.Second, "00:01:30"},
		{2*time.Hour + 15*time.Minute + 30*time.Second, "02:15:30"},
		{-time.Minute, "00:00:00"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.duration); got != tt.expected {
			t.Errorf("FormatDuration(%v) = %s, expected %s", tt.duration, got, tt.expected)
		}
	}
}

func TestSortByStart(t *testing.T) {
	base := time.Date(2024, 3, 5, 22, 0, 0, 0, time.UTC)
	meetings := []MeetingRecordings{
		{UUID: "b", StartTime: base.Add(time.Hour)},
		{UUID: "a", StartTime: base},
		{UUID: "c", StartTime: base.Add(2 * time.Hour)},
	}

	SortByStart(meetings, true)
	if meetings[0].UUID != "a" || meetings[2].UUID != "c" {
		t.Errorf("Unexpected ascending order %v %v %v", meetings[0].UUID, meetings[1].UUID, meetings[2].UUID)
	}

	SortByStart(meetings, false)
	if meetings[0].UUID != "c" || meetings[2].UUID != "a" {
		t.Errorf("Unexpected descending order %v %v %v", meetings[0].UUID, meetings[1].UUID, meetings[2].UUID)
	}
}

func file(fileType string, size int64, id string) File {
	return File{RecordingFile: zoom.RecordingFile{
		ID:          id,
		FileType:    fileType,
		FileSize:    size,
		PlayURL:     "https://zoom.us/rec/play/" + id,
		DownloadURL: "https://zoom.us/rec/download/" + id,
	}}
}

func TestCandidates(t *testing.T) {
	const minSize = DefaultMinVideoSize

	tests := []struct {
		name     string
		files    []File
		urls     []string
		indexes  []int
		multiple bool
	}{
		{
			name:    "video and chat",
			files:   []File{file("MP4", minSize, "v1"), file("CHAT", 10, "c1")},
			urls:    []string{"https://zoom.us/rec/play/v1", "https://zoom.us/rec/download/c1"},
			indexes: []int{1, 1},
		},
		{
			name:  "small video drops its chat",
			files: []File{file("MP4", minSize-1, "v1"), file("CHAT", 10, "c1")},
		},
		{
			name:  "chat before any video is ignored",
			files: []File{file("CHAT", 10, "c1"), file("M4A", minSize, "a1")},
		},
		{
			name: "two videos",
			files: []File{
				file("MP4", minSize, "v1"), file("CHAT", 10, "c1"),
				file("MP4", minSize-1, "v2"), file("CHAT", 10, "c2"),
				file("MP4", 2*minSize, "v3"), file("TIMELINE", 10, "t1"),
			},
			urls: []string{
				"https://zoom.us/rec/play/v1",
				"https://zoom.us/rec/download/c1",
				"https://zoom.us/rec/play/v3",
			},
			indexes:  []int{1, 1, 2},
			multiple: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := Candidates(tt.files, minSize)
			if len(candidates) != len(tt.urls) {
				t.Fatalf("Expected %d candidates, got %d", len(tt.urls), len(candidates))
			}
			for i, candidate := range candidates {
				if candidate.URL != tt.urls[i] {
					t.Errorf("Candidate %d: expected %s, got %s", i, tt.urls[i], candidate.URL)
				}
				if candidate.VideoIndex != tt.indexes[i] {
					t.Errorf("Candidate %d: expected index %d, got %d", i, tt.indexes[i], candidate.VideoIndex)
				}
			}
			if MultipleVideos(candidates) != tt.multiple {
				t.Errorf("Expected MultipleVideos %v", tt.multiple)
			}
		})
	}
}
