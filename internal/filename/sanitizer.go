// Package filename builds the names recording files and folders get on Google Drive
package filename

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
)

// DriveFile holds the name and media type of a file to create on Drive
type DriveFile struct {
	Name      string
	MimeType  string
	Extension string
}

type fileTypeSpec struct {
	mimeType  string
	extension string
}

// Only these recording types are copied to Drive
var fileTypes = map[string]fileTypeSpec{
	recordings.FileTypeMP4:  {mimeType: "video/mp4", extension: "mp4"},
	recordings.FileTypeCHAT: {mimeType: "text/plain", extension: "txt"},
	recordings.FileTypeM4A:  {mimeType: "audio/mp4", extension: "m4a"},
}

// Labeler returns the display label of a file type, e.g. "Vídeo"
type Labeler interface {
	FileType(fileType string) string
}

// FileSanitizer names recording files for Drive
type FileSanitizer interface {
	// CleanSegment normalizes a name used as a file or folder name
	CleanSegment(name string) string

	// DriveFile derives "{start} - {course} ({label}).{ext}" for a recording file
	DriveFile(file recordings.File, course string) (DriveFile, error)

	// Supported reports whether a recording file type is copied to Drive
	Supported(fileType string) bool
}

// FileSanitizerOptions contains configuration options for the file sanitizer
type FileSanitizerOptions struct {
	Labeler Labeler

	// MaxNameLength caps the length in runes of a segment (default: 200)
	MaxNameLength int

	// DefaultName replaces segments that are empty after cleaning (default: "untitled")
	DefaultName string
}

type fileSanitizer struct {
	labeler       Labeler
	maxNameLength int
	defaultName   string

	controlChars   *regexp.Regexp
	multipleSpaces *regexp.Regexp
}

// NewFileSanitizer creates a new FileSanitizer with the given options
func NewFileSanitizer(options FileSanitizerOptions) FileSanitizer {
	maxLength := options.MaxNameLength
	if maxLength <= 0 {
		maxLength = 200
	}

	defaultName := options.DefaultName
	if defaultName == "" {
		defaultName = "untitled"
	}

	return &fileSanitizer{
		labeler:        options.Labeler,
		maxNameLength:  maxLength,
		defaultName:    defaultName,
		controlChars:   regexp.MustCompile(`[\x00-\x1f\x7f]`),
		multipleSpaces: regexp.MustCompile(`\s+`),
	}
}

// CleanSegment composes the name to NFC, drops control characters, collapses
// whitespace and truncates on a rune boundary. Accents are kept: course names
// are shown to students as they are written.
func (fs *fileSanitizer) CleanSegment(name string) string {
	cleaned := norm.NFC.String(name)
	cleaned = fs.controlChars.ReplaceAllString(cleaned, " ")
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSpace(fs.multipleSpaces.ReplaceAllString(cleaned, " "))

	if cleaned == "" {
		return ""
	}

	runes := []rune(cleaned)
	if len(runes) > fs.maxNameLength {
		cleaned = strings.TrimSpace(string(runes[:fs.maxNameLength]))
	}
	return cleaned
}

func (fs *fileSanitizer) Supported(fileType string) bool {
	_, ok := fileTypes[strings.ToUpper(fileType)]
	return ok
}

func (fs *fileSanitizer) DriveFile(file recordings.File, course string) (DriveFile, error) {
	kind, ok := fileTypes[strings.ToUpper(file.FileType)]
	if !ok {
		return DriveFile{}, fmt.Errorf("file type %q is not copied to Drive", file.FileType)
	}

	start := file.StartForDownload
	if start == "" && !file.Start.IsZero() {
		start = file.Start.Format(recordings.DownloadLayout)
	}
	if start == "" {
		return DriveFile{}, fmt.Errorf("recording file %s has no start time", file.ID)
	}

	courseName := fs.CleanSegment(course)
	if courseName == "" {
		courseName = fs.defaultName
	}

	label := file.TypeLabel
	if label == "" && fs.labeler != nil {
		label = fs.labeler.FileType(file.FileType)
	}
	if label == "" {
		label = file.FileType
	}

	name := fmt.Sprintf("%s - %s (%s).%s", start, courseName, fs.CleanSegment(label), kind.extension)
	return DriveFile{
		Name:      norm.NFC.String(name),
		MimeType:  kind.mimeType,
		Extension: kind.extension,
	}, nil
}
