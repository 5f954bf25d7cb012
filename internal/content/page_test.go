package content

import (
	"strings"
	"testing"
	"time"

	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
	"github.com/curtbushko/zoom-to-moodle/internal/zoom"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	location, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	return location
}

func meeting(t *testing.T) *recordings.MeetingRecordings {
	return &recordings.MeetingRecordings{
		UUID:      "abc/+==",
		Number:    81234567890,
		StartTime: time.Date(2024, 3, 6, 1, 30, 0, 0, time.UTC),
		Location:  saoPaulo(t),
	}
}

func candidate(fileType, url string, index int) recordings.Candidate {
	return recordings.Candidate{
		FileType:   fileType,
		URL:        url,
		VideoIndex: index,
		File:       recordings.File{RecordingFile: zoom.RecordingFile{FileType: fileType}},
	}
}

func TestNextClassNumber(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected int
	}{
		{"empty page", "", 1},
		{"no headings", "<p>Welcome</p>", 1},
		{"single heading", "<h2>01/03/2024 - Aula 1</h2><ul></ul>", 2},
		{"last heading wins", "<h2>Aula 7</h2><p>x</p><h2>05/03/2024 - Aula 8</h2>", 9},
		{"nested markup", "<h2><strong>05/03/2024</strong> - Aula <em>12</em></h2>", 13},
		{"trailing whitespace", "<h2>Aula 4 \n</h2>", 5},
		{"non numeric heading", "<h2>Aula 3</h2><h2>Materials</h2>", 1},
		{"other heading levels ignored", "<h2>Aula 2</h2><h3>Aula 9</h3>", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextClassNumber(tt.content); got != tt.expected {
				t.Errorf("NextClassNumber(%q) = %d, expected %d", tt.content, got, tt.expected)
			}
		})
	}
}

func TestSectionSingleVideo(t *testing.T) {
	builder := NewBuilder(i18n.New("pt-BR"), "https://lms.example.edu/")
	section := builder.Section(meeting(t), []recordings.Candidate{
		candidate("MP4", "https://zoom.us/rec/play/one?x=1&y=2", 1),
		candidate("CHAT", "https://zoom.us/rec/download/chat", 1),
	}, 3)

	expected := "<h2>05/03/2024 - Aula 3</h2>\n" +
		"<ul>\n" +
		`<li><a data-uuid="abc/+==" data-filetype="MP4" href="https://zoom.us/rec/play/one?x=1&y=2" target="_blank">Vídeo da aula</a></li>` + "\n" +
		`<li><a data-uuid="abc/+==" data-filetype="CHAT" href="https://zoom.us/rec/download/chat" target="_blank">Transcrição do chat</a></li>` + "\n" +
		`<li class="disciplina_codes"><a data-uuid="abc/+==" data-filetype="participants" href="https://lms.example.edu/participants?meetinguuid=abc%2F%2B%3D%3D" target="_blank">Participantes</a></li>` + "\n" +
		"</ul>\n"

	if section != expected {
		t.Errorf("Unexpected section:\n%s\nexpected:\n%s", section, expected)
	}
}

func TestSectionMultipleVideosAddsParts(t *testing.T) {
	builder := NewBuilder(i18n.New("en"), "https://lms.example.edu")
	section := builder.Section(meeting(t), []recordings.Candidate{
		candidate("MP4", "https://zoom.us/rec/play/one", 1),
		candidate("CHAT", "https://zoom.us/rec/download/chat", 1),
		candidate("MP4", "https://zoom.us/rec/play/two", 2),
	}, 1)

	for _, want := range []string{
		">Class video - part 1</a>",
		">Chat transcript - part 1</a>",
		">Class video - part 2</a>",
		">Participants</a>",
	} {
		if !strings.Contains(section, want) {
			t.Errorf("Expected section to contain %q:\n%s", want, section)
		}
	}
}

func TestAppendNumbersAfterLastHeading(t *testing.T) {
	builder := NewBuilder(nil, "https://lms.example.edu")
	page := "<p>Intro</p><h2>01/03/2024 - Aula 4</h2><ul></ul>"

	updated := builder.Append(page, meeting(t), []recordings.Candidate{candidate("MP4", "https://zoom.us/rec/play/one", 1)})

	if !strings.HasPrefix(updated, page+"\n") {
		t.Errorf("Expected existing content to be kept, got %q", updated)
	}
	if !strings.Contains(updated, "<h2>05/03/2024 - Aula 5</h2>") {
		t.Errorf("Expected class 5 heading, got %q", updated)
	}
	if NextClassNumber(updated) != 6 {
		t.Errorf("Expected next class 6, got %d", NextClassNumber(updated))
	}
}

func TestContainsAnyURL(t *testing.T) {
	page := `<a href="https://zoom.us/rec/play/one?x=1&amp;y=2">video</a>`

	if !ContainsAnyURL(page, []string{"https://zoom.us/rec/play/one?x=1&y=2"}) {
		t.Error("Expected escaped URL to be found")
	}
	if !ContainsAnyURL(page, []string{"", "https://zoom.us/rec/play/one"}) {
		t.Error("Expected URL prefix to be found")
	}
	if ContainsAnyURL(page, []string{"https://zoom.us/rec/play/two", ""}) {
		t.Error("Expected missing URL not to be found")
	}
	if ContainsAnyURL(page, nil) {
		t.Error("Expected no URLs to report false")
	}
}

func TestOccurrenceUUIDs(t *testing.T) {
	page := `<h2>Aula 1</h2><ul>
<li><a data-uuid="first==" data-filetype="MP4" href="a">v</a></li>
<li><a data-uuid="first==" data-filetype="CHAT" href="b">c</a></li>
</ul><h2>Aula 2</h2><ul>
<li><a data-uuid="second/x" data-filetype="MP4" href="c">v</a></li>
<li><a data-uuid="" href="d">empty</a></li>
</ul>`

	uuids := OccurrenceUUIDs(page)
	if len(uuids) != 2 || uuids[0] != "first==" || uuids[1] != "second/x" {
		t.Errorf("Unexpected uuids %v", uuids)
	}
	if !HasOccurrence(page, "second/x") {
		t.Error("Expected second/x to be linked")
	}
	if HasOccurrence(page, "third") {
		t.Error("Expected third not to be linked")
	}
	if len(OccurrenceUUIDs("")) != 0 {
		t.Error("Expected no uuids on an empty page")
	}
}

func TestReplaceLinkByZoomURL(t *testing.T) {
	builder := NewBuilder(nil, "https://lms.example.edu")
	page := builder.Section(meeting(t), []recordings.Candidate{
		candidate("MP4", "https://zoom.us/rec/play/one", 1),
		candidate("MP4", "https://zoom.us/rec/play/two", 2),
	}, 1)

	updated, changed := ReplaceLink(page, "abc/+==", "MP4", "https://drive.google.com/file/d/2/view",
		"https://zoom.us/rec/play/two", "https://zoom.us/rec/download/two")
	if !changed {
		t.Fatal("Expected content to change")
	}
	if !strings.Contains(updated, "https://zoom.us/rec/play/one") {
		t.Error("Expected first video link to be untouched")
	}
	if strings.Contains(updated, "https://zoom.us/rec/play/two") {
		t.Error("Expected second video link to be replaced")
	}
}

func TestReplaceLinkFallsBackToPattern(t *testing.T) {
	builder := NewBuilder(nil, "https://lms.example.edu")
	page := builder.Section(meeting(t), []recordings.Candidate{
		candidate("MP4", "https://zoom.us/rec/play/old-one", 1),
		candidate("CHAT", "https://zoom.us/rec/download/old-chat", 1),
		candidate("MP4", "https://zoom.us/rec/play/old-two", 2),
	}, 1)

	// rotated URLs no longer match, so anchors are found by uuid and type
	updated, changed := ReplaceLink(page, "abc/+==", "MP4", "https://drive.google.com/file/d/1/view",
		"https://zoom.us/rec/play/new-one")
	if !changed {
		t.Fatal("Expected first video anchor to be rewritten")
	}
	if strings.Contains(updated, "old-one") || !strings.Contains(updated, "old-two") {
		t.Errorf("Expected only the first video to change:\n%s", updated)
	}

	updated, changed = ReplaceLink(updated, "abc/+==", "MP4", "https://drive.google.com/file/d/2/view",
		"https://zoom.us/rec/play/new-two")
	if !changed {
		t.Fatal("Expected second video anchor to be rewritten")
	}
	if strings.Contains(updated, "old-two") || !strings.Contains(updated, "file/d/1/view") {
		t.Errorf("Expected the second video to change and the first to stay:\n%s", updated)
	}

	updated, changed = ReplaceLink(updated, "abc/+==", "CHAT", "https://drive.google.com/file/d/3/view")
	if !changed || strings.Contains(updated, "old-chat") {
		t.Errorf("Expected chat anchor to be rewritten:\n%s", updated)
	}

	if !strings.Contains(updated, "participants?meetinguuid=") {
		t.Error("Expected participants link to be untouched")
	}
}

func TestReplaceLinkNoMatch(t *testing.T) {
	page := `<li><a data-uuid="other" data-filetype="MP4" href="https://zoom.us/rec/play/x">v</a></li>`

	updated, changed := ReplaceLink(page, "abc", "MP4", "https://drive.google.com/file/d/1/view", "https://zoom.us/rec/play/y")
	if changed || updated != page {
		t.Errorf("Expected no change, got %q", updated)
	}
}
