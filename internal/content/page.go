// Package content reads and edits the HTML of course recording pages
package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
	"github.com/curtbushko/zoom-to-moodle/internal/recordings"
)

// FileTypeParticipants marks the attendance report link of an occurrence
const FileTypeParticipants = "participants"

// ParticipantsClass is the class of the attendance report list item
const ParticipantsClass = "disciplina_codes"

// Builder renders the block appended to a page for one occurrence
type Builder struct {
	translator *i18n.Translator
	siteURL    string
}

// NewBuilder creates a builder. siteURL is the base of the participants link.
func NewBuilder(translator *i18n.Translator, siteURL string) *Builder {
	if translator == nil {
		translator = i18n.New("en")
	}
	return &Builder{translator: translator, siteURL: strings.TrimSuffix(siteURL, "/")}
}

// ParticipantsURL returns the attendance report address of an occurrence
func (b *Builder) ParticipantsURL(uuid string) string {
	return b.siteURL + "/participants?meetinguuid=" + url.QueryEscape(uuid)
}

// Section renders the heading and link list of one occurrence. The heading
// reads "{date} - Aula {classNumber}".
func (b *Builder) Section(recording *recordings.MeetingRecordings, candidates []recordings.Candidate, classNumber int) string {
	multiple := recordings.MultipleVideos(candidates)

	var sb strings.Builder
	fmt.Fprintf(&sb, "<h2>%s - Aula %d</h2>\n", html.EscapeString(recording.ClassDate()), classNumber)
	sb.WriteString("<ul>\n")

	for _, candidate := range candidates {
		text := b.translator.RecordingText(candidate.FileType)
		if multiple {
			text += fmt.Sprintf(" - %s %d", b.translator.Text(i18n.RecordingPart), candidate.VideoIndex)
		}
		writeLink(&sb, "", recording.UUID, candidate.FileType, candidate.URL, text)
	}
	writeLink(&sb, ParticipantsClass, recording.UUID, FileTypeParticipants,
		b.ParticipantsURL(recording.UUID), b.translator.Text(i18n.Participants))

	sb.WriteString("</ul>\n")
	return sb.String()
}

// Append adds the section of an occurrence to the end of content, numbering
// it after the last class heading already on the page
func (b *Builder) Append(content string, recording *recordings.MeetingRecordings, candidates []recordings.Candidate) string {
	section := b.Section(recording, candidates, NextClassNumber(content))
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + section
}

func writeLink(sb *strings.Builder, class, uuid, fileType, href, text string) {
	if class != "" {
		fmt.Fprintf(sb, `<li class="%s">`, attr(class))
	} else {
		sb.WriteString("<li>")
	}
	fmt.Fprintf(sb, `<a data-uuid="%s" data-filetype="%s" href="%s" target="_blank">%s</a></li>`+"\n",
		attr(uuid), attr(fileType), attr(href), html.EscapeString(text))
}

// attr escapes only what would end the attribute. URLs stay byte-identical
// so later substring checks find them.
func attr(value string) string {
	return strings.NewReplacer(`"`, "&#34;", "<", "&lt;", ">", "&gt;").Replace(value)
}

// NextClassNumber returns one more than the trailing number of the last <h2>
// on the page, or 1 when there is none
func NextClassNumber(content string) int {
	headings := headingTexts(content)
	if len(headings) == 0 {
		return 1
	}

	fields := strings.Fields(headings[len(headings)-1])
	if len(fields) == 0 {
		return 1
	}
	number, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 1
	}
	return number + 1
}

func headingTexts(content string) []string {
	var headings []string
	var current *strings.Builder

	tokenizer := html.NewTokenizer(strings.NewReader(content))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return headings
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if atom.Lookup(name) == atom.H2 {
				current = &strings.Builder{}
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if atom.Lookup(name) == atom.H2 && current != nil {
				headings = append(headings, current.String())
				current = nil
			}
		case html.TextToken:
			if current != nil {
				current.Write(tokenizer.Text())
			}
		}
	}
}

// ContainsAnyURL reports whether any of urls already appears on the page,
// raw or HTML-escaped
func ContainsAnyURL(content string, urls []string) bool {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if strings.Contains(content, u) || strings.Contains(content, html.EscapeString(u)) {
			return true
		}
	}
	return false
}

// HasOccurrence reports whether the page already links an occurrence
func HasOccurrence(content, uuid string) bool {
	for _, found := range OccurrenceUUIDs(content) {
		if found == uuid {
			return true
		}
	}
	return false
}

// OccurrenceUUIDs returns the distinct data-uuid values on the page in
// document order
func OccurrenceUUIDs(content string) []string {
	var uuids []string
	seen := make(map[string]bool)

	tokenizer := html.NewTokenizer(strings.NewReader(content))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return uuids
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		for {
			key, value, more := tokenizer.TagAttr()
			if string(key) == "data-uuid" {
				uuid := string(value)
				if uuid != "" && !seen[uuid] {
					seen[uuid] = true
					uuids = append(uuids, uuid)
				}
			}
			if !more {
				break
			}
		}
	}
}

// ReplaceLink points the link of one recording file at newURL. The Zoom
// URLs of the file are replaced wherever they appear. When none is found
// (Zoom rotated them) the first anchor of the occurrence with that file type
// whose href is not yet newURL's host is rewritten instead. It reports
// whether the content changed.
func ReplaceLink(content, uuid, fileType, newURL string, zoomURLs ...string) (string, bool) {
	replaced := content
	for _, zoomURL := range zoomURLs {
		if zoomURL == "" {
			continue
		}
		replaced = strings.ReplaceAll(replaced, zoomURL, newURL)
		replaced = strings.ReplaceAll(replaced, html.EscapeString(zoomURL), newURL)
	}
	if replaced != content {
		return replaced, true
	}

	pattern := linkPattern(uuid, fileType)
	newHost := hostOf(newURL)
	done := false

	replaced = pattern.ReplaceAllStringFunc(content, func(match string) string {
		if done {
			return match
		}
		groups := pattern.FindStringSubmatch(match)
		if newHost != "" && hostOf(groups[2]) == newHost {
			return match
		}
		done = true
		return groups[1] + `"` + attr(newURL) + `"`
	})
	return replaced, done
}

func linkPattern(uuid, fileType string) *regexp.Regexp {
	return regexp.MustCompile(`(data-uuid="` + regexp.QuoteMeta(uuid) + `".*?data-filetype="` +
		regexp.QuoteMeta(fileType) + `".*?href=)"(.*?)"`)
}

func hostOf(raw string) string {
	parsed, err := url.Parse(html.UnescapeString(raw))
	if err != nil {
		return ""
	}
	return parsed.Host
}
