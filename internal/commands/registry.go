// Package commands describes the operations the tool offers and groups them
// for index listings
package commands

import (
	"fmt"
	"strings"
)

// Category groups related commands
type Category string

const (
	CategoryMeeting      Category = "meeting"
	CategoryRecording    Category = "recording"
	CategoryParticipants Category = "participants"
	CategoryLog          Category = "log"
	CategoryDrive        Category = "drive"
)

// ID identifies a command, "{category}_{name}"
type ID string

const (
	MeetingList                ID = "meeting_list"
	RecordingManagePages       ID = "recording_manage_pages"
	RecordingAddToPage         ID = "recording_add_to_page"
	RecordingSendToDrive       ID = "recording_send_to_drive"
	RecordingSendCourseToDrive ID = "recording_send_course_to_drive"
	ParticipantsReport         ID = "participants_report"
	LogList                    ID = "log_list"
	DriveAuth                  ID = "drive_auth"
)

// Command describes one operation
type Command struct {
	ID       ID
	Category Category
	Name     string
	// Usage is the CLI invocation, e.g. "pages list"
	Usage string
	// ShowInIndex lists the command in the grouped index
	ShowInIndex bool
}

// Labeler renders localized labels
type Labeler interface {
	Text(key string, args ...interface{}) string
}

// Label returns the localized command name
func (c Command) Label(l Labeler) string {
	return l.Text("command_" + string(c.ID))
}

// Description returns the localized description, or "" when there is none
func (c Command) Description(l Labeler) string {
	key := "command_" + string(c.ID) + "_description"
	if text := l.Text(key); text != key {
		return text
	}
	return ""
}

// Registry is an immutable set of commands in registration order
type Registry struct {
	commands []Command
	byID     map[ID]int
}

// NewRegistry builds a registry. The id of each command must be
// "{category}_{name}" and unique.
func NewRegistry(commands ...Command) (*Registry, error) {
	r := &Registry{byID: make(map[ID]int, len(commands))}
	for _, cmd := range commands {
		if cmd.ID != ID(string(cmd.Category)+"_"+cmd.Name) {
			return nil, fmt.Errorf("command %q does not match category %q and name %q", cmd.ID, cmd.Category, cmd.Name)
		}
		if _, exists := r.byID[cmd.ID]; exists {
			return nil, fmt.Errorf("command %q registered twice", cmd.ID)
		}
		r.byID[cmd.ID] = len(r.commands)
		r.commands = append(r.commands, cmd)
	}
	return r, nil
}

func command(category Category, name, usage string, showInIndex bool) Command {
	return Command{
		ID:          ID(string(category) + "_" + name),
		Category:    category,
		Name:        name,
		Usage:       usage,
		ShowInIndex: showInIndex,
	}
}

// Default returns the registry of every operation of the CLI
func Default() *Registry {
	r, err := NewRegistry(
		command(CategoryMeeting, "list", "meetings", true),
		command(CategoryRecording, "manage_pages", "pages list", true),
		command(CategoryRecording, "add_to_page", "sync", true),
		command(CategoryRecording, "send_to_drive", "migrate", true),
		command(CategoryRecording, "send_course_to_drive", "migrate-course", false),
		command(CategoryParticipants, "report", "participants report", true),
		command(CategoryLog, "list", "log", true),
		command(CategoryDrive, "auth", "drive auth", false),
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns a command by id
func (r *Registry) Get(id ID) (Command, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Command{}, false
	}
	return r.commands[i], true
}

// All returns every command in registration order
func (r *Registry) All() []Command {
	return append([]Command(nil), r.commands...)
}

// Index returns the commands shown in the index
func (r *Registry) Index() []Command {
	var index []Command
	for _, cmd := range r.commands {
		if cmd.ShowInIndex {
			index = append(index, cmd)
		}
	}
	return index
}

// Group is the commands of one category
type Group struct {
	Category Category
	Commands []Command
}

// Label returns the localized category name
func (g Group) Label(l Labeler) string {
	return l.Text("category_" + string(g.Category))
}

// GroupByCategory groups commands by category. Categories keep the order in
// which they first appear and commands keep their relative order.
func GroupByCategory(commands []Command) []Group {
	var groups []Group
	positions := make(map[Category]int)
	for _, cmd := range commands {
		i, ok := positions[cmd.Category]
		if !ok {
			i = len(groups)
			positions[cmd.Category] = i
			groups = append(groups, Group{Category: cmd.Category})
		}
		groups[i].Commands = append(groups[i].Commands, cmd)
	}
	return groups
}

// Format renders groups as an indented listing
func Format(groups []Group, l Labeler) string {
	var b strings.Builder
	for i, group := range groups {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", group.Label(l))
		for _, cmd := range group.Commands {
			fmt.Fprintf(&b, "  %-22s %s\n", cmd.Usage, cmd.Label(l))
			if description := cmd.Description(l); description != "" {
				fmt.Fprintf(&b, "  %-22s %s\n", "", description)
			}
		}
	}
	return b.String()
}
