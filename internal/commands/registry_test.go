package commands

import (
	"strings"
	"testing"

	"github.com/curtbushko/zoom-to-moodle/internal/i18n"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	cmd, ok := r.Get(RecordingSendToDrive)
	if !ok {
		t.Fatal("Expected recording_send_to_drive to be registered")
	}
	if cmd.Usage != "migrate" || cmd.Category != CategoryRecording {
		t.Errorf("Unexpected command %+v", cmd)
	}

	if _, ok := r.Get("user_create"); ok {
		t.Error("Expected unknown command lookup to fail")
	}

	for _, cmd := range r.All() {
		if got := cmd.Label(i18n.New("en")); got == "command_"+string(cmd.ID) {
			t.Errorf("Command %s has no label", cmd.ID)
		}
	}
}

func TestNewRegistryRejectsBadCommands(t *testing.T) {
	tests := []struct {
		name     string
		commands []Command
	}{
		{
			"duplicate id",
			[]Command{command(CategoryLog, "list", "log", true), command(CategoryLog, "list", "log", true)},
		},
		{
			"id not matching category and name",
			[]Command{{ID: "log_list", Category: CategoryDrive, Name: "list"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.commands...); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestGroupByCategory(t *testing.T) {
	groups := GroupByCategory(Default().Index())

	expected := []struct {
		category Category
		ids      []ID
	}{
		{CategoryMeeting, []ID{MeetingList}},
		{CategoryRecording, []ID{RecordingManagePages, RecordingAddToPage, RecordingSendToDrive}},
		{CategoryParticipants, []ID{ParticipantsReport}},
		{CategoryLog, []ID{LogList}},
	}

	if len(groups) != len(expected) {
		t.Fatalf("Expected %d groups, got %d", len(expected), len(groups))
	}
	for i, want := range expected {
		group := groups[i]
		if group.Category != want.category {
			t.Errorf("Group %d: expected %s, got %s", i, want.category, group.Category)
			continue
		}
		if len(group.Commands) != len(want.ids) {
			t.Errorf("Group %s: expected %d commands, got %d", group.Category, len(want.ids), len(group.Commands))
			continue
		}
		for j, id := range want.ids {
			if group.Commands[j].ID != id {
				t.Errorf("Group %s command %d: expected %s, got %s", group.Category, j, id, group.Commands[j].ID)
			}
		}
	}
}

func TestGroupByCategoryDoesNotShareState(t *testing.T) {
	index := Default().Index()
	first := GroupByCategory(index)
	second := GroupByCategory(index)

	first[0].Commands[0].Usage = "changed"
	if second[0].Commands[0].Usage == "changed" {
		t.Error("Expected independent groupings")
	}
}

func TestFormat(t *testing.T) {
	listing := Format(GroupByCategory(Default().Index()), i18n.New("pt-BR"))

	for _, expected := range []string{
		"Comandos de reunião\n",
		"  meetings               Listar reuniões\n",
		"Comandos de gravação\n",
		"  migrate                Enviar gravações para o Google Drive\n",
		"Comandos de participantes\n",
	} {
		if !strings.Contains(listing, expected) {
			t.Errorf("Expected listing to contain %q, got:\n%s", expected, listing)
		}
	}
	if strings.Contains(listing, "migrate-course") {
		t.Error("Commands hidden from the index should not be listed")
	}
}
