// Package i18n holds the English and Brazilian Portuguese labels and messages
// shown on course pages, in batch reports and in the CLI.
package i18n

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys
const (
	ErrorNoPageInstanceFound   = "error_no_page_instance_found"
	ErrorNoRecordingsFound     = "error_no_recordings_found"
	ErrorRecordingAlreadyAdded = "error_recording_already_added"
	ErrorAddRecordingsToPage   = "error_add_recordings_to_page"
	RecordingsAddedToPage      = "recordings_added_to_page"
	RecordingPart              = "recording_part"
	Participants               = "participants"
	NotAvailable               = "not_available"
	NoMeetings                 = "no_meetings"
	NoRecordings               = "no_recordings"
	MeetingLive                = "meeting_live"
	MeetingPast                = "meeting_past"
	MeetingUpcoming            = "meeting_upcoming"
	FileDeletedFromZoom        = "file_deleted_from_zoom"
	FileDeleteFromZoomFailed   = "file_delete_from_zoom_failed"
	FileUploadedToDrive        = "file_uploaded_to_drive"
	FileAlreadyOnDrive         = "file_already_on_drive"
	LinkReplaced               = "link_replaced"
	RecordingViewLogged        = "recording_view_logged"
	PageLinkAdded              = "page_link_added"
	PageLinkUpdated            = "page_link_updated"
	PageLinkDeleted            = "page_link_deleted"
	ParticipantsNoPermission   = "participants_no_permission"
	ParticipantsNoData         = "participants_no_data"
	ParticipantsTruncated      = "participants_truncated"
)

// Supported languages
var (
	English             = language.English
	BrazilianPortuguese = language.BrazilianPortuguese

	matcher = language.NewMatcher([]language.Tag{English, BrazilianPortuguese})
)

type entry struct {
	key string
	en  string
	pt  string
}

var entries = []entry{
	{ErrorNoPageInstanceFound, "Page for recording links from meeting ID %s not found.", "Página para gravações da reunião de ID %s não encontrada."},
	{ErrorNoRecordingsFound, "No videos over the minimum file size (%s) found.", "Não foi encontrado nenhum vídeo acima do tamanho mínimo (%s)."},
	{ErrorRecordingAlreadyAdded, "Recording was already added to page.", "Gravação já havia sido adicionada à página."},
	{ErrorAddRecordingsToPage, "Error adding recording to the page.", "Erro ao adicionar gravação à página."},
	{RecordingsAddedToPage, `Meeting recording successfully added to page. <a href="%s">Click here to open page.</a>`, `Gravação adicionada à página com sucesso. <a href="%s">Clique aqui para abrir a página.</a>`},
	{RecordingPart, "part", "parte"},
	{Participants, "Participants", "Participantes"},
	{NotAvailable, "N/D", "N/D"},
	{NoMeetings, "No meetings found.", "Nenhuma reunião encontrada."},
	{NoRecordings, "No cloud recordings found.", "Nenhuma gravação na nuvem encontrada."},
	{MeetingLive, "Live meetings", "Reuniões em andamento"},
	{MeetingPast, "Past meetings", "Reuniões realizadas"},
	{MeetingUpcoming, "Upcoming meetings", "Reuniões futuras"},
	{FileDeletedFromZoom, "File deleted from Zoom.", "Arquivo excluído do Zoom."},
	{FileDeleteFromZoomFailed, "Error deleting file from Zoom (status %d).", "Erro ao excluir arquivo do Zoom (status %d)."},
	{FileUploadedToDrive, "File %s sent to Google Drive.", "Arquivo %s enviado para o Google Drive."},
	{FileAlreadyOnDrive, "File %s was already on Google Drive.", "Arquivo %s já estava no Google Drive."},
	{LinkReplaced, "Link replaced on page.", "Link substituído na página."},
	{RecordingViewLogged, "Recording %s accessed by user %d.", "Registrado acesso à gravação de uuid %s pelo usuário %d."},
	{PageLinkAdded, "Recording page added successfully", "Página de gravações adicionada com sucesso"},
	{PageLinkUpdated, "Recording page edited successfully", "Página de gravações editada com sucesso"},
	{PageLinkDeleted, "Recording page removed successfully", "Página de gravações removida com sucesso"},
	{ParticipantsNoPermission, "You do not have permission to see these participants.", "Você não tem permissão para ver estes participantes."},
	{ParticipantsNoData, "No participant data for this meeting.", "Não há dados de participantes para esta reunião."},
	{ParticipantsTruncated, "Only the first page of participants was imported.", "Apenas a primeira página de participantes foi importada."},

	{"recording_text_MP4", "Class video", "Vídeo da aula"},
	{"recording_text_CHAT", "Chat transcript", "Transcrição do chat"},

	{"file_type_", "N/D", "N/D"},
	{"file_type_MP4", "Video", "Vídeo"},
	{"file_type_CHAT", "Chat", "Chat"},
	{"file_type_M4A", "Audio", "Áudio"},

	{"recording_status_completed", "Completed", "Disponível"},
	{"recording_status_processing", "Processing", "Em processamento"},

	{"meeting_type_1", "Instant", "Instantânea"},
	{"meeting_type_2", "Scheduled", "Agendada"},
	{"meeting_type_3", "Recurring (no fixed time)", "Recorrente (sem horário fixo)"},
	{"meeting_type_8", "Recurring (fixed time)", "Recorrente (com horário fixo)"},

	{"user_type_1", "Basic", "Básico"},
	{"user_type_2", "Pro", "Profissional"},
	{"user_type_3", "Corp", "Corporativo"},

	{"category_meeting", "Meeting commands", "Comandos de reunião"},
	{"category_recording", "Recording commands", "Comandos de gravação"},

	{"command_meeting_list", "List meetings", "Listar reuniões"},
	{"command_meeting_list_description", "Lists all Zoom meetings with hosts managed by the school.", "Lista todas as reuniões do Zoom com apresentadores gerenciados pela instituição."},
	{"command_recording_manage_pages", "Manage recording link pages", "Gerenciar páginas de links de gravações"},
	{"command_recording_manage_pages_description", "Allows to associate Zoom meetings to page modules, so recording links can be added automatically.", "Permite associar reuniões do Zoom a módulos de página, para incluir links das gravações automaticamente."},
	{"command_recording_add_to_page", "Add recordings to pages", "Adicionar gravações às páginas"},
	{"command_recording_add_to_page_description", "Adds new cloud recordings of every due course to its page.", "Adiciona as novas gravações na nuvem de cada curso em andamento à sua página."},
	{"command_recording_send_to_drive", "Send recordings to Google Drive", "Enviar gravações para o Google Drive"},
	{"command_recording_send_to_drive_description", "Copies the files of one recording to Google Drive and replaces its links on the page.", "Copia os arquivos de uma gravação para o Google Drive e substitui seus links na página."},
	{"command_recording_send_course_to_drive", "Send course recordings to Google Drive", "Enviar gravações do curso para o Google Drive"},
	{"command_participants_report", "Meeting participants", "Participantes da reunião"},
	{"command_participants_report_description", "Shows who attended an occurrence and who watched its recording.", "Mostra quem participou de uma ocorrência e quem assistiu à gravação."},
	{"command_log_list", "Log", "Log"},
	{"command_log_list_description", "Lists the audit log entries of a period.", "Lista os registros do log de um período."},
	{"command_drive_auth", "Authorize Google Drive", "Autorizar Google Drive"},
	{"category_participants", "Participant commands", "Comandos de participantes"},
	{"category_log", "Log commands", "Comandos de log"},
	{"category_drive", "Google Drive commands", "Comandos do Google Drive"},
}

var builder = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(English))
	for _, e := range entries {
		_ = b.SetString(English, e.key, e.en)
		_ = b.SetString(BrazilianPortuguese, e.key, e.pt)
	}
	return b
}

// Translator renders messages in one language
type Translator struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a translator for the closest supported match of lang ("en", "pt-BR", "pt_br").
// Unknown languages fall back to English.
func New(lang string) *Translator {
	tag, _ := language.MatchStrings(matcher, strings.ReplaceAll(lang, "_", "-"))
	base, _ := tag.Base()
	if base.String() == "pt" {
		tag = BrazilianPortuguese
	} else {
		tag = English
	}
	return &Translator{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(builder)),
	}
}

// Language returns the BCP 47 tag in use
func (t *Translator) Language() string {
	return t.tag.String()
}

// Text returns the message for key formatted with args. Unknown keys are returned as-is.
func (t *Translator) Text(key string, args ...interface{}) string {
	if !Has(key) {
		return key
	}
	return t.printer.Sprintf(key, args...)
}

// FileType returns the label of a recording file type. An empty type reads N/D.
func (t *Translator) FileType(fileType string) string {
	return t.lookup("file_type_"+fileType, fileType)
}

// RecordingStatus returns the label of a recording file status
func (t *Translator) RecordingStatus(status string) string {
	return t.lookup("recording_status_"+status, status)
}

// RecordingText returns the anchor text used on course pages for a file type
func (t *Translator) RecordingText(fileType string) string {
	return t.lookup("recording_text_"+fileType, fileType)
}

// MeetingType returns the label of a Zoom meeting type
func (t *Translator) MeetingType(meetingType int) string {
	return t.lookup("meeting_type_"+strconv.Itoa(meetingType), strconv.Itoa(meetingType))
}

// UserType returns the label of a Zoom user type
func (t *Translator) UserType(userType int) string {
	return t.lookup("user_type_"+strconv.Itoa(userType), strconv.Itoa(userType))
}

func (t *Translator) lookup(key, fallback string) string {
	if !Has(key) {
		return fallback
	}
	return t.printer.Sprintf(key)
}

var known = func() map[string]bool {
	keys := make(map[string]bool, len(entries))
	for _, e := range entries {
		keys[e.key] = true
	}
	return keys
}()

// Has reports whether key is in the catalog
func Has(key string) bool {
	return known[key]
}
