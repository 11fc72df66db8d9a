package queue

// Record field names. Every value is stored as text.
const (
	FieldID               = "id"
	FieldURL              = "url"
	FieldFilename         = "filename"
	FieldMedia            = "media"
	FieldAudioFormat      = "audio_format"
	FieldFormatSelector   = "format_selector"
	FieldIncludeSubs      = "include_subs"
	FieldSubLangs         = "sub_langs"
	FieldTranscribe       = "transcribe"
	FieldTranscribeLang   = "transcribe_lang"
	FieldTranscribePrompt = "transcribe_prompt"
	FieldCallbackURL      = "callback_url"
	FieldExternalID       = "external_id"

	FieldStatus     = "status"
	FieldProgress   = "progress"
	FieldHeartbeat  = "heartbeat"
	FieldRetryCount = "retry_count"
	FieldLastError  = "last_error"
	FieldError      = "error"
	FieldCreatedAt  = "created_at"
	FieldUpdatedAt  = "updated_at"

	FieldPublicURL      = "public_url"
	FieldVideoFile      = "video_file"
	FieldAudioFile      = "audio_file"
	FieldTranscriptFile = "transcript_file"
	FieldTranscriptLang = "transcript_lang"
	FieldSubtitleFiles  = "subtitle_files"
	FieldDuration       = "duration"
	FieldVideoQuality   = "video_quality"
	FieldVideoFPS       = "video_fps"
	FieldAudioQuality   = "audio_quality"
	FieldExt            = "ext"
	FieldStorage        = "storage"
)

var knownFields = map[string]struct{}{
	FieldID: {}, FieldURL: {}, FieldFilename: {}, FieldMedia: {}, FieldAudioFormat: {},
	FieldFormatSelector: {}, FieldIncludeSubs: {}, FieldSubLangs: {}, FieldTranscribe: {},
	FieldTranscribeLang: {}, FieldTranscribePrompt: {}, FieldCallbackURL: {}, FieldExternalID: {},
	FieldStatus: {}, FieldProgress: {}, FieldHeartbeat: {}, FieldRetryCount: {}, FieldLastError: {},
	FieldError: {}, FieldCreatedAt: {}, FieldUpdatedAt: {}, FieldPublicURL: {}, FieldVideoFile: {},
	FieldAudioFile: {}, FieldTranscriptFile: {}, FieldTranscriptLang: {}, FieldSubtitleFiles: {}, FieldDuration: {},
	FieldVideoQuality: {}, FieldVideoFPS: {}, FieldAudioQuality: {}, FieldExt: {}, FieldStorage: {},
}
