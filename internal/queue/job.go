package queue

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidJob marks records that cannot be executed.
var ErrInvalidJob = errors.New("invalid job")

// Job is the typed view of a job record.
type Job struct {
	ID string

	URL              string
	Filename         string
	Media            Media
	AudioFormat      string
	FormatSelector   string
	IncludeSubs      bool
	SubLangs         string
	Transcribe       bool
	TranscribeLang   string
	TranscribePrompt string
	CallbackURL      string
	ExternalID       string

	Status     Status
	Progress   float64
	Heartbeat  time.Time
	RetryCount int
	LastError  string
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Result

	// Extra holds fields outside the fixed record shape so they survive a
	// read-modify-write cycle.
	Extra map[string]string
}

// Result carries the fields populated by a successful attempt.
type Result struct {
	PublicURL      string
	VideoFile      string
	AudioFile      string
	TranscriptFile string
	TranscriptLang string
	SubtitleFiles  []string
	Duration       float64
	VideoQuality   string
	VideoFPS       float64
	AudioQuality   string
	Ext            string
	Storage        string
}

// Fields renders the populated result values.
func (r Result) Fields() map[string]string {
	out := make(map[string]string, 11)
	putString(out, FieldPublicURL, r.PublicURL)
	putString(out, FieldVideoFile, r.VideoFile)
	putString(out, FieldAudioFile, r.AudioFile)
	putString(out, FieldTranscriptFile, r.TranscriptFile)
	putString(out, FieldTranscriptLang, r.TranscriptLang)
	if len(r.SubtitleFiles) > 0 {
		out[FieldSubtitleFiles] = strings.Join(r.SubtitleFiles, ",")
	}
	putFloat(out, FieldDuration, r.Duration)
	putString(out, FieldVideoQuality, r.VideoQuality)
	putFloat(out, FieldVideoFPS, r.VideoFPS)
	putString(out, FieldAudioQuality, r.AudioQuality)
	putString(out, FieldExt, r.Ext)
	putString(out, FieldStorage, r.Storage)
	return out
}

// ToFields renders the job as a text map. Empty values are omitted.
func (j *Job) ToFields() map[string]string {
	out := make(map[string]string, 32)
	for k, v := range j.Extra {
		if v != "" {
			out[k] = v
		}
	}
	putString(out, FieldID, j.ID)
	putString(out, FieldURL, j.URL)
	putString(out, FieldFilename, j.Filename)
	putString(out, FieldMedia, string(j.Media))
	putString(out, FieldAudioFormat, j.AudioFormat)
	putString(out, FieldFormatSelector, j.FormatSelector)
	out[FieldIncludeSubs] = strconv.FormatBool(j.IncludeSubs)
	putString(out, FieldSubLangs, j.SubLangs)
	out[FieldTranscribe] = strconv.FormatBool(j.Transcribe)
	putString(out, FieldTranscribeLang, j.TranscribeLang)
	putString(out, FieldTranscribePrompt, j.TranscribePrompt)
	putString(out, FieldCallbackURL, j.CallbackURL)
	putString(out, FieldExternalID, j.ExternalID)
	putString(out, FieldStatus, string(j.Status))
	if j.Progress > 0 {
		out[FieldProgress] = FormatFloat(j.Progress)
	}
	putTime(out, FieldHeartbeat, j.Heartbeat)
	if j.RetryCount > 0 || j.started() {
		out[FieldRetryCount] = strconv.Itoa(j.RetryCount)
	}
	putString(out, FieldLastError, j.LastError)
	putString(out, FieldError, j.Error)
	putTime(out, FieldCreatedAt, j.CreatedAt)
	putTime(out, FieldUpdatedAt, j.UpdatedAt)
	for k, v := range j.Result.Fields() {
		out[k] = v
	}
	return out
}

// started reports whether a worker has picked the job up.
func (j *Job) started() bool {
	return j.Status != "" && j.Status != StatusQueued
}

// FromFields builds a Job from a stored text map. Unparseable numeric or time
// values are left at their zero value.
func FromFields(id string, fields map[string]string) *Job {
	job := &Job{ID: id}
	if v := fields[FieldID]; v != "" && id == "" {
		job.ID = v
	}
	job.URL = fields[FieldURL]
	job.Filename = fields[FieldFilename]
	job.Media = Media(fields[FieldMedia])
	job.AudioFormat = fields[FieldAudioFormat]
	job.FormatSelector = fields[FieldFormatSelector]
	job.IncludeSubs = ParseBool(fields[FieldIncludeSubs])
	job.SubLangs = fields[FieldSubLangs]
	job.Transcribe = ParseBool(fields[FieldTranscribe])
	job.TranscribeLang = fields[FieldTranscribeLang]
	job.TranscribePrompt = fields[FieldTranscribePrompt]
	job.CallbackURL = fields[FieldCallbackURL]
	job.ExternalID = fields[FieldExternalID]

	job.Status = Status(fields[FieldStatus])
	job.Progress = parseFloat(fields[FieldProgress])
	job.Heartbeat = parseTime(fields[FieldHeartbeat])
	job.RetryCount, _ = strconv.Atoi(fields[FieldRetryCount])
	job.LastError = fields[FieldLastError]
	job.Error = fields[FieldError]
	job.CreatedAt = parseTime(fields[FieldCreatedAt])
	job.UpdatedAt = parseTime(fields[FieldUpdatedAt])

	job.PublicURL = fields[FieldPublicURL]
	job.VideoFile = fields[FieldVideoFile]
	job.AudioFile = fields[FieldAudioFile]
	job.TranscriptFile = fields[FieldTranscriptFile]
	job.TranscriptLang = fields[FieldTranscriptLang]
	if v := fields[FieldSubtitleFiles]; v != "" {
		job.SubtitleFiles = strings.Split(v, ",")
	}
	job.Duration = parseFloat(fields[FieldDuration])
	job.VideoQuality = fields[FieldVideoQuality]
	job.VideoFPS = parseFloat(fields[FieldVideoFPS])
	job.AudioQuality = fields[FieldAudioQuality]
	job.Ext = fields[FieldExt]
	job.Storage = fields[FieldStorage]

	for k, v := range fields {
		if _, ok := knownFields[k]; ok {
			continue
		}
		if job.Extra == nil {
			job.Extra = make(map[string]string)
		}
		job.Extra[k] = v
	}
	return job
}

// Validate checks the fields the pipeline needs before the first attempt.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidJob)
	}
	raw := strings.TrimSpace(j.URL)
	if raw == "" {
		return fmt.Errorf("%w: missing url", ErrInvalidJob)
	}
	if parsed, err := url.Parse(raw); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: url %q is not absolute", ErrInvalidJob, raw)
	}
	if strings.TrimSpace(j.Filename) == "" {
		return fmt.Errorf("%w: missing filename", ErrInvalidJob)
	}
	if _, ok := ParseMedia(string(j.Media)); !ok {
		return fmt.Errorf("%w: unsupported media %q", ErrInvalidJob, j.Media)
	}
	if j.Media.WantsAudio() && strings.TrimSpace(j.AudioFormat) == "" {
		return fmt.Errorf("%w: audio requested without audio_format", ErrInvalidJob)
	}
	return nil
}

// ParseBool accepts the text forms producers write for booleans.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// FormatFloat renders a float in its shortest exact text form.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatTime renders a timestamp the way records store it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func putString(dst map[string]string, key, value string) {
	if value != "" {
		dst[key] = value
	}
}

func putFloat(dst map[string]string, key string, value float64) {
	if value != 0 {
		dst[key] = FormatFloat(value)
	}
}

func putTime(dst map[string]string, key string, value time.Time) {
	if !value.IsZero() {
		dst[key] = FormatTime(value)
	}
}

func parseFloat(value string) float64 {
	if value == "" {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return f
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		// unix seconds, as some producers write heartbeats
		return time.Unix(0, int64(secs*float64(time.Second))).UTC()
	}
	return time.Time{}
}
