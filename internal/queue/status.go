package queue

import (
	"strconv"
	"strings"
)

// Status is the job lifecycle field. Stage statuses may carry a progress
// suffix such as "downloading (42.5%)".
type Status string

const (
	StatusQueued          Status = "queued"
	StatusProcessing      Status = "processing"
	StatusDownloading     Status = "downloading"
	StatusExtractingAudio Status = "extracting-audio"
	StatusTranscribing    Status = "transcribing"
	StatusUploading       Status = "uploading"
	StatusDone            Status = "done"
	StatusError           Status = "error"
	StatusSkipped         Status = "skipped"
)

// Phase strips any progress suffix.
func (s Status) Phase() Status {
	text := string(s)
	if idx := strings.Index(text, " ("); idx >= 0 {
		text = text[:idx]
	}
	return Status(strings.TrimSpace(text))
}

// IsTerminal reports whether the status can no longer change.
func (s Status) IsTerminal() bool {
	switch s.Phase() {
	case StatusDone, StatusError, StatusSkipped:
		return true
	default:
		return false
	}
}

// StageStatus renders the in-flight status for a stage at the given percent.
func StageStatus(stage Status, percent float64) Status {
	return Status(string(stage) + " (" + strconv.FormatFloat(percent, 'f', -1, 64) + "%)")
}

// Media selects which artifacts a job produces.
type Media string

const (
	MediaVideo Media = "video"
	MediaAudio Media = "audio"
	MediaBoth  Media = "both"
)

// ParseMedia normalizes a media value; unknown input reports false.
func ParseMedia(value string) (Media, bool) {
	switch Media(strings.ToLower(strings.TrimSpace(value))) {
	case MediaVideo:
		return MediaVideo, true
	case MediaAudio:
		return MediaAudio, true
	case MediaBoth:
		return MediaBoth, true
	default:
		return "", false
	}
}

// WantsVideo reports whether the video artifact is produced.
func (m Media) WantsVideo() bool { return m == MediaVideo || m == MediaBoth }

// WantsAudio reports whether an audio artifact is produced.
func (m Media) WantsAudio() bool { return m == MediaAudio || m == MediaBoth }
