package api

import (
	"net/url"
	"strings"

	"spool/internal/queue"
	"spool/internal/services"
	"spool/internal/textutil"
)

// Job converts the request into a job record. defaultLang fills
// transcribe_lang when transcription is requested without one.
func (r EnqueueRequest) Job(defaultLang string) (*queue.Job, error) {
	target := strings.TrimSpace(r.URL)
	if target == "" {
		return nil, services.Wrap(services.ErrValidation, "api", "enqueue", "url is required", nil)
	}
	if IsListingURL(target) {
		return nil, services.Wrap(services.ErrValidation, "api", "enqueue",
			"listing urls are not accepted here; use /check-channel", nil)
	}

	wantVideo := r.Video.Or(true)
	wantAudio := r.Audio.Or(false)
	media := queue.MediaVideo
	switch {
	case wantVideo && wantAudio:
		media = queue.MediaBoth
	case wantAudio:
		media = queue.MediaAudio
	}
	if explicit := strings.TrimSpace(r.Media); explicit != "" {
		parsed, ok := queue.ParseMedia(explicit)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "enqueue", "media must be video, audio, or both", nil)
		}
		media = parsed
	}

	audioFormat := strings.ToLower(strings.TrimSpace(r.AudioFormat))
	if audioFormat == "" {
		if media.WantsAudio() {
			audioFormat = "mp3"
		} else {
			audioFormat = "wav"
		}
	}

	job := &queue.Job{
		URL:              target,
		Filename:         textutil.SanitizeFileName(r.Filename),
		Media:            media,
		AudioFormat:      audioFormat,
		FormatSelector:   strings.TrimSpace(r.Format),
		IncludeSubs:      r.IncludeSubs.Or(false),
		SubLangs:         strings.TrimSpace(r.SubLangs),
		Transcribe:       r.Transcribe.Or(false),
		TranscribePrompt: strings.TrimSpace(r.TranscribePrompt),
		CallbackURL:      strings.TrimSpace(r.CallbackURL),
		ExternalID:       strings.TrimSpace(r.DBID),
	}
	if job.ExternalID == "" {
		job.ExternalID = strings.TrimSpace(r.ExternalID)
	}
	if job.Transcribe {
		job.TranscribeLang = strings.ToLower(strings.TrimSpace(r.TranscribeLang))
		if job.TranscribeLang == "" {
			job.TranscribeLang = defaultLang
		}
	}
	return job, nil
}

// IsListingURL reports whether raw names a playlist, channel, or handle page
// rather than a single item.
func IsListingURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	path := strings.ToLower(parsed.Path)
	query := parsed.Query()
	if query.Get("list") != "" && query.Get("v") == "" {
		return true
	}
	if strings.HasPrefix(path, "/playlist") {
		return true
	}
	for _, prefix := range []string{"/channel/", "/c/", "/user/", "/@"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
