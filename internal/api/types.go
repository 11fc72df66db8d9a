package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Flag is a request boolean that also accepts "true"/"false"/"1"/"0".
type Flag struct {
	Value bool
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = Flag{}
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag{Value: b, Set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected boolean, got %s", string(data))
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		*f = Flag{Value: true, Set: true}
	case "false", "0", "no", "":
		*f = Flag{Value: false, Set: true}
	default:
		return fmt.Errorf("expected boolean, got %q", s)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Value)
}

// Or returns the flag value, or def when the flag was absent.
func (f Flag) Or(def bool) bool {
	if !f.Set {
		return def
	}
	return f.Value
}

// Bool returns a set flag.
func Bool(v bool) Flag { return Flag{Value: v, Set: true} }

// EnqueueRequest is the POST /enqueue body.
type EnqueueRequest struct {
	URL              string `json:"url"`
	Filename         string `json:"filename,omitempty"`
	Format           string `json:"format,omitempty"`
	Video            Flag   `json:"video"`
	Audio            Flag   `json:"audio"`
	Media            string `json:"media,omitempty"`
	AudioFormat      string `json:"audio_format,omitempty"`
	IncludeSubs      Flag   `json:"include_subs"`
	SubLangs         string `json:"sub_langs,omitempty"`
	Transcribe       Flag   `json:"transcribe"`
	TranscribeLang   string `json:"transcribe_lang,omitempty"`
	TranscribePrompt string `json:"transcribe_prompt,omitempty"`
	CallbackURL      string `json:"callback_url,omitempty"`
	DBID             string `json:"db_id,omitempty"`
	ExternalID       string `json:"external_id,omitempty"`
}

// EnqueueResponse acknowledges a queued job.
type EnqueueResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// CheckChannelRequest is the POST /check-channel body.
type CheckChannelRequest struct {
	URL         string `json:"url"`
	Track       Flag   `json:"track"`
	Enqueue     Flag   `json:"enqueue"`
	Limit       int    `json:"limit,omitempty"`
	Media       string `json:"media,omitempty"`
	MinDuration *int   `json:"min_duration,omitempty"`
}

// ChannelItem is one qualifying listing entry.
type ChannelItem struct {
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	JobID    string   `json:"job_id,omitempty"`
}

// CheckChannelResponse reports a synchronous channel scan.
type CheckChannelResponse struct {
	Items    []ChannelItem `json:"items"`
	Enqueued []string      `json:"enqueued"`
	Count    int           `json:"count"`
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	OK    bool   `json:"ok"`
	Role  string `json:"role"`
	Store string `json:"store"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
