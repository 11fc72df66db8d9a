// Package deps reports on the external tools the pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"spool/internal/config"
)

// Requirement defines an external binary a job may invoke.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the tools implied by cfg. The whisper CLI is optional
// because only jobs with transcribe set use it.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "yt-dlp", Command: cfg.Fetch.Binary, Description: "Required to fetch media and list channels"},
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "Required to merge streams and derive audio"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "Used for local metadata probing", Optional: true},
		{Name: "Whisper", Command: cfg.Transcribe.Binary, Description: "Required for transcribe jobs", Optional: true},
	}
	if rt := strings.TrimSpace(cfg.Fetch.JSRuntime); rt != "" {
		reqs = append(reqs, Requirement{
			Name:        "JS runtime",
			Command:     rt,
			Description: "Used by yt-dlp to solve player challenges",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			resolved, err := exec.LookPath(cmd)
			if err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
				break
			}
			status.Command = resolved
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required (non-optional) tools that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
