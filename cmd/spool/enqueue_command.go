package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spool/internal/api"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		req        api.EnqueueRequest
		subs       bool
		transcribe bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "enqueue <url>",
		Short: "Queue a media URL for retrieval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.URL = args[0]
			if cmd.Flags().Changed("subs") {
				req.IncludeSubs = api.Bool(subs)
			}
			if cmd.Flags().Changed("transcribe") {
				req.Transcribe = api.Bool(transcribe)
			}
			return ctx.withQueue(cmd.Context(), func(s *queueSession) error {
				resp, err := s.service.Enqueue(cmd.Context(), req, "cli")
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s (%s)\n", resp.JobID, resp.Status)
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Filename, "filename", "", "Output base name (defaults to a generated id)")
	flags.StringVar(&req.Format, "format", "", "yt-dlp format selector")
	flags.StringVar(&req.Media, "media", "", "Artifacts to produce: video, audio, or both")
	flags.StringVar(&req.AudioFormat, "audio-format", "", "Audio container for audio jobs (mp3, m4a, wav)")
	flags.BoolVar(&subs, "subs", false, "Fetch subtitles alongside the video")
	flags.StringVar(&req.SubLangs, "sub-langs", "", "Subtitle languages, comma separated")
	flags.BoolVar(&transcribe, "transcribe", false, "Transcribe the audio with whisper")
	flags.StringVar(&req.TranscribeLang, "lang", "", "Transcription language code")
	flags.StringVar(&req.TranscribePrompt, "prompt", "", "Initial transcription prompt")
	flags.StringVar(&req.CallbackURL, "callback", "", "URL to POST the final record to")
	flags.StringVar(&req.ExternalID, "external-id", "", "Caller identifier stored on the job")
	flags.BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
