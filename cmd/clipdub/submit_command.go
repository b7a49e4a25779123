package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipdub/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		chatID     int64
		priority   int
		subtitles  bool
		translate  bool
		voiceover  bool
		vertical   bool
		watermark  bool
		sourceLang string
		targetLang string
		style      string
		position   string
		gender     string
	)

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Queue a video link for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			if chatID == 0 {
				chatID = ctx.defaultChatID()
			}

			task, err := store.NewTask(cmd.Context(), queue.NewTaskParams{
				ChatID:    chatID,
				Priority:  priority,
				InputKind: queue.InputURL,
				InputURL:  args[0],
				Options: queue.Options{
					GenerateSubtitles: subtitles,
					Translate:         translate,
					Voiceover:         voiceover,
					Vertical:          vertical,
					Watermark:         watermark,
					SourceLanguage:    sourceLang,
					TargetLanguage:    targetLang,
					Style:             style,
					Position:          position,
					VoiceGender:       gender,
				},
			})
			if err != nil {
				return fmt.Errorf("submit task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task #%d queued\n", task.ID)
			return nil
		},
	}

	cmd.Flags().Int64Var(&chatID, "chat", 0, "Chat to deliver results to (defaults to the first admin chat)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Queue priority, higher runs first")
	cmd.Flags().BoolVar(&subtitles, "subtitles", true, "Generate burned-in subtitles")
	cmd.Flags().BoolVar(&translate, "translate", false, "Translate subtitles to the target language")
	cmd.Flags().BoolVar(&voiceover, "voiceover", false, "Synthesize a voiceover from the subtitles")
	cmd.Flags().BoolVar(&vertical, "vertical", false, "Reframe the video to 9:16")
	cmd.Flags().BoolVar(&watermark, "watermark", false, "Overlay the configured watermark text")
	cmd.Flags().StringVar(&sourceLang, "source-lang", "", "Source language (default: auto detect)")
	cmd.Flags().StringVar(&targetLang, "lang", "", "Target language for translation")
	cmd.Flags().StringVar(&style, "style", "", "Subtitle style preset")
	cmd.Flags().StringVar(&position, "position", "", "Subtitle position preset")
	cmd.Flags().StringVar(&gender, "gender", "", "Voiceover voice gender")

	return cmd
}
