// papervid converts a research paper PDF into a narrated slide video.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"papervid/internal/config"
	"papervid/internal/docparse"
	"papervid/internal/jobstore"
	"papervid/internal/llm"
	"papervid/internal/pipeline"
	"papervid/internal/render"
	"papervid/internal/slides"
	"papervid/internal/storage"
	"papervid/internal/tts"
	"papervid/internal/types"
	"papervid/internal/video"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "papervid",
		Short:         "Convert a research paper PDF into a narrated slide video",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "papervid.yaml", "path to the yaml config file")

	root.AddCommand(newRunCommand(&configPath))
	root.AddCommand(newResumeCommand(&configPath))
	root.AddCommand(newStatusCommand(&configPath))
	return root
}

func loadConfig(path string) (*config.Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()
	return config.Load(path)
}

// buildOrchestrator wires every stage implementation from the resolved
// configuration.
func buildOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, error) {
	store := storage.New(cfg.Paths.StorageRoot)
	jobs, err := jobstore.NewFileStore(store.JobsDir())
	if err != nil {
		return nil, err
	}

	converter, err := docparse.NewClient(cfg.Docling)
	if err != nil {
		return nil, err
	}

	var completer llm.Completer
	client, err := llm.NewClient(cfg.LLM)
	switch {
	case err == nil:
		completer = client
	case err == llm.ErrAPIKeyNotSet && cfg.Slides.OfflineFallback:
		// The outline fallback can still produce a deck; composing will
		// refuse to run without a provider.
		log.Printf("[papervid] no LLM credentials, running with offline slide fallback only")
	default:
		return nil, err
	}

	synth, err := tts.NewClient(cfg.TTS)
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		jobs,
		store,
		converter,
		slides.NewGenerator(completer, cfg.Slides),
		render.NewEngine(completer, store, cfg.Render),
		tts.NewEngine(synth, store, cfg.TTS),
		video.NewAssembler(store, cfg.Video),
	), nil
}

func newRunCommand(configPath *string) *cobra.Command {
	var (
		model       string
		enableVideo bool
		ttsSpeed    float64
		voiceID     string
		language    string
	)

	cmd := &cobra.Command{
		Use:   "run <paper.pdf>",
		Short: "Submit a PDF and process it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			orch, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}

			jobID := uuid.NewString()
			job, err := orch.Submit(jobID, args[0], types.JobConfig{
				Model:          model,
				EnableVideo:    enableVideo,
				TTSSpeed:       ttsSpeed,
				VoiceID:        voiceID,
				OutputLanguage: language,
			})
			if err != nil {
				return err
			}
			log.Printf("[papervid] created job %s", job.ID)

			if err := orch.Run(context.Background(), jobID); err != nil {
				return fmt.Errorf("job %s: %w", jobID, err)
			}
			return printJob(cmd, orch, jobID)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "completion model override for this job")
	cmd.Flags().BoolVar(&enableVideo, "video", true, "assemble the narrated video")
	cmd.Flags().Float64Var(&ttsSpeed, "tts-speed", 1.0, "narration speed multiplier")
	cmd.Flags().StringVar(&voiceID, "voice", "", "narration voice override")
	cmd.Flags().StringVar(&language, "language", "", "output language (zh or en)")
	return cmd
}

func newResumeCommand(configPath *string) *cobra.Command {
	var (
		ttsSpeed float64
		voiceID  string
		language string
	)

	cmd := &cobra.Command{
		Use:   "resume <job-id>",
		Short: "Re-run a job, skipping stages whose artifacts already exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			orch, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}

			// Narration overrides merge into the job config first; the
			// rendering stage then regenerates because the cache hash no
			// longer matches.
			patch := jobstore.ConfigPatch{}
			patched := false
			if cmd.Flags().Changed("tts-speed") {
				patch.TTSSpeed = &ttsSpeed
				patched = true
			}
			if cmd.Flags().Changed("voice") {
				patch.VoiceID = &voiceID
				patched = true
			}
			if cmd.Flags().Changed("language") {
				patch.OutputLanguage = &language
				patched = true
			}
			if patched {
				if _, err := orch.UpdateConfig(args[0], patch); err != nil {
					return err
				}
			}

			if err := orch.Run(context.Background(), args[0]); err != nil {
				return fmt.Errorf("job %s: %w", args[0], err)
			}
			return printJob(cmd, orch, args[0])
		},
	}

	cmd.Flags().Float64Var(&ttsSpeed, "tts-speed", 1.0, "new narration speed multiplier")
	cmd.Flags().StringVar(&voiceID, "voice", "", "new narration voice")
	cmd.Flags().StringVar(&language, "language", "", "new output language (zh or en)")
	return cmd
}

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's status and artifact paths",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			store := storage.New(cfg.Paths.StorageRoot)
			jobs, err := jobstore.NewFileStore(store.JobsDir())
			if err != nil {
				return err
			}
			job, err := jobs.Get(args[0])
			if err != nil {
				return err
			}
			printJobRecord(cmd, job)
			return nil
		},
	}
}

func printJob(cmd *cobra.Command, orch *pipeline.Orchestrator, jobID string) error {
	job, err := orch.Job(jobID)
	if err != nil {
		return err
	}
	printJobRecord(cmd, job)
	return nil
}

func printJobRecord(cmd *cobra.Command, job *types.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "job:    %s\n", job.ID)
	fmt.Fprintf(out, "status: %s\n", job.Status)
	if job.Error != "" {
		fmt.Fprintf(out, "error:  %s (stage: %s)\n", job.Error, job.ErrorStage)
	}
	for _, kind := range []string{
		types.ArtifactPDF, types.ArtifactDoc, types.ArtifactSlides,
		types.ArtifactRendered, types.ArtifactSlidesPDF,
		types.ArtifactVideo, types.ArtifactCaptions,
	} {
		if path, ok := job.Paths[kind]; ok {
			fmt.Fprintf(out, "%-10s %s\n", kind+":", path)
		}
	}
}
