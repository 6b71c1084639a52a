package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"batchscribe/internal/analytics"
	"batchscribe/internal/audio"
	"batchscribe/internal/config"
	"batchscribe/internal/model"
	"batchscribe/internal/pipeline"
	"batchscribe/internal/track"
	"batchscribe/internal/transcribe"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <input-file>",
	Short: "Transcribe or translate a media file into SRT captions",
	Long: `Transcribe an audio or video file into an SRT caption file. The audio
track is split into chunks, each chunk is dispatched to a ladder of remote
models with retry and failover, and the per-chunk results are merged into
one time-ordered caption track.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

var (
	configFile     string
	modeFlag       string
	targetLanguage string
	output         string
	saveJSON       bool

	chunkDuration   float64
	targetRate      int
	interRequestGap float64
	retryDelay      float64
	quotaCooldown   float64
)

func init() {
	defaults := config.Default()

	transcribeCmd.Flags().StringVarP(&configFile, "config", "c", "", "TOML config file path")
	transcribeCmd.Flags().StringVarP(&modeFlag, "mode", "m", defaults.Mode, "processing mode: transcribe or translate")
	transcribeCmd.Flags().StringVarP(&targetLanguage, "target-language", "t", defaults.TargetLanguage, "target language for translate mode")
	transcribeCmd.Flags().StringVarP(&output, "output", "o", "", "output SRT path (default: <input>.srt)")
	transcribeCmd.Flags().BoolVar(&saveJSON, "save-json", false, "save caption track JSON alongside SRT")

	// Policy constants; defaults come from config, overridable per run.
	transcribeCmd.Flags().Float64Var(&chunkDuration, "chunk-duration", defaults.ChunkDurationSec, "chunk duration in seconds")
	transcribeCmd.Flags().IntVar(&targetRate, "sample-rate", defaults.TargetSampleRate, "target sample rate sent to the service")
	transcribeCmd.Flags().Float64Var(&interRequestGap, "request-gap", defaults.InterRequestGapSec, "pause between chunk dispatches in seconds")
	transcribeCmd.Flags().Float64Var(&retryDelay, "retry-delay", defaults.RetryDelaySec, "pause before a same-model retry in seconds")
	transcribeCmd.Flags().Float64Var(&quotaCooldown, "quota-cooldown", defaults.QuotaCooldownSec, "cooldown after a quota failover in seconds")

	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	inputPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", args[0])
	}

	ext := strings.ToLower(filepath.Ext(inputPath))
	if !audio.IsSupportedExtension(ext) {
		return fmt.Errorf("unsupported file type: %s", ext)
	}
	if !audio.Available() {
		return fmt.Errorf("ffmpeg and ffprobe are required on PATH")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	mode, err := model.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	ladder, err := model.LadderFor(mode, cfg.TargetLanguage)
	if err != nil {
		return err
	}

	outputSRT := output
	if outputSRT == "" {
		outputSRT = strings.TrimSuffix(inputPath, ext) + ".srt"
	}

	// SIGINT/SIGTERM cancel before the next dispatch or recovery sleep.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := analytics.NewRecorder(cfg.MaxIncidents)
	client := transcribe.NewClient(cfg.APIBaseURL, cfg.APIKey, cfg.RequestTimeout(), recorder)

	p := pipeline.New(cfg, client, ladder, recorder)
	p.Preflight = pipeline.ConnectivityCheck(cfg.APIBaseURL)

	slog.Info("processing file", "input", filepath.Base(inputPath), "mode", cfg.Mode)

	captions, runErr := p.Run(ctx, inputPath)

	// Partial output is kept even when the run aborts.
	if len(captions) > 0 {
		if err := writeOutputs(captions, outputSRT); err != nil {
			return err
		}
	}
	logSummary(recorder.Snapshot())

	if runErr != nil {
		return runErr
	}
	if len(captions) == 0 {
		return fmt.Errorf("run produced no captions")
	}

	if !quiet {
		slog.Info("done", "output", outputSRT, "captions", len(captions))
	}
	return nil
}

// applyFlags overrides config values with flags the user explicitly set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("mode") {
		cfg.Mode = modeFlag
	}
	if cmd.Flags().Changed("target-language") {
		cfg.TargetLanguage = targetLanguage
	}
	if cmd.Flags().Changed("chunk-duration") {
		cfg.ChunkDurationSec = chunkDuration
	}
	if cmd.Flags().Changed("sample-rate") {
		cfg.TargetSampleRate = targetRate
	}
	if cmd.Flags().Changed("request-gap") {
		cfg.InterRequestGapSec = interRequestGap
	}
	if cmd.Flags().Changed("retry-delay") {
		cfg.RetryDelaySec = retryDelay
	}
	if cmd.Flags().Changed("quota-cooldown") {
		cfg.QuotaCooldownSec = quotaCooldown
	}
}

func writeOutputs(captions []track.Segment, outputSRT string) error {
	srt := track.FormatSRT(captions)
	if err := os.WriteFile(outputSRT, []byte(srt), 0644); err != nil {
		return fmt.Errorf("write SRT file: %w", err)
	}
	slog.Info("SRT file saved", "path", outputSRT)

	if saveJSON {
		jsonPath := strings.TrimSuffix(outputSRT, filepath.Ext(outputSRT)) + ".json"
		data, err := json.MarshalIndent(captions, "", "    ")
		if err != nil {
			return fmt.Errorf("marshal caption JSON: %w", err)
		}
		if err := os.WriteFile(jsonPath, data, 0644); err != nil {
			slog.Warn("failed to save JSON", "err", err)
		} else {
			slog.Info("caption JSON saved", "path", jsonPath)
		}
	}
	return nil
}

func logSummary(snap analytics.Snapshot) {
	slog.Info("run summary",
		"requests", snap.TotalRequests,
		"successful", snap.SuccessfulRequests,
		"failovers", snap.FailoverEvents)
	for id, stats := range snap.PerModel {
		slog.Info("model stats",
			"model", id,
			"success", stats.Success,
			"fail", stats.Fail,
			"avg_latency", stats.AvgLatency())
	}
	for _, inc := range snap.Incidents {
		slog.Debug("incident",
			"time", inc.Time.Format("15:04:05"),
			"model", inc.Model,
			"category", inc.Category,
			"severity", string(inc.Severity),
			"detail", inc.Detail)
	}
}
