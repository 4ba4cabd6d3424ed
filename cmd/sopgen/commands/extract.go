package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/internal/output"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
)

const noResultMessage = "no result, the model did not produce a valid Features structure; please retry"

// failureMessage is what the user sees for a failed page.
func failureMessage(err error) string {
	if errors.Is(err, classify.ErrExtractionFailed) {
		return noResultMessage
	}
	return err.Error()
}

func (c *cli) newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [file|-]...",
		Short: "Classify pages into actions and information",
		Long: `Classify saved HTML files, standard input ("-") or live URLs.

Each page yields {"actions": [...], "info": [...]}. Actions are things a
user can do, each with the ordered steps to do it; info entries are the
read-only facts the page shows.

Examples:
  sopgen extract login.html dashboard.html
  curl -s https://example.com | sopgen extract -
  sopgen extract -u https://example.com/login -u https://example.com/signup \
      --format jsonl --include-metadata`,
		RunE: c.runExtract,
	}

	flags := cmd.Flags()
	flags.StringSliceP("url", "u", nil, "URL(s) to fetch and classify (can be repeated)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", string(output.FormatJSON), "output format: json, jsonl, yaml, text")
	flags.Bool("include-metadata", false, "add a _metadata block with provider, tokens and timing")
	flags.String("save-training-data", "", "append input/output pairs for fine-tuning to this file (JSONL)")
	flags.IntP("concurrency", "c", 3, "concurrent URL fetches")

	return cmd
}

func (c *cli) runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	urls, _ := cmd.Flags().GetStringSlice("url")
	if len(args) == 0 && len(urls) == 0 {
		return cmd.Help()
	}

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	s, err := c.newEngine()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer func() { _ = s.Close() }()

	// Setup output
	out := cmd.OutOrStdout()
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			logger.Error("failed to create output file", "path", outPath, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	writer, err := output.NewWriter(out, format)
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close() }()

	includeMetadata, _ := cmd.Flags().GetBool("include-metadata")

	var training *output.TrainingWriter
	if path, _ := cmd.Flags().GetString("save-training-data"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //#nosec G304 -- CLI tool writes to user-specified file
		if err != nil {
			logger.Error("failed to open training data file", "path", path, "error", err)
			return err
		}
		defer func() { _ = f.Close() }()
		training = output.NewTrainingWriter(f)
		defer func() { _ = training.Close() }()
		logger.Info("saving training data", "path", path)
	}

	var count, failed int
	emit := func(source, content string, res *classify.Result) error {
		// Text output always shows the metadata line.
		rec := output.NewRecord(source, res, includeMetadata || format == output.FormatText)
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if training != nil {
			if err := training.Write(output.TrainingExample{
				Source:      source,
				ContentHash: res.ContentHash,
				Provider:    res.Provider,
				Model:       res.Model,
				CreatedAt:   time.Now().UTC(),
				Input:       content,
				Output:      res.Features,
			}); err != nil {
				logger.Error("failed to write training data", "error", err)
			}
		}
		count++
		return nil
	}
	fail := func(source string, err error) {
		failed++
		logger.Debug("extraction failed", "source", source, "error", err)
		logError(cmd, "%s: %s", source, failureMessage(err))
	}

	c.logInfo(cmd, "classifying %d page(s) with %s", len(args)+len(urls), s.Provider())

	for _, path := range args {
		if ctx.Err() != nil {
			break
		}
		source, html, err := readPage(cmd.InOrStdin(), path)
		if err != nil {
			fail(path, err)
			continue
		}
		content, res, err := s.ExtractHTMLContent(ctx, html)
		if err != nil {
			fail(source, err)
			continue
		}
		if err := emit(source, content, res); err != nil {
			return err
		}
	}

	if len(urls) > 0 {
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		for pr := range s.ExtractMany(ctx, urls, concurrency) {
			if pr.Error != nil {
				fail(pr.URL, pr.Error)
				continue
			}
			logger.Debug("page fetched", "url", pr.URL, "title", pr.Title, "fetch_duration", pr.FetchDuration)
			if err := emit(pr.URL, pr.Content, pr.Result); err != nil {
				return err
			}
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}
	logger.Info("extraction complete", "extracted", count, "errors", failed)

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d page(s) failed", failed, count+failed)
	}
	return nil
}

func readPage(stdin io.Reader, path string) (source, html string, err error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return "stdin", string(data), err
	}
	data, err := os.ReadFile(path) //#nosec G304 -- CLI tool reads user-specified files
	return path, string(data), err
}
