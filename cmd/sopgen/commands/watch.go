package commands

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/internal/watch"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
)

func (c *cli) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Classify HTML files as they change",
		Long: `Watch directories (recursively) and classify every .html/.htm file
that is created or modified. The result for page.html is written to
page.features.json next to it. Files whose content has not changed are
skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.runWatch,
	}

	flags := cmd.Flags()
	flags.Bool("initial-scan", true, "classify existing files on startup")
	flags.Duration("debounce", 500*time.Millisecond, "wait for writes to settle before classifying")
	flags.StringSlice("ext", nil, "file extensions to classify (default .html,.htm)")

	_ = c.v.BindPFlag("watch.initial_scan", flags.Lookup("initial-scan"))
	_ = c.v.BindPFlag("watch.debounce", flags.Lookup("debounce"))
	_ = c.v.BindPFlag("watch.ext", flags.Lookup("ext"))

	return cmd
}

func (c *cli) runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := c.newEngine()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer func() { _ = s.Close() }()

	w, err := watch.New(s, watch.Config{
		Roots:       args,
		Exts:        c.v.GetStringSlice("watch.ext"),
		InitialScan: c.v.GetBool("watch.initial_scan"),
		Debounce:    c.v.GetDuration("watch.debounce"),
		OnResult: func(path string, res *classify.Result, err error) {
			switch {
			case err != nil:
				logError(cmd, "%s: %s", path, failureMessage(err))
			case res != nil:
				c.logInfo(cmd, "%s -> %s", path, watch.OutputPath(path))
			}
		},
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
