package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/internal/server"
)

func (c *cli) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification HTTP API",
		Long: `Serve page classification over HTTP.

  POST /          multipart upload, field "file"
  POST /extract   JSON body {"content": "<html>...", "source": "name"}
  GET  /healthz   liveness`,
		Args: cobra.NoArgs,
		RunE: c.runServe,
	}

	flags := cmd.Flags()
	flags.String("addr", ":8000", "listen address")
	flags.String("max-upload-size", "10MB", "max request body size (e.g. 512KB, 10MB)")
	flags.Duration("shutdown-timeout", 0, "grace period for in-flight requests on shutdown (default 10s)")

	_ = c.v.BindPFlag("server.addr", flags.Lookup("addr"))
	_ = c.v.BindPFlag("server.max_upload_size", flags.Lookup("max-upload-size"))
	_ = c.v.BindPFlag("server.shutdown_timeout", flags.Lookup("shutdown-timeout"))

	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	maxUpload, err := parseSize(c.v.GetString("server.max_upload_size"))
	if err != nil {
		return fmt.Errorf("max-upload-size: %w", err)
	}

	s, err := c.newEngine()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}
	defer func() { _ = s.Close() }()

	srv, err := server.New(server.Config{
		Addr:            c.v.GetString("server.addr"),
		MaxUploadSize:   maxUpload,
		ShutdownTimeout: c.v.GetDuration("server.shutdown_timeout"),
		Classifier:      s,
	})
	if err != nil {
		return err
	}

	c.logInfo(cmd, "serving on %s with %s", srv.Addr(), s.Provider())
	return srv.Start(ctx)
}
