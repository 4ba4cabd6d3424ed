// Package commands implements the CLI commands for sopgen.
package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/sopgen"
)

// cli carries the state shared by one command tree.
type cli struct {
	v       *viper.Viper
	cfgFile string
}

// NewRootCmd builds the sopgen command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "sopgen",
		Short: "Classify web pages into user actions and page information",
		Long: `sopgen reads rendered web pages and asks an LLM to list what a user
can do on them (actions, with their step-by-step process) and what the
page tells them (information).

Examples:
  # Classify a saved page
  sopgen extract login.html

  # Classify live pages, printing the console report
  sopgen extract -u https://example.com/login --format text

  # Use local Ollama with a specific model
  sopgen extract page.html -p ollama -m llama3.2

  # Serve the HTTP API
  sopgen serve --addr :8000

  # Classify pages as they are saved into a directory
  sopgen watch ./pages`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.initConfig(); err != nil {
				return err
			}
			logger.Init(logger.Options{
				Debug:  c.v.GetBool("debug"),
				Quiet:  c.v.GetBool("quiet"),
				JSON:   c.v.GetBool("log_json"),
				Output: cmd.ErrOrStderr(),
			})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default $HOME/.sopgen.yaml)")
	pf.Bool("debug", false, "enable debug logging")
	pf.BoolP("quiet", "q", false, "suppress progress output")
	pf.Bool("log-json", false, "write logs as JSON")

	// LLM settings
	defaults := sopgen.DefaultConfig()
	pf.StringP("provider", "p", "", "LLM provider: anthropic, openai, openrouter, ollama, gemini, helicone (auto-detects from env vars)")
	pf.StringP("model", "m", "", "model name (provider-specific)")
	pf.StringP("api-key", "k", "", "API key (or use the provider's env var)")
	pf.String("base-url", "", "custom API base URL")
	pf.Float64("temperature", defaults.Temperature, "sampling temperature")
	pf.Int("max-tokens", defaults.MaxTokens, "max output tokens")
	pf.Int("max-retries", defaults.MaxRetries, "retries when the model returns an invalid result")
	pf.String("max-content-size", "100KB", "max cleaned content size sent to the model (e.g. 100KB, 1MB, 0=unlimited)")
	pf.String("cleaner", defaults.Cleaner, "content cleaner chain: noop, visible, markdown (comma-separated)")
	pf.Bool("strict-disjoint", false, "reject results whose information repeats action content")
	pf.Float64("rate-limit", 0, "max model calls per second (0=unlimited)")
	pf.Int("rate-burst", defaults.RateBurst, "model call burst size")

	// Fetch settings
	pf.String("fetch-mode", string(defaults.FetchMode), "fetch mode: static, dynamic, auto")
	pf.Duration("timeout", defaults.Timeout, "page fetch timeout")
	pf.String("user-agent", "", "HTTP user agent for page fetches")

	// Bind to viper; config keys use underscores (max-retries -> max_retries).
	for _, name := range []string{
		"debug", "quiet", "log-json",
		"provider", "model", "api-key", "base-url", "temperature", "max-tokens",
		"max-retries", "max-content-size", "cleaner", "strict-disjoint",
		"rate-limit", "rate-burst", "fetch-mode", "timeout", "user-agent",
	} {
		_ = c.v.BindPFlag(configKey(name), pf.Lookup(name))
	}

	root.AddCommand(
		c.newExtractCmd(),
		c.newServeCmd(),
		c.newWatchCmd(),
		newSchemaCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func configKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func (c *cli) initConfig() error {
	v := c.v
	v.SetEnvPrefix("SOPGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if c.cfgFile != "" {
		v.SetConfigFile(c.cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", c.cfgFile, err)
		}
		return nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	v.SetConfigName(".sopgen")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// logError prints an error message to stderr.
func logError(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func (c *cli) logInfo(cmd *cobra.Command, format string, args ...any) {
	if !c.v.GetBool("quiet") {
		fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
	}
}
