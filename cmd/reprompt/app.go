package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/circuitbreaker"
	"github.com/teilomillet/reprompt/config"
	"github.com/teilomillet/reprompt/errors"
	"github.com/teilomillet/reprompt/metrics"
	"github.com/teilomillet/reprompt/rules"
	"github.com/teilomillet/reprompt/server/validation"
	"github.com/teilomillet/reprompt/sonar"
	"github.com/teilomillet/reprompt/stack"
	"github.com/teilomillet/reprompt/tags"
	"github.com/teilomillet/reprompt/transform"
)

const defaultConfigFile = "reprompt.yaml"

// app carries the state shared by every command.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	root       string
	logLevel   string

	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, logger: zap.NewNop()}
}

// load reads the configuration and builds the logger. A missing default
// config file falls back to the built-in defaults.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		if cmd.Flags().Changed("config") || !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = config.DefaultConfig()
		if key := os.Getenv("PERPLEXITY_API_KEY"); key != "" {
			cfg.Sonar.APIKey = key
		}
	}
	if a.root != "" {
		cfg.Workspace.Root = a.root
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := cfg.Logging.BuildLogger()
	if err != nil {
		return err
	}
	errors.SetLogger(logger)

	a.cfg = cfg
	a.logger = logger
	a.metrics = metrics.NewMetrics()
	return nil
}

// client builds the API client, guarded by the circuit breaker when enabled.
func (a *app) client() (*sonar.Client, error) {
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, errors.NewConfigError(err.Error(), err)
	}

	opts := []sonar.Option{
		sonar.WithBaseURL(a.cfg.Sonar.BaseURL),
		sonar.WithTimeout(a.cfg.Sonar.Timeout),
		sonar.WithMetrics(a.metrics),
		sonar.WithLogger(a.logger),
	}
	if cb := a.cfg.CircuitBreaker; cb.Enabled {
		breaker, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Name:             "sonar",
			MaxRequests:      cb.MaxRequests,
			Interval:         cb.Interval,
			Timeout:          cb.Timeout,
			FailureThreshold: cb.FailureThreshold,
		}, a.logger, a.metrics.Registry())
		if err != nil {
			return nil, err
		}
		opts = append(opts, sonar.WithCircuitBreaker(breaker))
	}
	return sonar.NewClient(a.cfg.Sonar.APIKey, opts...), nil
}

// orchestrator builds an orchestrator reporting progress to reporter.
func (a *app) orchestrator(reporter transform.Reporter) (*transform.Orchestrator, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}

	opts := []transform.Option{
		transform.WithLogger(a.logger),
		transform.WithMetrics(a.metrics),
		transform.WithDetector(stack.NewFileSystemDetector(a.logger)),
		transform.WithWorkspaceRoot(a.cfg.Workspace.Root),
		transform.WithDefaults(a.cfg.Sonar.Model, a.cfg.Sonar.SearchContextSize),
		transform.WithSearchDomainFilter(a.cfg.Sonar.SearchDomainFilter),
		transform.WithExampleCount(a.cfg.Examples.DefaultCount),
		transform.WithReporter(transform.NewThemedReporter(transform.Theme(a.cfg.Transform.ProgressTheme), nil, reporter)),
	}
	if a.cfg.Transform.CountTokens {
		tc, err := validation.NewTokenCounter(a.cfg.Sonar.Model)
		if err != nil {
			a.logger.Warn("Token counting disabled", zap.Error(err))
		} else {
			opts = append(opts, transform.WithTokenCounter(tc))
		}
	}
	return transform.NewOrchestrator(client, opts...), nil
}

// rulesStore reads the house rules of the workspace.
func (a *app) rulesStore() *rules.Store {
	store := rules.NewStore(a.cfg.Workspace.Root, a.logger, a.metrics)
	store.Reload()
	return store
}

// progressPrinter writes each themed progress message to errOut.
func (a *app) progressPrinter() transform.Reporter {
	return transform.ReporterFunc(func(_ context.Context, ev transform.Event) {
		if ev.Message != "" {
			fmt.Fprintf(a.errOut, "%s\n", ev.Message)
		}
	})
}

// readInput returns the content of path, or of stdin when path is "-".
func (a *app) readInput(path string, force bool) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(a.in)
		return string(data), err
	}
	if !force && !tags.IsPromptFile(path) {
		return "", errors.NewValidationError("", tags.NotPromptFileMessage, map[string]interface{}{
			"file": path,
		})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// writeOutput writes text to path when inPlace is set, otherwise to out.
func (a *app) writeOutput(path, text string, inPlace bool) error {
	if inPlace && path != "-" {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		return os.WriteFile(path, []byte(text), info.Mode().Perm())
	}
	_, err := fmt.Fprintln(a.out, text)
	return err
}

// askCount prompts for the number of examples until a valid one is given.
// An empty answer keeps def.
func (a *app) askCount(def int) (int, error) {
	scanner := bufio.NewScanner(a.in)
	for {
		fmt.Fprintf(a.errOut, "How many examples to generate? (%d-%d) [%d]: ",
			transform.MinExampleCount, transform.MaxExampleCount, def)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return 0, err
			}
			return def, nil
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			return def, nil
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= transform.MinExampleCount && n <= transform.MaxExampleCount {
			return n, nil
		}
		fmt.Fprintln(a.errOut, transform.MsgBadCount)
	}
}
