package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/config"
	"github.com/teilomillet/reprompt/rules"
	"github.com/teilomillet/reprompt/server"
	"github.com/teilomillet/reprompt/server/progress"
	"github.com/teilomillet/reprompt/stack"
)

// remoteTimeout bounds calls from the CLI to a running service.
const remoteTimeout = 10 * time.Second

func newDetectCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect [root]",
		Short: "Show the project stack detected in the workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.cfg.Workspace.Root
			if len(args) == 1 {
				root = args[0]
			}
			report := stack.NewFileSystemDetector(a.logger).Inspect(root)

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			lines := report.Lines()
			if len(lines) == 0 {
				fmt.Fprintln(a.out, "No project stack detected.")
				return nil
			}
			fmt.Fprintln(a.out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print every probe as JSON")
	return cmd
}

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the house rules of the workspace",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the house rules that transformations apply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printSnapshot(a.out, a.rulesStore().Snapshot())
			return nil
		},
	}

	var (
		serverURL string
		apiKey    string
	)
	reload := &cobra.Command{
		Use:   "reload",
		Short: "Reload the house rules, locally or in a running service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if serverURL == "" {
				printSnapshot(a.out, a.rulesStore().Snapshot())
				return nil
			}
			snap, err := remoteReload(cmd.Context(), serverURL, apiKey)
			if err != nil {
				return err
			}
			printSnapshot(a.out, snap)
			return nil
		},
	}
	reload.Flags().StringVar(&serverURL, "server", "", "Base URL of a running reprompt service")
	reload.Flags().StringVar(&apiKey, "api-key", os.Getenv("REPROMPT_API_KEY"), "API key for the service")

	cmd.AddCommand(show, reload)
	return cmd
}

func printSnapshot(w io.Writer, snap *rules.Snapshot) {
	switch snap.Status {
	case rules.Found:
		fmt.Fprintf(w, "House rules from %s:\n%s\n", snap.Source, snap.Rules)
	case rules.Malformed:
		fmt.Fprintf(w, "House rules file %s is malformed: %s\n", snap.Source, snap.Reason)
	default:
		fmt.Fprintln(w, "No house rules found.")
	}
}

func remoteReload(ctx context.Context, baseURL, apiKey string) (*rules.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/v1/rules/reload", nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := (&http.Client{Timeout: remoteTimeout}).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("reload failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var snap rules.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode reload response: %w", err)
	}
	return &snap, nil
}

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP service for editor plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			var watcher config.Watcher = config.NewStaticWatcher(a.cfg)
			if _, err := os.Stat(a.configPath); err == nil && !cmd.Flags().Changed("port") {
				cw, err := config.NewConfigWatcher(a.configPath, a.logger)
				if err != nil {
					return err
				}
				defer cw.Close()
				watcher = cw
			}

			hub := progress.NewHub(a.logger, a.metrics)
			orch, err := a.orchestrator(hub)
			if err != nil {
				return err
			}

			store := a.rulesStore()
			if a.cfg.Workspace.WatchRules {
				rw, err := rules.NewWatcher(store, a.logger)
				if err != nil {
					a.logger.Warn("House rules will not reload automatically", zap.Error(err))
				} else {
					defer rw.Close()
				}
			}

			srv := server.NewServer(watcher, server.Deps{
				Ops:       orch,
				Rules:     store,
				Inspector: stack.NewFileSystemDetector(a.logger),
				Hub:       hub,
				Metrics:   a.metrics,
				Logger:    a.logger,
				Root:      a.cfg.Workspace.Root,
				Version:   Version,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.logger.Info("Starting reprompt",
				zap.String("version", Version),
				zap.Int("port", a.cfg.Server.Port),
				zap.String("workspace", a.cfg.Workspace.Root),
			)
			return srv.Start(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The configuration was validated while loading
			fmt.Fprintln(a.out, "Configuration is valid")
			if err := a.cfg.RequireAPIKey(); err != nil {
				fmt.Fprintf(a.errOut, "Warning: %v\n", err)
			}
			return nil
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No configuration is needed to print the version
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(a.out, "reprompt %s\n", Version)
			return nil
		},
	}
}
