// Command sabi is the CLI entrypoint (spec §6 "CLI surface"): it loads
// configuration, wires the executor/classifiers/session store/model
// client, and runs the bubbletea event loop. Grounded on the teacher's
// cmd/cli/main.go cobra root command, narrowed from its serve/doctor
// subcommand set to the single interactive ReAct agent this module is.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/n4ar/sabi/internal/infrastructure/config"
	"github.com/n4ar/sabi/internal/infrastructure/logger"
	"github.com/n4ar/sabi/internal/infrastructure/sandbox"
	infratool "github.com/n4ar/sabi/internal/infrastructure/tool"
	"github.com/n4ar/sabi/internal/loop"
	"github.com/n4ar/sabi/internal/session"
)

const (
	cliVersion = "0.1.0"
	cliName    = "sabi"

	systemPreamble = `You are sabi, a terminal coding agent. To take an action, reply with a ` +
		`single JSON object: {"tool":"run_cmd","command":"..."} (or run_python/read_file/` +
		`write_file/search). Otherwise reply with plain text.`
)

func main() {
	var safeMode, showVersion bool

	rootCmd := &cobra.Command{
		Use:   cliName,
		Short: "sabi — terminal ReAct agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Printf("%s v%s\n", cliName, cliVersion)
				return nil
			}
			return run(safeMode)
		},
	}
	rootCmd.Flags().BoolVar(&safeMode, "safe", false, "force safe mode (dry-run every tool call)")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print the version and exit")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run builds every collaborator the event loop needs and drives the
// bubbletea program to completion (spec §6 "Exit code 0 on clean quit,
// non-zero on terminal setup failure").
func run(safeModeFlag bool) error {
	log, err := logger.NewLogger(logger.Config{
		Level:      "error",
		Format:     "console",
		OutputPath: "stderr",
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	safeMode := cfg.SafeMode || safeModeFlag

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	sessions, err := session.NewStore(config.DataDir())
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}

	runner := sandbox.NewRunner(cwd, log)
	limits := infratool.Limits{MaxOutputBytes: cfg.MaxOutputBytes, MaxOutputLines: cfg.MaxOutputLines}
	executor := infratool.NewExecutor(runner, limits, safeMode, log)

	model, err := loop.New(loop.Config{
		SystemPreamble:        systemPreamble,
		Provider:              cfg.Provider,
		APIKey:                cfg.APIKey,
		BaseURL:               cfg.BaseURL,
		Model:                 cfg.Model,
		MaxHistory:            cfg.MaxHistoryMessages,
		Cwd:                   cwd,
		Logger:                log,
		Sessions:              sessions,
		Executor:              executor,
		DangerClassifier:      sandbox.NewDangerClassifier(cfg.DangerousPatterns),
		InteractiveClassifier: sandbox.NewInteractiveClassifier(),
	})
	if err != nil {
		return fmt.Errorf("build loop: %w", err)
	}

	program := tea.NewProgram(model, tea.WithAltScreen())

	stopWatch, err := config.Watch(log, func(reloaded *config.Config) {
		program.Send(loop.ReloadConfigMsg(loop.ConfigUpdate{
			Provider:          reloaded.Provider,
			APIKey:            reloaded.APIKey,
			BaseURL:           reloaded.BaseURL,
			Model:             reloaded.Model,
			MaxHistory:        reloaded.MaxHistoryMessages,
			DangerousPatterns: reloaded.DangerousPatterns,
			SafeMode:          reloaded.SafeMode || safeModeFlag,
		}))
	})
	if err != nil {
		log.Warn("config hot-reload disabled", zap.Error(err))
	} else {
		defer stopWatch()
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
