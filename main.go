package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kastheco/mountie/agent"
	"github.com/kastheco/mountie/app"
	cmd2 "github.com/kastheco/mountie/cmd"
	"github.com/kastheco/mountie/config"
	"github.com/kastheco/mountie/config/auditlog"
	sentrypkg "github.com/kastheco/mountie/internal/sentry"
	"github.com/kastheco/mountie/internal/setup"
	"github.com/kastheco/mountie/log"
	"github.com/kastheco/mountie/polkit"
	"github.com/kastheco/mountie/udisks"
)

const auditFileName = "audit.db"

var errNoTerminal = errors.New("mountie needs an interactive terminal; use `mountie list` in scripts")

var (
	version     = "0.1.0"
	noAgentFlag bool
	debugFlag   bool
	configFlag  string
	rootCmd     = &cobra.Command{
		Use:   "mountie",
		Short: "mountie - mount, unlock and eject removable drives from the terminal.",
		Long: `mountie lists removable and encrypted drives and mounts, unlocks, unmounts
and ejects them through UDisks2. While it runs it also acts as the polkit
authentication agent of the session, so password prompts appear in place.

The interface is drawn on stderr. After "mount and exit" (M) the mount point
is printed on stdout, e.g. cd "$(mountie)".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log.Initialize(debugFlag)
			defer log.Close()

			cfg := loadConfig()
			if err := sentrypkg.Init(version, cfg.SentryDSN, cfg.IsTelemetryEnabled()); err != nil {
				// Non-fatal: sentry failure should not prevent startup
				log.WarningLog.Printf("crash reporting disabled: %v", err)
			}
			defer sentrypkg.Flush()
			defer sentrypkg.RecoverPanic()

			if !isTerminal(os.Stdin) || !isTerminal(os.Stderr) {
				return errNoTerminal
			}

			conn, err := dbus.ConnectSystemBus()
			if err != nil {
				return fmt.Errorf("connect to system bus: %w", err)
			}
			defer conn.Close()

			audit := openAudit(cfg)
			defer audit.Close()

			var bridge *agent.Bridge
			if cfg.PolkitAgent && !noAgentFlag {
				bridge = startAgent(ctx, conn, cfg)
			}
			sentrypkg.SetContext(bridge != nil, cfg.AuditEnabled)

			mountPoint, err := app.Run(ctx, app.Options{
				Config:  cfg,
				Devices: udisks.NewClient(conn),
				Bridge:  bridge,
				Audit:   audit,
				Output:  os.Stderr,
			})
			if err != nil {
				log.ErrorLog.Printf("%v", err)
				return err
			}
			if mountPoint != "" {
				fmt.Fprintln(cmd.OutOrStdout(), mountPoint)
			}
			return nil
		},
	}

	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Edit the configuration in an interactive form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(debugFlag)
			defer log.Close()

			if !isTerminal(os.Stdin) {
				return errNoTerminal
			}
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := setup.Run(cmd.Context(), config.LoadConfigFrom(path))
			if errors.Is(err, setup.ErrAborted) {
				fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled, nothing saved.")
				return nil
			}
			if err != nil {
				return err
			}
			if err := config.SaveConfigTo(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}

	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "Print debug information like config paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Initialize(false)
			defer log.Close()

			path, err := configPath()
			if err != nil {
				return err
			}
			audit, err := auditPath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config: %s\n", path)
			fmt.Fprintf(out, "Log:    %s\n", log.FileName())
			fmt.Fprintf(out, "Audit:  %s\n\n", audit)
			return toml.NewEncoder(out).Encode(config.LoadConfigFrom(path))
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mountie",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mountie version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "https://github.com/kastheco/mountie/releases/tag/v%s\n", version)
		},
	}
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func configPath() (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	return config.Path()
}

func loadConfig() *config.Config {
	path, err := configPath()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return config.DefaultConfig()
	}
	return config.LoadConfigFrom(path)
}

func auditPath() (string, error) {
	dir, err := config.GetStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, auditFileName), nil
}

// openAuditDB opens the audit database, creating its directory.
func openAuditDB() (auditlog.Logger, error) {
	path, err := auditPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return auditlog.NewSQLiteLogger(path)
}

// openAudit returns the audit logger for a session. Auditing never blocks
// startup: failures fall back to a logger that discards events.
func openAudit(cfg *config.Config) auditlog.Logger {
	if !cfg.AuditEnabled {
		return auditlog.NopLogger()
	}
	logger, err := openAuditDB()
	if err != nil {
		log.WarningLog.Printf("audit log disabled: %v", err)
		return auditlog.NopLogger()
	}
	return logger
}

// startAgent runs the polkit agent in the background. It returns nil when the
// agent cannot be set up; the session then runs without one.
func startAgent(ctx context.Context, conn *dbus.Conn, cfg *config.Config) *agent.Bridge {
	helper, err := polkit.FindHelper(cfg.PolkitHelper)
	if err != nil {
		log.WarningLog.Printf("polkit agent disabled: %v", err)
		return nil
	}
	bridge := agent.NewBridge()
	a, err := polkit.New(conn, bridge, polkit.Options{Helper: polkit.ExecHelper(helper)})
	if err != nil {
		log.WarningLog.Printf("polkit agent disabled: %v", err)
		return nil
	}
	go func() {
		defer sentrypkg.RecoverPanic()
		if err := a.Run(ctx); err != nil {
			log.ErrorLog.Printf("polkit agent: %v", err)
		}
	}()
	return bridge
}

func openDevices() (cmd2.DeviceLister, func(), error) {
	client, err := udisks.Connect()
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func init() {
	rootCmd.Flags().BoolVar(&noAgentFlag, "no-agent", false,
		"Do not register as the polkit authentication agent")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Write debug messages to the log file")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "",
		"Path to the config file (default $XDG_CONFIG_HOME/mountie/config.toml)")

	rootCmd.AddCommand(cmd2.NewListCmd(openDevices))
	rootCmd.AddCommand(cmd2.NewHistoryCmd(openAuditDB))
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
