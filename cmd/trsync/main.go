package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/trsync/internal/config"
	"github.com/openmined/trsync/internal/runner"
	"github.com/openmined/trsync/internal/startup"
	"github.com/openmined/trsync/internal/utils"
	"github.com/openmined/trsync/internal/version"
	"github.com/openmined/trsync/internal/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	home, _        = os.UserHomeDir()
	configFileName = "config"
	envPrefix      = "TRSYNC"
)

var (
	red  = color.New(color.FgHiRed, color.Bold).SprintFunc()
	cyan = color.New(color.FgHiCyan).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "trsync",
	Short:   "Synchronize a local folder with a Tracim workspace",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, false)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", config.DefaultConfigPath, "trsync config file")
	flags.StringP("folder", "f", config.DefaultFolder, "local folder to synchronize")
	flags.StringP("address", "a", "", "Tracim server address, host[:port]")
	flags.Bool("tls", true, "use https")
	flags.Int64P("workspace", "w", 0, "Tracim workspace id")
	flags.StringP("username", "u", "", "Tracim username (password from TRSYNC_PASSWORD)")
	flags.String("transport", "", "live message transport: sse or websocket")
	flags.Bool("confirm", false, "confirm changes found at startup before applying them")
	flags.StringSlice("ignore", nil, "extra glob of paths to leave alone, repeatable")
	flags.String("log-level", "", "debug, info, warn or error")
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	slog.SetDefault(slog.New(stdoutHandler(slog.LevelInfo)))

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func stdoutHandler(level slog.Level) slog.Handler {
	return tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
}

// setupLogging logs to stdout and to a rotated file in the workspace.
func setupLogging(cfg *config.Config) (io.Closer, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	ws, err := workspace.NewWorkspace(cfg.Folder)
	if err != nil {
		return nil, err
	}

	file := &lumberjack.Logger{
		Filename:   ws.LogFile(),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler(level), fileHandler)))
	return file, nil
}

func loadConfig(cmd *cobra.Command) error {
	// config path
	switch {
	case cmd.Flag("config").Changed:
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	case os.Getenv("TRSYNC_CONFIG_PATH") != "":
		viper.SetConfigFile(os.Getenv("TRSYNC_CONFIG_PATH"))
	default:
		viper.AddConfigPath(filepath.Join(home, ".trsync"))        // Then check .trsync
		viper.AddConfigPath(filepath.Join(home, ".config/trsync")) // Then check .config/trsync
		viper.SetConfigName(configFileName)                        // Name of config file (without extension)
		viper.SetConfigType("json")
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	// Bind flags to viper
	flags := cmd.Flags()
	viper.BindPFlag("folder", flags.Lookup("folder"))
	viper.BindPFlag("address", flags.Lookup("address"))
	viper.BindPFlag("use_tls", flags.Lookup("tls"))
	viper.BindPFlag("workspace_id", flags.Lookup("workspace"))
	viper.BindPFlag("username", flags.Lookup("username"))
	viper.BindPFlag("event_transport", flags.Lookup("transport"))
	viper.BindPFlag("confirm_startup", flags.Lookup("confirm"))
	viper.BindPFlag("ignore", flags.Lookup("ignore"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))

	// Set up environment variables
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
	viper.BindEnv("password")

	return nil
}

// configFromViper builds the config of this invocation, flags over
// environment over config file.
func configFromViper() (*config.Config, error) {
	cfg := &config.Config{
		Path:              viper.ConfigFileUsed(),
		Folder:            viper.GetString("folder"),
		Address:           viper.GetString("address"),
		UseTLS:            viper.GetBool("use_tls"),
		WorkspaceID:       viper.GetInt64("workspace_id"),
		Username:          viper.GetString("username"),
		Password:          viper.GetString("password"),
		EventTransport:    viper.GetString("event_transport"),
		InactivityTimeout: viper.GetDuration("inactivity_timeout"),
		ConfirmStartup:    viper.GetBool("confirm_startup"),
		Ignore:            viper.GetStringSlice("ignore"),
		LogLevel:          viper.GetString("log_level"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunner(cmd *cobra.Command, cfg *config.Config) (*runner.Runner, error) {
	var opts []runner.Option
	if cfg.ConfirmStartup {
		opts = append(opts, runner.WithPolitic(&startup.Confirmation{
			In:  cmd.InOrStdin(),
			Out: cmd.OutOrStdout(),
		}))
	}
	return runner.New(cfg, opts...)
}

func runSync(cmd *cobra.Command, once bool) error {
	cfg, err := configFromViper()
	if err != nil {
		return err
	}

	// all good now, stop printing usage on errors
	cmd.SilenceUsage = true

	logFile, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	r, err := newRunner(cmd, cfg)
	if err != nil {
		return err
	}

	slog.Info("trsync", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)
	defer slog.Info("Bye!")
	if err := r.Run(cmd.Context(), once); err != nil {
		if errors.Is(err, startup.ErrRejected) {
			fmt.Fprintln(cmd.ErrOrStderr(), red("startup changes rejected, nothing was applied"))
		}
		slog.Error("trsync", "error", err)
		return err
	}
	return nil
}
