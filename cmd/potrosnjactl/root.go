package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"potrosnja/internal/backend"
	"potrosnja/internal/cli"
	applog "potrosnja/internal/log"
	"potrosnja/internal/services"
)

var (
	backendFlag  string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "potrosnjactl",
	Short: "Manage monthly household, car and boiler meter readings",
	Long: `potrosnjactl works directly against the configured data backend
(memory, sqlite or sheets). It reads the same environment as the server,
including a .env file in the working directory.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "data backend override (memory, sqlite or sheets)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "log level")
}

// session is an opened backend with a loaded record service.
type session struct {
	svc     *services.RecordService
	backend *backend.BackendResult
}

func (s *session) Close() error {
	return s.backend.Close()
}

// openSession loads configuration, opens the backend and reads the records.
func openSession(ctx context.Context, out io.Writer) (*session, error) {
	logger := cli.SetupLogger(logLevelFlag).WithComponent(applog.ComponentCLI)

	cfg, err := cli.LoadConfigWithBackend(backendFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	res, err := cli.OpenBackend(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	svc := services.NewRecordService(services.Options{
		Primary: res.Primary,
		Cache:   res.Cache,
		Years:   cfg.Years(),
		Logger:  logger,
	})
	st := svc.Load(ctx)
	if st.State != services.SyncOK {
		fmt.Fprintf(out, "warning: store is %s (%s)\n", st.State, st.LastError)
	}
	return &session{svc: svc, backend: res}, nil
}

// reportStatus prints a note when a write did not reach the primary store.
func reportStatus(out io.Writer, st services.SyncStatus) {
	if st.State == services.SyncOK {
		return
	}
	fmt.Fprintf(out, "warning: change kept locally, primary store is %s: %s\n", st.State, st.LastError)
}
