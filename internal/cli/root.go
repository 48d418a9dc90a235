// Package cli implements the supportctl command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/support-desk/internal/config"
	"github.com/capitalize-ai/support-desk/internal/reconcile"
	"github.com/capitalize-ai/support-desk/internal/service"
	"github.com/capitalize-ai/support-desk/internal/session"
	"github.com/capitalize-ai/support-desk/internal/store"
	"github.com/capitalize-ai/support-desk/pkg/logger"
)

// App holds the state shared by every subcommand.
type App struct {
	Backend string
	Path    string
	Slot    string
	JSON    bool

	cfg    *config.Config
	logger *logger.Logger
	now    func() time.Time
}

// NewRootCmd builds the supportctl command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	if app.cfg == nil {
		app.cfg = config.Load()
	}

	cmd := &cobra.Command{
		Use:          "supportctl",
		Short:        "Inspect and answer support chat threads",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Threads with unread messages first
  supportctl threads

  # Read a transcript and answer it
  supportctl show ali@example.com
  supportctl reply ali@example.com "Your order shipped today."
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if app.logger != nil {
			return nil
		}
		log, err := logger.NewWithOutput(app.cfg.LogLevel, "stderr")
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		app.logger = log
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Backend, "backend", app.cfg.StoreBackend, "Message log backend ("+strings.Join(store.Backends(), "|")+")")
	cmd.PersistentFlags().StringVar(&app.Path, "path", app.cfg.StorePath, "Directory for the file and sqlite backends")
	cmd.PersistentFlags().StringVar(&app.Slot, "slot", app.cfg.StoreSlot, "Slot (key) holding the chat log")
	cmd.PersistentFlags().BoolVar(&app.JSON, "json", false, "Write JSON instead of text")

	cmd.AddCommand(newThreadsCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newReplyCmd(app))
	cmd.AddCommand(newUnreadCmd(app))
	cmd.AddCommand(newDraftCmd(app))
	cmd.AddCommand(newClearCmd(app))

	return cmd
}

// openService opens the configured store and wraps it in a service. The
// caller must call the returned close func.
func (app *App) openService(ctx context.Context) (*service.SupportService, func(), error) {
	cfg := *app.cfg
	cfg.StoreBackend = strings.ToLower(app.Backend)
	cfg.StorePath = app.Path
	cfg.StoreSlot = app.Slot

	clockLoc, err := cfg.LegacyClockLocation()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx, &cfg, app.logger)
	if err != nil {
		return nil, nil, err
	}

	engine := session.NewEngine(reconcile.New(reconcile.Options{
		SyntheticStep: cfg.SyntheticStep,
		SortTolerance: cfg.SortTolerance,
		ClockLocation: clockLoc,
	}))
	svc := service.NewSupportService(st, engine, service.Options{
		PersistReadReceipts: cfg.PersistReadReceipts,
		Now:                 app.now,
	}, app.logger)

	return svc, func() { _ = st.Close() }, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
