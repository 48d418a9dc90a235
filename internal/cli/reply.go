package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/support-desk/internal/llm"
	"github.com/capitalize-ai/support-desk/internal/service"
	"github.com/capitalize-ai/support-desk/internal/session"
)

func newReplyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reply <participant-key> <text...>",
		Short: "Append an operator reply to a thread",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := app.openService(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeFn()

			resp, err := svc.Reply(cmd.Context(), args[0], strings.Join(args[1:], " "))
			switch {
			case errors.Is(err, session.ErrThreadNotFound):
				return writeErr(cmd, fmt.Errorf("no thread for %q", args[0]))
			case err != nil:
				return writeErr(cmd, err)
			}
			if app.JSON {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", resp.Event.ID, resp.Thread.ParticipantKey)
			return nil
		},
	}
}

func newDraftCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "draft <participant-key>",
		Short: "Suggest a reply with the configured LLM (nothing is sent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.cfg.DraftsEnabled() {
				return writeErr(cmd, service.ErrDraftsDisabled)
			}
			client, err := llm.NewClient(llm.Provider(app.cfg.DefaultLLM), app.cfg.LLMKey())
			if err != nil {
				return writeErr(cmd, err)
			}

			svc, closeFn, err := app.openService(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeFn()

			draft, err := service.NewDrafter(svc, client, app.logger).Draft(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if app.JSON {
				return writeJSON(cmd, draft)
			}
			fmt.Fprintln(cmd.OutOrStdout(), draft.Draft)
			return nil
		},
	}
}

func newClearCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the whole chat history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return writeErr(cmd, errors.New("refusing to clear history without --yes"))
			}
			svc, closeFn, err := app.openService(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeFn()

			if err := svc.ClearHistory(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "chat history cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting every thread")
	return cmd
}
