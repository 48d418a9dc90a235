package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/capitalize-ai/support-desk/internal/model"
	"github.com/capitalize-ai/support-desk/internal/session"
)

const previewWidth = 40

func newThreadsCmd(app *App) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List threads, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := app.openService(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeFn()

			resp := svc.Threads(cmd.Context(), filter)
			if app.JSON {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if len(resp.Threads) == 0 {
				fmt.Fprintln(out, "No threads.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tUNREAD\tLAST\tPREVIEW")
			for _, th := range resp.Threads {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
					th.ParticipantKey,
					th.DisplayName,
					th.UnreadCount,
					app.relative(th.LastMessageTime),
					truncate(th.LastMessagePreview, previewWidth),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d threads, %d unread", resp.Total, resp.TotalUnread)
			if resp.Dropped > 0 {
				fmt.Fprintf(out, ", %d messages without a participant", resp.Dropped)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only threads whose key, name or preview contains this text")
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <participant-key>",
		Short: "Print a thread transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := app.openService(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeFn()

			th, err := svc.Thread(cmd.Context(), args[0])
			if errors.Is(err, session.ErrThreadNotFound) {
				return writeErr(cmd, fmt.Errorf("no thread for %q", args[0]))
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			if app.JSON {
				return writeJSON(cmd, th)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>  %d unread\n\n", th.DisplayName, th.ParticipantKey, th.UnreadCount)
			for _, m := range th.Messages {
				who := th.DisplayName
				if m.Sender.Normalize() == model.SenderOperator {
					who = "operator"
				}
				text := strings.TrimSpace(m.Text)
				if m.HasAttachment() {
					text = strings.TrimSpace(text + " [image]")
				}
				fmt.Fprintf(out, "%s  %s: %s\n", m.At.Local().Format("2006-01-02 15:04"), who, text)
			}
			return nil
		},
	}
	return cmd
}

func newUnreadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the total unread count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := app.openService(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer closeFn()

			resp := svc.TotalUnread(cmd.Context())
			if app.JSON {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.TotalUnread)
			return nil
		},
	}
}

func (app *App) relative(t time.Time) string {
	now := time.Now()
	if app.now != nil {
		now = app.now()
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
