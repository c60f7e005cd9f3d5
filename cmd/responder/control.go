package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devricklin/offline-responder/internal/api"
	"github.com/devricklin/offline-responder/internal/data"
)

// responderOpts describes what a command needs from the local fallback
type responderOpts struct {
	history bool // open the history archive
	writes  bool // changes state; refused while a daemon holds the state lock
}

// withResponder runs fn against the running daemon when its API answers,
// otherwise against the local stores directly.
func withResponder(cmd *cobra.Command, opts responderOpts, fn func(ctx context.Context, r api.Responder) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	client := api.NewClient(cfg.API.Port)
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	err = client.Health(pingCtx)
	cancel()
	if err == nil {
		return fn(ctx, client)
	}

	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	log.Debug("Control API unreachable, using local stores", zap.Int("port", cfg.API.Port))

	if opts.writes {
		if err := checkNoDaemon(cfg.Paths.StatePath); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg, log, opts.history)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, api.NewLocal(a.uc.Policy, a.repos.History))
}

// checkNoDaemon refuses local state edits that a running daemon would overwrite
func checkNoDaemon(statePath string) error {
	running, err := data.DaemonRunning(data.LockPath(statePath))
	if err != nil {
		return err
	}
	if running {
		return fmt.Errorf("%w without a reachable control API; restart it without --no-api to change state", data.ErrDaemonRunning)
	}
	return nil
}

func newOnlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "online",
		Short: "Mark yourself online (stops auto-replies)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResponder(cmd, responderOpts{writes: true}, func(ctx context.Context, r api.Responder) error {
				resp, err := r.SetOnline(ctx)
				if err != nil {
					return err
				}
				printStateChange(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func newOfflineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offline",
		Short: "Mark yourself offline (starts auto-replies)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResponder(cmd, responderOpts{writes: true}, func(ctx context.Context, r api.Responder) error {
				resp, err := r.SetOffline(ctx)
				if err != nil {
					return err
				}
				printStateChange(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show online/offline state and pending count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResponder(cmd, responderOpts{}, func(ctx context.Context, r api.Responder) error {
				st, err := r.Status(ctx)
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), st, time.Now())
				return nil
			})
		},
	}
}

func newPendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List messages received while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResponder(cmd, responderOpts{}, func(ctx context.Context, r api.Responder) error {
				resp, err := r.Pending(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Summary)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of messages to show")
	return cmd
}

func newClearPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-pending",
		Short: "Clear the pending message list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResponder(cmd, responderOpts{writes: true}, func(ctx context.Context, r api.Responder) error {
				n, err := r.ClearPending(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s pending messages\n", humanize.Comma(int64(n)))
				return nil
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently archived messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResponder(cmd, responderOpts{history: true}, func(ctx context.Context, r api.Responder) error {
				resp, err := r.History(ctx, limit)
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), resp, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

// ============ Output ============

func printStateChange(w io.Writer, resp *api.StateChangeResponse) {
	if resp.Changed {
		fmt.Fprintf(w, "Switched to %s\n", resp.State)
		return
	}
	fmt.Fprintf(w, "Already %s\n", resp.State)
}

func printStatus(w io.Writer, st *api.StatusResponse, now time.Time) {
	fmt.Fprintf(w, "State:     %s\n", st.State)
	if st.IsOffline {
		fmt.Fprintf(w, "Offline:   since %s\n", humanize.RelTime(st.OfflineStartedAt, now, "ago", "from now"))
	} else {
		fmt.Fprintf(w, "Activity:  %s\n", humanize.RelTime(st.LastActivityAt, now, "ago", "from now"))
	}
	fmt.Fprintf(w, "Pending:   %s\n", humanize.Comma(int64(st.PendingCount)))
	fmt.Fprintf(w, "Replied:   %s users\n", humanize.Comma(int64(st.RespondedUsers)))
	fmt.Fprintf(w, "Cursor:    %d\n", st.Cursor)
}

func printHistory(w io.Writer, resp *api.HistoryResponse, now time.Time) {
	if len(resp.Entries) == 0 {
		fmt.Fprintln(w, "No messages archived.")
		return
	}
	for _, e := range resp.Entries {
		mark := " "
		if e.Responded {
			mark = "✓"
		}
		fmt.Fprintf(w, "%s [%s] %s: %s (%s)\n", mark, e.Platform, e.SenderName,
			truncate(e.Content, 60), humanize.RelTime(e.ReceivedAt, now, "ago", "from now"))
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
