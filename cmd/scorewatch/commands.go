package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/playperu/scoreboard/internal/scoreboard"
	"github.com/playperu/scoreboard/internal/watch"
)

var (
	transport    string
	pollInterval time.Duration
)

func init() {
	watchCmd.Flags().StringVar(&transport, "transport", "sse", "Push channel to use: sse, ws or poll")
	watchCmd.Flags().DurationVar(&pollInterval, "interval", watch.DefaultPollInterval, "Polling interval")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the match every time it changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return runWatch(ctx, cmd.OutOrStdout())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current match once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		m, err := watch.NewPollSource(host, 0).Fetch(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), render(m))
		return nil
	},
}

func runWatch(ctx context.Context, out io.Writer) error {
	poll := watch.NewPollSource(host, pollInterval)

	var stream watch.Source
	switch transport {
	case "sse":
		stream = watch.NewSSESource(host, 0)
	case "ws":
		stream = watch.NewWSSource(host)
	case "poll":
		stream = poll
	default:
		return fmt.Errorf("unknown transport %q (want sse, ws or poll)", transport)
	}

	c := watch.NewClient(stream,
		watch.WithLogger(newLogger()),
		watch.WithPoll(poll),
		watch.WithOnUpdate(func(m *scoreboard.Match) {
			fmt.Fprintln(out, render(m))
		}),
	)
	return c.Connect(ctx)
}

func newLogger() *slog.Logger {
	level := charmlog.WarnLevel
	if verbose {
		level = charmlog.InfoLevel
	}
	return slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          "scorewatch",
	}))
}

// render formats one scoreboard line, e.g. "Ana 10 - 10 Beto (deuce)".
func render(m *scoreboard.Match) string {
	if m == nil {
		return "no active match"
	}

	line := fmt.Sprintf("%s %d - %d %s",
		strings.Join(m.SideA, " & "), m.ScoreA, m.ScoreB, strings.Join(m.SideB, " & "))

	st := m.State()
	switch st.Kind {
	case scoreboard.StateDeuce:
		return line + " (deuce)"
	case scoreboard.StateAdvantage:
		return line + " (advantage " + names(m, st.Team) + ")"
	case scoreboard.StateWin:
		return line + " (game " + names(m, st.Team) + ")"
	}
	return line
}

func names(m *scoreboard.Match, t scoreboard.Team) string {
	if t == scoreboard.TeamB {
		return strings.Join(m.SideB, " & ")
	}
	return strings.Join(m.SideA, " & ")
}
