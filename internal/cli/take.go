package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/auth"
	"fge-test-platform/internal/config"
	"fge-test-platform/internal/domain"
	"fge-test-platform/internal/infra/httpapi"
	"fge-test-platform/internal/infra/memory"
	"fge-test-platform/internal/infra/sqlite"
	"github.com/spf13/cobra"
)

// NewTakeCmd runs one quiz in the terminal. Each process acts as one browser tab;
// reusing --state across restarts behaves like reloading that tab.
func NewTakeCmd(configPath *string) *cobra.Command {
	var statePath, token string
	cmd := &cobra.Command{
		Use:   "take <category>",
		Short: "Take a quiz as a single tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if statePath == "" {
				statePath = cfg.Client.StatePath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTake(ctx, cfg, args[0], statePath, token, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&statePath, "state", "", "tab state file; empty keeps tab identity in memory")
	cmd.Flags().StringVar(&token, "token", "", "bearer token; a guest token is requested when empty")
	return cmd
}

func openTabStore(path string) (app.TabStore, func(), error) {
	if path == "" {
		return memory.NewTabStore(), func() {}, nil
	}
	s, err := sqlite.NewTabStore(path)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func runTake(ctx context.Context, cfg config.Config, category, statePath, token string, in io.Reader, out io.Writer) error {
	tabs, closeTabs, err := openTabStore(statePath)
	if err != nil {
		return err
	}
	defer closeTabs()
	tabID := app.EnsureID(tabs, app.TabIDKey, "tab")
	sessionID := app.EnsureID(tabs, app.SessionIDKey, "session")

	api := httpapi.NewClient(cfg.Client.ServerURL, token, cfg.Client.Language)
	if token == "" {
		if _, err := api.GuestLogin(ctx); err != nil {
			return fmt.Errorf("guest login: %w", err)
		}
	}

	signals, closeSignals, err := openSignals(ctx, cfg, tabID, api.Token())
	if err != nil {
		return err
	}
	defer closeSignals()

	timing := coordinatorTiming(cfg)
	heartbeats := app.NewHeartbeatRegistry(signals, tabID, timing)
	heartbeats.Touch(ctx)
	hbCtx, stopHeartbeats := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		heartbeats.Run(hbCtx)
	}()
	defer func() {
		stopHeartbeats()
		<-hbDone
	}()

	snapshots := app.NewSnapshotStore(signals)
	history := app.NewHistoryStore(signals, config.IntOr(cfg.Coordinator.HistoryCap, app.DefaultHistoryCap))
	loader := app.NewProgressLoader(api, snapshots, history, config.IntOr(cfg.Coordinator.QuestionLimit, app.DefaultQuestionLimit))

	t := &terminal{out: out, lines: scanLines(in), heartbeats: heartbeats}
	ctrl := app.NewController(app.ControllerDeps{
		Identity:   auth.Token(api.Token()),
		Heartbeats: heartbeats,
		Locks:      app.NewLockManager(signals, timing),
		Loader:     loader,
		Results:    api,
		Confirm:    t.confirm,
		TabID:      tabID,
		SessionID:  sessionID,
		Timing:     timing,
	})
	t.ctrl = ctrl

	if err := ctrl.Enter(ctx, category); err != nil {
		var denied *domain.AccessDeniedError
		if errors.As(err, &denied) {
			fmt.Fprintln(out, reasonMessage(denied.Reason))
			return nil
		}
		return err
	}
	return t.loop(ctx)
}

// scanLines feeds input lines to a channel that is closed at EOF.
func scanLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

type terminal struct {
	ctrl       *app.Controller
	heartbeats *app.HeartbeatRegistry
	out        io.Writer
	lines      <-chan string
}

const takeHelp = `commands: mcq | input | a..d | <text> | check | n | p | submit | end | back | fg | quit`

func (t *terminal) loop(ctx context.Context) error {
	fmt.Fprintln(t.out, takeHelp)
	t.render()
	for {
		select {
		case <-t.ctrl.Done():
			t.printOutcome()
			return nil
		case <-ctx.Done():
			t.ctrl.Close(ctx)
			return nil
		case line, ok := <-t.lines:
			if !ok {
				t.ctrl.Close(ctx)
				return nil
			}
			if quit := t.handle(ctx, strings.TrimSpace(line)); quit {
				t.ctrl.Close(ctx)
				return nil
			}
		}
	}
}

func (t *terminal) handle(ctx context.Context, line string) bool {
	var err error
	switch strings.ToLower(line) {
	case "":
		return false
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(t.out, takeHelp)
		return false
	case "mcq":
		err = t.ctrl.SelectMode(ctx, domain.ModeMCQ)
	case "input":
		err = t.ctrl.SelectMode(ctx, domain.ModeInput)
	case "n", "next":
		_, err = t.ctrl.Navigate(ctx, 1)
	case "p", "prev":
		_, err = t.ctrl.Navigate(ctx, -1)
	case "check":
		_, err = t.ctrl.CheckDraft(ctx)
	case "fg":
		t.heartbeats.Foreground(ctx)
	case "submit":
		_, err = t.ctrl.Submit(ctx)
	case "end":
		_, err = t.ctrl.RequestEnd(ctx)
	case "back":
		var leave bool
		leave, err = t.ctrl.NavigateBack(ctx)
		if err == nil && leave && t.ctrl.State() != app.StateEnded {
			return true
		}
	default:
		err = t.answer(ctx, line)
	}
	if err != nil {
		fmt.Fprintf(t.out, "error: %v\n", err)
	}
	if t.ctrl.State() == app.StateActive {
		t.render()
	}
	return false
}

// answer sends the line as an option key in mcq mode and stores it as a draft in input mode.
func (t *terminal) answer(ctx context.Context, line string) error {
	p := t.ctrl.Progress()
	if p == nil {
		return domain.ErrNotActive
	}
	mode, ok := p.Mode()
	if !ok {
		return domain.ErrModeNotSelected
	}
	if mode == domain.ModeMCQ {
		_, err := t.ctrl.Answer(ctx, strings.ToUpper(line))
		return err
	}
	return t.ctrl.SetDraft(line)
}

func (t *terminal) confirm(prompt string) bool {
	fmt.Fprintf(t.out, "%s [y/N] ", prompt)
	line, ok := <-t.lines
	if !ok {
		return false
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}

func (t *terminal) render() {
	p := t.ctrl.Progress()
	if p == nil {
		return
	}
	q, idx, total := p.Current()
	if total == 0 {
		return
	}
	mode, hasMode := p.Mode()
	fmt.Fprintf(t.out, "\n[%s %d/%d, answered %d] %s\n", p.Category(), idx+1, total, p.Answered(), q.Text)
	if q.ImageURL != "" {
		fmt.Fprintf(t.out, "  image: %s\n", q.ImageURL)
	}
	if !hasMode {
		fmt.Fprintln(t.out, "  choose a mode: mcq or input")
		return
	}
	if mode == domain.ModeMCQ {
		for _, key := range domain.OptionKeys {
			if text, ok := q.Options[key]; ok && text != "" {
				fmt.Fprintf(t.out, "  %s) %s\n", key, text)
			}
		}
	}
	if value, answered := p.Answer(q.ID); answered {
		verdict := "wrong"
		if app.IsCorrect(q, value) {
			verdict = "correct"
		}
		fmt.Fprintf(t.out, "  your answer: %s (%s, expected %s)\n", value, verdict, q.CorrectAnswer)
	} else if draft := p.Draft(q.ID); draft != "" {
		fmt.Fprintf(t.out, "  draft: %s (type check to answer)\n", draft)
	}
}

func (t *terminal) printOutcome() {
	o := t.ctrl.Outcome()
	switch {
	case o.Reason != domain.ReasonNone && o.Result != nil:
		fmt.Fprintf(t.out, "test submitted automatically: %s\n", o.Reason)
	case o.Reason != domain.ReasonNone:
		fmt.Fprintln(t.out, reasonMessage(o.Reason))
	}
	if o.Result != nil {
		fmt.Fprintf(t.out, "score: %d/%d (%d%%), answered %d\n", o.Result.Correct, o.Result.Total, o.Result.Percentage, o.Result.Answered)
	}
	if o.Err != nil && o.Reason == domain.ReasonNone {
		fmt.Fprintf(t.out, "error: %v\n", o.Err)
	}
}

func reasonMessage(r domain.Reason) string {
	switch r {
	case domain.ReasonMultiTab:
		return "test submitted: another tab started a test"
	case domain.ReasonMultiTabCount:
		return "test blocked: the platform is open in more than one tab"
	case domain.ReasonMultiTabActive:
		return "test blocked: a test is already running in another tab"
	}
	return string(r)
}
