package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-coach-session/internal/coach"
	"github.com/tbourn/go-coach-session/internal/config"
	"github.com/tbourn/go-coach-session/internal/domain"
	"github.com/tbourn/go-coach-session/internal/services"
	"github.com/tbourn/go-coach-session/internal/session"
	"github.com/tbourn/go-coach-session/internal/sysutil"
)

const chatHelp = "commands: /reset starts over, /state shows the session, /quit exits"

var errNoPersona = errors.New("no persona selected")

func chatCmd() *cobra.Command {
	var (
		personaID string
		userID    int64
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a coach from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// Logs share the terminal, keep them quiet unless asked.
			sysutil.ConfigureLogger(sysutil.FirstNonEmpty(os.Getenv("LOG_LEVEL"), "warn"), true, cmd.ErrOrStderr())

			personas, err := services.LoadPersonaCatalog(cfg.Coach.PersonasPath)
			if err != nil {
				return err
			}
			client := coach.NewClient(coach.Options{
				BaseURL:         cfg.Coach.BaseURL,
				ChatTimeout:     cfg.Coach.ChatTimeout,
				FeedbackTimeout: cfg.Coach.FeedbackTimeout,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runChat(ctx, client, personas, personaID, userID, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&personaID, "persona", "p", "", "Persona id (prompted when empty)")
	cmd.Flags().Int64VarP(&userID, "user", "u", 1, "User id sent to the coaching backend")
	return cmd
}

// runChat drives one session.Controller from line-oriented input until EOF,
// /quit or ctx ends.
func runChat(ctx context.Context, backend session.Backend, personas *services.PersonaCatalog, personaID string, userID int64, in io.Reader, out io.Writer) error {
	lines := readLines(in)
	defer lines.stop()

	persona, err := pickPersona(ctx, personas, personaID, lines, out)
	if err != nil {
		return err
	}

	ctrl := session.NewController(backend, persona, session.WithLogger(log.Logger))
	defer ctrl.Close()

	events, cancel := ctrl.Transcript().Subscribe()
	defer cancel()
	for _, m := range ctrl.Transcript().Messages() {
		printMessage(out, persona, m)
	}
	fmt.Fprintln(out, chatHelp)

	for {
		fmt.Fprint(out, "> ")
		text, ok := lines.next(ctx)
		if !ok {
			return lines.err()
		}
		switch strings.TrimSpace(text) {
		case "/quit", "/exit":
			return nil
		case "/reset":
			ctrl.Reset()
			drain(out, persona, events)
			continue
		case "/state":
			st := ctrl.State()
			fmt.Fprintf(out, "thread=%s awaiting_approval=%t seq=%d\n", st.Thread, st.AwaitingApproval, st.Seq)
			continue
		}

		turn := ctrl.Submit(ctx, text, userID)
		if err := turn.Wait(ctx); err != nil {
			return nil
		}
		drain(out, persona, events)
	}
}

// drain prints the assistant messages already published on events.
func drain(out io.Writer, p domain.Persona, events <-chan session.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			printMessage(out, p, ev.Message)
		default:
			return
		}
	}
}

func printMessage(out io.Writer, p domain.Persona, m domain.ChatMessage) {
	if m.Origin != domain.OriginAssistant {
		return
	}
	fmt.Fprintf(out, "%s: %s\n", p.Name, m.Text)
}

func pickPersona(ctx context.Context, personas *services.PersonaCatalog, id string, lines *lineReader, out io.Writer) (domain.Persona, error) {
	if id != "" {
		p, ok := personas.Get(id)
		if !ok {
			return domain.Persona{}, fmt.Errorf("%w: %q", services.ErrUnknownPersona, id)
		}
		return p, nil
	}

	list := personas.List()
	for i, p := range list {
		fmt.Fprintf(out, "%d) %s\n", i+1, p.Name)
	}
	for {
		fmt.Fprint(out, "persona> ")
		line, ok := lines.next(ctx)
		if !ok {
			if err := lines.err(); err != nil {
				return domain.Persona{}, err
			}
			if ctx.Err() != nil {
				return domain.Persona{}, ctx.Err()
			}
			return domain.Persona{}, errNoPersona
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && n >= 1 && n <= len(list) {
			return list[n-1], nil
		}
		fmt.Fprintf(out, "pick 1-%d\n", len(list))
	}
}

// lineReader scans input on its own goroutine so callers can stop waiting
// for a line when their context ends.
type lineReader struct {
	lines chan string
	done  chan struct{}
	once  sync.Once

	eof     bool
	scanErr error // written before lines is closed
}

func readLines(in io.Reader) *lineReader {
	r := &lineReader{lines: make(chan string), done: make(chan struct{})}
	go func() {
		defer close(r.lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case r.lines <- sc.Text():
			case <-r.done:
				return
			}
		}
		r.scanErr = sc.Err()
	}()
	return r
}

// next returns the next line, or false on EOF, a read error or ctx ending.
func (r *lineReader) next(ctx context.Context) (string, bool) {
	select {
	case line, ok := <-r.lines:
		if !ok {
			r.eof = true
		}
		return line, ok
	case <-ctx.Done():
		return "", false
	}
}

// err reports the read error that ended input, if any.
func (r *lineReader) err() error {
	if !r.eof {
		return nil
	}
	return r.scanErr
}

func (r *lineReader) stop() { r.once.Do(func() { close(r.done) }) }
