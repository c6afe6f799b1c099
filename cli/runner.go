// Command execution for CLI commands.
//
// Information Hiding:
// - Store, backend client and session wiring hidden behind Open
// - REPL parsing and command dispatch hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/richinex/chatline/backend"
	"github.com/richinex/chatline/chat"
	"github.com/richinex/chatline/config"
	"github.com/richinex/chatline/logging"
	"github.com/richinex/chatline/session"
	"github.com/richinex/chatline/storage"
	"github.com/richinex/chatline/view"
)

const helpText = `Enter sends. End a line with \ to continue the message on the next line.
Commands:
  /new              start a new session
  /sessions [remote] list sessions
  /switch <id>      switch to a session (unique id prefix accepted)
  /delete           delete the current session
  /batch            send several messages, one per line, ended by a lone "."
  /history          show the current session
  /sync             import sessions from the backend
  /tts on|off       request spoken replies
  /exit             quit`

// Options holds CLI execution options.
type Options struct {
	TTS  bool // request spoken replies
	Play bool // open audio replies with the OS default handler
	In   io.Reader
	Out  io.Writer
}

// DefaultOptions returns options bound to the process's stdin and stdout.
func DefaultOptions() Options {
	return Options{
		In:  os.Stdin,
		Out: os.Stdout,
	}
}

// App runs chatline commands against one store and one backend.
type App struct {
	ctrl     *session.Controller
	exchange *chat.Exchange
	renderer *TerminalRenderer
	player   *AudioPlayer
	logger   log.FieldLogger
	in       *lineReader
	closer   io.Closer

	tts  bool
	play bool
}

// Open wires the store, registry, backend client and renderer from settings.
func Open(ctx context.Context, settings config.Settings, opts Options) (*App, error) {
	logger := logging.New(logging.Options{Level: settings.Log.Level, File: settings.Log.File})

	store, err := storage.Open(settings.Store.Backend, settings.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	registry, err := session.Load(ctx, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	client, err := backend.NewClient(settings.Backend.BaseURL, settings.Backend.Timeout)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	client = client.WithLogger(logger)

	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	renderer := NewTerminalRenderer(opts.Out)
	ctrl := session.NewController(registry, client, renderer, logger)
	exchange := chat.New(ctrl, client, logger).WithSyncWorkers(settings.Chat.SyncWorkers)
	player := NewAudioPlayer(client, settings.Chat.AudioDir, logger)

	opts.TTS = opts.TTS || settings.Chat.TTS
	app := NewApp(ctrl, exchange, renderer, player, logger, opts)
	app.closer = store

	logger.WithFields(log.Fields{
		"backend": client.BaseURL(),
		"store":   settings.Store.Backend,
	}).Debug("chatline ready")
	return app, nil
}

// NewApp assembles an App from already wired parts. player may be nil.
func NewApp(ctrl *session.Controller, exchange *chat.Exchange, renderer *TerminalRenderer, player *AudioPlayer, logger log.FieldLogger, opts Options) *App {
	if logger == nil {
		logger = log.StandardLogger()
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	return &App{
		ctrl:     ctrl,
		exchange: exchange,
		renderer: renderer,
		player:   player,
		logger:   logger,
		in:       newLineReader(bufio.NewScanner(in)),
		tts:      opts.TTS,
		play:     opts.Play,
	}
}

// Close releases the store.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Chat runs the interactive REPL until /exit, end of input or ctx is cancelled.
// Operation errors are shown inline and never end the loop.
func (a *App) Chat(ctx context.Context) error {
	if _, err := a.ctrl.EnsureCurrent(ctx); err != nil {
		return a.report(err)
	}
	a.renderer.Println(a.renderer.st.muted.Render("Type /help for commands."))

	for ctx.Err() == nil {
		a.renderer.Prompt(a.ctrl.Current())
		input, ok := a.in.readMessage(ctx)
		if !ok {
			break
		}
		if strings.TrimSpace(input) == "" {
			continue
		}

		if name, arg, isCmd := parseCommand(input); isCmd {
			quit, err := a.dispatch(ctx, name, arg)
			if err != nil {
				a.logger.WithError(err).Debug("command failed")
			}
			if quit {
				return nil
			}
			continue
		}

		if err := a.Send(ctx, input); err != nil {
			a.logger.WithError(err).Debug("send failed")
		}
	}
	return a.in.err()
}

func (a *App) dispatch(ctx context.Context, name, arg string) (bool, error) {
	switch name {
	case "exit", "quit":
		return true, nil
	case "help":
		a.renderer.Println(helpText)
		return false, nil
	case "new":
		return false, a.New(ctx)
	case "sessions":
		return false, a.Sessions(ctx, arg == "remote")
	case "switch", "use":
		if arg == "" {
			return false, a.report(errors.New("usage: /switch <id>"))
		}
		return false, a.Use(ctx, arg)
	case "delete":
		return false, a.Delete(ctx, arg, false)
	case "batch":
		a.renderer.Println(a.renderer.st.muted.Render(`Enter one message per line, then a lone "." to send.`))
		block, ok := a.in.readBlock(ctx)
		if !ok {
			return false, nil
		}
		return false, a.Batch(ctx, block)
	case "history":
		return false, a.History(ctx, arg, false)
	case "sync":
		return false, a.Sync(ctx)
	case "tts":
		return false, a.setTTS(arg)
	default:
		return false, a.report(fmt.Errorf("unknown command /%s, try /help", name))
	}
}

// Send delivers one message in the current session.
func (a *App) Send(ctx context.Context, text string) error {
	reply, err := a.exchange.Send(ctx, text, chat.SendOptions{TTS: a.tts})
	if err != nil {
		return reported(err)
	}
	if a.play && !reply.Dropped && reply.Message.HasAudio() {
		a.playAudio(ctx, reply.Message.AudioPath)
	}
	return nil
}

// Batch sends every non-blank line of input as one batch.
func (a *App) Batch(ctx context.Context, input string) error {
	result, err := a.exchange.SendBatch(ctx, input)
	if err != nil {
		return reported(err)
	}
	a.logger.WithFields(log.Fields{
		"session_id": result.SessionID,
		"replies":    len(result.Replies),
	}).Debug("batch complete")
	return nil
}

// New starts a new session and makes it current.
func (a *App) New(ctx context.Context) error {
	id, err := a.ctrl.CreateAndSwitch(ctx)
	if err != nil {
		return a.report(err)
	}
	a.notify(fmt.Sprintf("Started session %s", id))
	return nil
}

// EnsureSession starts a session when none is selected.
func (a *App) EnsureSession(ctx context.Context) error {
	if a.ctrl.Current() != "" {
		return nil
	}
	return a.New(ctx)
}

// Use makes an existing session current. A unique id prefix is accepted.
func (a *App) Use(ctx context.Context, ref string) error {
	id := a.resolve(ref)
	if !a.ctrl.Registry().Exists(id) {
		return a.report(fmt.Errorf("unknown session %q", ref))
	}
	if err := a.ctrl.SwitchTo(ctx, id); err != nil {
		return a.report(err)
	}
	return nil
}

// Sessions lists local sessions, or the backend's when remote is set.
func (a *App) Sessions(ctx context.Context, remote bool) error {
	if !remote {
		a.renderer.Sessions("Local sessions", a.ctrl.Registry().List(), a.ctrl.Current())
		return nil
	}
	list, err := a.exchange.RemoteSessions(ctx)
	if err != nil {
		return reported(err)
	}
	a.renderer.Sessions("Backend sessions", list, a.ctrl.Current())
	return nil
}

// History shows a session, the current one when ref is empty.
func (a *App) History(ctx context.Context, ref string, remote bool) error {
	id := a.ctrl.Current()
	if ref != "" {
		id = a.resolve(ref)
	}
	if id == "" {
		return a.report(chat.ErrNoSession)
	}

	if remote {
		history, err := a.exchange.RemoteHistory(ctx, id)
		if err != nil {
			return reported(err)
		}
		a.renderer.Render(id, history)
		return nil
	}

	if !a.ctrl.Registry().Exists(id) {
		return a.report(fmt.Errorf("unknown session %q", ref))
	}
	a.renderer.Render(id, a.ctrl.Registry().Get(id))
	return nil
}

// Delete removes a session locally and on the backend, the current one when
// ref is empty. Without yes the user is asked to confirm.
func (a *App) Delete(ctx context.Context, ref string, yes bool) error {
	id := a.ctrl.Current()
	if ref != "" {
		id = a.resolve(ref)
	}
	if id == "" {
		return a.report(chat.ErrNoSession)
	}

	if !yes && !a.confirm(ctx, fmt.Sprintf("Delete session %s? [y/N] ", id)) {
		a.notify("Cancelled.")
		return nil
	}
	if err := a.ctrl.Delete(ctx, id); err != nil {
		return a.report(err)
	}
	a.notify(fmt.Sprintf("Deleted session %s", id))
	return nil
}

// Sync imports the backend's sessions.
func (a *App) Sync(ctx context.Context) error {
	report, err := a.exchange.Sync(ctx)
	if err != nil {
		return reported(err)
	}
	a.notify(fmt.Sprintf("Synced: %d imported, %d extended, %d kept local, %d failed",
		len(report.Imported), len(report.Extended), len(report.Skipped), len(report.Failed)))
	for id, ferr := range report.Failed {
		a.renderer.Notify(view.Notice{
			Level: view.LevelError,
			Text:  fmt.Sprintf("%s: %s", id, chat.Describe(ferr)),
		})
	}
	return nil
}

func (a *App) setTTS(arg string) error {
	switch strings.ToLower(arg) {
	case "on":
		a.tts = true
	case "off":
		a.tts = false
	case "":
		a.tts = !a.tts
	default:
		return a.report(errors.New("usage: /tts on|off"))
	}
	state := "off"
	if a.tts {
		state = "on"
	}
	a.notify("Spoken replies " + state)
	return nil
}

func (a *App) playAudio(ctx context.Context, audioPath string) {
	if a.player == nil {
		return
	}
	local, err := a.player.Play(ctx, audioPath)
	if err != nil {
		a.logger.WithError(err).Warn("audio playback failed")
		a.renderer.Notify(view.Notice{Level: view.LevelError, Text: "Audio unavailable: " + err.Error()})
		return
	}
	a.notify("Playing " + local)
}

// resolve expands a unique id prefix into a full local session id.
// Anything else is returned unchanged.
func (a *App) resolve(ref string) string {
	if id, ok := a.ctrl.Registry().Resolve(ref); ok {
		return id
	}
	return ref
}

func (a *App) confirm(ctx context.Context, prompt string) bool {
	a.renderer.Ask(prompt)
	answer, ok := a.in.readMessage(ctx)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func (a *App) notify(text string) {
	a.renderer.Notify(view.Notice{Level: view.LevelInfo, Text: text})
}

// report shows err inline and marks it as shown.
func (a *App) report(err error) error {
	if err == nil || Reported(err) {
		return err
	}
	a.renderer.Notify(view.Notice{Level: view.LevelError, Text: chat.Describe(err)})
	return reportedError{err: err}
}

// reportedError marks an error the user has already seen.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// Reported reports whether err was already shown to the user.
func Reported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}
