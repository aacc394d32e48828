// Package loop implements the event loop (spec §4.6) as a
// charmbracelet/bubbletea tea.Model: Update is the pure-ish dispatcher
// that multiplexes keystrokes, ticks, and background-task completions
// onto the state machine, spawning at most one model or executor task at
// a time. Grounded on the teacher's interfaces/cli/app.go REPL shape
// (slash-command interception, spinner, tool framing) restructured
// around bubbletea's Elm architecture, since bubbletea is a genuine
// teacher dependency with no prior call site.
package loop

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/n4ar/sabi/internal/domain/entity"
	domaintool "github.com/n4ar/sabi/internal/domain/tool"
	"github.com/n4ar/sabi/internal/domain/service"
	"github.com/n4ar/sabi/internal/infrastructure/sandbox"
	"github.com/n4ar/sabi/internal/infrastructure/tool"
	"github.com/n4ar/sabi/internal/llmclient"
	"github.com/n4ar/sabi/internal/llmfactory"
	"github.com/n4ar/sabi/internal/session"
	"github.com/n4ar/sabi/pkg/safego"
)

const minWidth, minHeight = 40, 10

const tickInterval = 100 * time.Millisecond

// Config wires the loop's collaborators (spec §3 "Ownership": the
// conversation is exclusively owned by the loop; the executor and model
// client are shared by value-clone into spawned tasks).
type Config struct {
	SystemPreamble string
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	MaxHistory     int
	Cwd            string
	Logger         *zap.Logger
	Sessions       *session.Store
	Executor       *tool.Executor
	DangerClassifier      *sandbox.DangerClassifier
	InteractiveClassifier *sandbox.InteractiveClassifier
}

// Model is the bubbletea tea.Model implementing the event loop.
type Model struct {
	cfg Config

	state        service.AppState
	conversation *entity.Conversation

	client llmclient.Client

	inputBuf  textinput.Model
	actionBuf textarea.Model
	spin      spinner.Model

	pendingCall    *domaintool.Call
	dangerDetected bool

	errorMessage  string
	statusMessage string

	activeTask uuid.UUID // zero value means no task in flight
	cancel     context.CancelFunc

	sessionID   string
	sessionName string

	width, height int
	tooSmall      bool
	quitting      bool
}

// New builds the loop's initial Model, starting in StateInput with an
// empty conversation seeded with the system preamble.
func New(cfg Config) (*Model, error) {
	client, err := llmfactory.New(llmfactory.Config{
		Provider:           cfg.Provider,
		APIKey:             cfg.APIKey,
		BaseURL:            cfg.BaseURL,
		Model:              cfg.Model,
		MaxHistoryMessages: cfg.MaxHistory,
	}, cfg.Logger)
	if err != nil {
		return nil, err
	}

	in := textinput.New()
	in.Placeholder = "describe a task..."
	in.Focus()

	area := textarea.New()
	area.Placeholder = "edit the proposed action..."

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		cfg:          cfg,
		state:        service.StateInput,
		conversation: entity.NewConversation(cfg.SystemPreamble),
		client:       client,
		inputBuf:     in,
		actionBuf:    area,
		spin:         sp,
		sessionID:    session.NewID(time.Now()),
		sessionName:  "untitled",
	}, nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tickCmd())
}

// --- messages ---

type tickMsg time.Time

type apiResponseMsg struct {
	taskID uuid.UUID
	text   string
	err    error
}

type commandCompleteMsg struct {
	taskID uuid.UUID
	call   domaintool.Call
	result *tool.Result
}

type modelsResponseMsg struct {
	names []string
	err   error
}

// ConfigUpdate carries the subset of infrastructure/config.Config that
// can be hot-reloaded into a running loop (spec §6 configuration file:
// "pick up an edited API key or model without a restart").
type ConfigUpdate struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	MaxHistory        int
	DangerousPatterns []string
	SafeMode          bool
}

type configChangedMsg struct {
	update ConfigUpdate
}

// ReloadConfigMsg wraps update as a tea.Msg suitable for tea.Program.Send,
// so a config.Watch callback running on its own goroutine can safely hand
// a reload to the loop thread instead of mutating the Model directly.
func ReloadConfigMsg(update ConfigUpdate) tea.Msg {
	return configChangedMsg{update: update}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// --- Update ---

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// spec §6 "terminal contract": below 40x10 the renderer shows a
		// size warning in place of normal output; the loop still accepts
		// every event, including quit (handleKey is untouched by this).
		m.width, m.height = msg.Width, msg.Height
		m.tooSmall = m.width < minWidth || m.height < minHeight
		return m, nil

	case tickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, tea.Batch(cmd, tickCmd())

	case tea.KeyMsg:
		return m.handleKey(msg)

	case apiResponseMsg:
		if msg.taskID != m.activeTask {
			return m, nil // stray event from a cancelled task (spec §4.6)
		}
		return m.handleAPIResponse(msg)

	case commandCompleteMsg:
		if msg.taskID != m.activeTask {
			return m, nil
		}
		return m.handleCommandComplete(msg)

	case modelsResponseMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.statusMessage = "available models: " + strings.Join(msg.names, ", ")
		return m, nil

	case configChangedMsg:
		return m.applyConfigUpdate(msg.update)
	}

	return m, nil
}

// handleKey routes a keystroke through the state machine. While
// blocks_input(state) holds, only Ctrl+C (quit) and Escape (cancel) are
// honored; all other keys leave both edit buffers unchanged (spec §4.5
// invariant, §8 property 9).
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	if m.state.BlocksInput() {
		if msg.Type == tea.KeyEsc {
			return m.cancelActiveTask()
		}
		return m, nil
	}

	switch m.state {
	case service.StateInput:
		return m.handleInputKey(msg)
	case service.StateReviewAction:
		return m.handleReviewKey(msg)
	case service.StateDone:
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// cancelActiveTask implements spec §4.6 "Cancellation": aborting the
// in-flight task and returning to Input within one event cycle. Escape
// from {Thinking, Executing, Finalizing} is not in the state table
// (§4.5) — the original source snapshots disagree on whether it cancels
// or quits (§9 Open Questions); this implementation treats it uniformly
// as cancellation and bypasses Transition for this one synthetic path.
func (m *Model) cancelActiveTask() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	wasExecuting := m.state == service.StateExecuting
	m.activeTask = uuid.Nil
	m.pendingCall = nil
	m.dangerDetected = false
	m.state = service.StateInput
	if wasExecuting {
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Command cancelled"))
	}
	return m, nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyEsc:
		result := service.Transition(m.state, service.Event{Kind: service.EventEscape})
		if result.Outcome == service.OutcomeSuccess {
			m.state = result.Next // Done, per spec §4.5 Input+Escape
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.inputBuf, cmd = m.inputBuf.Update(msg)
	return m, cmd
}

// submit implements spec §4.6 step 1 and the slash-command interception.
func (m *Model) submit() (tea.Model, tea.Cmd) {
	raw := m.inputBuf.Value()
	trimmed := strings.TrimSpace(raw)

	result := service.Transition(m.state, service.Event{Kind: service.EventSubmitInput, Empty: trimmed == ""})
	if result.Outcome == service.OutcomeIgnored {
		return m, nil // spec §8 property 1
	}

	m.inputBuf.SetValue("")

	if strings.HasPrefix(trimmed, "/") {
		return m.handleSlashCommand(trimmed)
	}

	m.conversation.Append(entity.NewMessage(entity.RoleUser, trimmed))
	m.state = result.Next // Thinking
	return m, m.spawnChat()
}

// handleSlashCommand implements spec §4.6's slash-command table. Every
// branch stays in StateInput and never reaches the model.
func (m *Model) handleSlashCommand(raw string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(raw)
	name := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch name {
	case "/clear":
		m.conversation.Reset()
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Conversation cleared"))

	case "/new":
		m.persistSession()
		preamble, _ := m.conversation.System()
		m.conversation = entity.NewConversation(preamble.Content())
		m.sessionID = session.NewID(time.Now())
		m.sessionName = "untitled"
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Started new session "+m.sessionID))

	case "/sessions":
		list, err := m.cfg.Sessions.List()
		if err != nil {
			m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Unable to list sessions: "+err.Error()))
			break
		}
		var b strings.Builder
		b.WriteString("Sessions:\n")
		for _, s := range list {
			b.WriteString(fmt.Sprintf("  %s  %s  %s\n", s.ID, s.Timestamp.Format(time.RFC3339), s.Name))
		}
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, b.String()))

	case "/switch":
		if arg == "" {
			m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Unknown command"))
			break
		}
		m.persistSession()
		preamble, _ := m.conversation.System()
		loaded, record, err := m.cfg.Sessions.Load(arg, preamble.Content())
		if err != nil {
			m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Unable to load session "+arg+": "+err.Error()))
			break
		}
		m.conversation = loaded
		m.sessionID = arg
		m.sessionName = record.Name
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Switched to session "+arg))

	case "/delete":
		if arg == "" {
			m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Unknown command"))
			break
		}
		if arg == m.sessionID {
			m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Refusing to delete the current session"))
			break
		}
		if err := m.cfg.Sessions.Delete(arg); err != nil {
			m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Unable to delete session "+arg+": "+err.Error()))
			break
		}
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Deleted session "+arg))

	case "/model":
		if arg == "" {
			return m, m.listModelsCmd()
		}
		m.cfg.Model = arg
		client, err := llmfactory.New(llmfactory.Config{
			Provider:           m.cfg.Provider,
			APIKey:             m.cfg.APIKey,
			BaseURL:            m.cfg.BaseURL,
			Model:              arg,
			MaxHistoryMessages: m.cfg.MaxHistory,
		}, m.cfg.Logger)
		if err != nil {
			m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Unable to switch model: "+err.Error()))
			break
		}
		m.client = client
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Switched to model "+arg))

	case "/help":
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, strings.TrimSpace(`
Commands:
  /clear           clear the conversation
  /new             start a fresh session
  /sessions        list saved sessions
  /switch <id>     switch to a saved session
  /delete <id>     delete a saved session
  /model [name]    list or switch models
  /help            show this message
  /quit, /exit, /q quit
`)))

	case "/quit", "/exit", "/q":
		m.persistSession()
		m.quitting = true
		return m, tea.Quit

	default:
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Unknown command"))
	}

	return m, nil
}

// listModelsCmd runs the listing call on a safego-guarded goroutine so a
// panic inside a transport (malformed JSON, a nil map dereference) is
// logged and turned into a crash-free modelsResponseMsg instead of taking
// the whole program down (spec §9 "Cyclic references avoided" extends to
// every background task, not just chat/executor).
func (m *Model) listModelsCmd() tea.Cmd {
	client := m.client
	logger := m.cfg.Logger
	return func() tea.Msg {
		out := make(chan modelsResponseMsg, 1)
		safego.Go(logger, "list-models", func() {
			defer func() {
				if r := recover(); r != nil {
					out <- modelsResponseMsg{err: fmt.Errorf("list models panicked: %v", r)}
				}
			}()
			names, err := client.ListModels(context.Background())
			out <- modelsResponseMsg{names: names, err: err}
		})
		return <-out
	}
}

// applyConfigUpdate rebuilds the model client and the danger classifier
// from a hot-reloaded config.toml (spec §6), and flips the executor's
// safe-mode switch. A rebuild failure (an unknown provider name) is
// reported but does not disturb the active client or conversation.
func (m *Model) applyConfigUpdate(u ConfigUpdate) (tea.Model, tea.Cmd) {
	client, err := llmfactory.New(llmfactory.Config{
		Provider:           u.Provider,
		APIKey:             u.APIKey,
		BaseURL:            u.BaseURL,
		Model:              u.Model,
		MaxHistoryMessages: u.MaxHistory,
	}, m.cfg.Logger)
	if err != nil {
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Config reload failed: "+err.Error()))
		return m, nil
	}

	m.cfg.Provider = u.Provider
	m.cfg.APIKey = u.APIKey
	m.cfg.BaseURL = u.BaseURL
	m.cfg.Model = u.Model
	m.cfg.MaxHistory = u.MaxHistory
	m.client = client
	m.cfg.DangerClassifier = sandbox.NewDangerClassifier(u.DangerousPatterns)
	if m.cfg.Executor != nil {
		m.cfg.Executor.SetSafeMode(u.SafeMode)
	}
	m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Configuration reloaded"))
	return m, nil
}

func (m *Model) persistSession() {
	if m.cfg.Sessions == nil {
		return
	}
	err := m.cfg.Sessions.Save(m.sessionID, m.sessionName, time.Now(), m.cfg.Cwd, m.conversation.Messages())
	if err != nil && m.cfg.Logger != nil {
		m.cfg.Logger.Warn("session persist failed", zap.Error(err))
	}
}

// spawnChat clones the conversation by value before handing it to the
// background task (spec §9 "Cyclic references avoided") and runs the
// call on a safego-guarded goroutine so a transport panic surfaces as an
// ApiError event rather than crashing the whole loop.
func (m *Model) spawnChat() tea.Cmd {
	taskID := uuid.New()
	m.activeTask = taskID
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	snapshot := m.conversation.Snapshot()
	client := m.client
	logger := m.cfg.Logger

	return func() tea.Msg {
		out := make(chan apiResponseMsg, 1)
		safego.Go(logger, "chat", func() {
			defer func() {
				if r := recover(); r != nil {
					out <- apiResponseMsg{taskID: taskID, err: fmt.Errorf("chat panicked: %v", r)}
				}
			}()
			text, err := client.Chat(ctx, snapshot)
			out <- apiResponseMsg{taskID: taskID, text: text, err: err}
		})
		return <-out
	}
}

// handleAPIResponse implements spec §4.6 step 2 (and its Finalizing
// mirror in step 5): append the reply, parse it, and either land back in
// Input or stage a tool call for review.
func (m *Model) handleAPIResponse(msg apiResponseMsg) (tea.Model, tea.Cmd) {
	m.activeTask = uuid.Nil
	m.cancel = nil

	if msg.err != nil {
		m.errorMessage = msg.err.Error()
		m.state = service.StateInput
		return m, nil
	}
	m.errorMessage = ""

	m.conversation.Append(entity.NewMessage(entity.RoleModel, msg.text))
	parsed := domaintool.Parse(msg.text)

	if parsed.IsText() {
		m.state = service.StateInput
		return m, nil
	}

	call := parsed.Call()

	if call.Tool == domaintool.RunCmd && m.cfg.InteractiveClassifier.IsInteractive(call.Command) {
		suggestion := m.cfg.InteractiveClassifier.Suggestion(call.Command)
		m.conversation.Append(entity.NewMessage(entity.RoleModel, suggestion))
		m.state = service.StateInput
		return m, nil
	}

	if call.Tool == domaintool.RunPython && !pythonAvailable() {
		m.conversation.Append(entity.NewMessage(entity.RoleModel, "python3 is not available on this host"))
		m.state = service.StateInput
		return m, nil
	}

	if !isAllowedTool(call.Tool) {
		m.conversation.Append(entity.NewMessage(entity.RoleSystem, "Blocked unknown tool"))
		m.state = service.StateInput
		return m, nil
	}

	m.pendingCall = &call
	m.actionBuf.SetValue(primaryField(call))
	m.dangerDetected = isDestructive(call) || (call.Tool == domaintool.RunCmd && m.cfg.DangerClassifier.IsDangerous(call.Command))
	m.state = service.StateReviewAction
	return m, nil
}

// pythonAvailable probes PATH for python3 (spec §4.6 step 2: "If
// t.tool == run_python and Python is unavailable, do the same [refuse
// without asking]", grounded on the original source's app.python_available
// indicator).
func pythonAvailable() bool {
	_, err := exec.LookPath("python3")
	return err == nil
}

// isDestructive is the is_destructive(t) disjunct of spec §4.6 step 2:
// write_file overwrites file content, so it lights the danger warning
// regardless of the command-pattern gate (which only inspects run_cmd).
func isDestructive(call domaintool.Call) bool {
	return call.Tool == domaintool.WriteFile
}

func isAllowedTool(name domaintool.Name) bool {
	switch name {
	case domaintool.RunCmd, domaintool.RunPython, domaintool.ReadFile, domaintool.WriteFile, domaintool.Search:
		return true
	default:
		return false
	}
}

func (m *Model) handleReviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		return m.confirmAction()
	case tea.KeyEsc:
		result := service.Transition(m.state, service.Event{Kind: service.EventEscape})
		m.actionBuf.SetValue("")
		m.dangerDetected = false
		m.pendingCall = nil
		m.state = result.Next
		return m, nil
	}
	var cmd tea.Cmd
	m.actionBuf, cmd = m.actionBuf.Update(msg)
	return m, cmd
}

// confirmAction commits the edited buffer onto the pending call's
// primary field (spec §9 "the primary field commit on Enter") and
// spawns the executor task.
func (m *Model) confirmAction() (tea.Model, tea.Cmd) {
	if strings.TrimSpace(m.actionBuf.Value()) == "" {
		return m, nil // empty action buffer on confirm is a no-op (spec §7)
	}
	result := service.Transition(m.state, service.Event{Kind: service.EventConfirmCommand})
	if result.Outcome != service.OutcomeSuccess {
		return m, nil
	}

	call := *m.pendingCall
	setPrimaryField(&call, m.actionBuf.Value())
	m.pendingCall = &call
	m.actionBuf.SetValue("")
	m.state = result.Next // Executing

	return m, m.spawnExecution(call)
}

func (m *Model) spawnExecution(call domaintool.Call) tea.Cmd {
	taskID := uuid.New()
	m.activeTask = taskID
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	executor := m.cfg.Executor
	logger := m.cfg.Logger

	return func() tea.Msg {
		out := make(chan commandCompleteMsg, 1)
		safego.Go(logger, "execute", func() {
			defer func() {
				if r := recover(); r != nil {
					out <- commandCompleteMsg{
						taskID: taskID,
						call:   call,
						result: &tool.Result{Stderr: fmt.Sprintf("executor panicked: %v", r), ExitCode: -1, Success: false},
					}
				}
			}()
			result := executor.Execute(ctx, call)
			out <- commandCompleteMsg{taskID: taskID, call: call, result: result}
		})
		return <-out
	}
}

// handleCommandComplete implements spec §4.6 step 5: build the
// observation string, feed it back to the model as a User message (the
// Observe step of ReAct), and spawn the next chat call.
func (m *Model) handleCommandComplete(msg commandCompleteMsg) (tea.Model, tea.Cmd) {
	m.activeTask = uuid.Nil
	m.cancel = nil

	result := service.Transition(m.state, service.Event{Kind: service.EventCommandComplete})
	m.state = result.Next // Finalizing

	output := msg.result.Stdout
	if !msg.result.Success {
		output = msg.result.Stdout + "\n" + msg.result.Stderr
	}
	observation := fmt.Sprintf("Tool: %s: %s\nExit code: %d\nOutput:\n%s",
		msg.call.Tool, primaryField(msg.call), msg.result.ExitCode, output)
	m.conversation.Append(entity.NewMessage(entity.RoleUser, observation))

	m.pendingCall = nil
	m.dangerDetected = false
	return m, m.spawnChat()
}

// primaryField is the single editable field spec §9's "primary field"
// design note refers to: the command for run_cmd, the code for
// run_python, the path for read_file/write_file, the pattern for
// search.
func primaryField(c domaintool.Call) string {
	switch c.Tool {
	case domaintool.RunCmd:
		return c.Command
	case domaintool.RunPython:
		return c.Code
	case domaintool.ReadFile, domaintool.WriteFile:
		return c.Path
	case domaintool.Search:
		return c.Pattern
	default:
		return ""
	}
}

func setPrimaryField(c *domaintool.Call, value string) {
	switch c.Tool {
	case domaintool.RunCmd:
		c.Command = value
	case domaintool.RunPython:
		c.Code = value
	case domaintool.ReadFile, domaintool.WriteFile:
		c.Path = value
	case domaintool.Search:
		c.Pattern = value
	}
}
