package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/expertly/inbox/internal/api"
	"github.com/expertly/inbox/internal/credential"
	"github.com/expertly/inbox/internal/inbox"
	"github.com/expertly/inbox/internal/keys"
	"github.com/expertly/inbox/internal/model"
	"github.com/expertly/inbox/internal/stream"
	"github.com/expertly/inbox/internal/theme"
	"github.com/expertly/inbox/internal/ui"
	"github.com/expertly/inbox/internal/ui/feedlist"
	"github.com/expertly/inbox/internal/ui/login"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewFeed
)

// EngineUpdateMsg carries a recomputed projection from the engine.
type EngineUpdateMsg struct {
	Update inbox.Update
}

// ToastMsg shows a transient message in the status bar. Collaborators
// outside the core (e.g. the coin balance listener) send it too.
type ToastMsg struct {
	Text string
}

// opResultMsg reports the outcome of an asynchronous store write.
type opResultMsg struct {
	err error
}

// clearToastMsg removes an expired toast.
type clearToastMsg struct{}

// toastDuration is how long a toast stays visible.
const toastDuration = 4 * time.Second

// Model is the root Bubble Tea model: it routes between the login form
// and the feed view, and bridges engine updates into the UI. It only
// consumes projections; the stores and transport stay behind the
// engine.
type Model struct {
	currentView ViewState
	layout      ui.Layout
	keys        *keys.KeyMap

	engine    *inbox.Engine
	streamCli *stream.Client
	setToken  func(token string)

	loginView login.Model
	feedView  feedlist.Model

	ctx     context.Context
	started bool
	ready   bool

	badge   int
	toast   string
	lastErr string
}

// Options wires the root model.
type Options struct {
	Engine *inbox.Engine
	Stream *stream.Client

	// SetToken propagates a fresh session token to the REST client.
	SetToken func(token string)

	// Token is the stored session token ("" means first run).
	Token string
}

// New creates the root application model. With a stored token the app
// opens straight into the feed; otherwise it shows the login form.
func New(ctx context.Context, opts Options) Model {
	k := keys.DefaultKeyMap()

	m := Model{
		currentView: ViewLogin,
		keys:        k,
		engine:      opts.Engine,
		streamCli:   opts.Stream,
		setToken:    opts.SetToken,
		loginView:   login.New(80, 24),
		feedView:    feedlist.New(k, 80, 24),
		ctx:         ctx,
	}
	if opts.Token != "" {
		m.currentView = ViewFeed
	}
	return m
}

// Init starts the engine for an authenticated session, or the login
// form otherwise. An unauthenticated session neither fetches nor
// subscribes.
func (m Model) Init() tea.Cmd {
	if m.currentView == ViewFeed {
		return m.startEngine()
	}
	return m.loginView.Init()
}

// startEngine connects the stream, starts the engine once, and begins
// listening for projection updates.
func (m Model) startEngine() tea.Cmd {
	engine := m.engine
	streamCli := m.streamCli
	ctx := m.ctx
	return func() tea.Msg {
		streamCli.Connect(ctx)
		engine.Start(ctx)
		return EngineUpdateMsg{Update: inbox.Update{
			Badge: engine.Badge(),
			Feed:  engine.Feed(),
		}}
	}
}

// waitForUpdate blocks on the engine's update channel and forwards the
// next projection to the UI.
func (m Model) waitForUpdate() tea.Cmd {
	updates := m.engine.Updates()
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return nil
		}
		return EngineUpdateMsg{Update: u}
	}
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.loginView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		m.feedView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
		return m.updateActiveView(msg)

	case login.TokenSubmittedMsg:
		if err := credential.Set(credential.SessionTokenKey, msg.Token); err != nil {
			log.Printf("storing session token failed: %v", err)
		}
		if m.setToken != nil {
			m.setToken(msg.Token)
		}
		m.streamCli.Connect(m.ctx)
		m.streamCli.SetToken(m.ctx, msg.Token)
		m.currentView = ViewFeed
		if !m.started {
			m.started = true
			engine := m.engine
			ctx := m.ctx
			return m, tea.Batch(
				func() tea.Msg {
					engine.Start(ctx)
					return nil
				},
				m.waitForUpdate(),
			)
		}
		return m, m.waitForUpdate()

	case EngineUpdateMsg:
		m.started = true
		m.badge = msg.Update.Badge
		m.feedView.SetEntries(msg.Update.Feed)
		cmds := []tea.Cmd{m.waitForUpdate()}
		if msg.Update.Toast != "" {
			m.toast = msg.Update.Toast
			cmds = append(cmds, clearToastLater())
		}
		return m, tea.Batch(cmds...)

	case ToastMsg:
		m.toast = msg.Text
		return m, clearToastLater()

	case clearToastMsg:
		m.toast = ""
		return m, nil

	case opResultMsg:
		if msg.err == nil {
			m.lastErr = ""
			return m, nil
		}
		if api.IsAuthError(msg.err) {
			// The stored token is dead; drop it and fall back to the
			// login form.
			if err := credential.Delete(credential.SessionTokenKey); err != nil {
				log.Printf("clearing rejected session token failed: %v", err)
			}
			m.loginView = login.New(m.layout.ContentWidth(), m.layout.ContentHeight())
			m.currentView = ViewLogin
			return m, m.loginView.Init()
		}
		m.lastErr = msg.err.Error()
		return m, nil

	case feedlist.NearBottomMsg:
		m.engine.LoadMore()
		return m, nil

	case tea.KeyMsg:
		if m.currentView == ViewFeed {
			if cmd, handled := m.handleFeedKey(msg); handled {
				return m, cmd
			}
		}
	}

	return m.updateActiveView(msg)
}

// handleFeedKey processes the feed-view actions.
func (m *Model) handleFeedKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true

	case key.Matches(msg, m.keys.Refresh):
		// Opening/refreshing the panel is an explicit reconcile trigger.
		m.engine.OpenPanel()
		return nil, true

	case key.Matches(msg, m.keys.LoadMore):
		m.engine.LoadMore()
		return nil, true

	case key.Matches(msg, m.keys.MarkAllRead):
		engine := m.engine
		ctx := m.ctx
		return func() tea.Msg {
			return opResultMsg{err: engine.MarkAllRead(ctx)}
		}, true

	case key.Matches(msg, m.keys.MarkRead):
		entry, ok := m.feedView.Selected()
		if !ok {
			return nil, true
		}
		engine := m.engine
		ctx := m.ctx
		if entry.Source == model.FeedSourceConversation {
			id := entry.ID
			return func() tea.Msg {
				return opResultMsg{err: engine.MarkConversationRead(ctx, id)}
			}, true
		}
		id := entry.ID
		return func() tea.Msg {
			return opResultMsg{err: engine.MarkRead(ctx, id)}
		}, true

	case key.Matches(msg, m.keys.Dismiss):
		entry, ok := m.feedView.Selected()
		if !ok || entry.Source == model.FeedSourceConversation {
			return nil, true
		}
		m.engine.Dismiss(entry.ID)
		return nil, true
	}

	return nil, false
}

// updateActiveView forwards a message to whichever view is active.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewFeed:
		m.feedView, cmd = m.feedView.Update(msg)
	}
	return m, cmd
}

// View renders the active view inside the standard frame.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	right := fmt.Sprintf("unread: %d", m.badge)
	if m.badge > 0 {
		right = theme.BadgeStyle.Render(fmt.Sprintf("%d", m.badge)) + " unread"
	}
	header := m.layout.RenderHeader("Expertly Inbox", right)

	var content string
	switch m.currentView {
	case ViewLogin:
		content = m.loginView.View()
	case ViewFeed:
		content = m.feedView.View()
	}

	status := "enter mark read | A mark all | x dismiss | r refresh | m more | q quit"
	if m.toast != "" {
		status = theme.ToastStyle.Render(m.toast)
	}
	if m.lastErr != "" {
		status = theme.ErrorStyle.Render(m.lastErr)
	}
	statusBar := m.layout.RenderStatusBar(status)

	return m.layout.RenderWithFrame(header, content, statusBar)
}

func clearToastLater() tea.Cmd {
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return clearToastMsg{}
	})
}
