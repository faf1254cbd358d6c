package login

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/expertly/inbox/internal/theme"
)

// TokenSubmittedMsg is dispatched when the user submits a session token.
type TokenSubmittedMsg struct {
	Token string
}

// formBindings holds form field values on the heap so that huh's
// Value() pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	token string
}

// Model is the first-run form asking for the session token.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new login form model.
func New(width, height int) Model {
	fb := &formBindings{}
	return Model{
		form:   buildForm(fb),
		fb:     fb,
		width:  width,
		height: height,
	}
}

func buildForm(fb *formBindings) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Session token").
				Description("Paste the session token from your Expertly account page.").
				EchoMode(huh.EchoModePassword).
				Value(&fb.token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errEmptyToken
					}
					return nil
				}),
		),
	)
}

var errEmptyToken = errors.New("token must not be empty")

// SetSize stores the terminal dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update drives the form and emits TokenSubmittedMsg on completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		token := strings.TrimSpace(m.fb.token)
		return m, tea.Batch(cmd, func() tea.Msg {
			return TokenSubmittedMsg{Token: token}
		})
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	hint := theme.HelpStyle.Render("The token is stored in your system keyring.")
	return theme.ListItemStyle.Render(m.form.View() + "\n" + hint)
}
