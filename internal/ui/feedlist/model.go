package feedlist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/expertly/inbox/internal/keys"
	"github.com/expertly/inbox/internal/model"
	"github.com/expertly/inbox/internal/theme"
)

// NearBottomMsg is sent when the cursor moves into the last few
// entries, signaling that the visible feed window should grow.
type NearBottomMsg struct{}

// nearBottomMargin is how close to the end the cursor must be before
// NearBottomMsg fires.
const nearBottomMargin = 3

// Model is the merged-feed list view component.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a new feed list model.
func New(k *keys.KeyMap, width, height int) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = theme.SelectedItemStyle
	delegate.Styles.SelectedDesc = theme.SelectedItemStyle.Foreground(theme.ColorGray)

	l := list.New([]list.Item{}, delegate, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// SetSize resizes the list.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}

// SetEntries replaces the visible entries, keeping the cursor stable
// when possible.
func (m *Model) SetEntries(entries []model.FeedEntry) {
	selected := m.SelectedID()

	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = FeedItem{Entry: e}
	}
	m.list.SetItems(items)

	if selected == "" {
		return
	}
	for i, e := range entries {
		if e.ID == selected {
			m.list.Select(i)
			return
		}
	}
}

// Selected returns the currently focused entry, if any.
func (m *Model) Selected() (model.FeedEntry, bool) {
	item, ok := m.list.SelectedItem().(FeedItem)
	if !ok {
		return model.FeedEntry{}, false
	}
	return item.Entry, true
}

// SelectedID returns the focused entry's identifier ("" when empty).
func (m *Model) SelectedID() string {
	if entry, ok := m.Selected(); ok {
		return entry.ID
	}
	return ""
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles navigation and reports when the cursor nears the
// bottom of the visible window.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if !key.Matches(keyMsg, m.keys.Up, m.keys.Down) {
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	if len(m.list.Items()) > 0 &&
		m.list.Index() >= len(m.list.Items())-nearBottomMargin {
		return m, tea.Batch(cmd, func() tea.Msg { return NearBottomMsg{} })
	}
	return m, cmd
}

// View renders the list.
func (m Model) View() string {
	return m.list.View()
}
