package console

import (
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// screen identifies which top-level tab is active.
type screen int

const (
	screenUsers screen = iota
	screenGroups
)

// Options carries the console settings read from configuration.
type Options struct {
	ConfirmDestructive bool // ask before deletes and removals
	PageSize           int  // cap on rendered table rows; 0 means terminal height
}

// App is the root model. It owns the two tab screens and the pushed
// group detail screen, routes keys to whichever captures them, and
// keeps the shared status bar: every reported failure lands here as
// well as on the screen that produced it.
type App struct {
	client Directory
	log    *slog.Logger
	opts   Options

	active screen
	users  usersModel
	groups groupsModel
	detail *groupDetailModel

	statusErr  *errNotice // last reported failure, shown until replaced
	statusLine string     // last transient status, cleared by failures

	width, height int
}

// New builds the console over the given directory client. A nil logger
// falls back to slog.Default.
func New(client Directory, log *slog.Logger, opts Options) App {
	if log == nil {
		log = slog.Default()
	}
	users := newUsers(client, log, opts.ConfirmDestructive)
	users.maxRows = opts.PageSize
	groups := newGroups(client, log, opts.ConfirmDestructive)
	groups.maxRows = opts.PageSize
	return App{
		client: client,
		log:    log,
		opts:   opts,
		users:  users,
		groups: groups,
	}
}

// Run starts the interactive console and blocks until it exits.
func Run(client Directory, log *slog.Logger, opts Options) error {
	p := tea.NewProgram(New(client, log, opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init defers the first load to Update; state started here would be
// lost with the discarded initial model value.
func (a App) Init() tea.Cmd {
	return func() tea.Msg { return initMsg{} }
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case initMsg:
		return a, a.users.ensureLoaded()

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		body := max(msg.Height-3, 6) // tab bar, status line, hint line
		a.users.SetSize(msg.Width, body)
		a.groups.SetSize(msg.Width, body)
		if a.detail != nil {
			a.detail.SetSize(msg.Width, body)
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case reportErrorMsg:
		a.statusErr = &errNotice{kind: msg.kind, text: msg.text}
		a.statusLine = ""
		a.log.Warn("operation failed", "kind", msg.kind.String(), "error", msg.text)
		return a, nil

	case statusMsg:
		a.statusLine = string(msg)
		a.statusErr = nil
		return a, nil

	case openGroupMsg:
		detail, cmd := newGroupDetail(a.client, a.log, msg.id, msg.name, a.width, a.bodyHeight())
		detail.maxRows = a.opts.PageSize
		a.detail = detail
		return a, cmd

	case closeDetailMsg:
		a.detail = nil
		return a, nil
	}

	// Everything else is broadcast: task completions, picker emissions,
	// and commit announcements find their owner; everyone else ignores
	// them.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.users, cmd = a.users.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	a.groups, cmd = a.groups.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	if a.detail != nil {
		if cmd = a.detail.Update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return a, tea.Batch(cmds...)
}

func (a App) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	if a.detail != nil {
		if !a.detail.capturesKeys() && key.String() == "q" {
			return a, tea.Quit
		}
		return a, a.detail.Update(key)
	}

	captured := (a.active == screenUsers && a.users.capturesKeys()) ||
		(a.active == screenGroups && a.groups.capturesKeys())
	if !captured {
		switch {
		case key.String() == "q":
			return a, tea.Quit
		case key.Type == tea.KeyTab:
			return a.switchTab()
		}
	}

	var cmd tea.Cmd
	if a.active == screenUsers {
		a.users, cmd = a.users.Update(key)
	} else {
		a.groups, cmd = a.groups.Update(key)
	}
	return a, cmd
}

func (a App) switchTab() (tea.Model, tea.Cmd) {
	if a.active == screenUsers {
		a.active = screenGroups
		return a, a.groups.ensureLoaded()
	}
	a.active = screenUsers
	return a, a.users.ensureLoaded()
}

func (a App) bodyHeight() int {
	return max(a.height-3, 6)
}

func (a App) View() string {
	var b strings.Builder
	b.WriteString(a.viewTabBar())
	b.WriteString("\n")

	switch {
	case a.detail != nil:
		b.WriteString(a.detail.View())
	case a.active == screenUsers:
		b.WriteString(a.users.View())
	default:
		b.WriteString(a.groups.View())
	}
	b.WriteString("\n")
	b.WriteString(a.viewStatus())
	return b.String()
}

func (a App) viewTabBar() string {
	usersTab := inactiveTabStyle.Render("Users")
	groupsTab := inactiveTabStyle.Render("Groups")
	if a.detail != nil || a.active == screenGroups {
		groupsTab = activeTabStyle.Render("Groups")
	} else {
		usersTab = activeTabStyle.Render("Users")
	}
	bar := usersTab + dimStyle.Render("│") + groupsTab
	if a.detail != nil {
		bar += dimStyle.Render(" › ") + titleStyle.Render(a.detail.title())
	} else {
		bar += dimStyle.Render("   tab switch · q quit")
	}
	return bar
}

func (a App) viewStatus() string {
	if a.statusErr != nil {
		return viewNotice(a.statusErr)
	}
	if a.statusLine != "" {
		return okStyle.Render("✓ ") + dimStyle.Render(a.statusLine)
	}
	return ""
}
