package tui

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"parking-terminal-cli/config"
	"parking-terminal-cli/model"
	"parking-terminal-cli/realtime"
	"parking-terminal-cli/service"
	"parking-terminal-cli/session"
	"parking-terminal-cli/store"
)

type appState int

const (
	stateHome appState = iota
	stateLoadingGates
	stateSelectGate
	stateLoadingZones
	stateGateCheckin
	stateCheckpoint
	stateAdminWatch
	stateError
)

// Screen names accepted from the command line.
const (
	ScreenGate       = "gate"
	ScreenCheckpoint = "checkpoint"
	ScreenAdmin      = "admin"
)

const (
	checkinTabVisitor    = 0
	checkinTabSubscriber = 1
	maxAdminFeed         = 50
	eventBuffer          = 64
	requestTimeout       = 15 * time.Second
	commitTimeout        = 20 * time.Second
)

// Options select the screen the terminal boots into.
type Options struct {
	Config config.Config
	Screen string
	GateID string
}

type appModel struct {
	cfg    config.Config
	client *service.Client
	zones  *store.ZoneStore
	logger *slog.Logger

	checkin  *session.CheckinFlow
	checkout *session.CheckoutFlow

	state     appState
	lastState appState
	err       error

	width  int
	height int

	// Realtime events cross from the socket goroutines into the update
	// loop through this channel; listenRealtime re-arms after each one.
	events chan tea.Msg

	gate        model.Gate
	gates       []model.Gate
	conn        *realtime.ConnectionManager
	adminConns  []*realtime.ConnectionManager
	wsConnected bool
	connected   map[string]bool

	checkinTab     int
	zoneIndex      int
	showTicket     bool
	subFocused     bool
	zonesFromCache bool
	subInput       textinput.Model

	ticketInput textinput.Model
	adminFeed   []model.AdminUpdate

	gateList list.Model
	homeList list.Model
	spinner  spinner.Model
	clock    time.Time

	targetScreen string
}

type gateItem struct {
	gate model.Gate
}

func (g gateItem) Title() string       { return g.gate.Name }
func (g gateItem) Description() string { return g.gate.Location }
func (g gateItem) FilterValue() string { return strings.ToLower(g.gate.Name + " " + g.gate.Location) }

type homeItem struct {
	name   string
	desc   string
	screen string
}

func (h homeItem) Title() string       { return h.name }
func (h homeItem) Description() string { return h.desc }
func (h homeItem) FilterValue() string { return strings.ToLower(h.name) }

type errMsg struct {
	err error
}

type gatesMsg struct {
	gates []model.Gate
	err   error
}

type zonesMsg struct {
	zones     []model.Zone
	fromCache bool
	err       error
}

type subscriptionMsg struct {
	err error
}

type checkinMsg struct {
	err error
}

type ticketMsg struct {
	err error
}

type checkoutMsg struct {
	err error
}

type clockTickMsg time.Time

// Pushed through the events channel by the socket goroutines.
type zoneStoreChangedMsg struct{}

type connChangedMsg struct {
	gateID    string
	connected bool
}

type adminEventMsg struct {
	update model.AdminUpdate
}

// New builds the terminal app. The zone store and the workflow engines are
// created here and shared with the realtime layer once a gate is chosen.
func New(opts Options) tea.Model {
	client := service.NewClient(nil, opts.Config.APIBaseURL)

	m := appModel{
		cfg:          opts.Config,
		client:       client,
		zones:        store.NewZoneStore(),
		logger:       newLogger(opts.Config.LogFile),
		checkout:     session.NewCheckoutFlow(client),
		events:       make(chan tea.Msg, eventBuffer),
		connected:    map[string]bool{},
		clock:        time.Now(),
		targetScreen: opts.Screen,
	}

	if opts.GateID != "" {
		m.gate = model.Gate{Id: opts.GateID, Name: opts.GateID}
	}

	m.gateList = newList("Select Gate")
	m.homeList = newList("Parking Terminal")
	m.homeList.SetFilteringEnabled(false)
	m.homeList.SetItems([]list.Item{
		homeItem{name: "Gate terminal", desc: "Check vehicles in", screen: ScreenGate},
		homeItem{name: "Checkpoint terminal", desc: "Check vehicles out and bill", screen: ScreenCheckpoint},
		homeItem{name: "Admin watch", desc: "Live occupancy and admin activity", screen: ScreenAdmin},
	})

	m.subInput = textinput.New()
	m.subInput.Placeholder = "Subscription ID"
	m.subInput.CharLimit = 64

	m.ticketInput = textinput.New()
	m.ticketInput.Placeholder = "Ticket ID"
	m.ticketInput.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	m.spinner = sp

	// Init cannot mutate the model, so the boot screen is decided here.
	switch opts.Screen {
	case ScreenGate:
		if m.gate.Id != "" {
			m.state = stateLoadingZones
		} else {
			m.state = stateLoadingGates
		}
	case ScreenCheckpoint:
		m.state = stateCheckpoint
		m.ticketInput.Focus()
	case ScreenAdmin:
		m.state = stateLoadingGates
	default:
		m.state = stateHome
	}

	return m
}

func newLogger(path string) *slog.Logger {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(file, nil))
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = title
	l.SetFilteringEnabled(true)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	return l
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, clockTick()}

	switch m.state {
	case stateLoadingZones:
		cmds = append(cmds, m.enterGateCmd())
	case stateLoadingGates:
		cmds = append(cmds, m.fetchGatesCmd())
	case stateCheckpoint:
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg(t)
	})
}

// listenRealtime pulls one message pushed by a socket goroutine. The
// handler for each message re-arms it, keeping exactly one reader alive.
func (m appModel) listenRealtime() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

func (m appModel) realtimeCallbacks(gateID string) realtime.Callbacks {
	events := m.events
	zones := m.zones
	push := func(msg tea.Msg) {
		select {
		case events <- msg:
		default:
			// The UI is behind; drop the nudge. State already landed in
			// the store, the next repaint catches up.
		}
	}
	return realtime.Callbacks{
		OnZoneUpdate: func(update model.ZoneUpdate) {
			// Apply before notifying so a repaint never sees the old row.
			zones.Apply(update)
			push(zoneStoreChangedMsg{})
		},
		OnAdminUpdate: func(update model.AdminUpdate) {
			push(adminEventMsg{update: update})
		},
		OnConnectionChange: func(connected bool) {
			push(connChangedMsg{gateID: gateID, connected: connected})
		},
	}
}

func (m appModel) fetchGatesCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		gates, err := client.GetGates(ctx)
		return gatesMsg{gates: gates, err: err}
	}
}

// enterGateCmd paints cached zones if any are fresh, then refetches.
func (m appModel) enterGateCmd() tea.Cmd {
	client := m.client
	gateID := m.gate.Id
	return func() tea.Msg {
		if cached, fresh, err := store.LoadZoneCache(gateID); err == nil && fresh && len(cached) > 0 {
			return zonesMsg{zones: cached, fromCache: true}
		}
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		zones, err := client.GetZonesByGate(ctx, gateID)
		return zonesMsg{zones: zones, err: err}
	}
}

func (m appModel) refetchZonesCmd() tea.Cmd {
	client := m.client
	gateID := m.gate.Id
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		zones, err := client.GetZonesByGate(ctx, gateID)
		return zonesMsg{zones: zones, err: err}
	}
}

func (m appModel) verifySubscriptionCmd(id string) tea.Cmd {
	flow := m.checkin
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := flow.VerifySubscription(ctx, id)
		return subscriptionMsg{err: err}
	}
}

func (m appModel) submitCheckinCmd() tea.Cmd {
	flow := m.checkin
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		defer cancel()
		_, err := flow.Submit(ctx)
		return checkinMsg{err: err}
	}
}

func (m appModel) lookupTicketCmd(id string) tea.Cmd {
	flow := m.checkout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := flow.LookupTicket(ctx, id)
		return ticketMsg{err: err}
	}
}

func (m appModel) commitCheckoutCmd() tea.Cmd {
	flow := m.checkout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
		defer cancel()
		_, err := flow.Commit(ctx)
		return checkoutMsg{err: err}
	}
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return errMsg{err: err}
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		next, cmd, handled := m.handleKey(msg)
		if handled {
			return next, cmd
		}
		m = next.(appModel)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.isLoadingState() {
			return m, cmd
		}
		return m, nil

	case clockTickMsg:
		m.clock = time.Time(msg)
		return m, clockTick()

	case errMsg:
		m.err = msg.err
		m.lastState = m.state
		m.state = stateError
		return m, nil

	case gatesMsg:
		if msg.err != nil {
			return m, errCmd(msg.err)
		}
		m.gates = msg.gates
		if m.targetScreen == ScreenAdmin {
			return m.enterAdminWatch()
		}
		items := make([]list.Item, 0, len(msg.gates))
		for _, gate := range msg.gates {
			items = append(items, gateItem{gate: gate})
		}
		m.gateList.SetItems(items)
		m.state = stateSelectGate
		return m, nil

	case zonesMsg:
		return m.handleZones(msg)

	case subscriptionMsg, ticketMsg:
		// The flow already recorded the outcome; the repaint picks it up.
		return m, nil

	case checkinMsg:
		if m.checkin != nil && m.checkin.State() == session.CheckinSucceeded {
			m.showTicket = true
		}
		return m, nil

	case checkoutMsg:
		if msg.err == nil {
			// Cached occupancy is stale the moment a checkout lands.
			m.zones.Invalidate()
		}
		return m, nil

	case zoneStoreChangedMsg:
		m.clampZoneIndex()
		return m, m.listenRealtime()

	case connChangedMsg:
		m.connected[msg.gateID] = msg.connected
		if msg.gateID == m.gate.Id {
			m.wsConnected = msg.connected
		}
		return m, m.listenRealtime()

	case adminEventMsg:
		m.adminFeed = append([]model.AdminUpdate{msg.update}, m.adminFeed...)
		if len(m.adminFeed) > maxAdminFeed {
			m.adminFeed = m.adminFeed[:maxAdminFeed]
		}
		return m, m.listenRealtime()
	}

	var cmd tea.Cmd
	switch m.state {
	case stateHome:
		m.homeList, cmd = m.homeList.Update(msg)
	case stateSelectGate:
		m.gateList, cmd = m.gateList.Update(msg)
	case stateGateCheckin:
		if m.subFocused {
			m.subInput, cmd = m.subInput.Update(msg)
		}
	case stateCheckpoint:
		if m.ticketInput.Focused() {
			m.ticketInput, cmd = m.ticketInput.Update(msg)
		}
	}
	return m, cmd
}

func (m appModel) handleZones(msg zonesMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		return m, errCmd(msg.err)
	}
	m.zones.Seed(msg.zones)
	m.zonesFromCache = msg.fromCache
	m.clampZoneIndex()

	var cmds []tea.Cmd
	if m.conn == nil {
		m.checkin = session.NewCheckinFlow(m.client, m.zones, m.gate.Id, session.CapacityPermissive)
		m.conn = realtime.NewConnectionManager(m.gate.Id, m.realtimeCallbacks(m.gate.Id), realtime.Options{
			URL:    m.cfg.WSURL,
			Logger: m.logger,
		})
		conn := m.conn
		cmds = append(cmds, func() tea.Msg { conn.Start(); return nil }, m.listenRealtime())
	}
	if msg.fromCache {
		// Stale-tolerant first paint; the authoritative fetch follows.
		cmds = append(cmds, m.refetchZonesCmd())
	} else if err := store.SaveZoneCache(m.gate.Id, msg.zones); err != nil {
		m.logger.Warn("zone cache write failed", "error", err)
	}
	m.state = stateGateCheckin
	return m, tea.Batch(cmds...)
}

func (m appModel) enterAdminWatch() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	for _, gate := range m.gates {
		conn := realtime.NewConnectionManager(gate.Id, m.realtimeCallbacks(gate.Id), realtime.Options{
			URL:    m.cfg.WSURL,
			Logger: m.logger,
		})
		m.adminConns = append(m.adminConns, conn)
		started := conn
		cmds = append(cmds, func() tea.Msg { started.Start(); return nil })
	}
	cmds = append(cmds, m.listenRealtime())
	m.state = stateAdminWatch
	return m, tea.Batch(cmds...)
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.teardown()
		return m, tea.Quit, true
	case "esc":
		return m.handleEsc()
	}

	switch m.state {
	case stateHome:
		if msg.String() == "enter" {
			if item, ok := m.homeList.SelectedItem().(homeItem); ok {
				return m.openScreen(item.screen)
			}
		}
	case stateSelectGate:
		if msg.String() == "enter" && !m.gateList.SettingFilter() {
			if item, ok := m.gateList.SelectedItem().(gateItem); ok {
				m.gate = item.gate
				if err := store.RememberGate(item.gate); err != nil {
					m.logger.Warn("gate history write failed", "error", err)
				}
				m.state = stateLoadingZones
				return m, tea.Batch(m.enterGateCmd(), m.spinner.Tick), true
			}
		}
	case stateGateCheckin:
		return m.handleGateKey(msg)
	case stateCheckpoint:
		return m.handleCheckpointKey(msg)
	case stateError:
		if msg.String() == "enter" {
			m.err = nil
			m.state = m.lastState
			// Re-issue the fetch the failed screen was waiting on.
			switch m.state {
			case stateLoadingZones:
				return m, tea.Batch(m.enterGateCmd(), m.spinner.Tick), true
			case stateLoadingGates:
				return m, tea.Batch(m.fetchGatesCmd(), m.spinner.Tick), true
			}
			return m, nil, true
		}
	}
	return m, nil, false
}

func (m appModel) openScreen(screen string) (tea.Model, tea.Cmd, bool) {
	m.targetScreen = screen
	switch screen {
	case ScreenCheckpoint:
		m.state = stateCheckpoint
		m.ticketInput.Focus()
		return m, textinput.Blink, true
	default:
		m.state = stateLoadingGates
		return m, tea.Batch(m.fetchGatesCmd(), m.spinner.Tick), true
	}
}

func (m appModel) handleEsc() (tea.Model, tea.Cmd, bool) {
	switch m.state {
	case stateGateCheckin:
		if m.showTicket {
			m.showTicket = false
			m.checkin.Reset()
			m.subInput.SetValue("")
			return m, nil, true
		}
		if m.subFocused {
			m.subFocused = false
			m.subInput.Blur()
			return m, nil, true
		}
		m.checkin.Cancel()
		m.teardown()
		m.state = stateHome
		return m, nil, true
	case stateCheckpoint:
		m.checkout.Cancel()
		m.ticketInput.SetValue("")
		m.state = stateHome
		return m, nil, true
	case stateAdminWatch:
		m.teardown()
		m.state = stateHome
		return m, nil, true
	case stateSelectGate:
		if m.gateList.SettingFilter() {
			return m, nil, false // the list clears its own filter
		}
		m.state = stateHome
		return m, nil, true
	case stateError:
		m.err = nil
		m.state = stateHome
		return m, nil, true
	}
	return m, nil, false
}

func (m appModel) handleGateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if m.showTicket {
		if msg.String() == "enter" {
			m.showTicket = false
			m.checkin.Reset()
			m.subInput.SetValue("")
		}
		return m, nil, true
	}

	if m.subFocused {
		if msg.String() == "enter" {
			id := strings.TrimSpace(m.subInput.Value())
			if id == "" {
				return m, nil, true
			}
			m.subFocused = false
			m.subInput.Blur()
			return m, m.verifySubscriptionCmd(id), true
		}
		return m, nil, false // the textinput consumes the key
	}

	switch msg.String() {
	case "tab":
		if m.checkinTab == checkinTabVisitor {
			m.checkinTab = checkinTabSubscriber
			m.checkin.SetKind(model.TicketTypeSubscriber)
		} else {
			m.checkinTab = checkinTabVisitor
			m.checkin.SetKind(model.TicketTypeVisitor)
		}
		m.zoneIndex = 0
		return m, nil, true
	case "v":
		if m.checkinTab == checkinTabSubscriber {
			m.subFocused = true
			m.subInput.Focus()
			return m, textinput.Blink, true
		}
	case "up", "k":
		if m.zoneIndex > 0 {
			m.zoneIndex--
		}
		return m, nil, true
	case "down", "j":
		if m.zoneIndex < m.zones.Len()-1 {
			m.zoneIndex++
		}
		return m, nil, true
	case " ":
		if zone, ok := m.zoneAtCursor(); ok {
			m.checkin.SelectZone(zone.Id)
		}
		return m, nil, true
	case "enter":
		if m.checkin.SelectedZone() == "" {
			if zone, ok := m.zoneAtCursor(); ok {
				m.checkin.SelectZone(zone.Id)
			}
		}
		return m, m.submitCheckinCmd(), true
	case "r":
		return m, m.refetchZonesCmd(), true
	}
	return m, nil, false
}

func (m appModel) handleCheckpointKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if m.ticketInput.Focused() {
		if msg.String() == "enter" {
			id := strings.TrimSpace(m.ticketInput.Value())
			if id == "" {
				return m, nil, true
			}
			m.ticketInput.Blur()
			return m, m.lookupTicketCmd(id), true
		}
		return m, nil, false // the textinput consumes the key
	}

	switch msg.String() {
	case "enter":
		// Result on screen: enter scans the next ticket.
		if m.checkout.State() == session.CheckoutCommitted {
			m.checkout.Cancel()
			m.ticketInput.SetValue("")
			m.ticketInput.Focus()
			return m, textinput.Blink, true
		}
	case "y":
		if m.checkout.State() == session.CheckoutVerificationPending {
			_ = m.checkout.ResolvePlate(true)
			return m, nil, true
		}
	case "n":
		if m.checkout.State() == session.CheckoutVerificationPending {
			_ = m.checkout.ResolvePlate(false)
			return m, nil, true
		}
	case "c":
		if m.checkout.CanCommit() {
			return m, m.commitCheckoutCmd(), true
		}
	case "x":
		m.checkout.Cancel()
		m.ticketInput.SetValue("")
		m.ticketInput.Focus()
		return m, textinput.Blink, true
	case "l":
		m.ticketInput.Focus()
		return m, textinput.Blink, true
	}
	return m, nil, true
}

func (m appModel) zoneAtCursor() (model.Zone, bool) {
	snapshot := m.zones.Snapshot()
	if m.zoneIndex < 0 || m.zoneIndex >= len(snapshot) {
		return model.Zone{}, false
	}
	return snapshot[m.zoneIndex], true
}

func (m *appModel) teardown() {
	if m.conn != nil {
		m.conn.Disconnect()
		m.conn = nil
	}
	for _, conn := range m.adminConns {
		conn.Disconnect()
	}
	m.adminConns = nil
	m.wsConnected = false
}

func (m *appModel) clampZoneIndex() {
	if n := m.zones.Len(); m.zoneIndex >= n && n > 0 {
		m.zoneIndex = n - 1
	}
}

func (m *appModel) resizeLists() {
	h := m.height - 6
	if h < 5 {
		h = 5
	}
	m.homeList.SetSize(m.width, h)
	m.gateList.SetSize(m.width, h)
}

func (m appModel) isLoadingState() bool {
	return m.state == stateLoadingGates || m.state == stateLoadingZones
}
