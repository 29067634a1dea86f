package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"parking-terminal-cli/model"
	"parking-terminal-cli/session"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	faintStyle     = lipgloss.NewStyle().Faint(true)
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	closedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	activeTabStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2)
)

func (m appModel) View() string {
	header := m.headerView()
	switch m.state {
	case stateHome:
		return header + "\n\n" + m.homeList.View()
	case stateLoadingGates, stateLoadingZones:
		return header + "\n\n" + m.loadingView()
	case stateSelectGate:
		return header + "\n\n" + m.gateList.View()
	case stateGateCheckin:
		return header + "\n\n" + m.gateCheckinView()
	case stateCheckpoint:
		return header + "\n\n" + m.checkpointView()
	case stateAdminWatch:
		return header + "\n\n" + m.adminWatchView()
	case stateError:
		body := errStyle.Render(errorText(m.err))
		return header + "\n\n" + body + "\n\n" + hint("Press enter to retry the last screen, esc for the menu, ctrl+c to quit.")
	}
	return header
}

func (m appModel) headerView() string {
	title := titleStyle.Render("Parking Terminal")
	parts := []string{title}

	if m.gate.Id != "" && m.state != stateAdminWatch {
		parts = append(parts, faintStyle.Render(gateLabel(m.gate)))
	}
	if m.state == stateGateCheckin || m.state == stateAdminWatch {
		parts = append(parts, m.connChip())
	}
	parts = append(parts, faintStyle.Render(m.clock.Format("15:04:05")))

	return strings.Join(parts, "  ")
}

func (m appModel) connChip() string {
	if m.state == stateAdminWatch {
		up := 0
		for _, connected := range m.connected {
			if connected {
				up++
			}
		}
		if up == len(m.gates) && up > 0 {
			return okStyle.Render(fmt.Sprintf("● live %d/%d", up, len(m.gates)))
		}
		return warnStyle.Render(fmt.Sprintf("● live %d/%d", up, len(m.gates)))
	}
	if m.wsConnected {
		return okStyle.Render("● connected")
	}
	return errStyle.Render("○ disconnected")
}

func (m appModel) loadingView() string {
	title := "Loading gates..."
	if m.state == stateLoadingZones {
		title = fmt.Sprintf("Loading zones for %s...", gateLabel(m.gate))
	}
	return fmt.Sprintf("%s %s\n\n%s", m.spinner.View(), title, hint("Fetching data..."))
}

func (m appModel) gateCheckinView() string {
	if m.showTicket {
		return m.ticketView()
	}

	var b strings.Builder

	visitor := "Visitor"
	subscriber := "Subscriber"
	if m.checkinTab == checkinTabVisitor {
		visitor = activeTabStyle.Render(visitor)
		subscriber = faintStyle.Render(subscriber)
	} else {
		visitor = faintStyle.Render(visitor)
		subscriber = activeTabStyle.Render(subscriber)
	}
	b.WriteString(visitor + "   " + subscriber + "\n\n")

	if m.checkinTab == checkinTabSubscriber {
		b.WriteString(m.subscriptionPanel())
		b.WriteString("\n")
	}

	b.WriteString(m.zoneTable())
	b.WriteString("\n")

	if m.zonesFromCache {
		b.WriteString(faintStyle.Render("(cached occupancy, refreshing...)") + "\n")
	}
	if m.checkin != nil && m.checkin.State() == session.CheckinSubmitting {
		b.WriteString(m.spinner.View() + " Checking in...\n")
	}
	if msg := m.checkin.Message(); msg != "" {
		b.WriteString(errStyle.Render(msg) + "\n")
	}

	b.WriteString("\n" + m.gateHints())
	return b.String()
}

func (m appModel) subscriptionPanel() string {
	if m.subFocused {
		return "Subscription: " + m.subInput.View() + "\n" + hint("Press enter to verify, esc to cancel.") + "\n"
	}
	sub := m.checkin.Subscription()
	if sub == nil {
		return hint("Press v to enter a subscription ID.") + "\n"
	}

	status := okStyle.Render("active")
	if !sub.Active {
		status = errStyle.Render("inactive")
	}
	line := fmt.Sprintf("Subscription %s  %s  %s  %s", sub.Id, sub.UserName, sub.Category, status)

	var cars []string
	for _, car := range sub.Cars {
		cars = append(cars, fmt.Sprintf("%s %s %s (%s)", car.Plate, car.Brand, car.Model, car.Color))
	}
	if len(cars) > 0 {
		line += "\n" + faintStyle.Render("Cars: "+strings.Join(cars, ", "))
	}
	if len(sub.CurrentCheckins) > 0 {
		line += "\n" + warnStyle.Render(fmt.Sprintf("Note: %d open check-in(s) on this subscription", len(sub.CurrentCheckins)))
	}
	return line + "\n"
}

func (m appModel) zoneTable() string {
	zones := m.zones.Snapshot()
	if len(zones) == 0 {
		return hint("No zones for this gate.")
	}

	var sub *model.Subscription
	if m.checkinTab == checkinTabSubscriber {
		sub = m.checkin.Subscription()
	}

	var b strings.Builder
	b.WriteString(faintStyle.Render(fmt.Sprintf("  %-18s %-12s %9s %9s %7s %7s", "ZONE", "CATEGORY", "FREE", "VISITOR", "RATE", "")))
	b.WriteString("\n")

	selected := m.checkin.SelectedZone()
	for i, zone := range zones {
		cursor := "  "
		if i == m.zoneIndex {
			cursor = "> "
		}

		avail := zone.AvailableForVisitors
		eligible := session.VisitorEligible(zone)
		if m.checkinTab == checkinTabSubscriber {
			avail = zone.AvailableForSubscribers
			if sub != nil {
				eligible = session.SubscriberEligible(zone, *sub, session.CapacityPermissive)
			} else {
				eligible = false
			}
		}

		status := ""
		if !zone.Open {
			status = "closed"
		} else if !eligible {
			status = "unavailable"
		}

		row := fmt.Sprintf("%s%-18s %-12s %9d %9d %7.2f %7s",
			cursor, zone.Name, zone.CategoryId, zone.Free, avail, zone.RateNormal, status)

		switch {
		case zone.Id == selected:
			row = selectedStyle.Render(row)
		case !zone.Open:
			row = closedStyle.Render(row)
		case !eligible:
			row = faintStyle.Render(row)
		}
		b.WriteString(row + "\n")
	}
	return b.String()
}

func (m appModel) gateHints() string {
	base := "up/down: move · space: select zone · enter: check in · r: refresh · tab: switch type · esc: back"
	if m.checkinTab == checkinTabSubscriber {
		base = "v: verify subscription · " + base
	}
	return hint(base)
}

func (m appModel) ticketView() string {
	ticket := m.checkin.Ticket()
	if ticket == nil {
		return hint("Press enter to continue.")
	}

	zoneName := ticket.ZoneId
	if zone, ok := m.zones.Get(ticket.ZoneId); ok {
		zoneName = zone.Name
	}

	lines := []string{
		titleStyle.Render("TICKET"),
		"",
		fmt.Sprintf("Ticket   %s", ticket.Id),
		fmt.Sprintf("Type     %s", ticket.Type),
		fmt.Sprintf("Zone     %s", zoneName),
		fmt.Sprintf("Gate     %s", ticket.GateId),
		fmt.Sprintf("Check-in %s", ticket.CheckinAt.Local().Format(time.DateTime)),
	}
	panel := panelStyle.Render(strings.Join(lines, "\n"))
	if m.width > 0 {
		panel = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, panel)
	}
	return panel + "\n\n" + hint("Gate is open. Press enter for the next vehicle.")
}

func (m appModel) checkpointView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Checkpoint") + "\n\n")

	switch m.checkout.State() {
	case session.CheckoutIdle:
		b.WriteString("Ticket: " + m.ticketInput.View() + "\n\n")
		if msg := m.checkout.Message(); msg != "" {
			b.WriteString(errStyle.Render(msg) + "\n\n")
		}
		b.WriteString(hint("Scan or type a ticket ID, then press enter. esc: menu"))

	case session.CheckoutTicketLoaded, session.CheckoutVerificationPending, session.CheckoutFailed:
		b.WriteString(m.checkoutSessionView())

	case session.CheckoutCommitted:
		b.WriteString(m.receiptView())
	}

	return b.String()
}

func (m appModel) checkoutSessionView() string {
	ticket := m.checkout.Ticket()
	if ticket == nil {
		return hint("Press x to start over.")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Ticket   %s (%s)\n", ticket.Id, ticket.Type))
	b.WriteString(fmt.Sprintf("Check-in %s (%s ago)\n", ticket.CheckinAt.Local().Format(time.DateTime), formatSince(m.clock.Sub(ticket.CheckinAt))))

	if sub := m.checkout.Subscription(); sub != nil {
		b.WriteString(fmt.Sprintf("Holder   %s (%s)\n", sub.UserName, sub.Id))
		b.WriteString("\n" + titleStyle.Render("Vehicle verification") + "\n")
		if len(sub.Cars) == 0 {
			b.WriteString(faintStyle.Render("No cars registered on this subscription.") + "\n")
		}
		for _, car := range sub.Cars {
			b.WriteString(fmt.Sprintf("  %s  %s %s, %s\n", car.Plate, car.Brand, car.Model, car.Color))
		}
		switch {
		case m.checkout.State() == session.CheckoutVerificationPending && !m.checkout.CanCommit():
			b.WriteString(warnStyle.Render("Does the vehicle match? y: yes · n: no (bill as visitor)") + "\n")
		case m.checkout.PlateMismatch():
			b.WriteString(warnStyle.Render("Mismatch flagged: stay will be billed at visitor rates.") + "\n")
		default:
			b.WriteString(okStyle.Render("Vehicle confirmed.") + "\n")
		}
	}

	if msg := m.checkout.Message(); msg != "" && m.checkout.State() == session.CheckoutFailed {
		b.WriteString("\n" + errStyle.Render(msg) + "\n")
	}

	b.WriteString("\n")
	if m.checkout.CanCommit() {
		b.WriteString(hint("c: check out · x: cancel · esc: menu"))
	} else {
		b.WriteString(hint("x: cancel · esc: menu"))
	}
	return b.String()
}

func (m appModel) receiptView() string {
	result := m.checkout.Result()
	if result == nil {
		return hint("Press enter for the next ticket.")
	}
	return m.receiptViewFor(*result)
}

func (m appModel) receiptViewFor(result model.CheckoutResult) string {
	var lines []string
	lines = append(lines,
		titleStyle.Render("RECEIPT"),
		"",
		fmt.Sprintf("Ticket    %s", result.TicketId),
		fmt.Sprintf("Check-in  %s", result.CheckinAt.Local().Format(time.DateTime)),
		fmt.Sprintf("Check-out %s", result.CheckoutAt.Local().Format(time.DateTime)),
		fmt.Sprintf("Duration  %.2f h", result.DurationHours),
		"",
	)
	for _, seg := range result.Breakdown {
		lines = append(lines, fmt.Sprintf("%s-%s  %.2fh @ %.2f (%s)  %8.2f",
			seg.From.Local().Format("15:04"), seg.To.Local().Format("15:04"),
			seg.Hours, seg.Rate, seg.RateMode, seg.Amount))
	}
	lines = append(lines, "", titleStyle.Render(fmt.Sprintf("TOTAL  %.2f", result.Amount)))

	if report := session.ReconcileBilling(result); !report.OK() {
		lines = append(lines, "")
		for _, problem := range report.Problems {
			lines = append(lines, warnStyle.Render("! "+problem))
		}
	}

	panel := panelStyle.Render(strings.Join(lines, "\n"))
	if m.width > 0 {
		panel = lipgloss.PlaceHorizontal(m.width, lipgloss.Center, panel)
	}
	return panel + "\n\n" + hint("Press enter for the next ticket.")
}

func (m appModel) adminWatchView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Admin Watch") + "\n\n")

	b.WriteString(m.adminZoneBoard())
	b.WriteString("\n" + titleStyle.Render("Activity") + "\n")

	if len(m.adminFeed) == 0 {
		b.WriteString(faintStyle.Render("No admin activity yet.") + "\n")
	}
	shown := m.adminFeed
	if limit := m.height - 14; limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, event := range shown {
		b.WriteString(fmt.Sprintf("%s  %-14s %-10s %s\n",
			faintStyle.Render(event.Timestamp.Local().Format("15:04:05")),
			event.Action, event.TargetType, event.TargetId))
	}

	b.WriteString("\n" + hint("esc: menu · ctrl+c: quit"))
	return b.String()
}

func (m appModel) adminZoneBoard() string {
	zones := m.zones.Snapshot()
	if len(zones) == 0 {
		return faintStyle.Render("Waiting for zone updates...") + "\n"
	}

	var b strings.Builder
	b.WriteString(faintStyle.Render(fmt.Sprintf("%-18s %-12s %6s %6s %6s %8s", "ZONE", "CATEGORY", "OCC", "FREE", "RESV", "STATE")))
	b.WriteString("\n")
	for _, zone := range zones {
		state := okStyle.Render("open")
		if !zone.Open {
			state = errStyle.Render("closed")
		}
		b.WriteString(fmt.Sprintf("%-18s %-12s %6d %6d %6d %8s\n",
			zone.Name, zone.CategoryId, zone.Occupied, zone.Free, zone.Reserved, state))
	}
	return b.String()
}

func gateLabel(gate model.Gate) string {
	if gate.Location != "" && gate.Location != gate.Name {
		return fmt.Sprintf("%s (%s)", gate.Name, gate.Location)
	}
	return gate.Name
}

func formatSince(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

func hint(text string) string {
	return faintStyle.Render(text)
}
