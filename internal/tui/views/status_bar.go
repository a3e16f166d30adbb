package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// StatusBar displays the session name, connection state, the active
// partner's presence, and transient flash messages.
type StatusBar struct {
	*tview.TextView
	session  string
	conn     string
	presence string
	flash    string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetConnState updates the connection state display.
func (sb *StatusBar) SetConnState(state string) {
	sb.conn = state
	sb.render()
}

// SetPresence updates the active partner's presence display.
func (sb *StatusBar) SetPresence(text string) {
	sb.presence = text
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	conn := sb.conn
	switch conn {
	case "CONNECTED":
		conn = "[green]" + conn + "[-]"
	case "", "BOOTING":
	default:
		conn = "[orange]" + conn + "[-]"
	}

	clock := time.Now().Format("15:04")

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.session, conn, clock)
	if sb.presence != "" {
		line += " | " + sb.presence
	}
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}
