package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/MR-JLTC/tutorchat/internal/store"
)

// ThreadView displays the open conversation's messages oldest first,
// with delivery ticks on the local user's own messages.
type ThreadView struct {
	*tview.TextView
	partnerName string
}

// NewThreadView creates the message thread view.
func NewThreadView() *ThreadView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	return &ThreadView{TextView: tv}
}

// SetPartnerName updates the title with the other party's name.
func (tv *ThreadView) SetPartnerName(name string) {
	tv.partnerName = name
	tv.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(name)))
}

// Update rerenders the thread. selfID decides which side a message is on.
func (tv *ThreadView) Update(msgs []store.Message, selfID int64) {
	tv.Clear()

	for i := range msgs {
		m := &msgs[i]
		sender := sanitizeForTerminal(m.SenderName)
		ticks := ""
		if m.SenderID == selfID {
			sender = "You"
			ticks = " " + statusTick(m.Status)
			if !m.Confirmed() {
				ticks = " [::d]…[-:-:-]"
			}
		}
		ts := formatTimestamp(m.CreatedAt)
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			sender, ts, ticks, sanitizeForTerminal(m.Content))
		_, _ = fmt.Fprint(tv, line)
	}

	tv.ScrollToEnd()
}

// statusTick renders a delivery status as WhatsApp-style check marks.
func statusTick(status string) string {
	switch status {
	case store.StatusSeen:
		return "[aqua]✓✓[-]"
	case store.StatusDelivered:
		return "✓✓"
	case store.StatusSent:
		return "✓"
	default:
		return ""
	}
}
