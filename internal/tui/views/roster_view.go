package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/MR-JLTC/tutorchat/internal/chat"
)

// RosterView is the aggregated conversation list: real conversations on
// top, contact placeholders dimmed below them.
type RosterView struct {
	*tview.Table
	entries    []chat.Entry
	selectedFn func() (int, int)
}

// NewRosterView creates the conversation list table.
func NewRosterView() *RosterView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")

	rv := &RosterView{Table: table}
	rv.selectedFn = table.GetSelection
	return rv
}

// Update refreshes the list. online reports a contact's presence so the
// name column can carry the presence dot.
func (rv *RosterView) Update(entries []chat.Entry, online func(userID int64) bool) {
	rv.entries = entries
	rv.Clear()

	rv.SetCell(0, 0, tview.NewTableCell(" Name").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	rv.SetCell(0, 1, tview.NewTableCell(" Last Message").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	rv.SetCell(0, 2, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, entry := range entries {
		row := i + 1
		if entry.Conversation != nil {
			c := entry.Conversation
			name := sanitizeForTerminal(c.PartnerName)
			if online(c.PartnerID) {
				name = "[green]●[-] " + name
			}
			preview := sanitizeForTerminal(c.LastMessage)
			if c.LastStatus != "" && c.LastMessage != "" {
				preview = fmt.Sprintf("%s %s", statusTick(c.LastStatus), preview)
			}
			rv.SetCell(row, 0, tview.NewTableCell(" "+name).SetMaxWidth(30).SetExpansion(1))
			rv.SetCell(row, 1, tview.NewTableCell(" "+preview).SetMaxWidth(40).SetExpansion(2))
			rv.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(c.LastMessageAt)).SetMaxWidth(12))
			continue
		}

		c := entry.Contact
		name := sanitizeForTerminal(c.Name)
		if online(c.UserID) {
			name = "[green]●[-] " + name
		}
		rv.SetCell(row, 0, tview.NewTableCell(" [::d]"+name+"[-:-:-]").SetMaxWidth(30).SetExpansion(1))
		rv.SetCell(row, 1, tview.NewTableCell(" [::d]start a conversation[-:-:-]").SetMaxWidth(40).SetExpansion(2))
		rv.SetCell(row, 2, tview.NewTableCell(""))
	}
}

// Selected returns the entry under the cursor, zero Entry when none.
func (rv *RosterView) Selected() chat.Entry {
	row, _ := rv.selectedFn()
	idx := row - 1 // header row
	if idx >= 0 && idx < len(rv.entries) {
		return rv.entries[idx]
	}
	return chat.Entry{}
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
