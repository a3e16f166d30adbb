package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Composer is the text input for sending messages. The caller clears it
// on successful send and restores failed sends into it for a retry.
type Composer struct {
	*tview.InputField
	onSend func(text string)
}

// NewComposer creates a new message composer.
func NewComposer() *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)

	c := &Composer{InputField: input}

	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && c.onSend != nil {
			if text := c.GetText(); text != "" {
				c.onSend(text)
			}
		}
	})

	return c
}

// SetOnSend sets the callback invoked on Enter with non-empty input.
func (c *Composer) SetOnSend(fn func(text string)) {
	c.onSend = fn
}

// Restore puts failed-send text back so the user can edit and retry.
func (c *Composer) Restore(text string) {
	c.SetText(text)
}
