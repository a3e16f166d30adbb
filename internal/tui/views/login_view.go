package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/MR-JLTC/tutorchat/internal/session"
)

// LoginView is the email/password form shown while logged out.
type LoginView struct {
	*tview.Flex
	form    *tview.Form
	message *tview.TextView
	role    string
	onLogin func(email, password, role string)
}

// NewLoginView creates the login form.
func NewLoginView() *LoginView {
	lv := &LoginView{role: session.RoleTutee}

	lv.message = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	lv.form = tview.NewForm().
		AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddDropDown("Role", []string{session.RoleTutee, session.RoleTutor}, 0, func(option string, _ int) {
			lv.role = option
		}).
		AddButton("Log in", func() { lv.submit() })
	lv.form.SetBorder(true).SetTitle(" Log in ")

	lv.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(tview.NewBox(), 0, 1, false).
		AddItem(lv.form, 11, 0, true).
		AddItem(lv.message, 1, 0, false).
		AddItem(tview.NewBox(), 0, 1, false)

	return lv
}

// SetOnLogin sets the callback invoked on submit.
func (lv *LoginView) SetOnLogin(fn func(email, password, role string)) {
	lv.onLogin = fn
}

// ShowMessage displays a status line under the form.
func (lv *LoginView) ShowMessage(msg string) {
	lv.message.Clear()
	_, _ = fmt.Fprintf(lv.message, "[orange]%s[-]", msg)
}

// ClearMessage removes the status line.
func (lv *LoginView) ClearMessage() {
	lv.message.Clear()
}

// Form returns the form for focus management.
func (lv *LoginView) Form() *tview.Form {
	return lv.form
}

func (lv *LoginView) submit() {
	if lv.onLogin == nil {
		return
	}
	email := lv.form.GetFormItemByLabel("Email").(*tview.InputField).GetText()
	password := lv.form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
	lv.onLogin(email, password, lv.role)
}
