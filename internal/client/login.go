package client

import (
	"context"

	"github.com/rivo/tview"

	"agora/internal/api"
	"agora/internal/router"
)

// loginView is the default route. It doubles as the logout landing page.
type loginView struct {
	c      *Client
	form   *tview.Form
	status *tview.TextView
	layout *tview.Flex
}

func newLoginView(c *Client) *loginView { return &loginView{c: c} }

func (v *loginView) Render() (router.Fragment, error) {
	theme := v.c.UI.Theme

	v.status = tview.NewTextView().SetDynamicColors(true)
	v.status.SetTextColor(theme.GetColor("error"))

	v.form = tview.NewForm().
		AddInputField("Username or e-mail", "", 30, nil, nil).
		AddPasswordField("Password", "", 30, '*', nil)
	v.form.SetBorder(true)
	v.form.SetTitle(" agora — sign in ")
	v.form.SetTitleColor(theme.GetColor("primary"))
	v.form.SetBorderColor(theme.GetColor("border"))

	v.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.form, 0, 1, true).
		AddItem(v.status, 1, 0, false)

	return router.Fragment{Name: "login", Title: "Sign in", Content: v.layout}, nil
}

func (v *loginView) PostRender() {
	v.c.resetListeners()

	v.form.AddButton("Login", func() {
		identifier := v.form.GetFormItemByLabel("Username or e-mail").(*tview.InputField).GetText()
		password := v.form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
		if identifier == "" || password == "" {
			v.status.SetText("Username and password cannot be empty")
			return
		}
		if err := v.c.Login(identifier, password); err != nil {
			v.status.SetText("Login failed: " + err.Error())
		}
	})
	v.form.AddButton("Create account", func() {
		v.c.Router.Navigate("/registration")
	})
}

type registrationView struct {
	c      *Client
	form   *tview.Form
	status *tview.TextView
	layout *tview.Flex
}

func newRegistrationView(c *Client) *registrationView { return &registrationView{c: c} }

func (v *registrationView) Render() (router.Fragment, error) {
	theme := v.c.UI.Theme

	v.status = tview.NewTextView().SetDynamicColors(true)
	v.status.SetTextColor(theme.GetColor("error"))

	v.form = tview.NewForm().
		AddInputField("Username", "", 30, nil, nil).
		AddInputField("E-mail", "", 30, nil, nil).
		AddPasswordField("Password", "", 30, '*', nil)
	v.form.SetBorder(true)
	v.form.SetTitle(" agora — create account ")
	v.form.SetTitleColor(theme.GetColor("primary"))
	v.form.SetBorderColor(theme.GetColor("border"))

	v.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.form, 0, 1, true).
		AddItem(v.status, 1, 0, false)

	return router.Fragment{Name: "registration", Title: "Create account", Content: v.layout}, nil
}

func (v *registrationView) PostRender() {
	v.c.resetListeners()

	v.form.AddButton("Register", func() {
		username := v.form.GetFormItemByLabel("Username").(*tview.InputField).GetText()
		email := v.form.GetFormItemByLabel("E-mail").(*tview.InputField).GetText()
		password := v.form.GetFormItemByLabel("Password").(*tview.InputField).GetText()

		if username == "" || password == "" {
			v.status.SetText("Username and password cannot be empty")
			return
		}
		err := v.c.API.Register(context.Background(), api.RegistrationRequest{
			Username: username,
			Email:    email,
			Password: password,
		})
		if err != nil {
			v.status.SetText("Registration failed: " + err.Error())
			return
		}
		v.c.Router.Navigate("/")
	})
	v.form.AddButton("Back", func() {
		v.c.Router.Navigate("/")
	})
}
