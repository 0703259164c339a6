package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/mesh-intelligence/breaklinks/internal/dialog"
)

// prompter asks the user for the dialog's inputs. Returning
// huh.ErrUserAborted cancels the dialog.
type prompter interface {
	ChooseAction() (dialog.Action, error)
	ReplacementID() (string, error)
	Confirm(title, description string) (bool, error)
}

// huhPrompter prompts with huh forms on the terminal.
type huhPrompter struct{}

// isTerminal checks if stdin is connected to a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// newForm creates a form, falling back to accessible mode without a TTY.
func newForm(groups ...*huh.Group) *huh.Form {
	form := huh.NewForm(groups...).WithTheme(huh.ThemeDracula())
	if !isTerminal() {
		form = form.WithAccessible(true)
	}
	return form
}

func (huhPrompter) ChooseAction() (dialog.Action, error) {
	action := string(dialog.ActionRemove)
	form := newForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What do you want to do with the links to these items?").
				Options(
					huh.NewOption("Remove links", string(dialog.ActionRemove)),
					huh.NewOption("Link to another item", string(dialog.ActionRelink)),
					huh.NewOption("Leave links broken", string(dialog.ActionBreak)),
				).
				Value(&action),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return dialog.Action(action), nil
}

func (huhPrompter) ReplacementID() (string, error) {
	var id string
	form := newForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Link to item").
				Description("ID of the item the links should point to. Leave empty to go back.").
				Value(&id),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(id), nil
}

func (huhPrompter) Confirm(title, description string) (bool, error) {
	ok := true
	form := newForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("OK").
				Negative("Back").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}

func aborted(err error) bool {
	return errors.Is(err, huh.ErrUserAborted)
}
