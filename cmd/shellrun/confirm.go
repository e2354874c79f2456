package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Variables to allow mocking in tests
var (
	stdinIsTerminal = func() bool {
		return term.IsTerminal(int(os.Stdin.Fd()))
	}
	runConfirmForm = func(title, description string) (bool, error) {
		var confirmed bool
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(title).
					Description(description).
					Affirmative("Run").
					Negative("Cancel").
					Value(&confirmed),
			),
		)

		if err := form.Run(); err != nil {
			return false, err
		}
		return confirmed, nil
	}
)

// confirmRun asks the user to approve text before it runs.
func confirmRun(text string) (bool, error) {
	if !stdinIsTerminal() {
		return false, fmt.Errorf("--confirm requires an interactive terminal")
	}

	confirmed, err := runConfirmForm("Run this command?", text)
	if stderrors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}
