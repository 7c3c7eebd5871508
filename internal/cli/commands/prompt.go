package commands

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// Prompter asks the user for input
type Prompter interface {
	Select(label string, items []string) (int, error)
	Input(label string) (string, error)
	Confirm(label string) (bool, error)
}

type promptuiPrompter struct {
	interactive func() bool
}

func newPromptuiPrompter() *promptuiPrompter {
	return &promptuiPrompter{interactive: stdinIsTerminal}
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (p *promptuiPrompter) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label: label,
		Items: items,
		Size:  10,
	}
	index, _, err := prompt.Run()
	if err != nil {
		return -1, err
	}
	return index, nil
}

func (p *promptuiPrompter) Input(label string) (string, error) {
	prompt := promptui.Prompt{Label: label}
	return prompt.Run()
}

// Confirm asks a yes/no question. Without a terminal there is nobody to
// answer, so the question is declined.
func (p *promptuiPrompter) Confirm(label string) (bool, error) {
	if !p.interactive() {
		fmt.Fprintln(os.Stderr, "Not running in a terminal; use --yes to confirm")
		return false, nil
	}

	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
