// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"github.com/marmos91/warden/pkg/credential"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// ErrPasswordMismatch indicates the confirmation did not match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// ErrNotInteractive is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("stdin is not a terminal; pass the value as a flag or use --password-stdin")

// IsAborted reports whether err means the user aborted a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err != nil && IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Interactive reports whether stdin is attached to a terminal.
func Interactive() bool {
	return IsTerminal(os.Stdin)
}

// IsTerminal reports whether r is a file attached to a terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Input prompts for text with an optional default and validation.
func Input(label, defaultValue string, validate func(string) error) (string, error) {
	if !Interactive() {
		return "", ErrNotInteractive
	}
	p := promptui.Prompt{Label: label, Default: defaultValue, Validate: validate}
	result, err := p.Run()
	return strings.TrimSpace(result), wrapError(err)
}

// Select prompts for one of items and returns it.
func Select(label string, items []string) (string, error) {
	if !Interactive() {
		return "", ErrNotInteractive
	}
	p := promptui.Select{Label: label, Items: items, Size: 10}
	_, result, err := p.Run()
	return result, wrapError(err)
}

// ConfirmDanger requires typing word to proceed.
func ConfirmDanger(label, word string) (bool, error) {
	if !Interactive() {
		return false, ErrNotInteractive
	}
	p := promptui.Prompt{
		Label: fmt.Sprintf("%s (type '%s' to confirm)", label, word),
		Validate: func(input string) error {
			if input != word {
				return fmt.Errorf("type '%s' to confirm", word)
			}
			return nil
		},
	}
	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, wrapError(err)
	}
	return result == word, nil
}

// NewPassword prompts for a password twice. The first entry must satisfy
// the password policy.
func NewPassword(label string) (string, error) {
	if !Interactive() {
		return "", ErrNotInteractive
	}
	first := promptui.Prompt{Label: label, Mask: '*', Validate: credential.ValidatePassword}
	password, err := first.Run()
	if err != nil {
		return "", wrapError(err)
	}

	confirm := promptui.Prompt{Label: "Confirm " + strings.ToLower(label), Mask: '*'}
	again, err := confirm.Run()
	if err != nil {
		return "", wrapError(err)
	}
	return checkConfirmation(password, again)
}

func checkConfirmation(password, again string) (string, error) {
	if password != again {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// Password prompts for an existing secret without applying the policy.
func Password(label string) (string, error) {
	if !Interactive() {
		return "", ErrNotInteractive
	}
	p := promptui.Prompt{Label: label, Mask: '*'}
	result, err := p.Run()
	return result, wrapError(err)
}

// ReadSecret reads one line from r and strips the line ending.
func ReadSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ReadPassword reads a new password from r, for --password-stdin, and
// checks it against the password policy.
func ReadPassword(r io.Reader) (string, error) {
	password, err := ReadSecret(r)
	if err != nil {
		return "", err
	}
	if err := credential.ValidatePassword(password); err != nil {
		return "", err
	}
	return password, nil
}
