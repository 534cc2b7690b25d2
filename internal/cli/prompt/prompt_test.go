package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/warden/pkg/credential"
)

func TestReadPassword(t *testing.T) {
	pw, err := ReadPassword(strings.NewReader("Correct-Horse-1\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "Correct-Horse-1", pw)

	pw, err = ReadPassword(strings.NewReader("no-newline-at-end"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline-at-end", pw)

	_, err = ReadPassword(strings.NewReader("short\n"))
	assert.ErrorIs(t, err, credential.ErrPasswordTooShort)

	_, err = ReadPassword(strings.NewReader(""))
	assert.ErrorIs(t, err, credential.ErrPasswordTooShort)
}

func TestReadSecret(t *testing.T) {
	secret, err := ReadSecret(strings.NewReader("x\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", secret, "existing secrets skip the policy")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(strings.NewReader("")))
}

func TestCheckConfirmation(t *testing.T) {
	pw, err := checkConfirmation("secret-pw", "secret-pw")
	require.NoError(t, err)
	assert.Equal(t, "secret-pw", pw)

	_, err = checkConfirmation("secret-pw", "secret-px")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
}

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(promptui.ErrInterrupt))
	assert.True(t, IsAborted(ErrAborted))
	assert.False(t, IsAborted(errors.New("boom")))
	assert.Equal(t, ErrAborted, wrapError(promptui.ErrInterrupt))
	assert.NoError(t, wrapError(nil))
}
