package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chainsync/chainsync/pkg/hints"
)

// ErrAborted is returned when the operator declines a confirmation prompt.
// It is a hint: the program exits non-zero, but without an error trace.
var ErrAborted = hints.New("operation canceled by user")

// confirmInput allows tests to script the confirmation prompt.
var confirmInput io.Reader = os.Stdin

// PromptForConfirmation prompts the user for a yes/no response.
func PromptForConfirmation(prompt string, defaultYes bool) bool {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Printf("%s %s: ", prompt, suffix)

	reader := bufio.NewReader(confirmInput)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return defaultYes
	}
	response = strings.ToLower(strings.TrimSpace(response))

	if response == "" {
		return defaultYes
	}
	return response == "y" || response == "yes"
}
