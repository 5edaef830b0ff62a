package helpers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptForChoice prompts the user to select from a list of options
// Returns the user's choice or the default value if no input is provided
func PromptForChoice(out io.Writer, reader *bufio.Reader, promptText string, defaultValue string) string {
	fmt.Fprintf(out, "%s [%s]: ", promptText, defaultValue)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)

	if line == "" {
		return defaultValue
	}
	return line
}

// PromptForYesNo prompts the user for a yes/no question
// Returns true for yes, false for no, or the default value if no input
func PromptForYesNo(out io.Writer, reader *bufio.Reader, promptText string, defaultValue bool) bool {
	label := "y/N"
	if defaultValue {
		label = "Y/n"
	}
	fmt.Fprintf(out, "%s [%s]: ", promptText, label)

	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))

	if line == "" {
		return defaultValue
	}
	return line == "y" || line == "yes"
}

// PromptForSecret reads a value without echo when in is a terminal, and as a
// plain line otherwise.
func PromptForSecret(out io.Writer, in io.Reader, reader *bufio.Reader, promptText string) (string, error) {
	fmt.Fprintf(out, "%s: ", promptText)

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
