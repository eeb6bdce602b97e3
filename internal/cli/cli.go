// Package cli implements the coursesync command runners. Each exported
// RunX function backs one CLI command; main wires flags and dispatches.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// PrintUsage prints the command summary.
func PrintUsage() {
	fmt.Println(`Usage: coursesync [flags] <command> [args]

Commands:
  sites add       Register a course site (prompts for URL and token)
  sites list      List registered sites
  sites remove    Unregister a site by id
  status          Show per-site pending work and last sync times
  pending         List pending offline changes for a site
  sync [--force]  Reconcile pending changes for a site; --force ignores
                  the auto-sync interval

Flags:
  -data <dir>     Data directory (default ~/.coursesync)
  -site <id>      Site id for single-site commands`)
}

// ReadPassphrase reads the sealing passphrase without echo, preferring the
// COURSESYNC_PASSPHRASE environment variable for non-interactive use.
func ReadPassphrase() (string, error) {
	if pass := os.Getenv("COURSESYNC_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	fmt.Print("Passphrase: ")
	raw, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	pass := strings.TrimSpace(string(raw))
	if pass == "" {
		return "", fmt.Errorf("passphrase cannot be empty")
	}
	return pass, nil
}

// readSecret reads one secret value without echo.
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// readLine reads one plain input line.
func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
