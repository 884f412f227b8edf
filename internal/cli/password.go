package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/codefionn/mathchat/internal/config"
	"github.com/codefionn/mathchat/internal/secrets"
)

const maxPasswordAttempts = 3

// ensureSecretsPassword unlocks sealed API keys. The password comes from
// MATHCHAT_SECRETS_PASSWORD or, for interactive commands, from a prompt.
func (a *App) ensureSecretsPassword(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if !cfg.Secrets.PasswordSet && !cfg.HasSealedKeys() {
		return nil
	}

	if pw, ok := os.LookupEnv(SecretsPasswordEnv); ok {
		if err := cfg.ApplySecretsPassword(pw); err != nil {
			return fmt.Errorf("%s: %w", SecretsPasswordEnv, err)
		}
		return nil
	}
	if !a.interactive {
		return fmt.Errorf("API keys are encrypted: set %s: %w", SecretsPasswordEnv, secrets.ErrPasswordRequired)
	}

	for attempt := 0; attempt < maxPasswordAttempts; attempt++ {
		pw, err := a.promptForPassword("Enter encryption password: ")
		if err != nil {
			return err
		}
		if err := cfg.ApplySecretsPassword(pw); err != nil {
			if errors.Is(err, secrets.ErrInvalidPassword) {
				fmt.Fprintln(a.Stderr, "Invalid password, try again.")
				continue
			}
			return err
		}
		return nil
	}
	return errors.New("too many invalid password attempts")
}

func (a *App) promptForPassword(prompt string) (string, error) {
	if a.PromptPassword != nil {
		return a.PromptPassword(prompt)
	}

	fmt.Fprint(a.Stderr, prompt)

	if f, ok := a.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytes, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	return a.readLine()
}

// readLine reads one line from stdin. The reader is shared so lines
// buffered by an earlier prompt are not lost.
func (a *App) readLine() (string, error) {
	if a.stdinReader == nil {
		a.stdinReader = bufio.NewReader(a.Stdin)
	}
	line, err := a.stdinReader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(line), nil
}
