package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/codefionn/mathchat/internal/config"
	"github.com/codefionn/mathchat/internal/provider"
	"github.com/codefionn/mathchat/internal/session"
)

const historyTimeLayout = "2006-01-02 15:04"

func (a *App) openHistory(cfg *config.Config) (*session.Store, error) {
	if cfg.HistoryPath == "" {
		return nil, errors.New("chat history is disabled")
	}
	return session.OpenStore(cfg.HistoryPath)
}

func (a *App) runHistory(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.Stderr, "Usage: mathchat history list|show <id>|delete <id>")
		return ErrUsage
	}
	if args[0] != "list" && len(args) != 2 {
		fmt.Fprintf(a.Stderr, "Usage: mathchat history %s <id>\n", args[0])
		return ErrUsage
	}

	store, err := a.openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	switch args[0] {
	case "list":
		summaries, err := store.List(ctx)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Fprintln(a.Stdout, "No saved conversations.")
			return nil
		}
		w := tabwriter.NewWriter(a.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUPDATED\tMESSAGES\tTITLE")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.UpdatedAt.Local().Format(historyTimeLayout), s.MessageCount, s.Title)
		}
		return w.Flush()

	case "show":
		sess, err := store.Load(ctx, args[1])
		if err != nil {
			return err
		}
		for _, msg := range sess.Messages() {
			fmt.Fprintf(a.Stdout, "[%s] %s: %s\n", msg.Timestamp.Local().Format(historyTimeLayout), msg.Role, msg.Content)
		}
		return nil

	case "delete":
		if err := store.Delete(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(a.Stdout, "Deleted %s\n", args[1])
		return nil

	default:
		fmt.Fprintf(a.Stderr, "unknown history command %q\n", args[0])
		return ErrUsage
	}
}

func (a *App) runConfig(_ context.Context, cfg *config.Config, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.Stderr, "Usage: mathchat config path|set-key <provider>|set-password")
		return ErrUsage
	}

	switch args[0] {
	case "path":
		fmt.Fprintln(a.Stdout, a.ConfigPath)
		return nil

	case "set-key":
		if len(args) != 2 {
			fmt.Fprintf(a.Stderr, "Usage: mathchat config set-key <provider>\nProviders: %s\n", strings.Join(provider.Names(), ", "))
			return ErrUsage
		}
		return a.setKey(cfg, args[1])

	case "set-password":
		return a.setPassword(cfg)

	default:
		fmt.Fprintf(a.Stderr, "unknown config command %q\n", args[0])
		return ErrUsage
	}
}

// setKey stores an API key, sealed when a secrets password is configured.
func (a *App) setKey(cfg *config.Config, providerName string) error {
	info, err := provider.Lookup(providerName)
	if err != nil {
		return err
	}
	if err := a.ensureSecretsPassword(cfg); err != nil {
		return err
	}

	key, err := a.promptForPassword(fmt.Sprintf("Enter API key for %s: ", info.DisplayName))
	if err != nil {
		return err
	}
	if key == "" {
		return errors.New("API key must not be empty")
	}

	cfg.SetAPIKey(info.Name, key)
	if err := cfg.Save(a.ConfigPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	state := "in plain text"
	if cfg.Secrets.PasswordSet {
		state = "encrypted"
	}
	fmt.Fprintf(a.Stdout, "Stored API key for %s (%s) in %s\n", info.DisplayName, state, a.ConfigPath)
	return nil
}

// setPassword re-seals all stored keys with a new password. An empty
// password removes the encryption.
func (a *App) setPassword(cfg *config.Config) error {
	if err := a.ensureSecretsPassword(cfg); err != nil {
		return err
	}

	pw, err := a.promptForPassword("New encryption password (empty to disable): ")
	if err != nil {
		return err
	}
	if pw != "" {
		confirm, err := a.promptForPassword("Repeat password: ")
		if err != nil {
			return err
		}
		if confirm != pw {
			return errors.New("passwords do not match")
		}
	}

	cfg.UpdateSecretsPassword(pw)
	if err := cfg.Save(a.ConfigPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	if pw == "" {
		fmt.Fprintln(a.Stdout, "Encryption disabled; API keys are stored in plain text.")
	} else {
		fmt.Fprintln(a.Stdout, "Encryption password updated.")
	}
	return nil
}
