package instanceutils

import (
	"context"
	"fmt"
	"log/slog"
)

// UserLookup resolves an account name.
type UserLookup interface {
	LookupUser(name string) (int, error)
}

// Account describes the service account.
type Account struct {
	Name  string
	Home  string
	Shell string
}

// EnsureUser creates the account with useradd when it cannot be looked up.
// Reports whether the account was created.
func EnsureUser(ctx context.Context, lookup UserLookup, runner Runner, acct Account, log *slog.Logger) (bool, error) {
	if _, err := lookup.LookupUser(acct.Name); err == nil {
		return false, nil
	}

	args := []string{"--system"}
	if acct.Home != "" {
		args = append(args, "--home", acct.Home)
	}
	if acct.Shell != "" {
		args = append(args, "--shell", acct.Shell)
	}
	args = append(args, acct.Name)

	log.Info("Creating service account", slog.String("user", acct.Name))
	if err := runner.Run(ctx, Command{Name: "useradd", Args: args}); err != nil {
		return false, fmt.Errorf("failed to create user %s: %w", acct.Name, err)
	}
	return true, nil
}
