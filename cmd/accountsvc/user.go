package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mkrupp/homecase-accounts/internal/domain"
	"github.com/mkrupp/homecase-accounts/internal/infra/logging"
	"github.com/mkrupp/homecase-accounts/internal/svc/authsvc"
)

var ErrPasswordMismatch = errors.New("passwords do not match")

//nolint:gochecknoglobals
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// NewUserCmd creates the user subcommand group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(newUserCreateCmd())

	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var req authsvc.SignupRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Long: `Create a user account with the same checks as the signup endpoint.
The password is prompted for without echo, or read from the first line of stdin
when stdin is not a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg UserConfig
			if err := loadConfig(cmd.Context(), &cfg, &cfg.Log); err != nil {
				return err
			}

			password, err := promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			req.Password, req.ConfirmPassword = password, password

			factory, err := cfg.Store.factory()
			if err != nil {
				return err
			}

			repo, err := factory(cmd.Context())
			if err != nil {
				return fmt.Errorf("new user repo: %w", err)
			}

			defer func() { _ = repo.Close() }()

			store := authsvc.NewRepoCredentialStore(repo, authsvc.NewArgon2idHasher(cfg.Argon2))

			u, err := createUser(cmd.Context(), store, req)
			if err != nil {
				return err
			}

			cmd.Printf("created user %q with id %d\n", u.Username, u.ID)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Username, "username", "", "login name")
	flags.StringVar(&req.FirstName, "first-name", "", "first name")
	flags.StringVar(&req.LastName, "last-name", "", "last name")
	flags.StringVar(&req.Email, "email", "", "email address")

	for _, name := range []string{"username", "first-name", "last-name", "email"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func createUser(ctx context.Context, store authsvc.CredentialStore, req authsvc.SignupRequest) (_ *domain.User, err error) {
	log := logging.GetLogger(loggerName + ".user").With(logging.Group("user", "username", req.Username))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "create user failed", "error", err)
		} else {
			log.InfoContext(ctx, "user created")
		}
	}()

	if _, err := authsvc.ValidateSignup(ctx, store, req, 0); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	//nolint:exhaustruct
	u, err := store.CreateUser(ctx, authsvc.NewUser{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return u, nil
}

// promptPassword reads the password twice from the terminal, or once from in
// when in is not a terminal.
func promptPassword(in io.Reader, out io.Writer) (string, error) {
	file, ok := in.(*os.File)
	if !ok || !isTerminal(int(file.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read password: %w", err)
		}

		return strings.TrimRight(line, "\r\n"), nil
	}

	read := func(prompt string) (string, error) {
		_, _ = fmt.Fprint(out, prompt)
		password, err := readPassword(int(file.Fd()))
		_, _ = fmt.Fprintln(out)

		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		return string(password), nil
	}

	password, err := read("Password: ")
	if err != nil {
		return "", err
	}

	confirm, err := read("Confirm password: ")
	if err != nil {
		return "", err
	}

	if password != confirm {
		return "", ErrPasswordMismatch
	}

	return password, nil
}
