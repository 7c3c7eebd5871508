package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cursos-dev/cursos/internal/courses"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var (
		serverAlias string
		device      bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the identity provider",
		Long: `Authenticate with the identity provider.

A browser window is opened for the sign-in page. On hosts without a browser
use --device and enter the displayed code on another device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context(), serverAlias, withDeviceFlow(device))
		},
	}

	addServerFlag(cmd, &serverAlias)
	cmd.Flags().BoolVar(&device, "device", false, "Use the device authorization flow")

	return cmd
}

func runLogin(ctx context.Context, serverAlias string, opts ...Option) error {
	a, err := newApp(serverAlias, opts...)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logging in to %s (%s)...\n", a.server.Alias, a.server.URL)

	if err := a.session.SignIn(ctx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if _, ok := a.session.Token(); !ok {
		return errors.New("login failed: no access token was issued")
	}

	fmt.Fprintln(a.out, "✓ Login successful!")
	printProfile(ctx, a)

	return nil
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context(), serverAlias)
		},
	}

	addServerFlag(cmd, &serverAlias)

	return cmd
}

func runLogout(ctx context.Context, serverAlias string, opts ...Option) error {
	a, err := newApp(serverAlias, opts...)
	if err != nil {
		return err
	}

	if err := a.session.SignOut(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Logged out of %s\n", a.server.Alias)
	return nil
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd.Context(), serverAlias)
		},
	}

	addServerFlag(cmd, &serverAlias)

	return cmd
}

func runWhoami(ctx context.Context, serverAlias string, opts ...Option) error {
	a, err := newApp(serverAlias, opts...)
	if err != nil {
		return err
	}

	if err := a.session.Sync(ctx); err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	if !a.session.Session().Authenticated {
		return courses.ErrNotAuthenticated
	}

	printProfile(ctx, a)
	return nil
}

// printProfile shows who is signed in and their role
func printProfile(ctx context.Context, a *app) {
	profile, err := a.session.Profile(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to load user profile")
	} else {
		switch {
		case profile.Name != "" && profile.Email != "":
			fmt.Fprintf(a.out, "  User: %s (%s)\n", profile.Name, profile.Email)
		case profile.Name != "":
			fmt.Fprintf(a.out, "  User: %s\n", profile.Name)
		case profile.Email != "":
			fmt.Fprintf(a.out, "  User: %s\n", profile.Email)
		default:
			fmt.Fprintf(a.out, "  User: %s\n", profile.Subject)
		}
	}

	fmt.Fprintf(a.out, "  Server: %s (%s)\n", a.server.Alias, a.server.URL)
	if a.session.IsAdmin() {
		fmt.Fprintln(a.out, "  Role: Admin")
	} else {
		fmt.Fprintln(a.out, "  Role: User")
	}
}
