package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nissyi-gh/taskr/internal/auth"
	"github.com/nissyi-gh/taskr/internal/config"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Sign in with a token",
	Long: `Sign in with a signed token. Tasks created while signed out are
uploaded to your account, except untouched onboarding tasks and tasks
already present remotely.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear this device's cache",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a sign-in token with the configured secret",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("user", "", "User id (required)")
	tokenCmd.Flags().String("email", "", "Email address")
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (default auth.token_ttl)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer closeApp()

	user, mig, err := a.SignIn(ctx, strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Signed in as %s\n", user.ID)
	switch {
	case mig == nil:
	case mig.Err != nil:
		fmt.Fprintf(out, "  Local tasks were kept on this device: %v\n", mig.Err)
	default:
		fmt.Fprintf(out, "  Migrated %d task(s), skipped %d\n", mig.Report.Migrated, mig.Report.Skipped)
		if n := len(mig.Report.Failed); n > 0 {
			fmt.Fprintf(out, "  %d task(s) failed to upload and are queued for retry\n", n)
		}
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer closeApp()

	if a.Session.CurrentUser() == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
		return nil
	}
	pending, err := a.Store.ReadPendingChanges(ctx)
	if err != nil {
		return err
	}
	if err := a.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
	if len(pending) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  %d change(s) were queued at sign-out; see the log for any that were dropped\n", len(pending))
	}
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		return errors.New("--user is required")
	}
	email, _ := cmd.Flags().GetString("email")
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	tok, err := auth.Issue(cfg.Auth.JWTSecret, user, email, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
