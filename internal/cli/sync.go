package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued changes and refresh from the remote store",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session, connectivity and queue state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer closeApp()

	if a.Session.CurrentUser() == nil {
		return errors.New("not signed in; run taskr login first")
	}
	if err := a.CheckConnectivity(ctx); err != nil {
		return err
	}
	if !a.Tracker.Online() {
		return errors.New("the remote store is unreachable; changes stay queued")
	}

	tasks, err := a.Service.ForceSyncWithCloud(ctx)
	if err != nil {
		return err
	}
	pending, err := a.Store.ReadPendingChanges(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d task(s)", len(tasks))
	if len(pending) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), ", %d change(s) still queued", len(pending))
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer closeApp()

	pending, err := a.Store.ReadPendingChanges(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	user := "(signed out)"
	if u := a.Session.CurrentUser(); u != nil {
		user = u.ID
		if u.Email != "" {
			user += " <" + u.Email + ">"
		}
	}
	remote := "disabled"
	if a.Config.RemoteEnabled() {
		remote = "offline"
		if a.Tracker.Online() {
			remote = "online"
		}
	}
	fmt.Fprintf(out, "User:    %s\n", user)
	fmt.Fprintf(out, "Remote:  %s\n", remote)
	fmt.Fprintf(out, "Sync:    %s\n", a.Tracker.Status())
	fmt.Fprintf(out, "Pending: %d\n", len(pending))
	return nil
}
