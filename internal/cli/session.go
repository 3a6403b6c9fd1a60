package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	login := &cobra.Command{
		Use:   "login <name>",
		Short: "Log in as a user",
		Long:  "Log in as <name>. Each user has their own syllabi; the name is remembered until logout.",
		Args:  cobra.ExactArgs(1),
		Run:   runLogin,
	}
	logout := &cobra.Command{
		Use:   "logout",
		Short: "Log out; stored syllabi are kept",
		Run:   runLogout,
	}
	whoami := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Run:   runWhoami,
	}

	RootCmd.AddCommand(login, logout, whoami)
}

func runLogin(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context())
	defer a.Close()

	if err := a.holder.Login(cmd.Context(), args[0]); err != nil {
		exitErr("login", err)
	}
	user, _ := a.holder.Current()
	if jsonOutput() {
		printJSON(cmd.OutOrStdout(), map[string]any{"ok": true, "user": user, "syllabi": len(a.repo().List())})
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%d syllabi)\n", styles.Title.Render(user), len(a.repo().List()))
}

func runLogout(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context())
	defer a.Close()

	if err := a.holder.Logout(cmd.Context()); err != nil {
		exitErr("logout", err)
	}
	if jsonOutput() {
		printJSON(cmd.OutOrStdout(), map[string]any{"ok": true})
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
}

func runWhoami(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context())
	defer a.Close()

	user, ok := a.holder.Current()
	if jsonOutput() {
		printJSON(cmd.OutOrStdout(), map[string]any{"logged_in": ok, "user": user})
		return
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("Not logged in"))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), user)
}
