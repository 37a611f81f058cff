package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oxen-go/oxen/internal/config"
)

var (
	remoteVerbose     bool
	remoteVerboseAuth bool
)

// remoteCmd lists configured remotes with no arguments, same as the
// add/remove/set-url/show/auth subcommands operate on
// config.UserConfig.Remotes directly: a remote here is just a name, a
// URL, and an optional bearer token. These commands never touch refs;
// the remotes/<name>/<branch> tracking refs are written by fetch.
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Manage the set of tracked remotes",
	Long: `With no arguments, shows a list of existing remotes.

Example:
  oxen remote add origin https://example.com/user/repo
  oxen remote remove origin
  oxen remote show origin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRemotes()
	},
}

var addRemoteCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], args[1]
		if !isValidRemoteName(name) {
			return fmt.Errorf("invalid remote name '%s'", name)
		}
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		cfg.SetRemote(name, url)
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Added remote '%s' with URL '%s'\n", name, url)
		return nil
	},
}

var removeRemoteCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a remote",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		if err := cfg.RemoveRemote(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Removed remote '%s'\n", args[0])
		return nil
	},
}

var renameRemoteCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		oldName, newName := args[0], args[1]
		if !isValidRemoteName(newName) {
			return fmt.Errorf("invalid remote name '%s'", newName)
		}
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		r, ok := cfg.Remotes[oldName]
		if !ok {
			return fmt.Errorf("remote '%s' does not exist", oldName)
		}
		cfg.SetRemote(newName, r.URL)
		if r.Token != "" {
			if err := cfg.SetRemoteToken(newName, r.Token); err != nil {
				return err
			}
		}
		if err := cfg.RemoveRemote(oldName); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Renamed remote '%s' to '%s'\n", oldName, newName)
		return nil
	},
}

var setUrlRemoteCmd = &cobra.Command{
	Use:   "set-url <name> <newurl>",
	Short: "Change the URL for a remote",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, newURL := args[0], args[1]
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		if _, ok := cfg.Remotes[name]; !ok {
			return fmt.Errorf("remote '%s' does not exist", name)
		}
		cfg.SetRemote(name, newURL)
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("Updated URL for remote '%s' to '%s'\n", name, newURL)
		return nil
	},
}

var showRemoteCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show information about a remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		r, ok := cfg.Remotes[args[0]]
		if !ok {
			return fmt.Errorf("remote '%s' does not exist", args[0])
		}
		fmt.Printf("* Remote '%s'\n", args[0])
		fmt.Printf("  URL: %s\n", r.URL)
		if remoteVerboseAuth {
			if r.Token == "" {
				fmt.Println("  Authentication: not configured")
			} else {
				fmt.Printf("  Authentication: %s\n", r.Token)
			}
		} else if r.Token != "" {
			fmt.Println("  Authentication: configured")
		} else {
			fmt.Println("  Authentication: not configured")
		}
		return nil
	},
}

var authRemoteCmd = &cobra.Command{
	Use:   "auth <name> [<token>]",
	Short: "Set or display the bearer token for a remote",
	Long: `If <token> is given it is stored as the auth token for <name>.
With no token, the current token is displayed (redacted unless --verbose-auth).
Use --remove to clear the stored token.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}

		remove, _ := cmd.Flags().GetBool("remove")
		if remove {
			if err := cfg.SetRemoteToken(name, ""); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Printf("Removed authentication token for remote '%s'\n", name)
			return nil
		}

		if len(args) == 2 {
			if err := cfg.SetRemoteToken(name, args[1]); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Printf("Set authentication token for remote '%s'\n", name)
			return nil
		}

		r, ok := cfg.Remotes[name]
		if !ok || r.Token == "" {
			fmt.Printf("No authentication token configured for remote '%s'\n", name)
			return nil
		}
		if remoteVerboseAuth {
			fmt.Printf("Authentication token for remote '%s': %s\n", name, r.Token)
			return nil
		}
		redacted := r.Token
		if len(redacted) > 8 {
			redacted = redacted[:4] + "..." + redacted[len(redacted)-4:]
		}
		fmt.Printf("Authentication token for remote '%s': %s\n", name, redacted)
		fmt.Println("Use --verbose-auth to show the full token")
		return nil
	},
}

func listRemotes() error {
	cfg, err := config.LoadUserConfig()
	if err != nil {
		return err
	}
	if len(cfg.Remotes) == 0 {
		fmt.Println("No remotes configured")
		return nil
	}
	names := make([]string, 0, len(cfg.Remotes))
	for name := range cfg.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if remoteVerbose {
			url := cfg.Remotes[name].URL
			fmt.Printf("%s\t%s (fetch)\n", name, url)
			fmt.Printf("%s\t%s (push)\n", name, url)
		} else {
			fmt.Println(name)
		}
	}
	return nil
}

func isValidRemoteName(name string) bool {
	if name == "" || strings.ContainsAny(name, " ~^:?*[\\") {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") ||
		strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	return true
}

func init() {
	rootCmd.AddCommand(remoteCmd)

	remoteCmd.AddCommand(addRemoteCmd)
	remoteCmd.AddCommand(removeRemoteCmd)
	remoteCmd.AddCommand(renameRemoteCmd)
	remoteCmd.AddCommand(setUrlRemoteCmd)
	remoteCmd.AddCommand(showRemoteCmd)
	remoteCmd.AddCommand(authRemoteCmd)

	remoteCmd.PersistentFlags().BoolVarP(&remoteVerbose, "verbose", "v", false, "Show more information")
	showRemoteCmd.Flags().BoolVar(&remoteVerboseAuth, "verbose-auth", false, "Show full authentication token")
	authRemoteCmd.Flags().Bool("remove", false, "Remove the stored authentication token")
	authRemoteCmd.Flags().BoolVar(&remoteVerboseAuth, "verbose-auth", false, "Show full authentication token")
}
