package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oxen-go/oxen/core"
	"github.com/oxen-go/oxen/internal/config"
)

// configCmd manages the two config files this module actually has:
// the per-user identity/remotes file (~/.oxen/user_config.toml) and,
// when run inside a repository, its per-repo config.toml. There is no
// scope flag (--global/--system) and no JWT-management subtree: a
// bearer token is a single opaque string cached per remote, set
// through 'oxen remote auth' or 'oxen login', not a structured claim
// set this module issues or verifies client-side.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get and set oxen configuration values",
	Long: `Example:
  oxen config user.name "John Doe"
  oxen config user.email "john@example.com"
  oxen config --list`,
}

var configList bool

var userNameCmd = &cobra.Command{
	Use:   "user.name [<name>]",
	Short: "Get or set the commit author name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Println(cfg.Name)
			return nil
		}
		cfg.Name = args[0]
		return cfg.Save()
	},
}

var userEmailCmd = &cobra.Command{
	Use:   "user.email [<email>]",
	Short: "Get or set the commit author email",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Println(cfg.Email)
			return nil
		}
		cfg.Email = args[0]
		return cfg.Save()
	},
}

var defaultBranchCmd = &cobra.Command{
	Use:   "default-branch [<name>]",
	Short: "Get or set the repository's default branch",
	Long:  "Must be run inside a repository; affects only that repository's config.toml.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := core.FindRepository()
		if err != nil {
			return err
		}
		cfg, err := config.LoadRepoConfig(repo.MetaDir)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Println(cfg.DefaultBranch)
			return nil
		}
		cfg.DefaultBranch = args[0]
		return cfg.Save(repo.MetaDir)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(userNameCmd)
	configCmd.AddCommand(userEmailCmd)
	configCmd.AddCommand(defaultBranchCmd)

	configCmd.Flags().BoolVarP(&configList, "list", "l", false, "List the current user identity and configured remotes")
	configCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if !configList {
			return cmd.Help()
		}
		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		fmt.Printf("user.name=%s\n", cfg.Name)
		fmt.Printf("user.email=%s\n", cfg.Email)
		for name, r := range cfg.Remotes {
			fmt.Printf("remote.%s.url=%s\n", name, r.URL)
		}
		return nil
	}
}
