package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oxen-go/oxen/internal/config"
)

var loginToken string

// loginCmd stores a bearer token for a remote. There is no
// username/password exchange here: the server issues tokens out of
// band (an operator-run `oxen-server token` step, outside this
// module's scope), and login just caches the token the user already
// has the way a CI secret gets dropped into a config file.
var loginCmd = &cobra.Command{
	Use:   "login [<remote>]",
	Short: "Store an authentication token for a remote",
	Long: `Caches a bearer token for a remote so that push, pull, fetch, and
clone can authenticate against it. If no remote is named, "origin" is used.

Examples:
  oxen login                       # prompts for a token for origin
  oxen login upstream --token ...  # sets the token for "upstream" directly`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := "origin"
		if len(args) > 0 {
			name = args[0]
		}

		cfg, err := config.LoadUserConfig()
		if err != nil {
			return err
		}
		if _, ok := cfg.Remotes[name]; !ok {
			return fmt.Errorf("remote '%s' is not configured; add it first with 'oxen remote add %s <url>'", name, name)
		}

		token := loginToken
		if token == "" {
			fmt.Print("Token: ")
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read token: %w", err)
			}
			token = strings.TrimSpace(line)
		}
		if token == "" {
			return fmt.Errorf("no token provided")
		}

		if err := cfg.SetRemoteToken(name, token); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}

		fmt.Printf("Stored authentication token for remote '%s'\n", name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Bearer token to store (otherwise prompted)")
}
