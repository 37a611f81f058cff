package cmd

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/oxen-go/oxen/internal/config"
	"github.com/oxen-go/oxen/internal/repository"
)

var fetchAll bool

// FetchHandler downloads a remote's branch tips and trees into
// remote-tracking refs ("remotes/<name>/<branch>") without touching
// the working directory, matching sync.Engine.Fetch's contract.
func FetchHandler(h *repository.Handle, args []string) error {
	ucfg, err := config.LoadUserConfig()
	if err != nil {
		return err
	}

	var names []string
	if fetchAll {
		for name := range ucfg.Remotes {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			return fmt.Errorf("no remotes configured")
		}
	} else {
		name := ""
		if len(args) > 0 {
			name = args[0]
		} else {
			name, err = ucfg.DefaultRemoteName()
			if err != nil {
				return err
			}
		}
		names = []string{name}
	}

	for _, name := range names {
		remoteCfg, err := ucfg.SyncRemote(name)
		if err != nil {
			return err
		}
		engine := h.SyncEngine(remoteCfg, repoName(h), zap.NewNop())
		updated, err := engine.Fetch(context.Background(), name)
		if err != nil {
			return fmt.Errorf("fetch from '%s' failed: %w", name, err)
		}
		branches := make([]string, 0, len(updated))
		for b := range updated {
			branches = append(branches, b)
		}
		sort.Strings(branches)
		for _, b := range branches {
			fmt.Printf("From %s\n * branch %s -> %s/%s\n", remoteCfg.URL, b, name, b)
		}
	}
	return nil
}

func init() {
	fetchCmd := NewRepoCommand("fetch [<remote>]", "Download objects and refs from a remote", FetchHandler)
	fetchCmd.Flags().BoolVar(&fetchAll, "all", false, "Fetch from every configured remote")
	rootCmd.AddCommand(fetchCmd)
}
