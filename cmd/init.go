package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oxen-go/oxen/internal/repository"
)

func init() {
	var bare bool
	initCmd := NewInitCommand(
		"init [directory]",
		"Initialize a new, empty oxen repository",
		func(args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			absDir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			var h *repository.Handle
			if bare {
				h, err = repository.CreateBareRepo(absDir)
			} else {
				h, err = repository.CreateRepo(absDir)
			}
			if err != nil {
				return err
			}
			return h.Close()
		},
	)
	initCmd.Args = cobra.MaximumNArgs(1)
	initCmd.Flags().BoolVar(&bare, "bare", false, "Create a bare repository with no working tree")
	rootCmd.AddCommand(initCmd)
}
