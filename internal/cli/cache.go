package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bnfold/pkg/cache"
	"github.com/matzehuels/bnfold/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the fold result cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached fold results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.Config.Cache.Backend != backendFile {
				return errors.New(errors.ErrCodeUnsupported, "cache clear only supports the %q backend, configured %q", backendFile, c.Config.Cache.Backend)
			}
			dir, err := c.cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fc, err := cache.NewFileCache(dir)
			if err != nil {
				return err
			}

			count, err := fc.Clear()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if count == 0 {
				printInfo(w, "Cache is empty")
				return nil
			}
			printSuccess(w, "Cleared %d cached entries", count)
			printDetail(w, "Directory: %s", fc.Dir())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}
