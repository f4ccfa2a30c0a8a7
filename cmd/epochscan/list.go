package main

import (
	"fmt"

	"github.com/spf13/cobra"

	redissrc "github.com/unkn0wn-root/epochcache/source/redis"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List published epochs that carry blobs, and the current tip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := redissrc.New(redissrc.Config{Client: a.rdb, Namespace: a.cfg.Redis.Namespace})
			if err != nil {
				return err
			}
			epochs, err := src.Published(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range epochs {
				fmt.Fprintln(out, e)
			}
			tip, ok, err := src.Tip(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(out, "tip %d\n", tip)
			}
			return nil
		},
	}
}
