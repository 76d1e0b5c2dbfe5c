package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-compare-backend/internal/services"
)

var askChat bool

var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Run one query through the arbitration pipeline and print the result",
	Long: `Runs a single query exactly as POST /compare would (or POST /chat with
--chat), using the configured database, cache and generator.

Examples:
  compared ask "MacBook Air vs Dell XPS 13"
  compared ask --chat "which is better for travel, Kindle or Kobo?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.arb.Handle(cmd.Context(), services.Request{
			Query:         strings.Join(args, " "),
			AllowFreeForm: askChat,
		})
		if err != nil {
			return err
		}
		if res.Comparison == nil {
			fmt.Fprintln(cmd.OutOrStdout(), res.Content)
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.Comparison)
	},
}

func init() {
	askCmd.Flags().BoolVar(&askChat, "chat", false, "answer in chat mode (Markdown, free-form fallback)")
}
