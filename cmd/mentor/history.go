package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"mentor/internal/config"
	"mentor/internal/db"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List stored sessions or print one transcript",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.History.Store != config.StoreSQLite {
			return fmt.Errorf("history is only kept across runs with store = %q", config.StoreSQLite)
		}

		database, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		q := db.New(database.Conn())
		if len(args) == 0 {
			sessions, err := q.ListSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tTURNS\tUPDATED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%d\t%s\n", s.ID, s.TurnCount, s.UpdatedAt)
			}
			return w.Flush()
		}

		turns, err := q.GetTurnsBySession(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("loading session %s: %w", args[0], err)
		}
		if len(turns) == 0 {
			return fmt.Errorf("session %q has no stored turns", args[0])
		}
		for _, t := range turns {
			fmt.Printf("[%s] %s: %s\n", t.CreatedAt, t.Role, t.Content)
		}
		return nil
	},
}
