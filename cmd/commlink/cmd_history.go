package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"commlink/internal/codec"
	"commlink/internal/session"

	"github.com/spf13/cobra"
)

func (c *cli) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored conversation",
		Long:  `Prints stored utterances oldest first. Token utterances are decoded through the phrase dictionary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), c.cfg, session.Config{})
			if err != nil {
				return err
			}
			defer rt.Close()

			us, err := rt.store.ListUtterances(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(us) == 0 {
				fmt.Fprintln(out, "No messages yet.")
				return nil
			}
			for _, u := range us {
				text := u.Text
				if u.IsCompressed() {
					text = fmt.Sprintf("%s (token %d)", codec.Decode(*u.TokenIndex, rt.dict), *u.TokenIndex)
				}
				fmt.Fprintf(out, "%4d  %s  %s: %s\n", u.Seq, u.CreatedAt.Format(time.DateTime), u.Sender, text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Show only the last N messages (0 for all)")
	return cmd
}

func (c *cli) remindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reminders",
		Short: "List pending reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), c.cfg, session.Config{})
			if err != nil {
				return err
			}
			defer rt.Close()

			pending, err := rt.sched.Pending(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(pending) == 0 {
				fmt.Fprintln(out, "No pending reminders.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tDUE\tMESSAGE")
			for _, r := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, r.DueTime().Format(time.RFC3339), r.Message)
			}
			return w.Flush()
		},
	}
}

func (c *cli) tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens",
		Short: "List the phrase dictionary",
		RunE: func(cmd *cobra.Command, args []string) error {
			dict := codec.DefaultDictionary()
			if len(c.cfg.Dictionary) > 0 {
				dict = codec.Dictionary(c.cfg.Dictionary)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dictionary version %s\n", dict.Version())
			for i, phrase := range dict {
				fmt.Fprintf(out, "%3d  %s\n", i, phrase)
			}
			return nil
		},
	}
}
