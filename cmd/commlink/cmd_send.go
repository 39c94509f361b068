package main

import (
	"fmt"
	"strings"

	"commlink/internal/router"
	"commlink/internal/session"

	"github.com/spf13/cobra"
)

func (c *cli) sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [text]",
		Short: "Route a single message and print the reply",
		Long: `Starts a session without the handshake pauses, delivers any reminders
that are already due, routes one message and prints the reply.

Examples:
  commlink send "what's the weather in Lisbon?"
  commlink send /remindme 10m '"stretch"'
  commlink send /speak good morning`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c.cfg.Session.HandshakeStep = "0s"
			rt, err := newRuntime(ctx, c.cfg, session.Config{})
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.sched.Tick(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: reminder delivery failed: %v\n", err)
			}

			if err := rt.machine.Start(ctx); err != nil {
				return err
			}
			reply, err := rt.machine.Submit(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return c.printReply(cmd, rt, reply)
		},
	}
}

func (c *cli) printReply(cmd *cobra.Command, rt *runtime, reply router.Reply) error {
	out := cmd.OutOrStdout()
	switch reply.Kind {
	case router.KindStored:
		fmt.Fprintf(out, "(sent as token %d)\n", *reply.TokenIndex)
	case router.KindIgnored:
		return nil
	default:
		fmt.Fprintln(out, reply.Text)
	}
	if reply.Audio != nil {
		path, err := rt.saveClip(*reply.Audio)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "audio: %s\n", path)
	}
	return nil
}
