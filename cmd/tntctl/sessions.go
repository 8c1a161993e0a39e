package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Rrens/tnt-ai/internal/domain"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"s"},
		Short:   "Browse and manage sessions",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List sessions, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()

				sessions := a.sessions.Sessions(cmd.Context())
				if asJSON {
					return printJSON(sessions)
				}

				active, _ := a.sessions.Active(cmd.Context())
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "\tID\tTITLE\tMESSAGES\tUPDATED")
				for _, s := range sessions {
					marker := ""
					if active != nil && active.ID == s.ID {
						marker = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", marker, s.ID, s.Title, len(s.Messages),
						time.UnixMilli(s.UpdatedAt).Format(time.DateTime))
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "show [id]",
			Short: "Show a session's messages (default: the active session)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()

				var session *domain.Session
				if len(args) == 1 {
					session, err = a.sessions.Session(cmd.Context(), args[0])
				} else {
					session, err = a.sessions.Active(cmd.Context())
				}
				if err != nil {
					return err
				}
				return printSession(session)
			},
		},
		&cobra.Command{
			Use:   "new",
			Short: "Start a new session and make it active",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()

				return printSession(a.sessions.NewSession(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "select <id>",
			Short: "Make a session active",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()

				session, err := a.sessions.SelectSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printSession(session)
			},
		},
		&cobra.Command{
			Use:   "rename <id> <title>",
			Short: "Rename a session",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()

				session, err := a.sessions.RenameSession(cmd.Context(), args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				return printSession(session)
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := openApp(cmd.Context())
				if err != nil {
					return err
				}
				defer a.Close()

				active := a.sessions.DeleteSession(cmd.Context(), args[0])
				if asJSON {
					return printJSON(active)
				}
				fmt.Printf("deleted %s, active session is %s\n", args[0], active.ID)
				return nil
			},
		},
		newClearCmd(),
	)
	return cmd
}

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete all sessions without --yes")
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			active := a.sessions.ClearAll(cmd.Context())
			fmt.Printf("all sessions deleted, new active session is %s\n", active.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

func printSession(s *domain.Session) error {
	if asJSON {
		return printJSON(s)
	}

	fmt.Printf("%s  %s  (%d messages)\n", s.ID, s.Title, len(s.Messages))
	for _, m := range s.Messages {
		fmt.Printf("- %s  %s\n", m.ID, time.UnixMilli(m.Timestamp).Format(time.DateTime))
		printMessage(m)
	}
	return nil
}
