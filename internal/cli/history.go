package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pdfrag/internal/domain"
)

const historyShortDesc string = "Show the turns of a session"

type historyCommander struct {
	g     *globals
	limit int
}

func newHistoryCmd(g *globals) *cobra.Command {
	cmder := &historyCommander{g: g}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long: `Show the conversation stored for the session given by --session.

Example:
  pdfrag history --session support --last 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "last", "n", 0, "Only show the last n turns (0 shows all)")

	return cmd
}

func (c *historyCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, closeApp, err := c.g.open(ctx, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer closeApp()

	conv, err := a.Conversation(ctx, c.g.session)
	if err != nil {
		return err
	}
	turns := conv.Turns()
	if c.limit > 0 {
		turns = conv.Recent(c.limit)
	}
	w := cmd.OutOrStdout()
	if len(turns) == 0 {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("No turns in session "+c.g.session))
		return nil
	}
	for _, t := range turns {
		style := botStyle
		if t.Role == domain.RoleUser {
			style = userStyle
		}
		fmt.Fprintf(w, "%s %s\n%s\n\n", style.Render(string(t.Role)), dimStyle.Render(t.Timestamp.Format(time.DateTime)), t.Content)
	}
	return nil
}

const sessionsShortDesc string = "List stored sessions"

type sessionsCommander struct {
	g *globals
}

func newSessionsCmd(g *globals) *cobra.Command {
	cmder := &sessionsCommander{g: g}

	return &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  "List the sessions in the history store, most recently updated first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}
}

func (c *sessionsCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, closeApp, err := c.g.open(ctx, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer closeApp()

	sessions, err := a.History.Sessions(ctx)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("No sessions"))
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s %s %s\n",
			keyStyle.Render(s.ID),
			dimStyle.Render(fmt.Sprintf("%d turns", s.Turns)),
			dimStyle.Render(s.UpdatedAt.Format(time.DateTime)),
		)
	}
	return nil
}
