package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"pdfrag/internal/conversation"
	"pdfrag/internal/tui"
)

const chatLongDesc string = `Chat with the knowledge base in the terminal.

Files given as arguments are ingested first. Answers stream into the chat view;
press Tab to browse the passages behind the latest answer and Ctrl+C to quit.
Each exchange is saved to the session given by --session. Logs are written to
the configured log file, pdfrag.log by default.

Example:
  pdfrag chat manual.pdf
  pdfrag chat --session support`

const chatShortDesc string = "Chat with the knowledge base"

type chatCommander struct {
	g *globals
}

func newChatCmd(g *globals) *cobra.Command {
	cmder := &chatCommander{g: g}

	return &cobra.Command{
		Use:   "chat [files...]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}
}

func (c *chatCommander) run(cmd *cobra.Command, paths []string) error {
	ctx := cmd.Context()
	a, closeApp, err := c.g.open(ctx, cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer closeApp()

	var summary string
	if len(paths) > 0 {
		report, err := a.Service.Ingest(ctx, paths)
		if err != nil {
			return fmt.Errorf("ingesting: %w", err)
		}
		summary = report.Summary
	} else if summary, err = a.Service.Summary(); err != nil {
		return err
	}
	if !hasKnowledge(a) {
		return ErrEmptyKnowledgeBase
	}

	conv, err := a.Conversation(ctx, c.g.session)
	if err != nil {
		return err
	}
	persist := func() error {
		return conversation.Save(context.WithoutCancel(ctx), a.History, conv)
	}

	m := tui.New(ctx, a.Service, conv, summary, persist)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return err
	}
	return persist()
}
