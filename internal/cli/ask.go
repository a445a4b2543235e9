package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"pdfrag/internal/conversation"
	"pdfrag/internal/domain"
	"pdfrag/internal/responder"
)

const askLongDesc string = `Answer one question from the knowledge base.

The answer is streamed as it is generated and followed by the passages it was
grounded on. The question and answer are appended to the session given by
--session, so follow-up questions can refer to earlier ones.

Example:
  pdfrag ask "How long is the warranty?"
  pdfrag ask --session support "Does it cover water damage?"`

const askShortDesc string = "Answer a question from the knowledge base"

type askCommander struct {
	g           *globals
	hideSources bool
}

func newAskCmd(g *globals) *cobra.Command {
	cmder := &askCommander{g: g}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().BoolVar(&cmder.hideSources, "no-sources", false, "Do not print the passages the answer is based on")

	return cmd
}

func (c *askCommander) run(cmd *cobra.Command, question string) error {
	ctx := cmd.Context()
	a, closeApp, err := c.g.open(ctx, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer closeApp()

	if !hasKnowledge(a) {
		return ErrEmptyKnowledgeBase
	}
	conv, err := a.Conversation(ctx, c.g.session)
	if err != nil {
		return err
	}

	answer, err := a.Service.Ask(ctx, conv, question)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if err := streamTo(w, answer.Stream); err != nil {
		return err
	}
	if !c.hideSources {
		printSources(w, answer.Sources)
	}
	return conversation.Save(ctx, a.History, conv)
}

// streamTo copies every fragment of s to w.
func streamTo(w io.Writer, s responder.Stream) error {
	defer s.Close()
	for {
		frag, err := s.Recv()
		fmt.Fprint(w, frag)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(w)
			return nil
		}
		if err != nil {
			fmt.Fprintln(w)
			return err
		}
	}
}

func printSources(w io.Writer, sources []domain.SearchResult) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", headerStyle.Render("Sources"))
	for i, r := range sources {
		fmt.Fprintf(w, "  %s %s %s\n",
			rankStyle.Render(fmt.Sprintf("[%d]", i+1)),
			responder.Label(r),
			dimStyle.Render(fmt.Sprintf("score %.3f", r.Score)),
		)
	}
}
