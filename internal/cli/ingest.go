package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"pdfrag/internal/service"
)

const ingestLongDesc string = `Add documents to the knowledge base.

Arguments may be files, directories or glob patterns. Supported types are
.pdf, .txt and .md; anything else is skipped. The local index is saved to the
configured snapshot and mirrored to writable remote indexes.

Example:
  pdfrag ingest manual.pdf notes/*.md`

const ingestShortDesc string = "Add documents to the knowledge base"

type ingestCommander struct {
	g *globals
}

func newIngestCmd(g *globals) *cobra.Command {
	cmder := &ingestCommander{g: g}

	return &cobra.Command{
		Use:   "ingest <files...>",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}
}

func (c *ingestCommander) run(cmd *cobra.Command, paths []string) error {
	a, closeApp, err := c.g.open(cmd.Context(), cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer closeApp()

	report, err := a.Service.Ingest(cmd.Context(), paths)
	if err != nil {
		return fmt.Errorf("ingesting: %w", err)
	}
	printReport(cmd.OutOrStdout(), report, a.Service.Chunks())
	return nil
}

func printReport(w io.Writer, report service.IngestReport, total int) {
	for _, d := range report.Documents {
		fmt.Fprintf(w, "  %s %s %s\n", successMark, d.Path,
			dimStyle.Render(fmt.Sprintf("(%d pages, %d chunks, id %s)", d.Pages, d.Chunks, d.ID)))
	}
	for _, p := range report.Skipped {
		fmt.Fprintf(w, "  %s %s %s\n", skipMark, p, dimStyle.Render("(unsupported, skipped)"))
	}
	fmt.Fprintf(w, "\n  %s %d new chunks, %d in knowledge base\n", keyStyle.Render("Indexed:"), report.Chunks, total)
	if report.Summary != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", headerStyle.Render("Summary"), report.Summary)
	}
}
