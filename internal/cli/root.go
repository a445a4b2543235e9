// Package cli provides the pdfrag command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"pdfrag/internal/app"
	"pdfrag/internal/config"
	"pdfrag/internal/logger"
)

// DefaultSession is used when --session is not given.
const DefaultSession = "default"

const defaultLogFile = "pdfrag.log"

// ErrEmptyKnowledgeBase is returned when a question is asked before anything
// was ingested and no remote index is configured.
var ErrEmptyKnowledgeBase = errors.New("knowledge base is empty; run pdfrag ingest first")

var (
	successMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	skipMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("-")
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	rankStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
)

const pdfragLongDesc string = `pdfrag answers questions about your documents.

PDF, text and markdown files are split into chunks, embedded and indexed.
Questions are answered by a chat model from the most relevant chunks, with
citations back to the source pages.

  pdfrag ingest docs/*.pdf           Add documents to the knowledge base
  pdfrag ask "what is the warranty"  Answer one question
  pdfrag chat [files...]             Chat in the terminal
  pdfrag history                     Show the current session
  pdfrag sessions                    List stored sessions`

const pdfragShortDesc string = "pdfrag - chat with your documents"

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	debug      bool
	session    string
}

func NewPdfragCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "pdfrag",
		Short:         pdfragShortDesc,
		Long:          pdfragLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to YAML config file (default ./config.yaml or ~/.config/pdfrag/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&g.debug, "debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&g.session, "session", "s", DefaultSession, "Conversation session ID")

	cmd.AddCommand(newIngestCmd(g))
	cmd.AddCommand(newAskCmd(g))
	cmd.AddCommand(newChatCmd(g))
	cmd.AddCommand(newHistoryCmd(g))
	cmd.AddCommand(newSessionsCmd(g))

	return cmd
}

func (g *globals) loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if g.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(g.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// logger writes to the configured log file when set, otherwise to w.
func (g *globals) logger(cfg *config.AppConfig, w io.Writer) (*slog.Logger, func() error, error) {
	opts := []logger.Option{
		logger.WithDebug(g.debug),
		logger.WithJSON(cfg.Log.JSON),
		logger.WithPretty(cfg.Log.Pretty),
	}
	if cfg.Log.File != "" {
		l, f, err := logger.File(cfg.Log.File, opts...)
		if err != nil {
			return nil, nil, err
		}
		return l, f.Close, nil
	}
	return logger.New(append(opts, logger.WithWriter(w))...), func() error { return nil }, nil
}

// open loads the configuration and builds the application with a logger
// writing to w. Interactive commands always log to a file so output does not
// corrupt the screen.
func (g *globals) open(ctx context.Context, w io.Writer, interactive bool) (*app.App, func(), error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if interactive && cfg.Log.File == "" {
		cfg.Log.File = defaultLogFile
	}
	log, closeLog, err := g.logger(cfg, w)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			log.Warn("closing", "error", err)
		}
		_ = closeLog()
	}, nil
}

// hasKnowledge reports whether a question can be answered from a.
func hasKnowledge(a *app.App) bool {
	vs := a.Config.VectorStore
	return a.Service.Chunks() > 0 || vs.Qdrant != nil || vs.PGVector != nil
}
