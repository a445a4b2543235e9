package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/logger"
)

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("creates a default text logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("hello", "key", "value")

			Expect(buf.String()).To(ContainSubstring("hello"))
			Expect(buf.String()).To(ContainSubstring("key=value"))
		})

		It("filters debug unless enabled", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf)).Debug("hidden")
			Expect(buf.String()).To(BeEmpty())

			logger.New(logger.WithWriter(&buf), logger.WithDebug(true)).Debug("shown")
			Expect(buf.String()).To(ContainSubstring("shown"))
		})

		It("creates a JSON logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Info("structured", "chunks", 42)

			var parsed map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("structured"))
			Expect(parsed["chunks"]).To(BeNumerically("==", 42))
		})

		It("creates a pretty logger", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
			l.Warn("pretty output", "source", "qdrant")

			Expect(buf.String()).To(ContainSubstring("pretty output"))
			Expect(buf.String()).To(ContainSubstring("qdrant"))
		})

		It("supports multiple writers", func() {
			var buf1, buf2 bytes.Buffer
			logger.New(logger.WithWriters(&buf1, &buf2)).Info("multi")

			Expect(buf1.String()).To(ContainSubstring("multi"))
			Expect(buf2.String()).To(ContainSubstring("multi"))
		})
	})

	Describe("Nop", func() {
		It("discards all output", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
		})
	})

	Describe("File", func() {
		It("appends to the given file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "pdfrag.log")
			l, closer, err := logger.File(path)
			Expect(err).NotTo(HaveOccurred())
			l.Info("to file")
			Expect(closer.Close()).To(Succeed())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("to file"))
		})
	})
})
