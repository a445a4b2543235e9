package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"pdfrag/internal/config"
	"pdfrag/internal/domain"
)

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("returns defaults when the file is missing", func() {
		cfg, err := config.Load(filepath.Join(dir, "missing.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Chunker.ChunkSize).To(Equal(1000))
		Expect(cfg.Chunker.ChunkOverlap).To(Equal(200))
		Expect(cfg.Embedder.OpenAI.Model).To(Equal("text-embedding-3-small"))
		Expect(cfg.Responder.Model).To(Equal("gpt-4o-mini"))
		Expect(cfg.VectorStore.TopK).To(Equal(4))
		Expect(cfg.VectorStore.Snapshot).To(Equal("pdf_knowledge_base.gob"))
		Expect(cfg.Validate()).To(Succeed())
	})

	It("fills defaults for omitted fields", func() {
		path := filepath.Join(dir, "config.yaml")
		Expect(os.WriteFile(path, []byte(`
embedder:
  type: google
responder:
  type: anthropic
vector_store:
  qdrant:
    read_only: true
`), 0o644)).To(Succeed())

		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Embedder.Google.Model).To(Equal("text-embedding-004"))
		Expect(cfg.Embedder.Google.APIKeyEnv).To(Equal("GOOGLE_API_KEY"))
		Expect(cfg.Responder.APIKeyEnv).To(Equal("ANTHROPIC_API_KEY"))
		Expect(cfg.VectorStore.Qdrant.Port).To(Equal(6334))
		Expect(cfg.VectorStore.Qdrant.ReadOnly).To(BeTrue())
		Expect(cfg.VectorStore.PGVector).To(BeNil())
		Expect(cfg.VectorStore.Snapshot).To(BeEmpty())
	})

	It("reports malformed YAML", func() {
		path := filepath.Join(dir, "config.yaml")
		Expect(os.WriteFile(path, []byte("chunker: [unclosed"), 0o644)).To(Succeed())
		_, err := config.Load(path)
		Expect(err).To(HaveOccurred())
	})

	It("round-trips through Save", func() {
		path := filepath.Join(dir, "nested", "config.yaml")
		cfg := config.Default()
		cfg.Chunker.ChunkSize = 500
		Expect(config.Save(path, cfg)).To(Succeed())

		loaded, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Chunker.ChunkSize).To(Equal(500))
	})
})

var _ = Describe("Validate", func() {
	It("rejects overlap not smaller than the chunk size", func() {
		cfg := config.Default()
		cfg.Chunker.ChunkOverlap = cfg.Chunker.ChunkSize
		Expect(cfg.Validate()).To(MatchError(domain.ErrInvalidConfiguration))
	})

	It("rejects unknown component types", func() {
		cfg := config.Default()
		cfg.Responder.Type = "parrot"
		cfg.VectorStore.Metric = "l2"
		err := cfg.Validate()
		Expect(err).To(MatchError(domain.ErrInvalidConfiguration))
		Expect(err.Error()).To(ContainSubstring("parrot"))
		Expect(err.Error()).To(ContainSubstring("l2"))
	})

	It("accepts the sentence chunker with a valid overlap", func() {
		cfg := config.Default()
		cfg.Chunker.Type = "sentence"
		cfg.Chunker.OverlapSentences = 1
		Expect(cfg.Validate()).To(Succeed())
	})
})
