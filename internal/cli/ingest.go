package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/courselens/courselens/internal/ingest"
	"github.com/courselens/courselens/internal/logging"
	"github.com/courselens/courselens/internal/store"
)

// NewIngestCmd parses course documents and indexes them into the configured
// store. With the memory backend this validates documents without leaving a
// persistent index behind.
func NewIngestCmd(opts *Options) *cobra.Command {
	var docsDir string
	var replace bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse and index course documents into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			dir := docsDir
			if dir == "" {
				dir = cfg.Ingest.DocsDir
			}
			if strings.TrimSpace(dir) == "" {
				return fmt.Errorf("no docs directory configured; pass --docs or set ingest.docs_dir")
			}

			var embedder store.Embedder
			if strings.ToLower(strings.TrimSpace(cfg.Store.Embedding.Provider)) == "openai" {
				embedder = store.NewOpenAIEmbedder(cfg.Store.Embedding.BaseURL, cfg.Store.Embedding.APIKey, cfg.Store.Embedding.Model)
			}

			var courseStore store.CourseStore
			switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
			case "postgres":
				pg, err := store.NewPostgresStore(cmd.Context(), cfg.Store.DSN, embedder)
				if err != nil {
					return fmt.Errorf("open postgres store: %w", err)
				}
				courseStore = pg
			default:
				courseStore = store.NewMemoryStore(embedder)
			}

			loader := ingest.NewLoader(courseStore, ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap), logger)
			added, err := loader.LoadDirectory(cmd.Context(), dir, replace)
			if err != nil {
				return err
			}

			total, err := courseStore.CourseCount(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d new course(s); store now holds %d course(s)\n", added, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&docsDir, "docs", "", "Directory of course documents (default: ingest.docs_dir)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Re-index courses that are already present")
	return cmd
}
