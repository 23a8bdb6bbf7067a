// Command indexer embeds UTF-8 text files and loads them into the passage
// store the server searches at runtime.
//
// Usage:
//
//	indexer [-chunk 500] file.txt [file2.txt ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vtuberlab/voicebot/internal/config"
	"github.com/vtuberlab/voicebot/internal/database"
	"github.com/vtuberlab/voicebot/internal/retrieval"
)

func main() {
	chunkRunes := flag.Int("chunk", 500, "maximum chunk size in runes")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: indexer [-chunk N] file.txt [file2.txt ...]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), "migrations"); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	embedder := retrieval.NewHTTPEmbedder(cfg.Retrieval)
	store := retrieval.NewPassageStore(pool)

	total := 0
	for _, path := range flag.Args() {
		n, err := indexFile(ctx, embedder, store, path, *chunkRunes)
		if err != nil {
			slog.Error("indexing file", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("indexed file", "path", path, "chunks", n)
		total += n
	}

	count, err := store.Count(ctx)
	if err != nil {
		slog.Warn("counting passages", "error", err)
	}
	slog.Info("indexing complete", "new_chunks", total, "total_passages", count)
}

func indexFile(ctx context.Context, embedder retrieval.Embedder, store *retrieval.PassageStore, path string, chunkRunes int) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	chunks := chunkText(string(raw), chunkRunes)
	if len(chunks) == 0 {
		return 0, nil
	}

	embeddings, err := embedder.EmbedPassages(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding %s: %w", path, err)
	}

	source := filepath.Base(path)
	if err := store.InsertBatch(ctx, chunks, source, embeddings); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// chunkText splits text on blank lines and packs consecutive paragraphs into
// chunks of at most maxRunes. A single paragraph over the budget becomes its
// own oversized chunk rather than being split mid-sentence.
func chunkText(text string, maxRunes int) []string {
	paragraphs := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")

	var chunks []string
	var current strings.Builder
	currentRunes := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentRunes = 0
	}

	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		runes := len([]rune(p))
		if currentRunes > 0 && currentRunes+runes > maxRunes {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(p)
		currentRunes += runes
	}
	flush()

	return chunks
}
