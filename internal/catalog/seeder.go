package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shopmate-ai/shopmate/internal/llm"
)

const seedBatchSize = 32

// SeedFromCSV populates the products table from a CSV export when the table
// is empty. Expected columns: id, name, description, category, price,
// image_url. Rerunning against a populated table is a no-op.
func SeedFromCSV(ctx context.Context, repo Repository, embedder llm.Client, path string) error {
	count, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("checking product count: %w", err)
	}
	if count > 0 {
		slog.Info("catalog already populated, skipping seed", "products", count)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if _, err := reader.Read(); err != nil { // header
		return fmt.Errorf("reading seed header: %w", err)
	}

	var batch []*Product
	total := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading seed row: %w", err)
		}
		if len(record) < 6 {
			slog.Warn("skipping malformed seed row", "fields", len(record))
			continue
		}

		price, err := strconv.ParseFloat(record[4], 64)
		if err != nil {
			slog.Warn("skipping seed row with bad price", "id", record[0], "price", record[4])
			continue
		}

		batch = append(batch, &Product{
			ID:          record[0],
			Name:        record[1],
			Description: record[2],
			Category:    record[3],
			Price:       price,
			ImageURL:    record[5],
		})

		if len(batch) >= seedBatchSize {
			if err := flushBatch(ctx, repo, embedder, batch); err != nil {
				return err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := flushBatch(ctx, repo, embedder, batch); err != nil {
			return err
		}
		total += len(batch)
	}

	slog.Info("catalog seeded", "products", total)
	return nil
}

// embedText builds the sentence embedded for one product. Field punctuation
// is normalized so descriptions with or without a trailing period read the
// same.
func embedText(p *Product) string {
	desc := strings.TrimSuffix(strings.TrimSpace(p.Description), ".")
	return fmt.Sprintf("%s. %s. Category: %s.", p.Name, desc, p.Category)
}

func flushBatch(ctx context.Context, repo Repository, embedder llm.Client, batch []*Product) error {
	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = embedText(p)
	}

	vecs, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding seed batch: %w", err)
	}
	if len(vecs) != len(batch) {
		return fmt.Errorf("embedding seed batch: got %d vectors for %d products", len(vecs), len(batch))
	}

	for i, p := range batch {
		p.Embedding = vecs[i]
		if err := repo.Insert(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
