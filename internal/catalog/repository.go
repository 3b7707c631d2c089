package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Repository defines product persistence and similarity search.
type Repository interface {
	Insert(ctx context.Context, p *Product) error
	Count(ctx context.Context) (int64, error)
	SearchByEmbedding(ctx context.Context, embedding []float32, categories []string, k int, threshold float64) ([]Result, error)
}

// PostgresRepository implements Repository using pgx + pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, p *Product) error {
	vec := pgvector.NewVector(p.Embedding)
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, name, description, category, price, image_url, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, description = EXCLUDED.description,
		     category = EXCLUDED.category, price = EXCLUDED.price,
		     image_url = EXCLUDED.image_url, embedding = EXCLUDED.embedding`,
		p.ID, p.Name, p.Description, p.Category, p.Price, p.ImageURL, vec,
	)
	if err != nil {
		return fmt.Errorf("inserting product %s: %w", p.ID, err)
	}
	return nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	return count, nil
}

// SearchByEmbedding returns up to k products ordered by cosine similarity.
// Score ties break on insertion order (the position column), keeping results
// deterministic.
func (r *PostgresRepository) SearchByEmbedding(ctx context.Context, embedding []float32, categories []string, k int, threshold float64) ([]Result, error) {
	vec := pgvector.NewVector(embedding)

	query := `SELECT id, name, description, price, image_url,
	                 1 - (embedding <=> $1) AS similarity
	          FROM products
	          WHERE 1 - (embedding <=> $1) >= $2`
	args := []any{vec, threshold}

	if len(categories) > 0 {
		query += ` AND category = ANY($3)`
		args = append(args, categories)
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $1, position LIMIT $%d`, len(args)+1)
	args = append(args, k)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var res Result
		var desc string
		if err := rows.Scan(&res.ID, &res.Name, &desc, &res.Price, &res.ImageURL, &res.Similarity); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		res.Text = fmt.Sprintf("%s ($%.2f): %s", res.Name, res.Price, desc)
		results = append(results, res)
	}
	return results, rows.Err()
}
