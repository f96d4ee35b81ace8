package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the catalog in SQLite and ranks products with an FTS5
// index. It implements both Store and Searcher.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the catalog database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			vendor TEXT,
			in_stock INTEGER NOT NULL DEFAULT 0,
			inventory INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS products_fts USING fts5(
			ref UNINDEXED,
			pid UNINDEXED,
			title,
			description,
			vendor,
			product_type,
			tags
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			order_number INTEGER NOT NULL,
			email TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_number ON orders(order_number)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create catalog schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertProduct inserts or replaces a product and its search document.
// The stored id is normalized; the search index keeps the id as given.
func (s *SQLiteStore) UpsertProduct(ctx context.Context, p Product) error {
	ref := strings.TrimSpace(p.ID)
	p.ID = NormalizeID(ref)
	if p.ID == "" {
		return fmt.Errorf("upsert product: id is required")
	}
	if p.Inventory == 0 {
		for _, v := range p.Variants {
			p.Inventory += v.Inventory
		}
	}
	if p.Price == 0 && len(p.Variants) > 0 {
		p.Price = p.Variants[0].Price
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inStock := 0
	if p.InStock() {
		inStock = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO products (id, title, vendor, in_stock, inventory, data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			vendor = excluded.vendor,
			in_stock = excluded.in_stock,
			inventory = excluded.inventory,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		p.ID, p.Title, p.Vendor, inStock, p.Inventory, string(data), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM products_fts WHERE pid = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to clear search document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO products_fts (ref, pid, title, description, vendor, product_type, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ref, p.ID, p.Title, p.Description, p.Vendor, p.ProductType, strings.Join(p.Tags, " "),
	); err != nil {
		return fmt.Errorf("failed to index product %s: %w", p.ID, err)
	}

	return tx.Commit()
}

// UpsertOrder inserts or replaces an order.
func (s *SQLiteStore) UpsertOrder(ctx context.Context, o Order) error {
	if o.OrderNumber <= 0 {
		return fmt.Errorf("upsert order: order number is required")
	}
	if o.ID == "" {
		o.ID = fmt.Sprintf("order-%d", o.OrderNumber)
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, email, data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			order_number = excluded.order_number,
			email = excluded.email,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		o.ID, o.OrderNumber, strings.TrimSpace(o.Email), string(data), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to upsert order %d: %w", o.OrderNumber, err)
	}
	return nil
}

// Product implements Store.
func (s *SQLiteStore) Product(ctx context.Context, id string) (*Product, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM products WHERE id = ?`, NormalizeID(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	var p Product
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &p, nil
}

// FetchProducts implements Store.
func (s *SQLiteStore) FetchProducts(ctx context.Context, ids []string) ([]Product, error) {
	order := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = NormalizeID(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}
	if len(order) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(order)), ",")
	args := make([]any, len(order))
	for i, id := range order {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM products WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Product, len(order))
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		var p Product
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product %s: %w", id, err)
		}
		byID[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	out := make([]Product, 0, len(byID))
	for _, id := range order {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// FetchOrder implements Store.
func (s *SQLiteStore) FetchOrder(ctx context.Context, number int, email string) (*Order, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM orders WHERE order_number = ? AND lower(email) = lower(?) LIMIT 1`,
		number, strings.TrimSpace(email),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	var o Order
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &o, nil
}

// Search implements Searcher using FTS5 bm25 ranking. Ties prefer in-stock
// products with more inventory.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	match := ftsQuery(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT f.ref, bm25(products_fts, 0, 0, 10.0, 1.0, 5.0, 4.0, 3.0) AS rank
		FROM products_fts f
		LEFT JOIN products p ON p.id = f.pid
		WHERE products_fts MATCH ?
		ORDER BY rank ASC, COALESCE(p.in_stock, 0) DESC, COALESCE(p.inventory, 0) DESC
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			ref  string
			rank float64
		)
		if err := rows.Scan(&ref, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		score := -rank
		if score < 0 {
			score = 0
		}
		hits = append(hits, Hit{ID: ref, Score: score / (1 + score)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hits: %w", err)
	}
	return hits, nil
}

var searchStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "any": {}, "are": {}, "do": {}, "find": {}, "for": {},
	"get": {}, "have": {}, "i": {}, "in": {}, "is": {}, "it": {}, "looking": {}, "me": {},
	"of": {}, "on": {}, "or": {}, "please": {}, "show": {}, "some": {}, "the": {}, "to": {},
	"want": {}, "with": {}, "you": {}, "can": {}, "need": {}, "related": {}, "alternative": {},
	"similar": {}, "under": {}, "below": {}, "from": {}, "by": {}, "only": {}, "just": {},
}

// ftsQuery turns free text into an FTS5 OR-query of quoted prefix terms.
func ftsQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		if _, stop := searchStopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if len(w) > 3 {
			w = strings.TrimSuffix(w, "s")
		}
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " OR ")
}

// SeedFile is the JSON layout accepted by Seed.
type SeedFile struct {
	Products []Product `json:"products"`
	Orders   []Order   `json:"orders"`
}

// Seed loads products and orders from a JSON file.
func (s *SQLiteStore) Seed(ctx context.Context, path string) (products, orders int, err error) {
	raw, err := os.ReadFile(path) // #nosec G304 - path is an operator-supplied seed file
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed SeedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return 0, 0, fmt.Errorf("failed to parse seed file: %w", err)
	}
	for _, p := range seed.Products {
		if err := s.UpsertProduct(ctx, p); err != nil {
			return products, orders, err
		}
		products++
	}
	for _, o := range seed.Orders {
		if err := s.UpsertOrder(ctx, o); err != nil {
			return products, orders, err
		}
		orders++
	}
	return products, orders, nil
}
