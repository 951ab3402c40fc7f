package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore keeps the local history of submissions and generations.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS submissions (
        id TEXT PRIMARY KEY, -- UUID
        brand_name TEXT NOT NULL,
        feedback_text TEXT NOT NULL,
        metadata_json TEXT,
        stored BOOLEAN DEFAULT FALSE,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS generations (
        id TEXT PRIMARY KEY, -- UUID
        remote_id TEXT,
        brand_name TEXT NOT NULL,
        group_id INTEGER NOT NULL,
        group_summary TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS generated_images (
        id TEXT PRIMARY KEY, -- UUID
        generation_id TEXT NOT NULL,
        variation_number INTEGER NOT NULL,
        url TEXT,
        inline BOOLEAN DEFAULT FALSE,
        revised_prompt TEXT,
        created_at DATETIME,
        FOREIGN KEY (generation_id) REFERENCES generations (id)
    );

    CREATE INDEX IF NOT EXISTS idx_submissions_brand ON submissions (brand_name, created_at);
    CREATE INDEX IF NOT EXISTS idx_generations_brand ON generations (brand_name, created_at);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Submission methods
func (s *SQLiteStore) CreateSubmission(sub *Submission) error {
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO submissions (id, brand_name, feedback_text, metadata_json, stored, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare submission insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(sub.ID, sub.BrandName, sub.FeedbackText, sub.MetadataJSON, sub.Stored, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute submission insert: %w", err)
	}
	return nil
}

// ListSubmissions returns the newest submissions first. An empty brand lists all brands.
func (s *SQLiteStore) ListSubmissions(brand string, limit int) ([]Submission, error) {
	query := "SELECT id, brand_name, feedback_text, metadata_json, stored, created_at FROM submissions WHERE (? = '' OR brand_name = ?) ORDER BY created_at DESC LIMIT ?"
	rows, err := s.db.Query(query, brand, brand, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		var sub Submission
		var metadata sql.NullString
		if err := rows.Scan(&sub.ID, &sub.BrandName, &sub.FeedbackText, &metadata, &sub.Stored, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		sub.MetadataJSON = metadata.String
		submissions = append(submissions, sub)
	}
	return submissions, rows.Err()
}

// Generation methods

// CreateGeneration stores a generation and its images in one transaction.
func (s *SQLiteStore) CreateGeneration(gen *Generation) error {
	gen.ID = uuid.NewString()
	gen.CreatedAt = time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin generation insert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT INTO generations (id, remote_id, brand_name, group_id, group_summary, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		gen.ID, gen.RemoteID, gen.BrandName, gen.GroupID, gen.GroupSummary, gen.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute generation insert: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO generated_images (id, generation_id, variation_number, url, inline, revised_prompt, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare image insert: %w", err)
	}
	defer stmt.Close()

	for i := range gen.Images {
		img := &gen.Images[i]
		img.ID = uuid.NewString()
		img.GenerationID = gen.ID
		if img.CreatedAt.IsZero() {
			img.CreatedAt = gen.CreatedAt
		}
		if _, err := stmt.Exec(img.ID, img.GenerationID, img.VariationNumber, img.URL, img.Inline, img.RevisedPrompt, img.CreatedAt); err != nil {
			return fmt.Errorf("failed to execute image insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit generation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListGenerations(brand string, limit int) ([]Generation, error) {
	query := "SELECT id, remote_id, brand_name, group_id, group_summary, created_at FROM generations WHERE (? = '' OR brand_name = ?) ORDER BY created_at DESC LIMIT ?"
	rows, err := s.db.Query(query, brand, brand, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}

	var generations []Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		generations = append(generations, *gen)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate generations: %w", err)
	}

	for i := range generations {
		images, err := s.getImagesByGenerationID(generations[i].ID)
		if err != nil {
			return nil, err
		}
		generations[i].Images = images
	}
	return generations, nil
}

// GetGeneration looks a generation up by its local id or the id the
// service returned for it. It returns nil, nil when neither matches.
func (s *SQLiteStore) GetGeneration(id string) (*Generation, error) {
	row := s.db.QueryRow("SELECT id, remote_id, brand_name, group_id, group_summary, created_at FROM generations WHERE id = ? OR remote_id = ? ORDER BY created_at DESC LIMIT 1", id, id)
	gen, err := scanGeneration(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	images, err := s.getImagesByGenerationID(gen.ID)
	if err != nil {
		return nil, err
	}
	gen.Images = images
	return gen, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row scanner) (*Generation, error) {
	var gen Generation
	var remoteID, summary sql.NullString
	if err := row.Scan(&gen.ID, &remoteID, &gen.BrandName, &gen.GroupID, &summary, &gen.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan generation row: %w", err)
	}
	if remoteID.Valid {
		gen.RemoteID = &remoteID.String
	}
	gen.GroupSummary = summary.String
	return &gen, nil
}

func (s *SQLiteStore) getImagesByGenerationID(generationID string) ([]Image, error) {
	rows, err := s.db.Query("SELECT id, generation_id, variation_number, url, inline, revised_prompt, created_at FROM generated_images WHERE generation_id = ? ORDER BY variation_number ASC", generationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		var url, revised sql.NullString
		if err := rows.Scan(&img.ID, &img.GenerationID, &img.VariationNumber, &url, &img.Inline, &revised, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		img.URL = url.String
		img.RevisedPrompt = revised.String
		images = append(images, img)
	}
	return images, rows.Err()
}
