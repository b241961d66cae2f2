package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/autohtn/internal/rules"
)

// ErrRulebookNotFound is returned when no rulebook is stored under a name.
var ErrRulebookNotFound = errors.New("rulebook not found")

// ErrRulebookExists is returned by Create when the name is already taken.
var ErrRulebookExists = errors.New("rulebook already exists")

// ErrInvalidName is returned for rulebook names outside [A-Za-z0-9._-]{1,128}.
var ErrInvalidName = errors.New("invalid rulebook name")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidName reports whether name may key a stored rulebook.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// StoredRulebook is one row of the rulebooks table.
type StoredRulebook struct {
	Name      string
	Digest    string
	Document  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rulebook parses the stored document.
//
// Postcondition: the result's Digest equals s.Digest unless the row was edited by hand.
func (s StoredRulebook) Rulebook() (*rules.Rulebook, error) {
	rb, err := rules.Parse(s.Document)
	if err != nil {
		return nil, fmt.Errorf("stored rulebook %q: %w", s.Name, err)
	}
	return rb, nil
}

// RulebookRepository stores canonical JSON rulebooks by name.
type RulebookRepository struct {
	db *pgxpool.Pool
}

// NewRulebookRepository creates a RulebookRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with migrations applied.
func NewRulebookRepository(db *pgxpool.Pool) *RulebookRepository {
	return &RulebookRepository{db: db}
}

// Put stores rb under name, replacing any previous document with that name.
//
// Precondition: rb was returned by the rules package, so Source and Digest are set.
// Postcondition: Returns the stored row, or ErrInvalidName.
func (r *RulebookRepository) Put(ctx context.Context, name string, rb *rules.Rulebook) (StoredRulebook, error) {
	if !ValidName(name) {
		return StoredRulebook{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if rb == nil || len(rb.Source) == 0 || rb.Digest == "" {
		return StoredRulebook{}, fmt.Errorf("storing rulebook %q: rulebook has no source document", name)
	}

	var out StoredRulebook
	err := r.db.QueryRow(ctx, `
		INSERT INTO rulebooks (name, digest, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		   SET digest = EXCLUDED.digest,
		       document = EXCLUDED.document,
		       updated_at = NOW()
		RETURNING name, digest, document, created_at, updated_at`,
		name, rb.Digest, string(rb.Source),
	).Scan(&out.Name, &out.Digest, &out.Document, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return StoredRulebook{}, fmt.Errorf("upserting rulebook %q: %w", name, err)
	}
	return out, nil
}

// Create stores rb under a name that must not exist yet.
//
// Postcondition: Returns an error wrapping ErrRulebookExists when name is taken.
func (r *RulebookRepository) Create(ctx context.Context, name string, rb *rules.Rulebook) (StoredRulebook, error) {
	if !ValidName(name) {
		return StoredRulebook{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if rb == nil || len(rb.Source) == 0 || rb.Digest == "" {
		return StoredRulebook{}, fmt.Errorf("storing rulebook %q: rulebook has no source document", name)
	}

	var out StoredRulebook
	err := r.db.QueryRow(ctx, `
		INSERT INTO rulebooks (name, digest, document)
		VALUES ($1, $2, $3)
		RETURNING name, digest, document, created_at, updated_at`,
		name, rb.Digest, string(rb.Source),
	).Scan(&out.Name, &out.Digest, &out.Document, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return StoredRulebook{}, fmt.Errorf("%w: %q", ErrRulebookExists, name)
		}
		return StoredRulebook{}, fmt.Errorf("inserting rulebook %q: %w", name, err)
	}
	return out, nil
}

// Get retrieves the rulebook stored under name.
//
// Postcondition: Returns ErrRulebookNotFound if there is none.
func (r *RulebookRepository) Get(ctx context.Context, name string) (StoredRulebook, error) {
	var out StoredRulebook
	err := r.db.QueryRow(ctx, `
		SELECT name, digest, document, created_at, updated_at
		FROM rulebooks WHERE name = $1`,
		name,
	).Scan(&out.Name, &out.Digest, &out.Document, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredRulebook{}, ErrRulebookNotFound
		}
		return StoredRulebook{}, fmt.Errorf("querying rulebook %q: %w", name, err)
	}
	return out, nil
}

// Load retrieves and parses the rulebook stored under name.
func (r *RulebookRepository) Load(ctx context.Context, name string) (*rules.Rulebook, error) {
	stored, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return stored.Rulebook()
}

// List returns every stored rulebook ordered by name. Documents are not loaded.
//
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *RulebookRepository) List(ctx context.Context) ([]StoredRulebook, error) {
	rows, err := r.db.Query(ctx, `
		SELECT name, digest, created_at, updated_at
		FROM rulebooks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing rulebooks: %w", err)
	}
	defer rows.Close()

	out := []StoredRulebook{}
	for rows.Next() {
		var s StoredRulebook
		if err := rows.Scan(&s.Name, &s.Digest, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning rulebook: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rulebooks: %w", err)
	}
	return out, nil
}

// Delete removes the rulebook stored under name.
//
// Postcondition: Returns ErrRulebookNotFound if there was none.
func (r *RulebookRepository) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rulebooks WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deleting rulebook %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRulebookNotFound
	}
	return nil
}
