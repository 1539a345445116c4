// Package store persists compiled programs in a content-addressed SQLite
// database. Programs are keyed by the hash of their canonical encoding and
// stored lz4-compressed; a name index serves lookups by program name.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/chazu/cellvm/vm"
	"github.com/chazu/cellvm/vm/dist"
	"github.com/docker/go-units"
	"github.com/pierrec/lz4/v4"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("cellvm.store")

// ErrNotFound indicates the requested program is not in the store.
var ErrNotFound = errors.New("program not found")

// Hash is a program's content hash.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash decodes a hex-encoded content hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parsing hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("parsing hash: want %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Entry describes one stored program.
type Entry struct {
	Hash    Hash
	Name    string
	Size    int // compressed size in bytes
	Created time.Time
}

// Store is a content-addressed program store backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the store at path. Use ":memory:" for a private
// in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		hash    TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		data    BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS programs_name ON programs (name)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index: %w", err)
	}

	log.Infof("opened program store %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores p and returns its content hash. Storing a program that is
// already present updates its name and marks it as the latest store.
func (s *Store) Put(ctx context.Context, p *vm.Program) (Hash, error) {
	data, err := dist.MarshalProgram(p)
	if err != nil {
		return Hash{}, err
	}
	h := Hash(sha256.Sum256(data))

	packed, err := compress(data)
	if err != nil {
		return Hash{}, fmt.Errorf("compressing %s: %w", h, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO programs (hash, name, data, created) VALUES (?, ?, ?, ?)
		 ON CONFLICT (hash) DO UPDATE SET name = excluded.name, created = excluded.created`,
		h.String(), p.Name, packed, time.Now().UnixNano(),
	)
	if err != nil {
		return Hash{}, fmt.Errorf("saving program: %w", err)
	}
	log.Debugf("stored %s %s (%s, %s compressed)", p.Name, h,
		units.BytesSize(float64(len(data))), units.BytesSize(float64(len(packed))))
	return h, nil
}

// Get loads the program with hash h, resolving its functions in env.
func (s *Store) Get(ctx context.Context, h Hash, env *vm.Environment) (*vm.Program, error) {
	var packed []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM programs WHERE hash = ?", h.String()).Scan(&packed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}
	return decode(h, packed, env)
}

// GetByName loads the most recently stored program with the given name.
func (s *Store) GetByName(ctx context.Context, name string, env *vm.Environment) (*vm.Program, error) {
	var (
		hexHash string
		packed  []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT hash, data FROM programs WHERE name = ? ORDER BY created DESC, rowid DESC LIMIT 1",
		name,
	).Scan(&hexHash, &packed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}
	h, err := ParseHash(hexHash)
	if err != nil {
		return nil, err
	}
	return decode(h, packed, env)
}

// List returns every stored program ordered by name, then creation time.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT hash, name, length(data), created FROM programs ORDER BY name, created")
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			hexHash string
			created int64
		)
		if err := rows.Scan(&hexHash, &e.Name, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		if e.Hash, err = ParseHash(hexHash); err != nil {
			return nil, err
		}
		e.Created = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the program with hash h.
func (s *Store) Delete(ctx context.Context, h Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM programs WHERE hash = ?", h.String())
	if err != nil {
		return fmt.Errorf("deleting program: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting program: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func decode(h Hash, packed []byte, env *vm.Environment) (*vm.Program, error) {
	data, err := decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", h, err)
	}
	if Hash(sha256.Sum256(data)) != h {
		return nil, fmt.Errorf("program %s: content hash mismatch", h)
	}
	return dist.UnmarshalProgram(data, env)
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(packed []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(packed)))
}
