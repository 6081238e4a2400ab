// Package store is the Postgres document store of the validation service.
// It keeps the raw envelope bytes of every accepted document version and
// the registered signer keys.
package store

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"signeddoc/pkg/envelope"
	"signeddoc/pkg/keyid"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/problems"
	"signeddoc/pkg/store"
	"signeddoc/pkg/uuidx"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id            uuid NOT NULL,
	ver           uuid NOT NULL,
	doc_type      uuid NOT NULL,
	raw           bytea NOT NULL,
	chain_pred_id  uuid,
	chain_pred_ver uuid,
	accepted_at   timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (id, ver)
);
CREATE UNIQUE INDEX IF NOT EXISTS documents_chain_pred_key
	ON documents (chain_pred_id, chain_pred_ver)
	WHERE chain_pred_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS documents_type_idx ON documents (doc_type);

CREATE TABLE IF NOT EXISTS signer_keys (
	short_id   text PRIMARY KEY,
	public_key bytea NOT NULL
);
`

type Store struct{ DB *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.Exec(ctx, schema)
	return err
}

// Accept stores an accepted document version. Acceptance per document id is
// serialized with an advisory lock so the version order cannot race.
func (s *Store) Accept(ctx context.Context, doc *envelope.Document) error {
	m := doc.Meta
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return unavailable(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, m.ID.String()); err != nil {
		return unavailable(err)
	}

	var latest uuid.UUID
	err = tx.QueryRow(ctx,
		`SELECT ver FROM documents WHERE id=$1 ORDER BY ver DESC LIMIT 1`, m.ID).Scan(&latest)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return unavailable(err)
	case latest == m.Ver:
		return store.ErrDuplicate
	case uuidx.Compare(latest, m.Ver) > 0:
		return fmt.Errorf("%w: latest is %s", store.ErrStaleVersion, latest)
	}

	var predID, predVer *uuid.UUID
	if m.Chain != nil && m.Chain.Ref != nil {
		predID, predVer = &m.Chain.Ref.ID, &m.Chain.Ref.Ver
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO documents(id, ver, doc_type, raw, chain_pred_id, chain_pred_ver)
VALUES($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Ver, m.PrimaryType(), doc.Bytes(), predID, predVer); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "documents_chain_pred_key" {
				return store.ErrChainFork
			}
			return store.ErrDuplicate
		}
		return unavailable(err)
	}
	return tx.Commit(ctx)
}

func (s *Store) GetDocument(ctx context.Context, ref metadata.DocumentRef) (*envelope.Document, error) {
	return s.queryOne(ctx,
		`SELECT raw FROM documents WHERE id=$1 AND ver=$2`, ref.ID, ref.Ver)
}

func (s *Store) GetLatest(ctx context.Context, id uuid.UUID) (*envelope.Document, error) {
	return s.queryOne(ctx,
		`SELECT raw FROM documents WHERE id=$1 ORDER BY ver DESC LIMIT 1`, id)
}

func (s *Store) GetFirst(ctx context.Context, id uuid.UUID) (*envelope.Document, error) {
	return s.queryOne(ctx,
		`SELECT raw FROM documents WHERE id=$1 AND ver=$1`, id)
}

func (s *Store) ChainSuccessor(ctx context.Context, id, ver uuid.UUID) (*envelope.Document, error) {
	return s.queryOne(ctx,
		`SELECT raw FROM documents WHERE chain_pred_id=$1 AND chain_pred_ver=$2`, id, ver)
}

func (s *Store) ListByType(ctx context.Context, docType uuid.UUID) ([]*envelope.Document, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT raw FROM documents WHERE doc_type=$1 ORDER BY id, ver`, docType)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var out []*envelope.Document
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, unavailable(err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// RegisterKey stores a signing key under its role-independent short ID.
func (s *Store) RegisterKey(ctx context.Context, kid keyid.KeyID, pk ed25519.PublicKey) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO signer_keys(short_id, public_key) VALUES($1, $2)
ON CONFLICT (short_id) DO UPDATE SET public_key=$2`,
		kid.ShortID(), []byte(pk))
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) RegisteredKey(ctx context.Context, kid keyid.KeyID) (ed25519.PublicKey, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx,
		`SELECT public_key FROM signer_keys WHERE short_id=$1`, kid.ShortID()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return ed25519.PublicKey(raw), nil
}

func (s *Store) queryOne(ctx context.Context, sql string, args ...any) (*envelope.Document, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, sql, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return decode(raw)
}

// decode re-parses stored envelope bytes. Stored documents were validated
// at acceptance, so decoding problems mean corruption.
func decode(raw []byte) (*envelope.Document, error) {
	rep := problems.New()
	doc, err := envelope.Decode(raw, rep)
	if err != nil {
		return nil, fmt.Errorf("stored document is corrupt: %w", err)
	}
	return doc, nil
}

// unavailable marks database failures as transient so validation reports
// an indeterminate outcome instead of a rejection.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
