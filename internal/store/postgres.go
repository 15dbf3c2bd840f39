package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spotshare/spotshare/internal/civil"
)

// Postgres is the production Store, backed by a pgx connection pool. Update
// runs inside a SERIALIZABLE transaction; serialization aborts surface as
// ErrSerialization so the coordinator can retry.
type Postgres struct {
	pool *pgxpool.Pool
	hub  *changeHub
}

// NewPostgres wraps an established pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, hub: newChangeHub()}
}

type pgTx struct {
	q       pgx.Tx
	changes *[]Change
}

func (t *pgTx) Spaces() SpaceRepo         { return &pgSpaces{t} }
func (t *pgTx) Windows() WindowRepo       { return &pgWindows{t} }
func (t *pgTx) Principals() PrincipalRepo { return &pgPrincipals{t} }
func (t *pgTx) Tokens() TokenRepo         { return &pgTokens{t} }

func (t *pgTx) record(col Collection, op Op, id string) {
	if t.changes != nil {
		*t.changes = append(*t.changes, Change{Collection: col, Op: op, ID: id})
	}
}

func (p *Postgres) View(ctx context.Context, fn func(Tx) error) error {
	defer observeDB(ctx, "db.view")()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Update(ctx context.Context, fn func(Tx) error) error {
	defer observeDB(ctx, "db.update")()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var changes []Change
	if err := fn(&pgTx{q: tx, changes: &changes}); err != nil {
		return mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("commit: %w", err))
	}
	p.hub.publish(changes)
	return nil
}

func (p *Postgres) Subscribe() (<-chan Change, func()) { return p.hub.subscribe() }

func (p *Postgres) HealthCheck(ctx context.Context) error {
	defer observeDB(ctx, "db.healthcheck")()
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() { p.pool.Close() }

// mapPgError translates backend aborts that preserve serializability
// (SQLSTATE 40001) into the retryable sentinel.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return err
}

func toDate(t time.Time) civil.Date   { return civil.DateOf(t.UTC()) }
func fromDate(d civil.Date) time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

// pgSpaces

type pgSpaces struct{ tx *pgTx }

func (r *pgSpaces) Create(ctx context.Context, label string) (*Space, error) {
	s := Space{Label: label}
	err := r.tx.q.QueryRow(ctx,
		`INSERT INTO spaces (label) VALUES ($1) RETURNING id, created_at`,
		label,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create space: %w", err)
	}
	r.tx.record(CollectionSpaces, OpCreated, formatID(s.ID))
	return &s, nil
}

func (r *pgSpaces) Get(ctx context.Context, id int64) (*Space, error) {
	return r.scanOne(ctx,
		`SELECT id, label, owner_id, created_at FROM spaces WHERE id = $1`, id)
}

func (r *pgSpaces) OwnedBy(ctx context.Context, principalID int64) (*Space, error) {
	return r.scanOne(ctx,
		`SELECT id, label, owner_id, created_at FROM spaces WHERE owner_id = $1`, principalID)
}

func (r *pgSpaces) scanOne(ctx context.Context, query string, arg any) (*Space, error) {
	var s Space
	err := r.tx.q.QueryRow(ctx, query, arg).Scan(&s.ID, &s.Label, &s.OwnerID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query space: %w", err)
	}
	return &s, nil
}

func (r *pgSpaces) List(ctx context.Context) ([]Space, error) {
	rows, err := r.tx.q.Query(ctx,
		`SELECT id, label, owner_id, created_at FROM spaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	var out []Space
	for rows.Next() {
		var s Space
		if err := rows.Scan(&s.ID, &s.Label, &s.OwnerID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan space: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgSpaces) SetOwner(ctx context.Context, id int64, ownerID *int64) error {
	tag, err := r.tx.q.Exec(ctx, `UPDATE spaces SET owner_id = $2 WHERE id = $1`, id, ownerID)
	if err != nil {
		return fmt.Errorf("set space owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.tx.record(CollectionSpaces, OpUpdated, formatID(id))
	return nil
}

func (r *pgSpaces) Delete(ctx context.Context, id int64) error {
	rows, err := r.tx.q.Query(ctx, `DELETE FROM windows WHERE space_id = $1 RETURNING id`, id)
	if err != nil {
		return fmt.Errorf("delete space windows: %w", err)
	}
	var windowIDs []uuid.UUID
	for rows.Next() {
		var wid uuid.UUID
		if err := rows.Scan(&wid); err != nil {
			rows.Close()
			return fmt.Errorf("scan deleted window: %w", err)
		}
		windowIDs = append(windowIDs, wid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	tag, err := r.tx.q.Exec(ctx, `DELETE FROM spaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete space: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	r.tx.record(CollectionSpaces, OpDeleted, formatID(id))
	for _, wid := range windowIDs {
		r.tx.record(CollectionWindows, OpDeleted, wid.String())
	}
	return nil
}

// pgWindows

type pgWindows struct{ tx *pgTx }

const windowColumns = `id, space_id, start_date, end_date, claimant_id, version, created_at`

func scanWindow(row pgx.Row) (*Window, error) {
	var w Window
	var start, end time.Time
	err := row.Scan(&w.ID, &w.SpaceID, &start, &end, &w.ClaimantID, &w.Version, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan window: %w", err)
	}
	w.Start, w.End = toDate(start), toDate(end)
	return &w, nil
}

func (r *pgWindows) Create(ctx context.Context, w Window) (*Window, error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.Version = 1
	err := r.tx.q.QueryRow(ctx,
		`INSERT INTO windows (id, space_id, start_date, end_date, claimant_id, version)
		 VALUES ($1, $2, $3, $4, $5, 1) RETURNING created_at`,
		w.ID, w.SpaceID, fromDate(w.Start), fromDate(w.End), w.ClaimantID,
	).Scan(&w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	r.tx.record(CollectionWindows, OpCreated, w.ID.String())
	return &w, nil
}

func (r *pgWindows) Get(ctx context.Context, id uuid.UUID) (*Window, error) {
	return scanWindow(r.tx.q.QueryRow(ctx,
		`SELECT `+windowColumns+` FROM windows WHERE id = $1`, id))
}

func (r *pgWindows) ListBySpace(ctx context.Context, spaceID int64) ([]Window, error) {
	return r.list(ctx,
		`SELECT `+windowColumns+` FROM windows WHERE space_id = $1 ORDER BY start_date, id`, spaceID)
}

func (r *pgWindows) ListAll(ctx context.Context) ([]Window, error) {
	return r.list(ctx,
		`SELECT `+windowColumns+` FROM windows ORDER BY start_date, id`)
}

func (r *pgWindows) ListClaimedBy(ctx context.Context, principalID int64) ([]Window, error) {
	return r.list(ctx,
		`SELECT `+windowColumns+` FROM windows WHERE claimant_id = $1 ORDER BY start_date, id`, principalID)
}

func (r *pgWindows) list(ctx context.Context, query string, args ...any) ([]Window, error) {
	rows, err := r.tx.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close()

	var out []Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func (r *pgWindows) SetClaimant(ctx context.Context, id uuid.UUID, version int64, claimantID *int64) (*Window, error) {
	w, err := scanWindow(r.tx.q.QueryRow(ctx,
		`UPDATE windows SET claimant_id = $3, version = version + 1
		 WHERE id = $1 AND version = $2
		 RETURNING `+windowColumns, id, version, claimantID))
	if errors.Is(err, ErrNotFound) {
		return nil, r.missOrStale(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	r.tx.record(CollectionWindows, OpUpdated, id.String())
	return w, nil
}

func (r *pgWindows) Delete(ctx context.Context, id uuid.UUID, version int64) error {
	tag, err := r.tx.q.Exec(ctx,
		`DELETE FROM windows WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrStale(ctx, id)
	}
	r.tx.record(CollectionWindows, OpDeleted, id.String())
	return nil
}

// missOrStale distinguishes a vanished window from a version conflict after
// a guarded write matched zero rows.
func (r *pgWindows) missOrStale(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.tx.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM windows WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check window: %w", err)
	}
	if exists {
		return ErrVersionMismatch
	}
	return ErrNotFound
}

func (r *pgWindows) DeleteExpired(ctx context.Context, before civil.Date) (int64, error) {
	rows, err := r.tx.q.Query(ctx,
		`DELETE FROM windows WHERE claimant_id IS NULL AND end_date < $1 RETURNING id`,
		fromDate(before))
	if err != nil {
		return 0, fmt.Errorf("delete expired windows: %w", err)
	}
	defer rows.Close()

	var n int64
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return n, fmt.Errorf("scan expired window: %w", err)
		}
		r.tx.record(CollectionWindows, OpDeleted, id.String())
		n++
	}
	return n, rows.Err()
}

// pgPrincipals

type pgPrincipals struct{ tx *pgTx }

func (r *pgPrincipals) UpsertBySubject(ctx context.Context, subject, displayName string) (*Principal, error) {
	var p Principal
	var inserted bool
	// The first principal ever registered becomes the admin.
	err := r.tx.q.QueryRow(ctx,
		`INSERT INTO principals (subject, display_name, role)
		 SELECT $1, $2, CASE WHEN EXISTS (SELECT 1 FROM principals) THEN 'member' ELSE 'admin' END
		 ON CONFLICT (subject) DO UPDATE
		   SET display_name = EXCLUDED.display_name, last_login_at = now()
		 RETURNING id, subject, display_name, role, created_at, last_login_at, (xmax = 0)`,
		subject, displayName,
	).Scan(&p.ID, &p.Subject, &p.DisplayName, &p.Role, &p.CreatedAt, &p.LastLoginAt, &inserted)
	if err != nil {
		return nil, fmt.Errorf("upsert principal: %w", err)
	}
	if inserted {
		r.tx.record(CollectionPrincipals, OpCreated, formatID(p.ID))
	} else {
		r.tx.record(CollectionPrincipals, OpUpdated, formatID(p.ID))
	}
	return &p, nil
}

func (r *pgPrincipals) Get(ctx context.Context, id int64) (*Principal, error) {
	var p Principal
	err := r.tx.q.QueryRow(ctx,
		`SELECT id, subject, display_name, role, created_at, last_login_at
		 FROM principals WHERE id = $1`, id,
	).Scan(&p.ID, &p.Subject, &p.DisplayName, &p.Role, &p.CreatedAt, &p.LastLoginAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return &p, nil
}

func (r *pgPrincipals) List(ctx context.Context) ([]Principal, error) {
	rows, err := r.tx.q.Query(ctx,
		`SELECT id, subject, display_name, role, created_at, last_login_at
		 FROM principals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list principals: %w", err)
	}
	defer rows.Close()

	var out []Principal
	for rows.Next() {
		var p Principal
		if err := rows.Scan(&p.ID, &p.Subject, &p.DisplayName, &p.Role, &p.CreatedAt, &p.LastLoginAt); err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// pgTokens

type pgTokens struct{ tx *pgTx }

func (r *pgTokens) Create(ctx context.Context, t APIToken) (*APIToken, error) {
	err := r.tx.q.QueryRow(ctx,
		`INSERT INTO api_tokens (principal_id, label, secret_hash)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		t.PrincipalID, t.Label, t.SecretHash,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create api token: %w", err)
	}
	return &t, nil
}

func (r *pgTokens) Get(ctx context.Context, id int64) (*APIToken, error) {
	var t APIToken
	err := r.tx.q.QueryRow(ctx,
		`SELECT id, principal_id, label, secret_hash, created_at, revoked_at
		 FROM api_tokens WHERE id = $1`, id,
	).Scan(&t.ID, &t.PrincipalID, &t.Label, &t.SecretHash, &t.CreatedAt, &t.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api token: %w", err)
	}
	return &t, nil
}

func (r *pgTokens) ListByPrincipal(ctx context.Context, principalID int64) ([]APIToken, error) {
	rows, err := r.tx.q.Query(ctx,
		`SELECT id, principal_id, label, secret_hash, created_at, revoked_at
		 FROM api_tokens WHERE principal_id = $1 ORDER BY id`, principalID)
	if err != nil {
		return nil, fmt.Errorf("list api tokens: %w", err)
	}
	defer rows.Close()

	var out []APIToken
	for rows.Next() {
		var t APIToken
		if err := rows.Scan(&t.ID, &t.PrincipalID, &t.Label, &t.SecretHash, &t.CreatedAt, &t.RevokedAt); err != nil {
			return nil, fmt.Errorf("scan api token: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *pgTokens) Revoke(ctx context.Context, id int64) error {
	tag, err := r.tx.q.Exec(ctx,
		`UPDATE api_tokens SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already revoked or missing; confirm which.
		var exists bool
		if err := r.tx.q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM api_tokens WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check api token: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}
