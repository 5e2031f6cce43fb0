package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/darasa-app/darasa/core"
	"github.com/darasa-app/darasa/core/content"
)

type contentRepository struct {
	db *sqlx.DB
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *sql.DB) *contentRepository {
	return &contentRepository{db: sqlx.NewDb(db, "postgres")}
}

// row models

type versionRow struct {
	ID            string    `db:"id"`
	LessonID      string    `db:"lesson_id"`
	Status        string    `db:"status"`
	VersionNumber int       `db:"version_number"`
	Revision      int       `db:"revision"`
	Layout        null.JSON `db:"layout"`
	Metadata      null.JSON `db:"metadata"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type blockRow struct {
	ID         string    `db:"id"`
	VersionID  string    `db:"lesson_version_id"`
	SlotID     string    `db:"slot_id"`
	OrderIndex int       `db:"order_index"`
	Kind       string    `db:"kind"`
	Payload    []byte    `db:"payload"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type assetRow struct {
	ID        string      `db:"id"`
	LessonID  string      `db:"lesson_id"`
	VersionID null.String `db:"lesson_version_id"`
	URI       string      `db:"uri"`
	Kind      string      `db:"kind"`
	Metadata  null.JSON   `db:"metadata"`
	CreatedAt time.Time   `db:"created_at"`
}

func (row versionRow) unmarshal() (content.LessonVersion, error) {
	v := content.LessonVersion{
		ID:            row.ID,
		LessonID:      row.LessonID,
		Status:        content.VersionStatus(row.Status),
		VersionNumber: row.VersionNumber,
		Revision:      row.Revision,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.Layout.Valid {
		var layout content.Layout
		if err := json.Unmarshal(row.Layout.JSON, &layout); err != nil {
			return content.LessonVersion{}, errors.Wrap(err, "unmarshalling layout")
		}
		v.Layout = &layout
	}
	if row.Metadata.Valid {
		if err := json.Unmarshal(row.Metadata.JSON, &v.Metadata); err != nil {
			return content.LessonVersion{}, errors.Wrap(err, "unmarshalling version metadata")
		}
	}
	return v, nil
}

func marshalVersion(v content.LessonVersion) (versionRow, error) {
	row := versionRow{
		ID:            v.ID,
		LessonID:      v.LessonID,
		Status:        string(v.Status),
		VersionNumber: v.VersionNumber,
		Revision:      v.Revision,
		CreatedAt:     v.CreatedAt.UTC(),
		UpdatedAt:     v.UpdatedAt.UTC(),
	}
	if v.Layout != nil {
		data, err := json.Marshal(v.Layout)
		if err != nil {
			return versionRow{}, errors.Wrap(err, "marshalling layout")
		}
		row.Layout = null.JSONFrom(data)
	}
	if v.Metadata != nil {
		data, err := json.Marshal(v.Metadata)
		if err != nil {
			return versionRow{}, errors.Wrap(err, "marshalling version metadata")
		}
		row.Metadata = null.JSONFrom(data)
	}
	return row, nil
}

func (row blockRow) unmarshal() (content.Block, error) {
	payload, err := content.DecodePayload(content.BlockKind(row.Kind), row.Payload)
	if err != nil {
		return content.Block{}, errors.Wrapf(err, "decoding payload of block %s", row.ID)
	}
	return content.Block{
		ID:         row.ID,
		VersionID:  row.VersionID,
		SlotID:     row.SlotID,
		OrderIndex: row.OrderIndex,
		Kind:       content.BlockKind(row.Kind),
		Payload:    payload,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

func (row assetRow) unmarshal() (content.Asset, error) {
	a := content.Asset{
		ID:        row.ID,
		LessonID:  row.LessonID,
		VersionID: row.VersionID.Ptr(),
		URI:       row.URI,
		Kind:      content.AssetKind(row.Kind),
		CreatedAt: row.CreatedAt,
	}
	if row.Metadata.Valid {
		if err := json.Unmarshal(row.Metadata.JSON, &a.Metadata); err != nil {
			return content.Asset{}, errors.Wrap(err, "unmarshalling asset metadata")
		}
	}
	return a, nil
}

// trapNoRowsErr maps psql "no rows" err to content.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return content.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapUniqueErr maps a unique-constraint violation to content.ErrConflict:
// the partial unique indexes on lesson_version are the storage-level
// enforcement of the one-draft/one-published invariant.
func trapUniqueErr(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == "23505" {
		return errors.Wrap(content.ErrConflict, pqErr.Constraint)
	}
	return errors.Wrap(err, msg)
}

func (repo contentRepository) GetVersionByID(ctx context.Context, id string) (content.LessonVersion, error) {
	var row versionRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM lesson_version WHERE id = $1`, id)
	if err != nil {
		return content.LessonVersion{}, trapNoRowsErr(err, "getting version")
	}
	return row.unmarshal()
}

func (repo contentRepository) GetLessonVersion(ctx context.Context, lessonID string, status content.VersionStatus) (content.LessonVersion, error) {
	var row versionRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT * FROM lesson_version WHERE lesson_id = $1 AND status = $2`, lessonID, string(status))
	if err != nil {
		return content.LessonVersion{}, trapNoRowsErr(err, "getting lesson version")
	}
	return row.unmarshal()
}

func (repo contentRepository) MaxVersionNumber(ctx context.Context, lessonID string) (int, error) {
	var max int
	err := repo.db.GetContext(ctx, &max,
		`SELECT COALESCE(MAX(version_number), 0) FROM lesson_version WHERE lesson_id = $1`, lessonID)
	if err != nil {
		return 0, errors.Wrap(err, "getting max version number")
	}
	return max, nil
}

func (repo contentRepository) GetBlockByID(ctx context.Context, id string) (content.Block, error) {
	var row blockRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM lesson_block WHERE id = $1`, id)
	if err != nil {
		return content.Block{}, trapNoRowsErr(err, "getting block")
	}
	return row.unmarshal()
}

func (repo contentRepository) QueryVersionBlocks(ctx context.Context, versionID string) ([]content.Block, error) {
	var rows []blockRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT * FROM lesson_block WHERE lesson_version_id = $1 ORDER BY slot_id, order_index`, versionID)
	if err != nil {
		return nil, errors.Wrap(err, "querying version blocks")
	}
	blocks := make([]content.Block, 0, len(rows))
	for _, row := range rows {
		blk, err := row.unmarshal()
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, blk)
	}
	return blocks, nil
}

// assetOrderings whitelists the sortable lesson_asset columns.
var assetOrderings = map[string]string{
	"created_at": "created_at",
	"uri":        "uri",
	"kind":       "kind",
}

func (repo contentRepository) QueryAssets(ctx context.Context, lessonID string, versionID *string, ordering []core.DBOrdering) ([]content.Asset, error) {
	query := `SELECT * FROM lesson_asset WHERE lesson_id = $1 AND lesson_version_id IS NULL`
	args := []interface{}{lessonID}
	if versionID != nil {
		query = `SELECT * FROM lesson_asset WHERE lesson_id = $1 AND lesson_version_id = $2`
		args = append(args, *versionID)
	}

	orderBy := " ORDER BY created_at ASC"
	if len(ordering) > 0 {
		if col, ok := assetOrderings[ordering[0].Field]; ok {
			ord := ordering[0]
			ord.Field = col
			orderBy = " ORDER BY " + ord.String()
		}
	}

	var rows []assetRow
	if err := repo.db.SelectContext(ctx, &rows, query+orderBy, args...); err != nil {
		return nil, errors.Wrap(err, "querying assets")
	}
	assets := make([]content.Asset, 0, len(rows))
	for _, row := range rows {
		a, err := row.unmarshal()
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// Apply commits the ChangeSet in a single transaction. Revision guards take
// row locks up front; the deferred unique constraint on block ordering and
// the partial unique indexes on version status make a partially applied
// mutation impossible to commit.
func (repo contentRepository) Apply(ctx context.Context, cs content.ChangeSet) error {
	return core.Atomic(ctx, repo.db, func(tx core.DBTransactor) error {
		for _, g := range cs.Guards {
			var revision int
			err := tx.QueryRowContext(ctx,
				`SELECT revision FROM lesson_version WHERE id = $1 FOR UPDATE`, g.VersionID,
			).Scan(&revision)
			if err != nil {
				if err == sql.ErrNoRows {
					return errors.Wrapf(content.ErrConflict, "guarded version %q is gone", g.VersionID)
				}
				return errors.Wrap(err, "locking guarded version")
			}
			if revision != g.Revision {
				return errors.Wrapf(content.ErrConflict, "revision %d, now at %d", g.Revision, revision)
			}
		}

		if len(cs.DeleteBlockIDs) > 0 {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM lesson_block WHERE id = ANY($1)`, pq.Array(cs.DeleteBlockIDs)); err != nil {
				return errors.Wrap(err, "deleting blocks")
			}
		}

		for _, put := range cs.PutVersions {
			row, err := marshalVersion(put)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO lesson_version (id, lesson_id, status, version_number, revision, layout, metadata, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO UPDATE SET
					status = EXCLUDED.status,
					version_number = EXCLUDED.version_number,
					revision = EXCLUDED.revision,
					layout = EXCLUDED.layout,
					metadata = EXCLUDED.metadata,
					updated_at = EXCLUDED.updated_at`,
				row.ID, row.LessonID, row.Status, row.VersionNumber, row.Revision,
				row.Layout, row.Metadata, row.CreatedAt, row.UpdatedAt,
			); err != nil {
				return trapUniqueErr(err, "putting version")
			}
		}

		for _, put := range cs.PutBlocks {
			payload, err := content.EncodePayload(put.Payload)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO lesson_block (id, lesson_version_id, slot_id, order_index, kind, payload, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (id) DO UPDATE SET
					slot_id = EXCLUDED.slot_id,
					order_index = EXCLUDED.order_index,
					kind = EXCLUDED.kind,
					payload = EXCLUDED.payload,
					updated_at = EXCLUDED.updated_at`,
				put.ID, put.VersionID, put.SlotID, put.OrderIndex, string(put.Kind),
				payload, put.CreatedAt.UTC(), put.UpdatedAt.UTC(),
			); err != nil {
				return trapUniqueErr(err, "putting block")
			}
		}

		for _, put := range cs.PutAssets {
			row := assetRow{
				ID:        put.ID,
				LessonID:  put.LessonID,
				VersionID: null.StringFromPtr(put.VersionID),
				URI:       put.URI,
				Kind:      string(put.Kind),
				CreatedAt: put.CreatedAt.UTC(),
			}
			if put.Metadata != nil {
				data, err := json.Marshal(put.Metadata)
				if err != nil {
					return errors.Wrap(err, "marshalling asset metadata")
				}
				row.Metadata = null.JSONFrom(data)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO lesson_asset (id, lesson_id, lesson_version_id, uri, kind, metadata, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					uri = EXCLUDED.uri,
					kind = EXCLUDED.kind,
					metadata = EXCLUDED.metadata`,
				row.ID, row.LessonID, row.VersionID, row.URI, row.Kind, row.Metadata, row.CreatedAt,
			); err != nil {
				return trapUniqueErr(err, "putting asset")
			}
		}
		return nil
	})
}
