package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/module"
)

type dbContentItem struct {
	ID        string          `db:"id"`
	ModuleID  string          `db:"module_id"`
	Position  int             `db:"position"`
	Kind      null.String     `db:"kind"`
	Payload   json.RawMessage `db:"payload"`
	CreatedAt null.Time       `db:"created_at"`
	UpdatedAt null.Time       `db:"updated_at"`
}

const contentItemCols = `id, module_id, position, kind, payload, created_at, updated_at`

func (repo moduleRepository) packItem(item module.ContentItem) dbContentItem {
	return dbContentItem{
		ID:        item.ID,
		ModuleID:  item.ModuleID,
		Position:  item.Position,
		Kind:      null.NewString(item.Kind, item.Kind != ""),
		Payload:   item.Payload,
		CreatedAt: null.NewTime(item.CreatedAt.UTC(), !item.CreatedAt.IsZero()),
		UpdatedAt: null.NewTime(item.UpdatedAt.UTC(), !item.UpdatedAt.IsZero()),
	}
}

func (repo moduleRepository) unpackItem(i dbContentItem) module.ContentItem {
	return module.ContentItem{
		ID:        i.ID,
		ModuleID:  i.ModuleID,
		Position:  i.Position,
		Kind:      i.Kind.String,
		Payload:   i.Payload,
		CreatedAt: i.CreatedAt.Time,
		UpdatedAt: i.UpdatedAt.Time,
	}
}

func (repo moduleRepository) unpackItemSlice(rows []dbContentItem) []module.ContentItem {
	items := make([]module.ContentItem, 0, len(rows))
	for _, i := range rows {
		items = append(items, repo.unpackItem(i))
	}
	return items
}

func (repo moduleRepository) trapNoItemErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return module.ErrItemNotFound
	}
	return errors.Wrap(err, msg)
}

// CreateContentItem appends the item at the end of its module's sequence.
func (repo moduleRepository) CreateContentItem(ctx context.Context, item module.ContentItem, exec ...core.DBExecutor) (module.ContentItem, error) {
	item.ID = uuid.New().String()
	i := repo.packItem(item)

	query := `
		INSERT INTO content_item (` + contentItemCols + `)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM content_item WHERE module_id = $2), $3, $4, $5, $6)
		RETURNING position`
	row := ext(repo.db, exec).QueryRowxContext(ctx, query, i.ID, i.ModuleID, i.Kind, i.Payload, i.CreatedAt, i.UpdatedAt)
	if err := row.Scan(&i.Position); err != nil {
		return module.ContentItem{}, errors.Wrap(err, "inserting content item")
	}
	return repo.unpackItem(i), nil
}

func (repo moduleRepository) GetContentItemByID(ctx context.Context, id string, exec ...core.DBExecutor) (module.ContentItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return module.ContentItem{}, module.ErrItemNotFound
	}

	var i dbContentItem
	query := `SELECT ` + contentItemCols + ` FROM content_item WHERE id = $1`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &i, query, id); err != nil {
		return module.ContentItem{}, repo.trapNoItemErr(err, "finding content item by ID")
	}
	return repo.unpackItem(i), nil
}

func (repo moduleRepository) QueryContentItems(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]module.ContentItem, error) {
	exe := ext(repo.db, exec)

	query := `SELECT ` + contentItemCols + ` FROM content_item WHERE module_id = $1 ORDER BY position ASC`
	var rows []dbContentItem
	if err := sqlx.SelectContext(ctx, exe, &rows, query, moduleID); err != nil {
		return nil, errors.Wrap(err, "querying content items")
	}
	return repo.unpackItemSlice(rows), nil
}

func (repo moduleRepository) CountContentItems(ctx context.Context, moduleID string, exec ...core.DBExecutor) (int, error) {
	var cnt int
	query := `SELECT COUNT(*) FROM content_item WHERE module_id = $1`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &cnt, query, moduleID); err != nil {
		return 0, errors.Wrap(err, "counting content items")
	}
	return cnt, nil
}

func (repo moduleRepository) UpdateContentItem(ctx context.Context, item module.ContentItem, exec ...core.DBExecutor) (module.ContentItem, error) {
	exe := ext(repo.db, exec)
	i := repo.packItem(item)

	query := `
		UPDATE content_item
		SET kind       = COALESCE($2, kind),
		    payload    = COALESCE($3, payload),
		    updated_at = COALESCE($4, updated_at)
		WHERE id = $1`
	res, err := exe.ExecContext(ctx, query, i.ID, i.Kind, i.Payload, i.UpdatedAt)
	if err != nil {
		return module.ContentItem{}, errors.Wrap(err, "updating content item")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return module.ContentItem{}, module.ErrItemNotFound
	}

	return repo.GetContentItemByID(ctx, item.ID, exec...)
}

func (repo moduleRepository) DeleteContentItemsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	exe := ext(repo.db, exec)

	query, args, err := sqlx.In(`DELETE FROM content_item WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building content item delete query")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting content items")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}

// ReorderContentItems rewrites the module's positions 1..n following the
// given id order, in one transaction. The position uniqueness constraint is
// deferred so intermediate states may collide.
func (repo moduleRepository) ReorderContentItems(ctx context.Context, moduleID string, ids []string, exec ...core.DBExecutor) ([]module.ContentItem, error) {
	reorder := func(exe sqlx.ExtContext) error {
		query := `UPDATE content_item SET position = $3, updated_at = NOW() WHERE id = $1 AND module_id = $2`
		for pos, id := range ids {
			res, err := exe.ExecContext(ctx, query, id, moduleID, pos+1)
			if err != nil {
				return errors.Wrap(err, "repositioning content item")
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return module.ErrItemNotFound
			}
		}
		return nil
	}

	if len(exec) > 0 {
		// caller runs its own transaction
		if err := reorder(ext(repo.db, exec)); err != nil {
			return nil, err
		}
		return repo.QueryContentItems(ctx, moduleID, exec...)
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "starting reorder transaction")
	}
	if err = reorder(tx); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing reorder transaction")
	}

	return repo.QueryContentItems(ctx, moduleID)
}
