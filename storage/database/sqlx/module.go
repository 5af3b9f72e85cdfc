package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/module"
)

type dbModule struct {
	ID              string      `db:"id"`
	CourseID        string      `db:"course_id"`
	Title           null.String `db:"title"`
	Description     null.String `db:"description"`
	Deadline        null.Time   `db:"deadline"`
	PublishAt       null.Time   `db:"publish_at"`
	DurationMinutes null.Int    `db:"duration_minutes"`
	Thumbnail       null.String `db:"thumbnail"`
	IsPublished     bool        `db:"is_published"`
	Version         int         `db:"version"`
	CreatedAt       null.Time   `db:"created_at"`
	UpdatedAt       null.Time   `db:"updated_at"`
}

const moduleCols = `id, course_id, title, description, deadline, publish_at, duration_minutes, thumbnail, is_published, version, created_at, updated_at`

type moduleRepository struct {
	db *sqlx.DB
}

var _ module.Repository = (*moduleRepository)(nil) // interface compliance check

func NewModuleRepository(db *sqlx.DB) *moduleRepository {
	return &moduleRepository{db: db}
}

func (repo moduleRepository) pack(mod module.Module) dbModule {
	m := dbModule{
		ID:          mod.ID,
		CourseID:    mod.CourseID,
		Title:       null.NewString(mod.Title, mod.Title != ""),
		Description: null.NewString(mod.Description, mod.Description != ""),
		Deadline:    null.NewTime(mod.Deadline.UTC(), !mod.Deadline.IsZero()),
		Thumbnail:   null.StringFrom(mod.Thumbnail),
		IsPublished: mod.IsPublished,
		Version:     mod.Version,
		CreatedAt:   null.NewTime(mod.CreatedAt.UTC(), !mod.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(mod.UpdatedAt.UTC(), !mod.UpdatedAt.IsZero()),
	}
	if mod.PublishAt != nil {
		m.PublishAt = null.TimeFrom(mod.PublishAt.UTC())
	}
	if mod.DurationMinutes != nil {
		m.DurationMinutes = null.IntFrom(*mod.DurationMinutes)
	}
	return m
}

func (repo moduleRepository) unpack(m dbModule) module.Module {
	mod := module.Module{
		ID:          m.ID,
		CourseID:    m.CourseID,
		Title:       m.Title.String,
		Description: m.Description.String,
		Deadline:    m.Deadline.Time,
		Thumbnail:   m.Thumbnail.String,
		IsPublished: m.IsPublished,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt.Time,
		UpdatedAt:   m.UpdatedAt.Time,
	}
	if m.PublishAt.Valid {
		t := m.PublishAt.Time
		mod.PublishAt = &t
	}
	if m.DurationMinutes.Valid {
		d := m.DurationMinutes.Int
		mod.DurationMinutes = &d
	}
	return mod
}

func (repo moduleRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return module.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo moduleRepository) CreateModule(ctx context.Context, mod module.Module, exec ...core.DBExecutor) (module.Module, error) {
	mod.ID = uuid.New().String()
	mod.Version = 1
	m := repo.pack(mod)

	query := `INSERT INTO module (` + moduleCols + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := ext(repo.db, exec).ExecContext(
		ctx, query,
		m.ID, m.CourseID, m.Title, m.Description, m.Deadline, m.PublishAt, m.DurationMinutes,
		m.Thumbnail, m.IsPublished, m.Version, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return module.Module{}, errors.Wrap(err, "inserting module")
	}
	return repo.unpack(m), nil
}

func (repo moduleRepository) GetModuleByID(ctx context.Context, id string, exec ...core.DBExecutor) (module.Module, error) {
	if _, err := uuid.Parse(id); err != nil {
		return module.Module{}, module.ErrNotFound
	}

	var m dbModule
	query := `SELECT ` + moduleCols + ` FROM module WHERE id = $1`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &m, query, id); err != nil {
		return module.Module{}, repo.trapNoRowsErr(err, "finding module by ID")
	}
	return repo.unpack(m), nil
}

func (repo moduleRepository) QueryModulesByCourse(ctx context.Context, courseID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]module.Module, error) {
	exe := ext(repo.db, exec)

	query := `SELECT ` + moduleCols + ` FROM module WHERE course_id = $1` + orderBy(ordering)
	var rows []dbModule
	if err := sqlx.SelectContext(ctx, exe, &rows, query, courseID); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}

	mods := make([]module.Module, 0, len(rows))
	for _, m := range rows {
		mods = append(mods, repo.unpack(m))
	}
	return mods, nil
}

// UpdateModule overwrites the stored row only when mod.Version still matches
// it. A mismatch means another session saved first; core.ErrConflict is
// returned and nothing is written.
func (repo moduleRepository) UpdateModule(ctx context.Context, mod module.Module, exec ...core.DBExecutor) (module.Module, error) {
	exe := ext(repo.db, exec)
	m := repo.pack(mod)

	query := `
		UPDATE module
		SET course_id        = $2,
		    title            = $3,
		    description      = $4,
		    deadline         = $5,
		    publish_at       = $6,
		    duration_minutes = $7,
		    thumbnail        = $8,
		    is_published     = $9,
		    updated_at       = $10,
		    version          = version + 1
		WHERE id = $1 AND version = $11`
	res, err := exe.ExecContext(
		ctx, query,
		m.ID, m.CourseID, m.Title, m.Description, m.Deadline, m.PublishAt, m.DurationMinutes,
		m.Thumbnail, m.IsPublished, m.UpdatedAt, m.Version,
	)
	if err != nil {
		return module.Module{}, errors.Wrap(err, "updating module")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if err = sqlx.GetContext(ctx, exe, &exists, `SELECT EXISTS (SELECT 1 FROM module WHERE id = $1)`, m.ID); err != nil {
			return module.Module{}, errors.Wrap(err, "updating module")
		}
		if exists {
			return module.Module{}, core.ErrConflict
		}
		return module.Module{}, module.ErrNotFound
	}

	return repo.GetModuleByID(ctx, mod.ID, exec...)
}

func (repo moduleRepository) SetModuleThumbnail(ctx context.Context, id, ref string, exec ...core.DBExecutor) (module.Module, error) {
	exe := ext(repo.db, exec)

	query := `UPDATE module SET thumbnail = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`
	res, err := exe.ExecContext(ctx, query, id, ref)
	if err != nil {
		return module.Module{}, errors.Wrap(err, "setting module thumbnail")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return module.Module{}, module.ErrNotFound
	}

	return repo.GetModuleByID(ctx, id, exec...)
}

func (repo moduleRepository) DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	exe := ext(repo.db, exec)

	query, args, err := sqlx.In(`DELETE FROM module WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building module delete query")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting modules")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}
