package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

type dbCourse struct {
	ID          string      `db:"id"`
	Title       null.String `db:"title"`
	Code        null.String `db:"code"`
	Description null.String `db:"description"`
	TeacherID   null.String `db:"teacher_id"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

const courseCols = `id, title, code, description, teacher_id, created_at, updated_at`

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) pack(crs course.Course) dbCourse {
	return dbCourse{
		ID:          crs.ID,
		Title:       null.NewString(crs.Title, crs.Title != ""),
		Code:        null.NewString(crs.Code, crs.Code != ""),
		Description: null.NewString(crs.Description, crs.Description != ""),
		TeacherID:   null.NewString(crs.TeacherID, crs.TeacherID != ""),
		CreatedAt:   null.NewTime(crs.CreatedAt.UTC(), !crs.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(crs.UpdatedAt.UTC(), !crs.UpdatedAt.IsZero()),
	}
}

func (repo courseRepository) unpack(c dbCourse) course.Course {
	return course.Course{
		ID:          c.ID,
		Title:       c.Title.String,
		Code:        c.Code.String,
		Description: c.Description.String,
		TeacherID:   c.TeacherID.String,
		CreatedAt:   c.CreatedAt.Time,
		UpdatedAt:   c.UpdatedAt.Time,
	}
}

func (repo courseRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return course.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.ID = uuid.New().String()
	c := repo.pack(crs)

	query := `INSERT INTO course (` + courseCols + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := ext(repo.db, exec).ExecContext(
		ctx, query,
		c.ID, c.Title, c.Code, c.Description, c.TeacherID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return repo.unpack(c), nil
}

func (repo courseRepository) QueryCoursesByTeacher(ctx context.Context, teacherID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	exe := ext(repo.db, exec)

	query := `SELECT ` + courseCols + ` FROM course WHERE teacher_id = $1` + orderBy(ordering)
	var rows []dbCourse
	if err := sqlx.SelectContext(ctx, exe, &rows, query, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}

	courses := make([]course.Course, 0, len(rows))
	for _, c := range rows {
		courses = append(courses, repo.unpack(c))
	}
	return courses, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Course{}, course.ErrNotFound
	}

	var c dbCourse
	query := `SELECT ` + courseCols + ` FROM course WHERE id = $1`
	if err := sqlx.GetContext(ctx, ext(repo.db, exec), &c, query, id); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, "finding course by ID")
	}
	return repo.unpack(c), nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	exe := ext(repo.db, exec)
	c := repo.pack(crs)

	query := `
		UPDATE course
		SET title       = COALESCE($2, title),
		    code        = COALESCE($3, code),
		    description = COALESCE($4, description),
		    updated_at  = COALESCE($5, updated_at)
		WHERE id = $1`
	res, err := exe.ExecContext(ctx, query, c.ID, c.Title, c.Code, c.Description, c.UpdatedAt)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}

	return repo.GetCourseByID(ctx, crs.ID, exec...)
}

func (repo courseRepository) DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	exe := ext(repo.db, exec)

	query, args, err := sqlx.In(`DELETE FROM course WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building course delete query")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting courses")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}
