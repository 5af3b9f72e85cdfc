package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound = errors.New("course not found")
	ErrNotOwned = errors.New("course does not belong to this teacher")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		QueryCoursesByTeacher(ctx context.Context, teacherID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
		GetCourseByID(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		DeleteCoursesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, teacherID string, nc NewCourse) (Course, error)
		QueryByTeacher(ctx context.Context, teacherID string) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		// GetOwned fetches a course and checks it belongs to teacherID;
		// ErrNotOwned is returned otherwise.
		GetOwned(ctx context.Context, id, teacherID string) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		db   core.DB
		repo Repository
		conf *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, conf *core.Config) *service {
	return &service{
		db:   db,
		repo: repo,
		conf: conf,
	}
}

func (svc *service) Create(ctx context.Context, teacherID string, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Title:       nc.Title,
		Code:        nc.Code,
		Description: nc.Description,
		TeacherID:   teacherID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) QueryByTeacher(ctx context.Context, teacherID string) ([]Course, error) {
	ordering := []core.DBOrdering{{Field: "created_at"}}
	return svc.repo.QueryCoursesByTeacher(ctx, teacherID, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *service) GetOwned(ctx context.Context, id, teacherID string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !crs.IsOwnedBy(teacherID) {
		return Course{}, ErrNotOwned
	}
	return crs, nil
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs := Course{
		ID:          id,
		Title:       uc.Title,
		Code:        uc.Code,
		Description: uc.Description,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteCoursesByID(ctx, ids)
	return err
}
