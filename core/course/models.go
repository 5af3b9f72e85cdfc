package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	TeacherID   string    `json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

func (c *Course) IsOwnedBy(userID string) bool {
	return c.TeacherID != "" && c.TeacherID == userID
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required"`
	Code        string `json:"code" validate:"omitempty,alphanum_"`
	Description string `json:"description"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title       string `json:"title"`
	Code        string `json:"code" validate:"omitempty,alphanum_"`
	Description string `json:"description"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	if title := core.CleanString(uc.Title); title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	if code := core.CleanString(uc.Code, true /* lower */); code != "" {
		uc.Code = code
	} else {
		uc.Code = orig.Code
	}
	uc.Description = core.CleanString(uc.Description)
	return validate.Struct(uc)
}
