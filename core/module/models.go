package module

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Content kinds
const (
	KindText           = "text"
	KindVideo          = "video"
	KindQuiz           = "quiz"
	KindOpenResponse   = "open_response"
	KindScaledResponse = "scaled_response"
	KindContext        = "context"
)

var AllKinds = []string{KindText, KindVideo, KindQuiz, KindOpenResponse, KindScaledResponse, KindContext}

// Module is a course unit authored through the creation wizard.
// A Module with no content items cannot be published.
type Module struct {
	ID              string     `json:"id"`
	CourseID        string     `json:"course_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Deadline        time.Time  `json:"deadline"`
	PublishAt       *time.Time `json:"publish_at,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	Thumbnail       string     `json:"thumbnail,omitempty"` // color token (#RRGGBB) or URL
	IsPublished     bool       `json:"is_published"`
	Version         int        `json:"version"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

// ContentItem is a single typed unit of instructional content (a slide).
// Positions are 1-based and contiguous within a module.
type ContentItem struct {
	ID        string          `json:"id"`
	ModuleID  string          `json:"module_id"`
	Position  int             `json:"position"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"` // kind-specific, opaque to the wizard
	CreatedAt time.Time       `json:"created_at"`        // UTC
	UpdatedAt time.Time       `json:"updated_at"`        // UTC
}

// Draft is the step-1 (and review) submission of the creation wizard.
// The same payload is persisted as an upsert on every submission;
// Version guards updates against concurrent edits.
//
// TODO: decide whether a PublishAt later than Deadline should be rejected;
// it is currently allowed.
type Draft struct {
	Title           string     `json:"title" validate:"required"`
	Description     string     `json:"description"`
	CourseID        string     `json:"course_id" validate:"required,uuid4"`
	Deadline        time.Time  `json:"deadline" validate:"required,future"`
	PublishAt       *time.Time `json:"publish_at"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gt=0"`
	Thumbnail       string     `json:"thumbnail" validate:"omitempty,thumbnailref"`
	Version         int        `json:"version"`
}

func (d *Draft) Validate(validate *validator.Validate) error {
	d.Title = core.CleanString(d.Title)
	d.Description = core.CleanString(d.Description)
	d.CourseID = core.CleanString(d.CourseID, true /* lower */)
	d.Thumbnail = core.CleanString(d.Thumbnail)
	return validate.Struct(d)
}

// NewContentItem contains information needed to create a new ContentItem.
// The new item is appended at the end of the module's sequence.
type NewContentItem struct {
	Kind    string          `json:"kind" validate:"required,contentkind"`
	Payload json.RawMessage `json:"payload" validate:"required,jsonobject"`
}

func (ni *NewContentItem) Validate(validate *validator.Validate) error {
	ni.Kind = core.CleanString(ni.Kind, true /* lower */)
	return validate.Struct(ni)
}

// UpdateContentItem defines what may be modified on an existing ContentItem.
// Position changes go through reordering, not through this payload.
type UpdateContentItem struct {
	Kind    string          `json:"kind" validate:"omitempty,contentkind"`
	Payload json.RawMessage `json:"payload" validate:"omitempty,jsonobject"`
}

func (ui *UpdateContentItem) Validate(orig ContentItem, validate *validator.Validate) error {
	if kind := core.CleanString(ui.Kind, true /* lower */); kind != "" {
		ui.Kind = kind
	} else {
		ui.Kind = orig.Kind
	}
	if ui.Payload == nil {
		ui.Payload = orig.Payload
	}
	return validate.Struct(ui)
}

// CanPublish is the publish gate: a module may only become published
// once it has at least one content item.
func CanPublish(contentItemCount int) bool {
	return contentItemCount >= 1
}
