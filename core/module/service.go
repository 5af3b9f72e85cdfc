package module

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("module not found")
	ErrItemNotFound = errors.New("content item not found")
	ErrNoContent    = errors.New("a module needs at least one content item before it can be published")
)

type (
	Repository interface {
		CreateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		GetModuleByID(ctx context.Context, id string, exec ...core.DBExecutor) (Module, error)
		QueryModulesByCourse(ctx context.Context, courseID string, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Module, error)
		// UpdateModule persists mod only when mod.Version matches the stored
		// row, then increments the stored version; core.ErrConflict otherwise.
		UpdateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		// SetModuleThumbnail partially updates the thumbnail reference.
		SetModuleThumbnail(ctx context.Context, id, ref string, exec ...core.DBExecutor) (Module, error)
		DeleteModulesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		CreateContentItem(ctx context.Context, item ContentItem, exec ...core.DBExecutor) (ContentItem, error)
		GetContentItemByID(ctx context.Context, id string, exec ...core.DBExecutor) (ContentItem, error)
		// QueryContentItems returns the module's items ordered by position, ascending.
		QueryContentItems(ctx context.Context, moduleID string, exec ...core.DBExecutor) ([]ContentItem, error)
		CountContentItems(ctx context.Context, moduleID string, exec ...core.DBExecutor) (int, error)
		UpdateContentItem(ctx context.Context, item ContentItem, exec ...core.DBExecutor) (ContentItem, error)
		DeleteContentItemsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
		// ReorderContentItems rewrites positions 1..n following the given id order.
		ReorderContentItems(ctx context.Context, moduleID string, ids []string, exec ...core.DBExecutor) ([]ContentItem, error)
	}

	ServiceInterface interface {
		GetByID(ctx context.Context, id string) (Module, error)
		// GetOwned fetches a module and re-checks that the acting teacher owns
		// its course; client-supplied identifiers are never trusted alone.
		GetOwned(ctx context.Context, id string, actor user.User) (Module, error)
		QueryByCourse(ctx context.Context, courseID string) ([]Module, error)
		// SaveDraft is the wizard's upsert: it creates the draft on the first
		// successful step-1 submission and updates it in place afterwards.
		SaveDraft(ctx context.Context, actor user.User, id string, data Draft) (Module, error)
		UpdateThumbnail(ctx context.Context, actor user.User, id, ref string) (Module, error)
		// Publish re-persists the full draft and marks it published; it
		// refuses with a field error when the live content count is zero.
		Publish(ctx context.Context, actor user.User, id string, data Draft) (Module, error)
		Delete(ctx context.Context, ids ...string) error

		QueryContentItems(ctx context.Context, moduleID string) ([]ContentItem, error)
		CountContentItems(ctx context.Context, moduleID string) (int, error)
		CreateContentItem(ctx context.Context, actor user.User, moduleID string, data NewContentItem) (ContentItem, error)
		UpdateContentItem(ctx context.Context, actor user.User, itemID string, data UpdateContentItem) (ContentItem, error)
		DeleteContentItem(ctx context.Context, actor user.User, itemID string) error
		ReorderContentItems(ctx context.Context, actor user.User, moduleID string, ids []string) ([]ContentItem, error)
	}

	service struct {
		db        core.DB
		repo      Repository
		courseSvc course.ServiceInterface
		mail      core.EmailService
		conf      *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(db core.DB, repo Repository, courseSvc course.ServiceInterface, mail core.EmailService, conf *core.Config) *service {
	return &service{
		db:        db,
		repo:      repo,
		courseSvc: courseSvc,
		mail:      mail,
		conf:      conf,
	}
}

func (svc *service) GetByID(ctx context.Context, id string) (Module, error) {
	return svc.repo.GetModuleByID(ctx, id)
}

func (svc *service) GetOwned(ctx context.Context, id string, actor user.User) (Module, error) {
	mod, err := svc.repo.GetModuleByID(ctx, id)
	if err != nil {
		return Module{}, err
	}
	if _, err = svc.courseSvc.GetOwned(ctx, mod.CourseID, actor.ID); err != nil {
		return Module{}, err
	}
	return mod, nil
}

func (svc *service) QueryByCourse(ctx context.Context, courseID string) ([]Module, error) {
	ordering := []core.DBOrdering{{Field: "created_at"}}
	return svc.repo.QueryModulesByCourse(ctx, courseID, ordering)
}

func (svc *service) SaveDraft(ctx context.Context, actor user.User, id string, data Draft) (Module, error) {
	// the referenced course must belong to the acting teacher
	if _, err := svc.courseSvc.GetOwned(ctx, data.CourseID, actor.ID); err != nil {
		return Module{}, err
	}

	now := time.Now().UTC()
	mod := Module{
		ID:              id,
		CourseID:        data.CourseID,
		Title:           data.Title,
		Description:     data.Description,
		Deadline:        data.Deadline.UTC(),
		PublishAt:       data.PublishAt,
		DurationMinutes: data.DurationMinutes,
		Thumbnail:       data.Thumbnail,
		Version:         data.Version,
		UpdatedAt:       now,
	}
	if id == "" {
		mod.CreatedAt = now
		return svc.repo.CreateModule(ctx, mod)
	}

	// keep the published flag as stored; publishing has its own path
	orig, err := svc.repo.GetModuleByID(ctx, id)
	if err != nil {
		return Module{}, err
	}
	mod.IsPublished = orig.IsPublished
	mod.CreatedAt = orig.CreatedAt
	return svc.repo.UpdateModule(ctx, mod)
}

func (svc *service) UpdateThumbnail(ctx context.Context, actor user.User, id, ref string) (Module, error) {
	if !core.IsThumbnailRef(ref) {
		return Module{}, core.NewValidationError(nil, core.FieldError{
			Field: "thumbnail", Error: "must be a color token (#RRGGBB) or an http(s) URL",
		})
	}
	if _, err := svc.GetOwned(ctx, id, actor); err != nil {
		return Module{}, err
	}
	return svc.repo.SetModuleThumbnail(ctx, id, ref)
}

func (svc *service) Publish(ctx context.Context, actor user.User, id string, data Draft) (Module, error) {
	cnt, err := svc.repo.CountContentItems(ctx, id)
	if err != nil {
		return Module{}, errors.Wrap(err, "counting content items")
	}
	if !CanPublish(cnt) {
		return Module{}, core.NewValidationError(ErrNoContent, core.FieldError{Field: "content", Error: ErrNoContent.Error()})
	}

	mod, err := svc.SaveDraft(ctx, actor, id, data)
	if err != nil {
		return Module{}, err
	}
	mod.IsPublished = true
	mod.UpdatedAt = time.Now().UTC()
	mod, err = svc.repo.UpdateModule(ctx, mod)
	if err != nil {
		return Module{}, err
	}

	svc.sendPublishedEmail(actor, mod)
	return mod, nil
}

func (svc *service) sendPublishedEmail(actor user.User, mod Module) {
	if actor.Email == "" {
		return
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: actor.Name, Address: actor.Email}},
		Subject: fmt.Sprintf("Module %q published", mod.Title),
		TextContent: fmt.Sprintf(
			"Your module %q is now published.\n\nView it at %s/courses/%s.",
			mod.Title, svc.conf.FrontendBaseURL, mod.CourseID,
		),
	})
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteModulesByID(ctx, ids)
	return err
}

// Content sub-editor operations; the wizard itself only reads the results.

func (svc *service) QueryContentItems(ctx context.Context, moduleID string) ([]ContentItem, error) {
	return svc.repo.QueryContentItems(ctx, moduleID)
}

func (svc *service) CountContentItems(ctx context.Context, moduleID string) (int, error) {
	return svc.repo.CountContentItems(ctx, moduleID)
}

func (svc *service) CreateContentItem(ctx context.Context, actor user.User, moduleID string, data NewContentItem) (ContentItem, error) {
	if _, err := svc.GetOwned(ctx, moduleID, actor); err != nil {
		return ContentItem{}, err
	}
	now := time.Now().UTC()
	item := ContentItem{
		ModuleID:  moduleID,
		Kind:      data.Kind,
		Payload:   data.Payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateContentItem(ctx, item)
}

func (svc *service) UpdateContentItem(ctx context.Context, actor user.User, itemID string, data UpdateContentItem) (ContentItem, error) {
	item, err := svc.repo.GetContentItemByID(ctx, itemID)
	if err != nil {
		return ContentItem{}, err
	}
	if _, err = svc.GetOwned(ctx, item.ModuleID, actor); err != nil {
		return ContentItem{}, err
	}
	if data.Kind != "" {
		item.Kind = data.Kind
	}
	if data.Payload != nil {
		item.Payload = data.Payload
	}
	item.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateContentItem(ctx, item)
}

func (svc *service) DeleteContentItem(ctx context.Context, actor user.User, itemID string) error {
	item, err := svc.repo.GetContentItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	if _, err = svc.GetOwned(ctx, item.ModuleID, actor); err != nil {
		return err
	}
	_, err = svc.repo.DeleteContentItemsByID(ctx, []string{itemID})
	return err
}

func (svc *service) ReorderContentItems(ctx context.Context, actor user.User, moduleID string, ids []string) ([]ContentItem, error) {
	if _, err := svc.GetOwned(ctx, moduleID, actor); err != nil {
		return nil, err
	}
	items, err := svc.repo.QueryContentItems(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(items) {
		return nil, core.NewValidationError(nil, core.FieldError{
			Field: "ids", Error: "reordering must list every content item of the module exactly once",
		})
	}
	known := make(map[string]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: "ids", Error: fmt.Sprintf("unknown content item: %s", id),
			})
		}
		delete(known, id) // trap duplicates
	}
	return svc.repo.ReorderContentItems(ctx, moduleID, ids)
}
