package module

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
)

// in-memory Repository fake for service/wizard tests

type fakeRepo struct {
	mu      sync.Mutex
	modules map[string]Module
	items   map[string]ContentItem

	failNextUpdate error // injected fault
}

var _ Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		modules: make(map[string]Module),
		items:   make(map[string]ContentItem),
	}
}

func (r *fakeRepo) CreateModule(_ context.Context, mod Module, _ ...core.DBExecutor) (Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mod.ID = uuid.New().String()
	mod.Version = 1
	r.modules[mod.ID] = mod
	return mod, nil
}

func (r *fakeRepo) GetModuleByID(_ context.Context, id string, _ ...core.DBExecutor) (Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mod, ok := r.modules[id]
	if !ok {
		return Module{}, ErrNotFound
	}
	return mod, nil
}

func (r *fakeRepo) QueryModulesByCourse(_ context.Context, courseID string, _ []core.DBOrdering, _ ...core.DBExecutor) ([]Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mods []Module
	for _, mod := range r.modules {
		if mod.CourseID == courseID {
			mods = append(mods, mod)
		}
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].CreatedAt.Before(mods[j].CreatedAt) })
	return mods, nil
}

func (r *fakeRepo) UpdateModule(_ context.Context, mod Module, _ ...core.DBExecutor) (Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNextUpdate != nil {
		err := r.failNextUpdate
		r.failNextUpdate = nil
		return Module{}, err
	}
	stored, ok := r.modules[mod.ID]
	if !ok {
		return Module{}, ErrNotFound
	}
	if mod.Version != stored.Version {
		return Module{}, core.ErrConflict
	}
	mod.Version = stored.Version + 1
	r.modules[mod.ID] = mod
	return mod, nil
}

func (r *fakeRepo) SetModuleThumbnail(_ context.Context, id, ref string, _ ...core.DBExecutor) (Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mod, ok := r.modules[id]
	if !ok {
		return Module{}, ErrNotFound
	}
	mod.Thumbnail = ref
	mod.Version++
	mod.UpdatedAt = time.Now().UTC()
	r.modules[id] = mod
	return mod, nil
}

func (r *fakeRepo) DeleteModulesByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cnt int
	for _, id := range ids {
		if _, ok := r.modules[id]; ok {
			delete(r.modules, id)
			cnt++
		}
	}
	return cnt, nil
}

func (r *fakeRepo) CreateContentItem(_ context.Context, item ContentItem, _ ...core.DBExecutor) (ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = uuid.New().String()
	var max int
	for _, it := range r.items {
		if it.ModuleID == item.ModuleID && it.Position > max {
			max = it.Position
		}
	}
	item.Position = max + 1
	r.items[item.ID] = item
	return item, nil
}

func (r *fakeRepo) GetContentItemByID(_ context.Context, id string, _ ...core.DBExecutor) (ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return ContentItem{}, ErrItemNotFound
	}
	return item, nil
}

func (r *fakeRepo) QueryContentItems(_ context.Context, moduleID string, _ ...core.DBExecutor) ([]ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []ContentItem
	for _, item := range r.items {
		if item.ModuleID == moduleID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

func (r *fakeRepo) CountContentItems(ctx context.Context, moduleID string, _ ...core.DBExecutor) (int, error) {
	items, _ := r.QueryContentItems(ctx, moduleID)
	return len(items), nil
}

func (r *fakeRepo) UpdateContentItem(_ context.Context, item ContentItem, _ ...core.DBExecutor) (ContentItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return ContentItem{}, ErrItemNotFound
	}
	r.items[item.ID] = item
	return item, nil
}

func (r *fakeRepo) DeleteContentItemsByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var cnt int
	for _, id := range ids {
		if _, ok := r.items[id]; ok {
			delete(r.items, id)
			cnt++
		}
	}
	return cnt, nil
}

func (r *fakeRepo) ReorderContentItems(ctx context.Context, moduleID string, ids []string, _ ...core.DBExecutor) ([]ContentItem, error) {
	r.mu.Lock()
	for pos, id := range ids {
		item, ok := r.items[id]
		if !ok || item.ModuleID != moduleID {
			r.mu.Unlock()
			return nil, ErrItemNotFound
		}
		item.Position = pos + 1
		r.items[id] = item
	}
	r.mu.Unlock()
	return r.QueryContentItems(ctx, moduleID)
}

// course service fake; only GetOwned matters to this package

type fakeCourseSvc struct {
	owners map[string]string // courseID -> teacherID
}

var _ course.ServiceInterface = (*fakeCourseSvc)(nil)

func (svc *fakeCourseSvc) GetOwned(_ context.Context, id, teacherID string) (course.Course, error) {
	owner, ok := svc.owners[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if owner != teacherID {
		return course.Course{}, course.ErrNotOwned
	}
	return course.Course{ID: id, TeacherID: owner}, nil
}

func (svc *fakeCourseSvc) Create(_ context.Context, teacherID string, nc course.NewCourse) (course.Course, error) {
	id := uuid.New().String()
	svc.owners[id] = teacherID
	return course.Course{ID: id, Title: nc.Title, TeacherID: teacherID}, nil
}

func (svc *fakeCourseSvc) QueryByTeacher(context.Context, string) ([]course.Course, error) {
	return nil, nil
}

func (svc *fakeCourseSvc) GetByID(_ context.Context, id string) (course.Course, error) {
	owner, ok := svc.owners[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	return course.Course{ID: id, TeacherID: owner}, nil
}

func (svc *fakeCourseSvc) Update(_ context.Context, id string, _ course.UpdateCourse) (course.Course, error) {
	return svc.GetByID(context.Background(), id)
}

func (svc *fakeCourseSvc) Delete(context.Context, ...string) error { return nil }

// mail mock

type mailRecorder struct {
	mu   sync.Mutex
	sent []core.EmailMessage
}

var _ core.EmailService = (*mailRecorder)(nil)

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		m.sent = append(m.sent, *msg)
	}
}

// silent logger

type nopLogger struct{}

var _ core.Logger = (*nopLogger)(nil)

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(msg string, _ ...interface{}) {
	panic(fmt.Sprintf("fatal: %s", msg))
}

func newTestValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate, translator
}
