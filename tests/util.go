package testutil

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/module"
	"github.com/trezcool/darasa/core/user"
)

// DB is an in-memory stand-in for the real database so API and service
// tests run without postgres.
type DB struct {
	mu      sync.Mutex
	users   map[string]user.User
	courses map[string]course.Course
	modules map[string]module.Module
	items   map[string]module.ContentItem
}

func NewDB() *DB {
	return &DB{
		users:   make(map[string]user.User),
		courses: make(map[string]course.Course),
		modules: make(map[string]module.Module),
		items:   make(map[string]module.ContentItem),
	}
}

func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]user.User)
	db.courses = make(map[string]course.Course)
	db.modules = make(map[string]module.Module)
	db.items = make(map[string]module.ContentItem)
}

// User repository

type userRepository struct{ db *DB }

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository { return &userRepository{db: db} }

func (repo userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, u := range repo.db.users {
		if excluded[u.ID] {
			continue
		}
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			return user.ErrUserExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	match := func(u user.User) bool {
		if filter == nil {
			return true
		}
		if s := strings.ToLower(filter.Search); s != "" {
			if !(strings.Contains(strings.ToLower(u.Name), s) ||
				strings.Contains(strings.ToLower(u.Username), s) ||
				strings.Contains(strings.ToLower(u.Email), s)) {
				return false
			}
		}
		if len(filter.Roles) > 0 {
			var found bool
			for _, want := range filter.Roles {
				for _, role := range u.Roles {
					if strings.HasPrefix(role, want) {
						found = true
					}
				}
			}
			if !found {
				return false
			}
		}
		if filter.IsActive != nil {
			if u.IsActive == nil || *u.IsActive != *filter.IsActive {
				return false
			}
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
			return false
		}
		return true
	}

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if match(u) {
			users = append(users, u)
		}
	}
	sortUsers(users, ordering)
	return users, nil
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	ord := core.DBOrdering{Field: "created_at"}
	if len(ordering) > 0 {
		ord = ordering[0]
	}
	sort.SliceStable(users, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "name":
			less = users[i].Name < users[j].Name
		default:
			less = users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		if !ord.Ascending {
			return !less
		}
		return less
	})
}

func (repo userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if filter.ID != "" {
		if u, ok := repo.db.users[filter.ID]; ok {
			return u, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		switch {
		case filter.Username != "" && u.Username == filter.Username:
			return u, nil
		case filter.Email != "" && u.Email == filter.Email:
			return u, nil
		case filter.UsernameOrEmail != "" && (u.Username == filter.UsernameOrEmail || u.Email == filter.UsernameOrEmail):
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.Name == "" {
		usr.Name = orig.Name
	}
	if usr.Username == "" {
		usr.Username = orig.Username
	}
	if usr.Email == "" {
		usr.Email = orig.Email
	}
	if usr.IsActive == nil {
		usr.IsActive = orig.IsActive
	}
	if usr.Roles == nil {
		usr.Roles = orig.Roles
	}
	if usr.PasswordHash == nil {
		usr.PasswordHash = orig.PasswordHash
	}
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = orig.CreatedAt
	}
	if usr.LastLogin.IsZero() {
		usr.LastLogin = orig.LastLogin
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			cnt++
		}
	}
	return cnt, nil
}

// Course repository

type courseRepository struct{ db *DB }

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository { return &courseRepository{db: db} }

func (repo courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo courseRepository) QueryCoursesByTeacher(_ context.Context, teacherID string, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if c.TeacherID == teacherID {
			courses = append(courses, c)
		}
	}
	asc := len(ordering) > 0 && ordering[0].Ascending
	sort.SliceStable(courses, func(i, j int) bool {
		less := courses[i].CreatedAt.Before(courses[j].CreatedAt)
		if !asc {
			return !less
		}
		return less
	})
	return courses, nil
}

func (repo courseRepository) GetCourseByID(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if c, ok := repo.db.courses[id]; ok {
		return c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if crs.Title == "" {
		crs.Title = orig.Title
	}
	if crs.Code == "" {
		crs.Code = orig.Code
	}
	if crs.TeacherID == "" {
		crs.TeacherID = orig.TeacherID
	}
	if crs.CreatedAt.IsZero() {
		crs.CreatedAt = orig.CreatedAt
	}
	repo.db.courses[crs.ID] = crs
	return crs, nil
}

func (repo courseRepository) DeleteCoursesByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.courses[id]; ok {
			delete(repo.db.courses, id)
			cnt++
		}
	}
	return cnt, nil
}

// Module repository

type moduleRepository struct{ db *DB }

var _ module.Repository = (*moduleRepository)(nil)

func NewModuleRepository(db *DB) *moduleRepository { return &moduleRepository{db: db} }

func (repo moduleRepository) CreateModule(_ context.Context, mod module.Module, _ ...core.DBExecutor) (module.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	mod.ID = uuid.New().String()
	mod.Version = 1
	repo.db.modules[mod.ID] = mod
	return mod, nil
}

func (repo moduleRepository) GetModuleByID(_ context.Context, id string, _ ...core.DBExecutor) (module.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if m, ok := repo.db.modules[id]; ok {
		return m, nil
	}
	return module.Module{}, module.ErrNotFound
}

func (repo moduleRepository) QueryModulesByCourse(_ context.Context, courseID string, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]module.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	mods := make([]module.Module, 0)
	for _, m := range repo.db.modules {
		if m.CourseID == courseID {
			mods = append(mods, m)
		}
	}
	asc := len(ordering) > 0 && ordering[0].Ascending
	sort.SliceStable(mods, func(i, j int) bool {
		less := mods[i].CreatedAt.Before(mods[j].CreatedAt)
		if !asc {
			return !less
		}
		return less
	})
	return mods, nil
}

func (repo moduleRepository) UpdateModule(_ context.Context, mod module.Module, _ ...core.DBExecutor) (module.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	orig, ok := repo.db.modules[mod.ID]
	if !ok {
		return module.Module{}, module.ErrNotFound
	}
	if mod.Version != orig.Version {
		return module.Module{}, core.ErrConflict
	}
	mod.Version = orig.Version + 1
	repo.db.modules[mod.ID] = mod
	return mod, nil
}

func (repo moduleRepository) SetModuleThumbnail(_ context.Context, id, ref string, _ ...core.DBExecutor) (module.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	mod, ok := repo.db.modules[id]
	if !ok {
		return module.Module{}, module.ErrNotFound
	}
	mod.Thumbnail = ref
	mod.Version++
	mod.UpdatedAt = time.Now().UTC()
	repo.db.modules[id] = mod
	return mod, nil
}

func (repo moduleRepository) DeleteModulesByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.modules[id]; ok {
			delete(repo.db.modules, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo moduleRepository) CreateContentItem(_ context.Context, item module.ContentItem, _ ...core.DBExecutor) (module.ContentItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	item.ID = uuid.New().String()
	var max int
	for _, it := range repo.db.items {
		if it.ModuleID == item.ModuleID && it.Position > max {
			max = it.Position
		}
	}
	item.Position = max + 1
	repo.db.items[item.ID] = item
	return item, nil
}

func (repo moduleRepository) GetContentItemByID(_ context.Context, id string, _ ...core.DBExecutor) (module.ContentItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if it, ok := repo.db.items[id]; ok {
		return it, nil
	}
	return module.ContentItem{}, module.ErrItemNotFound
}

func (repo moduleRepository) QueryContentItems(_ context.Context, moduleID string, _ ...core.DBExecutor) ([]module.ContentItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.queryItems(moduleID), nil
}

func (repo moduleRepository) queryItems(moduleID string) []module.ContentItem {
	items := make([]module.ContentItem, 0)
	for _, it := range repo.db.items {
		if it.ModuleID == moduleID {
			items = append(items, it)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items
}

func (repo moduleRepository) CountContentItems(_ context.Context, moduleID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	var cnt int
	for _, it := range repo.db.items {
		if it.ModuleID == moduleID {
			cnt++
		}
	}
	return cnt, nil
}

func (repo moduleRepository) UpdateContentItem(_ context.Context, item module.ContentItem, _ ...core.DBExecutor) (module.ContentItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if _, ok := repo.db.items[item.ID]; !ok {
		return module.ContentItem{}, module.ErrItemNotFound
	}
	repo.db.items[item.ID] = item
	return item, nil
}

func (repo moduleRepository) DeleteContentItemsByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.items[id]; ok {
			delete(repo.db.items, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo moduleRepository) ReorderContentItems(_ context.Context, moduleID string, ids []string, _ ...core.DBExecutor) ([]module.ContentItem, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for pos, id := range ids {
		it, ok := repo.db.items[id]
		if !ok || it.ModuleID != moduleID {
			return nil, module.ErrItemNotFound
		}
		it.Position = pos + 1
		repo.db.items[id] = it
	}
	return repo.queryItems(moduleID), nil
}

// Fixtures

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo course.Repository, title, code, teacherID string) course.Course {
	t.Helper()
	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Title:     title,
		Code:      code,
		TeacherID: teacherID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return crs
}

func CreateModule(t *testing.T, repo module.Repository, courseID, title string, deadline time.Time) module.Module {
	t.Helper()
	now := time.Now().UTC()
	mod, err := repo.CreateModule(context.Background(), module.Module{
		CourseID:  courseID,
		Title:     title,
		Deadline:  deadline.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateModule(): %v", err)
	}
	return mod
}

func CreateContentItem(t *testing.T, repo module.Repository, moduleID, kind string, payload json.RawMessage) module.ContentItem {
	t.Helper()
	now := time.Now().UTC()
	item, err := repo.CreateContentItem(context.Background(), module.ContentItem{
		ModuleID:  moduleID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateContentItem(): %v", err)
	}
	return item
}
