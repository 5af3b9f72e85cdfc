package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type dbUser struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     null.Bool      `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

const userCols = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) pack(usr user.User) dbUser {
	u := dbUser{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		PasswordHash: null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
	if usr.Roles != nil {
		u.Roles = pq.StringArray(usr.Roles)
	}
	return u
}

func (repo userRepository) unpack(u dbUser) user.User {
	return user.User{
		ID:           u.ID,
		Name:         u.Name.String,
		Username:     u.Username.String,
		Email:        u.Email.String,
		IsActive:     u.IsActive.Ptr(),
		Roles:        u.Roles,
		PasswordHash: u.PasswordHash.Bytes,
		CreatedAt:    u.CreatedAt.Time,
		UpdatedAt:    u.UpdatedAt.Time,
		LastLogin:    u.LastLogin.Time,
	}
}

func (repo userRepository) unpackSlice(slice []dbUser) []user.User {
	users := make([]user.User, 0, len(slice))
	for _, u := range slice {
		users = append(users, repo.unpack(u))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	exe := ext(repo.db, exec)

	query := `SELECT EXISTS (SELECT 1 FROM "user" WHERE (username = ? OR email = ?)`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += ` AND id NOT IN (?)`
		args = append(args, ids)
	}
	query += `)`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "building user uniqueness query")
	}

	var exists bool
	if err = sqlx.GetContext(ctx, exe, &exists, exe.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	u := repo.pack(usr)
	if u.Roles == nil {
		u.Roles = pq.StringArray{}
	}

	query := `INSERT INTO "user" (` + userCols + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := ext(repo.db, exec).ExecContext(
		ctx, query,
		u.ID, u.Name, u.Username, u.Email, u.IsActive, u.Roles, u.PasswordHash, u.CreatedAt, u.UpdatedAt, u.LastLogin,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unpack(u), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	exe := ext(repo.db, exec)

	var where []string
	var args []interface{}

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where = append(where, `(name ILIKE ? OR username ILIKE ? OR email ILIKE ?)`)
			args = append(args, val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			roleConds := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				roleConds = append(roleConds, `EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE ?)`)
				args = append(args, role+"%")
			}
			where = append(where, "("+strings.Join(roleConds, " OR ")+")")
		}
		if filter.IsActive != nil {
			where = append(where, `is_active = ?`)
			args = append(args, *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, `created_at >= ?`)
			args = append(args, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, `created_at <= ?`)
			args = append(args, filter.CreatedTo.UTC())
		}
	}

	query := `SELECT ` + userCols + ` FROM "user"`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += orderBy(ordering)

	var users []dbUser
	if err := sqlx.SelectContext(ctx, exe, &users, exe.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unpackSlice(users), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	exe := ext(repo.db, exec)

	var cond string
	var args []interface{}

	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond = `id = $1`
		args = append(args, filter.ID)
	case filter.Username != "":
		cond = `username = $1`
		args = append(args, filter.Username)
	case filter.Email != "":
		cond = `email = $1`
		args = append(args, filter.Email)
	case filter.UsernameOrEmail != "":
		cond = `(username = $1 OR email = $1)`
		args = append(args, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var u dbUser
	query := fmt.Sprintf(`SELECT %s FROM "user" WHERE %s LIMIT 1`, userCols, cond)
	if err := sqlx.GetContext(ctx, exe, &u, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unpack(u), nil
}

// UpdateUser writes the set fields of usr and keeps the stored value for
// the rest, then returns the fresh row.
func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	exe := ext(repo.db, exec)
	u := repo.pack(usr)

	query := `
		UPDATE "user"
		SET name          = COALESCE($2, name),
		    username      = COALESCE($3, username),
		    email         = COALESCE($4, email),
		    is_active     = COALESCE($5, is_active),
		    roles         = COALESCE($6, roles),
		    password_hash = COALESCE($7, password_hash),
		    updated_at    = COALESCE($8, updated_at),
		    last_login    = COALESCE($9, last_login)
		WHERE id = $1`
	res, err := exe.ExecContext(
		ctx, query,
		u.ID, u.Name, u.Username, u.Email, u.IsActive, u.Roles, u.PasswordHash, u.UpdatedAt, u.LastLogin,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}

	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	exe := ext(repo.db, exec)

	query, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building user delete query")
	}
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, _ := res.RowsAffected()
	return int(cnt), nil
}
