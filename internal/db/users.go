package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/orrn/printdesk/internal/model"
)

func (q *queries) CreateUser(ctx context.Context, u *model.User) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	result, err := q.q.ExecContext(ctx, InsertUser,
		u.Fullname, u.Username, u.Email, u.PasswordHash, u.Contact, u.CreatedAt)
	if err != nil {
		return persistErr(err, "create user %q", u.Username)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return persistErr(err, "get user id")
	}
	u.ID = id
	return nil
}

func (q *queries) GetUser(ctx context.Context, id int64) (*model.User, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	u := &model.User{}
	err := q.q.QueryRowContext(ctx, GetUserByID, id).Scan(
		&u.ID, &u.Fullname, &u.Username, &u.Email, &u.PasswordHash, &u.Contact, &u.CreatedAt)
	if err != nil {
		return nil, getErr(err, "user", id)
	}
	return u, nil
}

func (q *queries) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	u := &model.User{}
	err := q.q.QueryRowContext(ctx, GetUserByUsername, username).Scan(
		&u.ID, &u.Fullname, &u.Username, &u.Email, &u.PasswordHash, &u.Contact, &u.CreatedAt)
	if err != nil {
		return nil, getErr(err, "user", username)
	}
	return u, nil
}

func (q *queries) UserExists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var exists bool
	if err := q.q.QueryRowContext(ctx, UserExists, id).Scan(&exists); err != nil {
		return false, persistErr(err, "check user %d", id)
	}
	return exists, nil
}

func (q *queries) UserIdentityTaken(ctx context.Context, fullname, username, email string, excludeID int64) (bool, error) {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	var taken bool
	err := q.q.QueryRowContext(ctx, UserIdentityTaken, fullname, username, email, excludeID).Scan(&taken)
	if err != nil {
		return false, persistErr(err, "check user identity")
	}
	return taken, nil
}

func (q *queries) UpdateUser(ctx context.Context, u *model.User) error {
	ctx, cancel := q.bound(ctx)
	defer cancel()

	result, err := q.q.ExecContext(ctx, UpdateUser,
		u.Fullname, u.Username, u.Email, u.PasswordHash, u.Contact, u.ID)
	if err != nil {
		return persistErr(err, "update user %d", u.ID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistErr(err, "get affected rows")
	}
	if affected == 0 {
		return getErr(sql.ErrNoRows, "user", u.ID)
	}
	return nil
}
