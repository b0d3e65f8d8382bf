package core

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/orrn/printdesk/internal/apperr"
	"github.com/orrn/printdesk/internal/model"
)

const minPasswordLen = 8

type RegisterRequest struct {
	Fullname string
	Username string
	Email    string
	Contact  string
	Password string
}

// ProfileUpdate carries the fields to change. Empty fields keep the stored
// value.
type ProfileUpdate struct {
	Fullname string
	Username string
	Email    string
	Contact  string
	Password string
}

type AccountService struct {
	store      Store
	bcryptCost int
	logger     *slog.Logger
}

func NewAccountService(store Store, bcryptCost int, logger *slog.Logger) *AccountService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		store:      store,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	u := &model.User{
		Fullname: strings.TrimSpace(req.Fullname),
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		Contact:  strings.TrimSpace(req.Contact),
	}
	if u.Fullname == "" || u.Username == "" || u.Email == "" {
		return nil, apperr.Validation("fullname, username and email are required")
	}
	if err := validateEmail(u.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	u.CreatedAt = now()

	err = s.store.WithTx(ctx, func(q Queries) error {
		taken, err := q.UserIdentityTaken(ctx, u.Fullname, u.Username, u.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("fullname, username or email already registered")
		}
		return q.CreateUser(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.Int64("user_id", u.ID), slog.String("username", u.Username))
	return u, nil
}

// Authenticate checks username and password. Both an unknown username and a
// wrong password give the same unauthorized error.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized("invalid username or password")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("login rejected", slog.String("username", u.Username))
		return nil, apperr.Unauthorized("invalid username or password")
	}
	return u, nil
}

func (s *AccountService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*model.User, error) {
	var hash string
	if upd.Password != "" {
		if err := validatePassword(upd.Password); err != nil {
			return nil, err
		}
		h, err := s.hash(upd.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	if email := strings.TrimSpace(upd.Email); email != "" {
		if err := validateEmail(email); err != nil {
			return nil, err
		}
	}

	var u *model.User
	err := s.store.WithTx(ctx, func(q Queries) error {
		cur, err := q.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		merge(&cur.Fullname, upd.Fullname)
		merge(&cur.Username, upd.Username)
		merge(&cur.Email, upd.Email)
		merge(&cur.Contact, upd.Contact)
		merge(&cur.PasswordHash, hash)

		taken, err := q.UserIdentityTaken(ctx, cur.Fullname, cur.Username, cur.Email, cur.ID)
		if err != nil {
			return err
		}
		if taken {
			return apperr.Conflict("fullname, username or email already registered")
		}
		if err := q.UpdateUser(ctx, cur); err != nil {
			return err
		}
		u = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.Int64("user_id", u.ID))
	return u, nil
}

func (s *AccountService) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.Validation("password is too long")
		}
		return "", apperr.Internal(err, "hash password")
	}
	return string(b), nil
}

func merge(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func validateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return apperr.Validation("email %q is not valid", email)
	}
	return nil
}

func validatePassword(p string) error {
	if len(p) < minPasswordLen {
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return apperr.Validation("password needs an uppercase letter, a lowercase letter and a digit")
	}
	return nil
}
