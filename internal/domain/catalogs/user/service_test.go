package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/id"
	"invoicer/internal/core/numerator"
	"invoicer/internal/core/tx"
	"invoicer/internal/domain"
	"invoicer/internal/domain/numbering"
)

type memRepo struct {
	users map[id.ID]*User
}

func (r *memRepo) Create(ctx context.Context, u *User) error {
	r.users[u.ID] = u
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, userID id.ID) (*User, error) {
	if u, ok := r.users[userID]; ok {
		return u, nil
	}
	return nil, apperror.NewNotFound("user", userID)
}

func (r *memRepo) Update(ctx context.Context, u *User) error {
	r.users[u.ID] = u
	return nil
}

func (r *memRepo) SetDeletionMark(ctx context.Context, userID id.ID, marked bool) error {
	r.users[userID].DeletionMark = marked
	return nil
}

func (r *memRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*User], error) {
	var res domain.ListResult[*User]
	for _, u := range r.users {
		res.Items = append(res.Items, u)
	}
	res.TotalCount = int64(len(res.Items))
	return res, nil
}

func (r *memRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperror.NewNotFound("user", email)
}

func newTestService(cfg numbering.Config) (*Service, *memRepo) {
	txm := &tx.FakeManager{}
	clock := numerator.FixedClock(time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC))
	repo := &memRepo{users: make(map[id.ID]*User)}
	svc := NewService(repo, txm, numbering.NewService(&numerator.MockGenerator{}, txm, clock, cfg), nil)
	svc.bcryptCost = bcrypt.MinCost
	return svc, repo
}

func TestRegister_NumbersPerRole(t *testing.T) {
	svc, _ := newTestService(numbering.Config{})
	ctx := context.Background()

	cases := []struct {
		email, role, want string
	}{
		{"a@example.com", "SUPER_ADMIN", "SAD000001"},
		{"b@example.com", "super_admin", "SAD000002"},
		{"c@example.com", "CUSTOMER", "CUS000001"},
		{"d@example.com", "ACCOUNTANT", "ACC000001"},
		{"e@example.com", "ADMIN", "ADM000001"},
	}
	for _, c := range cases {
		u := NewUser(c.email, "Someone", c.role, "de")
		require.NoError(t, svc.Register(ctx, u, ""))
		assert.Equal(t, c.want, u.UserNumber, c.email)
		assert.Regexp(t, `^(ADM|CUS|SAD|ACC)\d{6}$`, u.UserNumber)
	}
}

func TestRegister_UnknownRole(t *testing.T) {
	svc, repo := newTestService(numbering.Config{})
	err := svc.Register(context.Background(), NewUser("x@example.com", "X", "UNKNOWN_ROLE", "DE"), "")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Empty(t, repo.users)

	legacy, _ := newTestService(numbering.Config{AllowUnknownRole: true})
	u := NewUser("x@example.com", "X", "UNKNOWN_ROLE", "DE")
	require.NoError(t, legacy.Register(context.Background(), u, ""))
	assert.Equal(t, "000001", u.UserNumber)
}

func TestRegister_HashesPassword(t *testing.T) {
	svc, _ := newTestService(numbering.Config{})
	u := NewUser(" Admin@Example.com ", "Admin", "ADMIN", "de")

	require.NoError(t, svc.Register(context.Background(), u, "correct horse"))
	assert.Equal(t, "admin@example.com", u.Email)
	assert.Equal(t, "DE", u.Country)
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	assert.True(t, svc.CheckPassword(u, "correct horse"))
	assert.False(t, svc.CheckPassword(u, "wrong"))

	err := svc.Register(context.Background(), NewUser("b@example.com", "B", "ADMIN", "DE"), "short")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(numbering.Config{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, NewUser("a@example.com", "A", "CUSTOMER", "DE"), ""))
	err := svc.Register(ctx, NewUser("A@example.com", "A2", "CUSTOMER", "DE"), "")
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestUserValidate(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, NewUser("not-an-email", "A", "ADMIN", "DE").Validate(ctx))
	assert.Error(t, NewUser("a@example.com", "", "ADMIN", "DE").Validate(ctx))
	assert.Error(t, NewUser("a@example.com", "A", "", "DE").Validate(ctx))
	assert.Error(t, NewUser("a@example.com", "A", "ADMIN", "DEU").Validate(ctx))
	assert.NoError(t, NewUser("a@example.com", "A", "ADMIN", "DE").Validate(ctx))
}
