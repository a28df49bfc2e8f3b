// internal/membership/implementation_test.go
package membership

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"librarium/internal/apperror"
	"librarium/internal/config"
	"librarium/internal/database"
	"librarium/pkg/logger"
)

type fakeRunner struct{}

func (r *fakeRunner) Querier() database.Querier { return nil }

func (r *fakeRunner) WithTx(ctx context.Context, fn func(q database.Querier) error) error {
	return fn(nil)
}

type fakeMemberStore struct {
	nextID      int64
	members     map[int64]*Member
	activeLoans map[int64]int
	lockCalls   int
}

func newFakeMemberStore() *fakeMemberStore {
	return &fakeMemberStore{members: map[int64]*Member{}, activeLoans: map[int64]int{}}
}

func (s *fakeMemberStore) Insert(ctx context.Context, q database.Querier, member *Member) error {
	s.nextID++
	member.ID = s.nextID
	cp := *member
	s.members[member.ID] = &cp
	return nil
}

func (s *fakeMemberStore) Update(ctx context.Context, q database.Querier, member *Member) error {
	cp := *member
	s.members[member.ID] = &cp
	return nil
}

func (s *fakeMemberStore) SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error {
	if m, ok := s.members[id]; ok {
		m.IsActive = false
		m.MembershipStatus = StatusSuspended
		m.UpdatedAt = at
	}
	return nil
}

// By-id lookups return soft-deleted rows too, like the Postgres store; only
// the list paths filter on is_active.
func (s *fakeMemberStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Member, error) {
	m, ok := s.members[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *fakeMemberStore) GetByIDForUpdate(ctx context.Context, q database.Querier, id int64) (*Member, error) {
	s.lockCalls++
	return s.GetByID(ctx, q, id)
}

func (s *fakeMemberStore) GetByUserID(ctx context.Context, q database.Querier, userID int64) (*Member, error) {
	for _, m := range s.members {
		if m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeMemberStore) ListActive(ctx context.Context, q database.Querier) ([]Member, error) {
	out := []Member{}
	for _, m := range s.members {
		if m.IsActive {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *fakeMemberStore) CountActivePhone(ctx context.Context, q database.Querier, phone string, excludeID int64) (int, error) {
	count := 0
	for _, m := range s.members {
		if m.IsActive && m.Phone != nil && *m.Phone == phone && m.ID != excludeID {
			count++
		}
	}
	return count, nil
}

func (s *fakeMemberStore) CountActiveLoans(ctx context.Context, q database.Querier, memberID int64) (int, error) {
	return s.activeLoans[memberID], nil
}

type fakeUserStore struct {
	nextID int64
	users  map[int64]*User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[int64]*User{}}
}

func (s *fakeUserStore) Insert(ctx context.Context, q database.Querier, user *User) error {
	s.nextID++
	user.ID = s.nextID
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *fakeUserStore) Update(ctx context.Context, q database.Querier, user *User) error {
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *fakeUserStore) SoftDelete(ctx context.Context, q database.Querier, id int64, at time.Time) error {
	if u, ok := s.users[id]; ok {
		u.IsActive = false
		u.UpdatedAt = at
	}
	return nil
}

func (s *fakeUserStore) GetByID(ctx context.Context, q database.Querier, id int64) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) GetByUsername(ctx context.Context, q database.Querier, username string) (*User, error) {
	for _, u := range s.users {
		if u.IsActive && strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, q database.Querier, email string) (*User, error) {
	for _, u := range s.users {
		if u.IsActive && strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) ListActive(ctx context.Context, q database.Querier) ([]User, error) {
	out := []User{}
	for _, u := range s.users {
		if u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeUserStore) FindByRole(ctx context.Context, q database.Querier, role Role) ([]User, error) {
	out := []User{}
	for _, u := range s.users {
		if u.IsActive && u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *fakeUserStore) CountActiveUsername(ctx context.Context, q database.Querier, username string, excludeID int64) (int, error) {
	count := 0
	for _, u := range s.users {
		if u.IsActive && strings.EqualFold(u.Username, username) && u.ID != excludeID {
			count++
		}
	}
	return count, nil
}

func (s *fakeUserStore) CountActiveEmail(ctx context.Context, q database.Querier, email string, excludeID int64) (int, error) {
	count := 0
	for _, u := range s.users {
		if u.IsActive && strings.EqualFold(u.Email, email) && u.ID != excludeID {
			count++
		}
	}
	return count, nil
}

func (s *fakeUserStore) UpdateLastLogin(ctx context.Context, q database.Querier, id int64, at time.Time) error {
	if u, ok := s.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func testLogger() logger.Logger {
	return logger.New("error", "test", io.Discard)
}

func strPtr(s string) *string { return &s }

func newMemberSvc(store *fakeMemberStore) *memberService {
	svc := NewMemberService(&fakeRunner{}, store, testLogger()).(*memberService)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func newUserSvc(users *fakeUserStore, members *fakeMemberStore) *userService {
	auth := config.AuthConfig{JWTSecret: "test-secret", TokenTTL: time.Hour}
	svc := NewUserService(&fakeRunner{}, users, members, auth, testLogger()).(*userService)
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestMemberCreateDefaults(t *testing.T) {
	store := newFakeMemberStore()
	svc := newMemberSvc(store)

	member, err := svc.Create(context.Background(), &Member{
		UserID:    1,
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(member.MemberNumber, "LIB-"))
	require.Len(t, member.MemberNumber, 12)
	require.Equal(t, StatusActive, member.MembershipStatus)
	require.True(t, member.IsActive)
}

func TestMemberCreateValidation(t *testing.T) {
	svc := newMemberSvc(newFakeMemberStore())

	_, err := svc.Create(context.Background(), &Member{UserID: 1, FirstName: "  ", LastName: "Lovelace"})
	require.ErrorIs(t, err, apperror.ErrInvalid)

	_, err = svc.Create(context.Background(), &Member{FirstName: "Ada", LastName: "Lovelace"})
	require.ErrorIs(t, err, apperror.ErrInvalid)
}

func TestMemberCreateDuplicatePhone(t *testing.T) {
	store := newFakeMemberStore()
	svc := newMemberSvc(store)

	_, err := svc.Create(context.Background(), &Member{
		UserID: 1, FirstName: "Ada", LastName: "Lovelace", Phone: strPtr("555-0100"),
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), &Member{
		UserID: 2, FirstName: "Grace", LastName: "Hopper", Phone: strPtr("555-0100"),
	})
	require.ErrorIs(t, err, apperror.ErrDuplicate)

	// No phone means no uniqueness check.
	_, err = svc.Create(context.Background(), &Member{
		UserID: 3, FirstName: "Barbara", LastName: "Liskov",
	})
	require.NoError(t, err)
}

func TestMemberDeleteWithActiveLoans(t *testing.T) {
	store := newFakeMemberStore()
	svc := newMemberSvc(store)

	member, err := svc.Create(context.Background(), &Member{UserID: 1, FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)

	store.activeLoans[member.ID] = 2
	err = svc.Delete(context.Background(), member.ID)
	require.ErrorIs(t, err, apperror.ErrConflict)

	store.activeLoans[member.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), member.ID))
}

func TestMemberDeleteTakesRowLock(t *testing.T) {
	store := newFakeMemberStore()
	svc := newMemberSvc(store)

	member, err := svc.Create(context.Background(), &Member{UserID: 1, FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), member.ID))
	require.Equal(t, 1, store.lockCalls)
}

func TestSoftDeletedMemberStillReadableByID(t *testing.T) {
	store := newFakeMemberStore()
	svc := newMemberSvc(store)

	member, err := svc.Create(context.Background(), &Member{UserID: 1, FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), member.ID))

	// Soft delete suspends the membership but keeps the row readable by id.
	got, err := svc.GetByID(context.Background(), member.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
	require.Equal(t, StatusSuspended, got.MembershipStatus)

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestMemberUpdateUnknownStatus(t *testing.T) {
	svc := newMemberSvc(newFakeMemberStore())

	_, err := svc.Update(context.Background(), 1, &Member{
		FirstName: "Ada", LastName: "Lovelace", MembershipStatus: "Banished",
	})
	require.ErrorIs(t, err, apperror.ErrInvalid)
}

func TestUserCreateHashesPassword(t *testing.T) {
	users := newFakeUserStore()
	svc := newUserSvc(users, newFakeMemberStore())

	user, err := svc.Create(context.Background(), &User{Username: "ada", Email: "ada@example.com"}, "s3cret")
	require.NoError(t, err)
	require.Equal(t, RoleMember, user.Role)
	require.NotEmpty(t, user.PasswordHash)
	require.NotEqual(t, "s3cret", user.PasswordHash)

	ok, err := verifyPassword("s3cret", user.Salt, user.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUserCreateDuplicates(t *testing.T) {
	users := newFakeUserStore()
	svc := newUserSvc(users, newFakeMemberStore())

	_, err := svc.Create(context.Background(), &User{Username: "ada", Email: "ada@example.com"}, "pw")
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), &User{Username: "Ada", Email: "other@example.com"}, "pw")
	require.ErrorIs(t, err, apperror.ErrDuplicate)

	_, err = svc.Create(context.Background(), &User{Username: "ada2", Email: "ADA@example.com"}, "pw")
	require.ErrorIs(t, err, apperror.ErrDuplicate)
}

func TestUserUpdateKeepsPasswordWhenEmpty(t *testing.T) {
	users := newFakeUserStore()
	svc := newUserSvc(users, newFakeMemberStore())

	user, err := svc.Create(context.Background(), &User{Username: "ada", Email: "ada@example.com"}, "original")
	require.NoError(t, err)
	oldHash := user.PasswordHash

	updated, err := svc.Update(context.Background(), user.ID, &User{Username: "ada", Email: "new@example.com"}, "")
	require.NoError(t, err)
	require.Equal(t, "new@example.com", updated.Email)
	require.Equal(t, oldHash, updated.PasswordHash)

	updated, err = svc.Update(context.Background(), user.ID, &User{Username: "ada", Email: "new@example.com"}, "rotated")
	require.NoError(t, err)
	require.NotEqual(t, oldHash, updated.PasswordHash)

	ok, err := verifyPassword("rotated", updated.Salt, updated.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestUserDeleteBlockedByLinkedMemberLoans(t *testing.T) {
	users := newFakeUserStore()
	members := newFakeMemberStore()
	svc := newUserSvc(users, members)

	user, err := svc.Create(context.Background(), &User{Username: "ada", Email: "ada@example.com"}, "pw")
	require.NoError(t, err)

	memberSvc := newMemberSvc(members)
	member, err := memberSvc.Create(context.Background(), &Member{UserID: user.ID, FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)

	members.activeLoans[member.ID] = 1
	err = svc.Delete(context.Background(), user.ID)
	require.ErrorIs(t, err, apperror.ErrConflict)

	members.activeLoans[member.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), user.ID))
	require.NotZero(t, members.lockCalls)
}

func TestUserFindByRole(t *testing.T) {
	users := newFakeUserStore()
	svc := newUserSvc(users, newFakeMemberStore())

	_, err := svc.Create(context.Background(), &User{Username: "ada", Email: "a@example.com", Role: RoleAdmin}, "pw")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), &User{Username: "grace", Email: "g@example.com", Role: RoleLibrarian}, "pw")
	require.NoError(t, err)

	found, err := svc.FindByRole(context.Background(), "librarian")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "grace", found[0].Username)

	found, err = svc.FindByRole(context.Background(), "janitor")
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestLogin(t *testing.T) {
	users := newFakeUserStore()
	svc := newUserSvc(users, newFakeMemberStore())

	created, err := svc.Create(context.Background(), &User{Username: "ada", Email: "ada@example.com"}, "s3cret")
	require.NoError(t, err)

	user, token, err := svc.Login(context.Background(), "ada", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, created.ID, user.ID)
	require.NotNil(t, user.LastLoginAt)

	_, _, err = svc.Login(context.Background(), "ada", "wrong")
	require.ErrorIs(t, err, apperror.ErrInvalid)

	_, _, err = svc.Login(context.Background(), "nobody", "s3cret")
	require.ErrorIs(t, err, apperror.ErrInvalid)
}
