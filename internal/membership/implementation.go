// internal/membership/implementation.go
package membership

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"librarium/internal/apperror"
	"librarium/internal/config"
	"librarium/internal/database"
	"librarium/pkg/logger"
)

type memberService struct {
	run     database.Runner
	members MemberStore
	log     logger.Logger
	now     func() time.Time
}

// NewMemberService creates the membership member service.
func NewMemberService(run database.Runner, members MemberStore, log logger.Logger) MemberService {
	return &memberService{
		run:     run,
		members: members,
		log:     log,
		now:     time.Now,
	}
}

func (s *memberService) Create(ctx context.Context, member *Member) (*Member, error) {
	if strings.TrimSpace(member.FirstName) == "" || strings.TrimSpace(member.LastName) == "" {
		return nil, apperror.Invalidf("first name and last name are required")
	}
	if member.UserID == 0 {
		return nil, apperror.Invalidf("user ID is required")
	}

	err := s.run.WithTx(ctx, func(q database.Querier) error {
		// Phone is optional; uniqueness applies only when one is supplied.
		if member.Phone != nil && *member.Phone != "" {
			count, err := s.members.CountActivePhone(ctx, q, *member.Phone, 0)
			if err != nil {
				return err
			}
			if count > 0 {
				return apperror.Duplicatef("member with phone number %q already exists", *member.Phone)
			}
		}

		now := s.now().UTC()
		if member.MemberNumber == "" {
			member.MemberNumber = newMemberNumber()
		}
		member.MembershipStatus = StatusActive
		member.MembershipDate = now
		member.IsActive = true
		member.CreatedAt = now
		member.UpdatedAt = now
		return s.members.Insert(ctx, q, member)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("member created", map[string]interface{}{
		"member_id":     member.ID,
		"member_number": member.MemberNumber,
	})
	return member, nil
}

func (s *memberService) Update(ctx context.Context, id int64, member *Member) (*Member, error) {
	if member.MembershipStatus != "" {
		status, ok := ParseMembershipStatus(string(member.MembershipStatus))
		if !ok {
			return nil, apperror.Invalidf("unknown membership status %q", member.MembershipStatus)
		}
		member.MembershipStatus = status
	}

	var updated *Member
	err := s.run.WithTx(ctx, func(q database.Querier) error {
		existing, err := s.members.GetByID(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.NotFoundf("member with ID %d not found", id)
		}

		if member.Phone != nil && *member.Phone != "" {
			count, err := s.members.CountActivePhone(ctx, q, *member.Phone, id)
			if err != nil {
				return err
			}
			if count > 0 {
				return apperror.Duplicatef("member with phone number %q already exists", *member.Phone)
			}
		}

		existing.FirstName = member.FirstName
		existing.LastName = member.LastName
		existing.Phone = member.Phone
		existing.Address = member.Address
		existing.DateOfBirth = member.DateOfBirth
		existing.MembershipExpiryDate = member.MembershipExpiryDate
		if member.MembershipStatus != "" {
			existing.MembershipStatus = member.MembershipStatus
		}
		existing.UpdatedAt = s.now().UTC()

		if err := s.members.Update(ctx, q, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete soft-deletes the member under a row lock, so a borrow running
// concurrently cannot slip a new loan in between the count and the update.
func (s *memberService) Delete(ctx context.Context, id int64) error {
	err := s.run.WithTx(ctx, func(q database.Querier) error {
		existing, err := s.members.GetByIDForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.NotFoundf("member with ID %d not found", id)
		}

		loans, err := s.members.CountActiveLoans(ctx, q, id)
		if err != nil {
			return err
		}
		if loans > 0 {
			return apperror.Conflictf("cannot delete member with ID %d: they have %d active loan(s)", id, loans)
		}

		return s.members.SoftDelete(ctx, q, id, s.now().UTC())
	})
	if err != nil {
		return err
	}

	s.log.Info("member soft-deleted", map[string]interface{}{"member_id": id})
	return nil
}

func (s *memberService) GetByID(ctx context.Context, id int64) (*Member, error) {
	member, err := s.members.GetByID(ctx, s.run.Querier(), id)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperror.NotFoundf("member with ID %d not found", id)
	}
	return member, nil
}

func (s *memberService) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	member, err := s.members.GetByUserID(ctx, s.run.Querier(), userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperror.NotFoundf("member with user ID %d not found", userID)
	}
	return member, nil
}

func (s *memberService) List(ctx context.Context) ([]Member, error) {
	return s.members.ListActive(ctx, s.run.Querier())
}

func (s *memberService) IsPhoneUnique(ctx context.Context, phone string, excludeID int64) (bool, error) {
	count, err := s.members.CountActivePhone(ctx, s.run.Querier(), phone, excludeID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (s *memberService) ActiveLoanCount(ctx context.Context, memberID int64) (int, error) {
	return s.members.CountActiveLoans(ctx, s.run.Querier(), memberID)
}

func newMemberNumber() string {
	return "LIB-" + strings.ToUpper(uuid.NewString()[:8])
}

type userService struct {
	run     database.Runner
	users   UserStore
	members MemberStore
	auth    config.AuthConfig
	limiter *rate.Limiter
	log     logger.Logger
	now     func() time.Time
}

// NewUserService creates the membership user service.
func NewUserService(run database.Runner, users UserStore, members MemberStore, auth config.AuthConfig, log logger.Logger) UserService {
	return &userService{
		run:     run,
		users:   users,
		members: members,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Every(time.Minute), 10),
		log:     log,
		now:     time.Now,
	}
}

func (s *userService) Create(ctx context.Context, user *User, password string) (*User, error) {
	if strings.TrimSpace(user.Username) == "" {
		return nil, apperror.Invalidf("username is required")
	}
	if strings.TrimSpace(user.Email) == "" {
		return nil, apperror.Invalidf("email is required")
	}
	if password == "" {
		return nil, apperror.Invalidf("password is required")
	}
	if user.Role == "" {
		user.Role = RoleMember
	} else if role, ok := ParseRole(string(user.Role)); ok {
		user.Role = role
	} else {
		return nil, apperror.Invalidf("unknown role %q", user.Role)
	}

	hash, salt, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	err = s.run.WithTx(ctx, func(q database.Querier) error {
		count, err := s.users.CountActiveUsername(ctx, q, user.Username, 0)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperror.Duplicatef("user with username %q already exists", user.Username)
		}

		count, err = s.users.CountActiveEmail(ctx, q, user.Email, 0)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperror.Duplicatef("user with email %q already exists", user.Email)
		}

		now := s.now().UTC()
		user.PasswordHash = hash
		user.Salt = salt
		user.IsActive = true
		user.CreatedAt = now
		user.UpdatedAt = now
		return s.users.Insert(ctx, q, user)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user created", map[string]interface{}{"user_id": user.ID, "username": user.Username})
	return user, nil
}

// Update overwrites the stored password only when a new one is supplied;
// an empty password leaves the existing hash intact.
func (s *userService) Update(ctx context.Context, id int64, user *User, password string) (*User, error) {
	if user.Role != "" {
		role, ok := ParseRole(string(user.Role))
		if !ok {
			return nil, apperror.Invalidf("unknown role %q", user.Role)
		}
		user.Role = role
	}

	var updated *User
	err := s.run.WithTx(ctx, func(q database.Querier) error {
		existing, err := s.users.GetByID(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.NotFoundf("user with ID %d not found", id)
		}

		count, err := s.users.CountActiveUsername(ctx, q, user.Username, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperror.Duplicatef("user with username %q already exists", user.Username)
		}

		count, err = s.users.CountActiveEmail(ctx, q, user.Email, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperror.Duplicatef("user with email %q already exists", user.Email)
		}

		existing.Username = user.Username
		existing.Email = user.Email
		if user.Role != "" {
			existing.Role = user.Role
		}
		if password != "" {
			hash, salt, err := hashPassword(password)
			if err != nil {
				return err
			}
			existing.PasswordHash = hash
			existing.Salt = salt
		}
		existing.UpdatedAt = s.now().UTC()

		if err := s.users.Update(ctx, q, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *userService) Delete(ctx context.Context, id int64) error {
	return s.run.WithTx(ctx, func(q database.Querier) error {
		existing, err := s.users.GetByID(ctx, q, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return apperror.NotFoundf("user with ID %d not found", id)
		}

		member, err := s.members.GetByUserID(ctx, q, id)
		if err != nil {
			return err
		}
		if member != nil {
			// Lock the linked member row so the loan count cannot change
			// under the delete.
			if _, err := s.members.GetByIDForUpdate(ctx, q, member.ID); err != nil {
				return err
			}
			loans, err := s.members.CountActiveLoans(ctx, q, member.ID)
			if err != nil {
				return err
			}
			if loans > 0 {
				return apperror.Conflictf("cannot delete user with ID %d: linked member has %d active loan(s)", id, loans)
			}
		}

		return s.users.SoftDelete(ctx, q, id, s.now().UTC())
	})
}

func (s *userService) GetByID(ctx context.Context, id int64) (*User, error) {
	user, err := s.users.GetByID(ctx, s.run.Querier(), id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFoundf("user with ID %d not found", id)
	}
	return user, nil
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*User, error) {
	user, err := s.users.GetByUsername(ctx, s.run.Querier(), username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFoundf("user with username %q not found", username)
	}
	return user, nil
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, s.run.Querier(), email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperror.NotFoundf("user with email %q not found", email)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context) ([]User, error) {
	return s.users.ListActive(ctx, s.run.Querier())
}

// FindByRole parses the role case-insensitively; an unknown role yields an
// empty result rather than an error.
func (s *userService) FindByRole(ctx context.Context, role string) ([]User, error) {
	parsed, ok := ParseRole(role)
	if !ok {
		return []User{}, nil
	}
	return s.users.FindByRole(ctx, s.run.Querier(), parsed)
}

func (s *userService) IsUsernameUnique(ctx context.Context, username string, excludeID int64) (bool, error) {
	count, err := s.users.CountActiveUsername(ctx, s.run.Querier(), username, excludeID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (s *userService) IsEmailUnique(ctx context.Context, email string, excludeID int64) (bool, error) {
	count, err := s.users.CountActiveEmail(ctx, s.run.Querier(), email, excludeID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Login verifies the credentials against the Argon2id hash and issues a
// signed token. Failures are indistinguishable to the caller whether the
// username or the password was wrong.
func (s *userService) Login(ctx context.Context, username, password string) (*User, string, error) {
	if !s.limiter.Allow() {
		return nil, "", apperror.Invalidf("too many login attempts, try again later")
	}

	user, err := s.users.GetByUsername(ctx, s.run.Querier(), username)
	if err != nil {
		return nil, "", err
	}
	if user == nil {
		return nil, "", apperror.Invalidf("invalid credentials")
	}

	ok, err := verifyPassword(password, user.Salt, user.PasswordHash)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		s.log.Warn("failed login attempt", map[string]interface{}{"username": username})
		return nil, "", apperror.Invalidf("invalid credentials")
	}

	now := s.now().UTC()
	token, err := signToken(user, s.auth.JWTSecret, s.auth.TokenTTL, now)
	if err != nil {
		return nil, "", err
	}

	if err := s.users.UpdateLastLogin(ctx, s.run.Querier(), user.ID, now); err != nil {
		return nil, "", err
	}
	user.LastLoginAt = &now

	return user, token, nil
}
