package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"asset-tracker/internal/logger"
	"asset-tracker/internal/models"
	"asset-tracker/internal/store"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ehrPattern = regexp.MustCompile(`^\d{7}$`)

type UserInput struct {
	EHRNumber string          `json:"ehr_number" binding:"required"`
	RealName  string          `json:"real_name" binding:"required"`
	Group     string          `json:"group" binding:"required"`
	Role      models.UserRole `json:"role"`
	Password  string          `json:"password" binding:"required"`
}

// UserUpdate carries the fields an admin may change. Nil means unchanged.
type UserUpdate struct {
	RealName *string          `json:"real_name"`
	Group    *string          `json:"group"`
	Role     *models.UserRole `json:"role"`
	Password *string          `json:"password"`
}

func (u UserUpdate) empty() bool {
	return u.RealName == nil && u.Group == nil && u.Role == nil && u.Password == nil
}

type Users struct {
	d    Deps
	log  *logger.Logger
	cost int
}

func NewUsers(d Deps) *Users {
	return &Users{d: d, log: d.Log.With("component", "users"), cost: bcrypt.DefaultCost}
}

// Authenticate checks credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *Users) Authenticate(ctx context.Context, ehr, password string) (*models.User, error) {
	u, err := s.d.Store.UserByEHR(ctx, strings.TrimSpace(ehr))
	if err != nil {
		if isNotFound(err) {
			return nil, newErr(KindUnauthorized, "invalid credentials")
		}
		return nil, fmt.Errorf("load user %s: %w", ehr, err)
	}
	if s.d.Warehouse.Is(u) {
		return nil, newErr(KindUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, newErr(KindUnauthorized, "invalid credentials")
	}
	return u, nil
}

func (s *Users) Get(ctx context.Context, id uint) (*models.User, error) {
	u, err := s.d.Store.UserByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "user", id)
	}
	return u, nil
}

func (s *Users) List(ctx context.Context) ([]models.User, error) {
	users, err := s.d.Store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Users) Create(ctx context.Context, in UserInput, actor Actor) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can create users")
	}
	ehr := strings.TrimSpace(in.EHRNumber)
	if !ehrPattern.MatchString(ehr) {
		return nil, invalid("ehr number must be 7 digits")
	}
	if ehr == s.d.Warehouse.EHR {
		return nil, forbidden("ehr number %s is reserved", ehr)
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, invalid("invalid role %q", role)
	}
	if strings.TrimSpace(in.RealName) == "" || strings.TrimSpace(in.Group) == "" || in.Password == "" {
		return nil, invalid("name, group and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		EHRNumber:    ehr,
		RealName:     strings.TrimSpace(in.RealName),
		Group:        strings.TrimSpace(in.Group),
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := s.d.Store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, conflict("ehr number %s already exists", ehr)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user created", "user_id", u.ID, "actor_id", actor.ID)
	return u, nil
}

func (s *Users) Delete(ctx context.Context, id uint, actor Actor) error {
	if !actor.IsAdmin() {
		return forbidden("only admins can delete users")
	}
	if id == actor.ID {
		return forbidden("you cannot delete yourself")
	}
	return s.d.Store.Transaction(ctx, func(tx *store.Store) error {
		u, err := tx.UserByID(ctx, id)
		if err != nil {
			return lookupErr(err, "user", id)
		}
		if s.d.Warehouse.Is(u) {
			return forbidden("the warehouse user cannot be deleted")
		}
		if err := tx.DeleteUser(ctx, u); err != nil {
			return fmt.Errorf("delete user %d: %w", id, err)
		}
		s.log.Info("user deleted", "user_id", id, "actor_id", actor.ID)
		return nil
	})
}

// Update changes a user's profile. A group change is copied onto the
// holder_group of every live asset they hold, in the same transaction.
func (s *Users) Update(ctx context.Context, id uint, in UserUpdate, actor Actor) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("only admins can update users")
	}
	if in.empty() {
		return nil, invalid("nothing to update")
	}
	err := s.d.Store.Transaction(ctx, func(tx *store.Store) error {
		u, err := tx.LockUser(ctx, id)
		if err != nil {
			return lookupErr(err, "user", id)
		}
		if s.d.Warehouse.Is(u) && (in.Role != nil || in.Password != nil) {
			return forbidden("the warehouse user's role and password are fixed")
		}

		if in.RealName != nil {
			name := strings.TrimSpace(*in.RealName)
			if name == "" {
				return invalid("name cannot be empty")
			}
			u.RealName = name
		}
		if in.Role != nil {
			if !in.Role.Valid() {
				return invalid("invalid role %q", *in.Role)
			}
			if id == actor.ID && *in.Role != u.Role {
				return forbidden("you cannot change your own role")
			}
			u.Role = *in.Role
		}
		if in.Password != nil {
			if *in.Password == "" {
				return invalid("password cannot be empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), s.cost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			u.PasswordHash = string(hash)
		}
		regroup := false
		if in.Group != nil {
			group := strings.TrimSpace(*in.Group)
			if group == "" {
				return invalid("group cannot be empty")
			}
			regroup = group != u.Group
			u.Group = group
		}

		if err := tx.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("update user %d: %w", id, err)
		}
		if regroup {
			n, err := tx.SyncHolderGroup(ctx, u.ID, u.Group)
			if err != nil {
				return fmt.Errorf("sync holder group of user %d: %w", id, err)
			}
			s.log.Info("holder group resynced", "user_id", id, "group", u.Group, "assets", n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user updated", "user_id", id, "actor_id", actor.ID)
	return s.Get(ctx, id)
}
