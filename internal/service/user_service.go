package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"bookshare/internal/models"
	"bookshare/internal/repository"
	"bookshare/internal/validation"
)

// Messages returned by account operations.
const (
	MsgPasswordsMismatch    = "Unsuccessful registration, Passwords need to match!"
	MsgInvalidAdminCode     = "Invalid admin registration code!"
	MsgUsernameTaken        = "Username already taken"
	MsgRegistered           = "Registration successful, please log in"
	MsgLoggedIn             = "Successful login"
	MsgInvalidCredentials   = "Invalid username or password"
	MsgPasswordFieldsNeeded = "All fields required to change password"
	MsgCurrentPasswordWrong = "Current Password entered incorrectly"
	MsgNewPasswordMismatch  = "New password and confirmation password do not match!"
	MsgNoChanges            = "No changes made"
	MsgDeletionRequested    = "Account deletion requested. An admin will review your request"
	MsgDeletionCancelled    = "Account deletion has been cancelled"
	MsgDetailsUpdated       = "Details updated successfully"
)

// UserService handles registration, login and self-service profile edits.
type UserService struct {
	store     repository.Store
	hasher    PasswordHasher
	adminCode string
	now       clock
}

// NewUserService wires the service. An empty adminCode disables admin sign-up.
func NewUserService(store repository.Store, hasher PasswordHasher, adminCode string) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &UserService{store: store, hasher: hasher, adminCode: adminCode}
}

func validateUsername(raw string) (string, error) {
	clean, err := validation.RequiredText(raw, "Username", models.UsernameMaxLength)
	if err != nil {
		return "", validationFailure(err)
	}
	return strings.ToLower(clean), nil
}

func validatePassword(raw, field string) (string, error) {
	clean, err := validation.RequiredText(raw, field, models.PasswordMaxLength)
	if err != nil {
		return "", validationFailure(err)
	}
	return clean, nil
}

type RegisterInput struct {
	Username        string
	Password        string
	ConfirmPassword string
	Role            string
	AdminCode       string
}

// Register creates an account. Requesting the admin role without the
// configured code fails outright rather than falling back to regular.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	username, err := validateUsername(in.Username)
	if err != nil {
		return nil, err
	}
	password, err := validatePassword(in.Password, "Password")
	if err != nil {
		return nil, err
	}
	confirm, err := validatePassword(in.ConfirmPassword, "Confirm Password")
	if err != nil {
		return nil, err
	}
	if password != confirm {
		return nil, models.NewValidationError(MsgPasswordsMismatch)
	}

	role := models.RoleRegular
	if strings.TrimSpace(in.Role) != "" {
		parsed, ok := models.ParseRole(strings.ToLower(strings.TrimSpace(in.Role)))
		if !ok {
			return nil, models.NewValidationError(MsgInvalidRole)
		}
		role = parsed
	}
	if role == models.RoleAdmin && !s.adminCodeMatches(in.AdminCode) {
		return nil, models.NewForbiddenError(MsgInvalidAdminCode)
	}

	existing, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		return nil, unexpected(ctx, "user.get_by_username", err)
	}
	if existing != nil {
		return nil, models.NewBusinessRuleError(MsgUsernameTaken)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, unexpected(ctx, "password.hash", err)
	}

	user := &models.User{
		Username: username,
		Password: hash,
		Role:     role,
		JoinDate: s.now.today(),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewBusinessRuleError(MsgUsernameTaken)
		}
		return nil, unexpected(ctx, "user.create", err)
	}
	return user, nil
}

func (s *UserService) adminCodeMatches(code string) bool {
	if s.adminCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(s.adminCode)) == 1
}

// Authenticate checks the credentials and returns the account on success.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	name, err := validateUsername(username)
	if err != nil {
		return nil, err
	}
	plain, err := validatePassword(password, "Password")
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByUsername(ctx, name)
	if err != nil {
		return nil, unexpected(ctx, "user.get_by_username", err)
	}
	if user == nil || !s.hasher.Compare(user.Password, plain) {
		return nil, models.NewUnauthorizedError(MsgInvalidCredentials)
	}
	return user, nil
}

// GetUser loads one account.
func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(ctx, "user.get", err, MsgOwnerNotFound)
	}
	return user, nil
}

// UpdateProfileInput carries a self-service edit. Empty password fields mean
// no password change. ToggleDeletion flips the stored deletion request flag.
type UpdateProfileInput struct {
	UserID          uint
	Username        *string
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
	ToggleDeletion  bool
}

// UpdateProfileResult is the refreshed account and the message describing
// what changed.
type UpdateProfileResult struct {
	User    *models.User
	Message string
}

// UpdateProfile applies username, password and deletion-request changes.
// When the username or password changed, that message wins over the
// deletion request message.
func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*UpdateProfileResult, error) {
	var result *UpdateProfileResult
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByID(ctx, in.UserID)
		if err != nil {
			return notFoundAs(ctx, "user.get", err, MsgOwnerNotFound)
		}

		changes := map[string]interface{}{}
		detailsChanged := false

		if in.Username != nil {
			username, err := validateUsername(*in.Username)
			if err != nil {
				return err
			}
			if username != user.Username {
				existing, err := tx.Users().GetByUsername(ctx, username)
				if err != nil {
					return unexpected(ctx, "user.get_by_username", err)
				}
				if existing != nil && existing.ID != user.ID {
					return models.NewBusinessRuleError(MsgUsernameTaken)
				}
				changes["username"] = username
				detailsChanged = true
			}
		}

		if in.OldPassword != "" || in.NewPassword != "" || in.ConfirmPassword != "" {
			hash, err := s.passwordChange(user, in)
			if err != nil {
				return err
			}
			changes["password"] = hash
			detailsChanged = true
		}

		message := MsgDetailsUpdated
		if in.ToggleDeletion {
			marked := !user.MarkedForDeletion
			changes["marked_for_deletion"] = marked
			if !detailsChanged {
				message = MsgDeletionCancelled
				if marked {
					message = MsgDeletionRequested
				}
			}
		}

		if len(changes) == 0 {
			return models.NewNoChangesError(MsgNoChanges)
		}

		if err := tx.Users().UpdateFields(ctx, user.ID, changes); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return models.NewBusinessRuleError(MsgUsernameTaken)
			}
			return unexpected(ctx, "user.update", err)
		}

		refreshed, err := tx.Users().GetByID(ctx, user.ID)
		if err != nil {
			return unexpected(ctx, "user.reload", err)
		}
		result = &UpdateProfileResult{User: refreshed, Message: message}
		return nil
	})
	if err != nil {
		return nil, unexpected(ctx, "tx", err)
	}
	return result, nil
}

func (s *UserService) passwordChange(user *models.User, in UpdateProfileInput) (string, error) {
	if in.OldPassword == "" || in.NewPassword == "" || in.ConfirmPassword == "" {
		return "", models.NewValidationError(MsgPasswordFieldsNeeded)
	}
	if !s.hasher.Compare(user.Password, in.OldPassword) {
		return "", models.NewUnauthorizedError(MsgCurrentPasswordWrong)
	}
	newPassword, err := validatePassword(in.NewPassword, "New Password")
	if err != nil {
		return "", err
	}
	confirm, err := validatePassword(in.ConfirmPassword, "Confirm Password")
	if err != nil {
		return "", err
	}
	if newPassword != confirm {
		return "", models.NewValidationError(MsgNewPasswordMismatch)
	}
	return s.hasher.Hash(newPassword)
}
