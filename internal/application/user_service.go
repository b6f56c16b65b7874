package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

// UserService manages accounts and their profiles.
type UserService struct {
	users        persistence.UserRepository
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users persistence.UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, hash, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users persistence.UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, hashPassword: hash, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and creates the account together with its profile.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "role", string(user.Role)).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsStaff() {
		err = ErrUnauthorized
		return
	}

	input := normalizeUserInput(params.Input)
	if input.IsSuperuser && !params.Principal.IsSuperuser {
		err = ErrUnauthorized
		return
	}
	if vErr := validateUserInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	user, err = s.create(ctx, input)
	return
}

func (s *UserService) create(ctx context.Context, input UserInput) (User, error) {
	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	record := persistence.User{
		ID:           s.idGenerator(),
		Email:        input.Email,
		DisplayName:  input.DisplayName,
		PasswordHash: hash,
		IsSuperuser:  input.IsSuperuser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile := attachDefaultProfile(record, input)

	if err := s.users.CreateUserWithProfile(ctx, record, profile); err != nil {
		return User{}, mapRepoError(err, "role", "perfil inválido")
	}
	return userFromPersistence(record, profile), nil
}

// attachDefaultProfile builds the profile every new account receives. Users
// created without a role become teachers.
func attachDefaultProfile(user persistence.User, input UserInput) persistence.Profile {
	role := input.Role
	if role == "" {
		role = RoleTeacher
	}
	return persistence.Profile{
		UserID:    user.ID,
		Role:      string(role),
		Phone:     input.Phone,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// ListUsers returns all users with their profile data for staff.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) (users []User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListUsers", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list users", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(users)).InfoContext(ctx, "users listed")
	}()

	if !principal.IsStaff() {
		err = ErrUnauthorized
		return
	}

	var records []persistence.User
	if records, err = s.users.ListUsers(ctx); err != nil {
		return
	}
	var profiles []persistence.Profile
	if profiles, err = s.users.ListProfiles(ctx); err != nil {
		return
	}
	byUser := make(map[string]persistence.Profile, len(profiles))
	for _, p := range profiles {
		byUser[p.UserID] = p
	}

	users = make([]User, len(records))
	for i, record := range records {
		users[i] = userFromPersistence(record, byUser[record.ID])
	}
	sort.Slice(users, func(i, j int) bool {
		if strings.EqualFold(users[i].DisplayName, users[j].DisplayName) {
			return users[i].Email < users[j].Email
		}
		return strings.ToLower(users[i].DisplayName) < strings.ToLower(users[j].DisplayName)
	})
	return
}

// CurrentUser returns the account and profile of the calling principal.
func (s *UserService) CurrentUser(ctx context.Context, principal Principal) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if strings.TrimSpace(principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}

	user, err = s.load(ctx, principal.UserID)
	if err != nil {
		s.loggerWith(ctx, "CurrentUser", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to load current user", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

// UpdateProfile lets a user change their own phone number.
func (s *UserService) UpdateProfile(ctx context.Context, params UpdateProfileParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateProfile", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update profile", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile updated")
	}()

	if strings.TrimSpace(params.Principal.UserID) == "" {
		err = ErrUnauthorized
		return
	}

	phone := strings.TrimSpace(params.Phone)
	if !validPhone(phone) {
		err = newValidationError("phone", "telefone inválido")
		return
	}

	var profile persistence.Profile
	if profile, err = s.users.GetProfile(ctx, params.Principal.UserID); err != nil {
		err = mapRepoError(err, "phone", "telefone inválido")
		return
	}
	profile.Phone = phone
	profile.UpdatedAt = s.now()
	if err = s.users.UpdateProfile(ctx, profile); err != nil {
		err = mapRepoError(err, "phone", "telefone inválido")
		return
	}

	user, err = s.load(ctx, params.Principal.UserID)
	return
}

func (s *UserService) load(ctx context.Context, userID string) (User, error) {
	record, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err, "user_id", "usuário inválido")
	}
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return User{}, mapRepoError(err, "user_id", "usuário inválido")
	}
	return userFromPersistence(record, profile), nil
}

// validPhone accepts digits with the usual separators and at least eight digits.
func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ', r == '-', r == '(', r == ')', r == '+':
		default:
			return false
		}
	}
	return digits >= 8 && digits <= 15
}

// BootstrapAdmin makes sure a superuser with email exists. It is a no-op when
// the account is already present.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, password string) (created bool, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	input := normalizeUserInput(UserInput{
		Email:       email,
		DisplayName: "Administrador",
		Password:    password,
		Role:        RoleAdmin,
		IsSuperuser: true,
	})
	logger := s.loggerWith(ctx, "BootstrapAdmin", "email", input.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to bootstrap admin", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("created", created).InfoContext(ctx, "admin bootstrap checked")
	}()

	if vErr := validateUserInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	_, lookupErr := s.users.GetUserByEmail(ctx, input.Email)
	switch {
	case lookupErr == nil:
		return
	case !errors.Is(lookupErr, persistence.ErrNotFound):
		err = lookupErr
		return
	}

	if _, err = s.create(ctx, input); err != nil {
		return
	}
	created = true
	return
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		DisplayName: strings.TrimSpace(input.DisplayName),
		Password:    input.Password,
		Role:        Role(strings.ToLower(strings.TrimSpace(string(input.Role)))),
		Phone:       strings.TrimSpace(input.Phone),
		IsSuperuser: input.IsSuperuser,
	}
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Email == "" {
		vErr.add("email", "e-mail é obrigatório")
	} else if _, err := mail.ParseAddress(input.Email); err != nil {
		vErr.add("email", "e-mail inválido")
	}
	if input.DisplayName == "" {
		vErr.add("display_name", "nome é obrigatório")
	}
	if len(input.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("a senha deve ter ao menos %d caracteres", minPasswordLength))
	}
	if input.Role != "" && !input.Role.Valid() {
		vErr.add("role", "perfil inválido")
	}

	return vErr
}
