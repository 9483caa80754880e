package services

import (
	"errors"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/services/repositories"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/shared"
)

type AuthService struct {
	context.DefaultService

	jwtSvc *JWTService
	users  *repositories.UserRepository
}

const AUTH_SVC = "auth_svc"

func (svc AuthService) Id() string {
	return AUTH_SVC
}

func (svc *AuthService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *AuthService) Start() error {
	svc.jwtSvc = svc.Service(JWT_SVC).(*JWTService)
	db := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.users = repositories.NewUserRepository(db.Db())
	return nil
}

func (svc *AuthService) Register(req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	exists, err := svc.users.EmailOrUsernameExists(req.Email, req.Username)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to check existing users")
	}
	if exists {
		return nil, shared.NewConflictError(nil, "Email or username already in use")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to hash password")
	}

	user := &model.User{
		Email:    req.Email,
		Username: req.Username,
		Password: string(hashed),
		Role:     shared.RoleUser,
	}
	if err := svc.users.CreateUser(user); err != nil {
		return nil, shared.NewInternalError(err, "Failed to create user")
	}

	log.WithFields(log.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("User registered")

	return &dto.RegisterResponse{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	}, nil
}

func (svc *AuthService) Login(req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := svc.users.GetUserByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewUnauthorizedError(nil, "Invalid email or password")
		}
		return nil, shared.NewInternalError(err, "Failed to look up user")
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		return nil, shared.NewUnauthorizedError(nil, "Invalid email or password")
	}

	pair, err := svc.jwtSvc.GenerateTokenPair(user.ID, user.Role)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to generate token")
	}

	lastLogin := user.LastLogin
	if err := svc.users.UpdateLastLogin(user.ID, time.Now().UTC()); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("Failed to update last login")
	}

	return &dto.LoginResponse{
		UserID:      user.ID,
		Username:    user.Username,
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
		LastLogin:   lastLogin,
	}, nil
}

// RequiredAuth rejects requests without a valid bearer token and stores the
// caller's user id and role in the request locals.
func (svc *AuthService) RequiredAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := svc.jwtSvc.ExtractTokenFromHeader(c.Get("Authorization"))
		if err != nil {
			return shared.NewUnauthorizedError(err, "Missing or malformed token")
		}

		userID, role, err := svc.jwtSvc.VerifyJWTToken(token)
		if err != nil {
			return shared.NewUnauthorizedError(err, "Invalid or expired token")
		}

		c.Locals(shared.UserID, userID)
		c.Locals("role", role)
		return c.Next()
	}
}

// RequireRole must run after RequiredAuth.
func (svc *AuthService) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		current, _ := c.Locals("role").(string)
		if current != role {
			return shared.NewForbiddenError(nil, "Insufficient permissions")
		}
		return c.Next()
	}
}
