package auth

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/metrics"
	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/models/dto"
	"github.com/hongminglow/lms-be/internal/users"
)

const (
	MsgIncorrectCredentials = "Incorrect email or password"
	MsgResetRequested       = "If the email exists, a reset link has been sent."
	MsgVerificationResent   = "If the email exists and is not yet verified, a verification link has been sent."
	MsgInvalidToken         = "Invalid or expired token"
	MsgUserNotFound         = "User not found"
	MsgPasswordReset        = "Password has been reset successfully."
	MsgEmailVerified        = "Email verified successfully."
	MsgEmailAlreadyVerified = "Email already verified."
)

// Notifier delivers account emails. Implementations must not block on the
// mail relay.
type Notifier interface {
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// RegisterInput is the self-service registration payload.
type RegisterInput struct {
	Email    string
	Username string
	Password string
	FullName *string
}

// VerifyResult describes the outcome of an email verification.
type VerifyResult struct {
	Email           string
	AlreadyVerified bool
}

func (r VerifyResult) Message() string {
	if r.AlreadyVerified {
		return MsgEmailAlreadyVerified
	}
	return MsgEmailVerified
}

// Service drives the account lifecycle: registration, login, email
// verification and password reset.
type Service struct {
	dir         *users.Directory
	tokens      *TokenManager
	hasher      *BcryptHasher
	notifier    Notifier
	log         zerolog.Logger
	dummyDigest string
}

func NewService(dir *users.Directory, tokens *TokenManager, hasher *BcryptHasher, notifier Notifier, log zerolog.Logger) *Service {
	s := &Service{
		dir:      dir,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		log:      log.With().Str("component", "auth").Logger(),
	}
	// Unknown identifiers still pay for one bcrypt comparison.
	if digest, err := hasher.Hash("lms-timing-equalizer"); err == nil {
		s.dummyDigest = digest
	}
	return s
}

// Register creates an active, unverified student and queues the verification
// email. Mail failures are logged and never fail the registration.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	user, err := s.dir.Create(ctx, users.NewUser{
		Email:    in.Email,
		Username: in.Username,
		Password: in.Password,
		FullName: in.FullName,
		Role:     models.RoleStudent,
		IsActive: true,
	})
	if err != nil {
		return models.User{}, err
	}

	s.log.Info().Str("user_id", user.ID.String()).Str("email", user.Email).Msg("user registered")
	s.sendVerification(ctx, user.Email)
	return user, nil
}

// Authenticate returns the user matching identifier (email, then username)
// and password, or nil when either check fails. Errors are reserved for
// infrastructure failures.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	user, err := s.dir.FindByEmail(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if user, err = s.dir.FindByUsername(ctx, identifier); err != nil {
			return nil, err
		}
	}
	if user == nil {
		if s.dummyDigest != "" {
			_, _ = s.hasher.Verify(password, s.dummyDigest)
		}
		return nil, nil
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("stored password digest is unusable")
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return user, nil
}

// Login authenticates and issues an access token. Every failure, including an
// inactive account, yields the same Unauthorized message.
func (s *Service) Login(ctx context.Context, identifier, password string) (dto.TokenResponse, error) {
	user, err := s.Authenticate(ctx, identifier, password)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	if user == nil {
		metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		return dto.TokenResponse{}, apperr.Unauthorized(MsgIncorrectCredentials)
	}
	if !user.IsActive {
		metrics.LoginAttempts.WithLabelValues("inactive").Inc()
		s.log.Warn().Str("user_id", user.ID.String()).Msg("login refused for inactive user")
		return dto.TokenResponse{}, apperr.Unauthorized(MsgIncorrectCredentials)
	}

	token, err := s.tokens.IssueAccess(*user)
	if err != nil {
		return dto.TokenResponse{}, apperr.Internal("failed to issue token", err)
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	return dto.TokenResponse{AccessToken: token, TokenType: "bearer"}, nil
}

// RequestPasswordReset queues a reset email when email belongs to a user. The
// returned acknowledgement is identical either way.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) string {
	user, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error().Err(err).Msg("password reset lookup failed")
		return MsgResetRequested
	}
	if user == nil {
		return MsgResetRequested
	}

	token, err := s.tokens.IssueReset(user.Email)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("issue reset token")
		return MsgResetRequested
	}
	if err := s.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID.String()).Msg("queue password reset email")
	}
	return MsgResetRequested
}

// ConfirmPasswordReset stores newPassword for the subject of a reset token.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	email, err := s.subject(token, TokenReset)
	if err != nil {
		return err
	}
	user, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.NotFound(MsgUserNotFound)
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		if apperr.Is(err, apperr.KindBadRequest) {
			return err
		}
		return apperr.Internal("failed to hash password", err)
	}
	if err := s.dir.SetPassword(ctx, user.ID, digest); err != nil {
		return err
	}
	s.log.Info().Str("user_id", user.ID.String()).Msg("password reset")
	return nil
}

// VerifyEmail marks the subject of a verification token as verified. A second
// call for the same user succeeds with AlreadyVerified set.
func (s *Service) VerifyEmail(ctx context.Context, token string) (VerifyResult, error) {
	email, err := s.subject(token, TokenVerification)
	if err != nil {
		return VerifyResult{}, err
	}
	user, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		return VerifyResult{}, err
	}
	if user == nil {
		return VerifyResult{}, apperr.NotFound(MsgUserNotFound)
	}
	if user.IsVerified {
		return VerifyResult{Email: user.Email, AlreadyVerified: true}, nil
	}
	if err := s.dir.SetVerified(ctx, user.ID); err != nil {
		return VerifyResult{}, err
	}
	s.log.Info().Str("user_id", user.ID.String()).Msg("email verified")
	return VerifyResult{Email: user.Email}, nil
}

// ResendVerification issues a fresh verification email to an unverified user.
// The acknowledgement does not reveal whether the address is registered.
func (s *Service) ResendVerification(ctx context.Context, email string) string {
	user, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error().Err(err).Msg("resend verification lookup failed")
		return MsgVerificationResent
	}
	if user != nil && !user.IsVerified {
		s.sendVerification(ctx, user.Email)
	}
	return MsgVerificationResent
}

func (s *Service) sendVerification(ctx context.Context, email string) {
	token, err := s.tokens.IssueVerification(email)
	if err != nil {
		s.log.Error().Err(err).Str("email", email).Msg("issue verification token")
		return
	}
	if err := s.notifier.SendVerification(ctx, email, token); err != nil {
		s.log.Error().Err(err).Str("email", email).Msg("queue verification email")
	}
}

func (s *Service) subject(token string, want TokenType) (string, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", apperr.BadRequest(MsgInvalidToken)
	}
	if claims.Expect(want) != nil || claims.Email() == "" {
		return "", apperr.BadRequest(MsgInvalidToken)
	}
	return claims.Email(), nil
}
