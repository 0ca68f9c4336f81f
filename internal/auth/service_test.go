package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/models"
	"github.com/hongminglow/lms-be/internal/storage/memory"
	"github.com/hongminglow/lms-be/internal/users"
)

type sentMail struct {
	kind  string
	email string
	token string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) SendVerification(_ context.Context, email, token string) error {
	return n.record("verification", email, token)
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	return n.record("reset", email, token)
}

func (n *fakeNotifier) record(kind, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{kind: kind, email: email, token: token})
	return n.err
}

func (n *fakeNotifier) last(t *testing.T, kind string) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", kind)
	return sentMail{}
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type fixture struct {
	svc      *Service
	gate     *Gate
	dir      *users.Directory
	tokens   *TokenManager
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher := NewBcryptHasher(bcrypt.MinCost)
	dir := users.NewDirectory(memory.NewUserStore(), hasher)
	tokens := newTestTokens(t)
	notifier := &fakeNotifier{}
	return &fixture{
		svc:      NewService(dir, tokens, hasher, notifier, zerolog.Nop()),
		gate:     NewGate(tokens, dir),
		dir:      dir,
		tokens:   tokens,
		notifier: notifier,
	}
}

func (f *fixture) register(t *testing.T, email, username, password string) models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), RegisterInput{Email: email, Username: username, Password: password})
	require.NoError(t, err)
	return u
}

func TestRegisterCreatesUnverifiedStudentAndSendsVerification(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "a@x.com", "alice", "pw123")

	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, models.RoleStudent, u.Role)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsVerified)
	assert.NotEqual(t, "pw123", u.PasswordHash)

	mail := f.notifier.last(t, "verification")
	assert.Equal(t, "a@x.com", mail.email)
	claims, err := f.tokens.Verify(mail.token)
	require.NoError(t, err)
	assert.Equal(t, TokenVerification, claims.Kind())
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestRegisterConflict(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "alice", "pw123")

	_, err := f.svc.Register(context.Background(), RegisterInput{Email: "A@X.com", Username: "other", Password: "pw"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.svc.Register(context.Background(), RegisterInput{Email: "b@x.com", Username: "alice", Password: "pw"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestRegisterSurvivesNotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("queue full")

	u, err := f.svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Username: "alice", Password: "pw123"})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "alice", "pw123")
	ctx := context.Background()

	byEmail, err := f.svc.Authenticate(ctx, "a@x.com", "pw123")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "a@x.com", byEmail.Email)

	byUsername, err := f.svc.Authenticate(ctx, "alice", "pw123")
	require.NoError(t, err)
	require.NotNil(t, byUsername)
	assert.Equal(t, byEmail.ID, byUsername.ID)

	wrong, err := f.svc.Authenticate(ctx, "a@x.com", "nope")
	require.NoError(t, err)
	assert.Nil(t, wrong)

	unknown, err := f.svc.Authenticate(ctx, "ghost@x.com", "pw123")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "alice", "pw123")
	ctx := context.Background()

	_, wrongPassword := f.svc.Login(ctx, "a@x.com", "nope")
	_, unknownEmail := f.svc.Login(ctx, "ghost@x.com", "pw123")
	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.True(t, apperr.Is(wrongPassword, apperr.KindUnauthorized))
}

func TestLoginIssuesAccessToken(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "a@x.com", "alice", "pw123")

	tok, err := f.svc.Login(context.Background(), "a@x.com", "pw123")
	require.NoError(t, err)
	assert.Equal(t, "bearer", tok.TokenType)

	claims, err := f.tokens.Verify(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, TokenAccess, claims.Kind())
	assert.Equal(t, "a@x.com", claims.Email())
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, u.ID.String(), claims.UserID)
}

func TestLoginRefusesInactiveUser(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "a@x.com", "alice", "pw123")
	inactive := false
	_, err := f.dir.Update(context.Background(), u.ID, users.Update{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.svc.Login(context.Background(), "a@x.com", "pw123")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	assert.Contains(t, err.Error(), MsgIncorrectCredentials)
}

func TestVerifyEmailIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "alice", "pw123")
	token := f.notifier.last(t, "verification").token
	ctx := context.Background()

	first, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.False(t, first.AlreadyVerified)
	assert.Equal(t, MsgEmailVerified, first.Message())
	assert.Equal(t, "a@x.com", first.Email)

	u, err := f.dir.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, u.IsVerified)

	second, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, second.AlreadyVerified)
	assert.Equal(t, MsgEmailAlreadyVerified, second.Message())
}

func TestVerifyEmailRejectsWrongTokenKinds(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "a@x.com", "alice", "pw123")
	ctx := context.Background()

	reset, err := f.tokens.IssueReset("a@x.com")
	require.NoError(t, err)
	access, err := f.tokens.IssueAccess(u)
	require.NoError(t, err)

	for name, tok := range map[string]string{"reset": reset, "access": access, "garbage": "not-a-token"} {
		_, err := f.svc.VerifyEmail(ctx, tok)
		require.Error(t, err, name)
		assert.True(t, apperr.Is(err, apperr.KindBadRequest), name)
	}
}

func TestVerifyEmailUnknownSubject(t *testing.T) {
	f := newFixture(t)
	tok, err := f.tokens.IssueVerification("ghost@x.com")
	require.NoError(t, err)

	_, err = f.svc.VerifyEmail(context.Background(), tok)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "alice", "pw123")
	ctx := context.Background()

	msg := f.svc.RequestPasswordReset(ctx, "a@x.com")
	assert.Equal(t, MsgResetRequested, msg)
	token := f.notifier.last(t, "reset").token

	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, token, "newpass"))

	u, err := f.svc.Authenticate(ctx, "a@x.com", "newpass")
	require.NoError(t, err)
	assert.NotNil(t, u)

	old, err := f.svc.Authenticate(ctx, "a@x.com", "pw123")
	require.NoError(t, err)
	assert.Nil(t, old)
}

func TestRequestPasswordResetDoesNotEnumerate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "alice", "pw123")
	before := f.notifier.count()

	unknown := f.svc.RequestPasswordReset(context.Background(), "ghost@x.com")
	known := f.svc.RequestPasswordReset(context.Background(), "a@x.com")

	assert.Equal(t, known, unknown)
	assert.Equal(t, before+1, f.notifier.count(), "only the existing user gets mail")
}

func TestConfirmPasswordResetRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "alice", "pw123")
	ctx := context.Background()

	verification, err := f.tokens.IssueVerification("a@x.com")
	require.NoError(t, err)
	err = f.svc.ConfirmPasswordReset(ctx, verification, "x")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	expired, err := f.tokens.Issue(Claims{Type: TokenReset, RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com"}}, -time.Minute)
	require.NoError(t, err)
	err = f.svc.ConfirmPasswordReset(ctx, expired, "x")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	ghost, err := f.tokens.IssueReset("ghost@x.com")
	require.NoError(t, err)
	err = f.svc.ConfirmPasswordReset(ctx, ghost, "x")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "alice", "pw123")
	ctx := context.Background()
	before := f.notifier.count()

	assert.Equal(t, MsgVerificationResent, f.svc.ResendVerification(ctx, "a@x.com"))
	assert.Equal(t, before+1, f.notifier.count())

	assert.Equal(t, MsgVerificationResent, f.svc.ResendVerification(ctx, "ghost@x.com"))
	assert.Equal(t, before+1, f.notifier.count())

	_, err := f.svc.VerifyEmail(ctx, f.notifier.last(t, "verification").token)
	require.NoError(t, err)
	assert.Equal(t, MsgVerificationResent, f.svc.ResendVerification(ctx, "a@x.com"))
	assert.Equal(t, before+1, f.notifier.count(), "verified users get no mail")
}

func TestGateResolve(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "a@x.com", "alice", "pw123")
	ctx := context.Background()

	tok, err := f.svc.Login(ctx, "a@x.com", "pw123")
	require.NoError(t, err)
	got, err := f.gate.Resolve(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	verification, err := f.tokens.IssueVerification("a@x.com")
	require.NoError(t, err)
	vanished, err := f.tokens.IssueAccess(models.User{ID: uuid.New(), Email: "ghost@x.com", Role: models.RoleAdmin})
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"empty":        "",
		"garbage":      "abc.def.ghi",
		"verification": verification,
		"vanished":     vanished,
	} {
		_, err := f.gate.Resolve(ctx, raw)
		require.Error(t, err, name)
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized), name)
		assert.Contains(t, err.Error(), MsgCouldNotValidate, name)
	}
}

func TestGuards(t *testing.T) {
	student := models.User{Email: "s@x.com", Role: models.RoleStudent, IsActive: true}
	admin := models.User{Email: "a@x.com", Role: models.RoleAdmin, IsActive: true}
	inactiveAdmin := models.User{Email: "i@x.com", Role: models.RoleAdmin}

	adminOnly := Chain(RequireActive, RequireAdmin)

	_, err := adminOnly(student)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	got, err := adminOnly(admin)
	require.NoError(t, err)
	assert.Equal(t, admin.Email, got.Email)

	_, err = adminOnly(inactiveAdmin)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest), "inactive check runs first")

	_, err = RequireActive(student)
	assert.NoError(t, err)
}

func TestConfirmPasswordResetRejectsOverlongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "a@x.com", "alice", "pw123")
	token, err := f.tokens.IssueReset("a@x.com")
	require.NoError(t, err)

	err = f.svc.ConfirmPasswordReset(context.Background(), token, strings.Repeat("é", 72))
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}
