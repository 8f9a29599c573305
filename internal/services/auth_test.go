package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/auth"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/mail"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/store"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeMailer struct {
	welcomed []mail.Recipient
	resetURL string
	resetErr error
}

func (f *fakeMailer) Welcome(_ context.Context, to mail.Recipient, _ string) error {
	f.welcomed = append(f.welcomed, to)
	return nil
}

func (f *fakeMailer) PasswordReset(_ context.Context, _ mail.Recipient, url string) error {
	f.resetURL = url
	return f.resetErr
}

type fakePhotos struct {
	keys []string
}

func (f *fakePhotos) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if _, err := io.ReadAll(r); err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	return nil
}

type authFixture struct {
	svc    *AuthService
	users  *store.Memory[models.User]
	mailer *fakeMailer
	photos *fakePhotos
	clock  *fakeClock
}

func newAuthFixture(t *testing.T, cfg AuthConfig) *authFixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	users := store.NewMemory[models.User](store.WithScope(models.ActiveScope), store.WithUnique("email"))
	tokens := auth.NewTokenService("test-secret", 24*time.Hour).WithClock(clock.Now)
	mailer := &fakeMailer{}
	photos := &fakePhotos{}
	cfg.BcryptCost = bcrypt.MinCost
	svc := NewAuthService(users, tokens, mailer, photos, cfg, logging.Discard())
	svc.now = clock.Now
	return &authFixture{svc: svc, users: users, mailer: mailer, photos: photos, clock: clock}
}

func (f *authFixture) signup(t *testing.T, email string) (models.User, string) {
	t.Helper()
	u, tok, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Test User", Email: email, Password: "pass1234", PasswordConfirm: "pass1234",
	}, "http://localhost/me")
	require.NoError(t, err)
	return u, tok
}

func TestSignup_PasswordNeverStoredOrReturnedInPlain(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	user, token, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Laura", Email: "  Laura@Example.com ", Password: "pass1234", PasswordConfirm: "pass1234",
	}, "http://localhost/me")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "laura@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.Empty(t, user.Password)

	stored, err := f.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "pass1234", stored.Password)
	assert.True(t, auth.CheckPassword("pass1234", stored.Password))

	body, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "pass1234")
	assert.NotContains(t, string(body), stored.Password)

	require.Len(t, f.mailer.welcomed, 1)
	assert.Equal(t, "laura@example.com", f.mailer.welcomed[0].Email)
}

func TestSignup_MismatchedConfirmationPersistsNothing(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	_, _, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Bob", Email: "bob@example.com", Password: "pass1234", PasswordConfirm: "pass12345",
	}, "")
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Contains(t, err.Error(), "Passwords are not the same!")

	all, err := f.users.Find(context.Background(), unpaged(models.UserSchema))
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.mailer.welcomed)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.signup(t, "dup@example.com")

	_, _, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Other", Email: "DUP@example.com", Password: "pass1234", PasswordConfirm: "pass1234",
	}, "")
	require.Error(t, err)
	assert.True(t, mongo.IsDuplicateKeyError(err))
	assert.Equal(t, apperror.KindConflict, apperror.Normalize(err).Kind)
}

func TestLogin(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	created, _ := f.signup(t, "login@example.com")
	ctx := context.Background()

	user, token, err := f.svc.Login(ctx, "LOGIN@example.com", "pass1234")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotEmpty(t, token)

	_, _, err = f.svc.Login(ctx, "", "")
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, _, wrongPass := f.svc.Login(ctx, "login@example.com", "nope")
	_, _, unknown := f.svc.Login(ctx, "ghost@example.com", "pass1234")

	require.NoError(t, f.svc.DeleteMe(ctx, created.ID))
	_, _, deactivated := f.svc.Login(ctx, "login@example.com", "pass1234")

	for _, err := range []error{wrongPass, unknown, deactivated} {
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.KindUnauthenticated, appErr.Kind)
		assert.Equal(t, "Incorrect email or password", appErr.Message)
	}
}

func TestAuthenticate_StaleAfterPasswordChange(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	user, oldToken := f.signup(t, "stale@example.com")
	ctx := context.Background()

	f.clock.Advance(time.Hour)
	got, err := f.svc.Authenticate(ctx, oldToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	f.clock.Advance(time.Minute)
	_, newToken, err := f.svc.UpdatePassword(ctx, user.ID, UpdatePasswordInput{
		PasswordCurrent: "pass1234", Password: "newpass99", PasswordConfirm: "newpass99",
	})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, oldToken)
	assert.True(t, apperror.IsKind(err, apperror.KindStaleCredential))

	_, err = f.svc.Authenticate(ctx, newToken)
	assert.NoError(t, err)
}

func TestAuthenticate_StaleWithinSameSecond(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	user, oldToken := f.signup(t, "quick@example.com")
	ctx := context.Background()

	f.clock.Advance(200 * time.Millisecond)
	_, newToken, err := f.svc.UpdatePassword(ctx, user.ID, UpdatePasswordInput{
		PasswordCurrent: "pass1234", Password: "newpass99", PasswordConfirm: "newpass99",
	})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, oldToken)
	assert.True(t, apperror.IsKind(err, apperror.KindStaleCredential))

	_, err = f.svc.Authenticate(ctx, newToken)
	assert.NoError(t, err)

	_, loginToken, err := f.svc.Login(ctx, "quick@example.com", "newpass99")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, loginToken)
	assert.NoError(t, err)
}

func TestAuthenticate_Failures(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	user, token := f.signup(t, "gone@example.com")
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, "")
	assert.True(t, apperror.IsKind(err, apperror.KindUnauthenticated))

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidToken))

	require.NoError(t, f.svc.DeleteMe(ctx, user.ID))
	_, err = f.svc.Authenticate(ctx, token)
	assert.True(t, apperror.IsKind(err, apperror.KindUserNotFound))
}

func TestUpdatePassword_WrongCurrent(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	user, _ := f.signup(t, "pw@example.com")

	_, _, err := f.svc.UpdatePassword(context.Background(), user.ID, UpdatePasswordInput{
		PasswordCurrent: "wrong", Password: "newpass99", PasswordConfirm: "newpass99",
	})
	assert.True(t, apperror.IsKind(err, apperror.KindUnauthenticated))
}

func rawTokenFrom(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

func TestResetFlow_ConsumesTokenExactlyOnce(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	user, _ := f.signup(t, "reset@example.com")
	ctx := context.Background()

	err := f.svc.ForgotPassword(ctx, "reset@example.com", func(raw string) string {
		return "http://localhost/api/v1/users/resetPassword/" + raw
	})
	require.NoError(t, err)
	raw := rawTokenFrom(f.mailer.resetURL)
	require.NotEmpty(t, raw)

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.HashResetToken(raw), stored.PasswordResetToken)
	assert.NotEqual(t, raw, stored.PasswordResetToken)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute).Unix(), stored.PasswordResetExpires.Unix())

	f.clock.Advance(time.Minute)
	in := ResetPasswordInput{Password: "fresh-pass", PasswordConfirm: "fresh-pass"}
	got, token, err := f.svc.ResetPassword(ctx, raw, in)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	_, err = f.svc.Authenticate(ctx, token)
	assert.NoError(t, err)

	_, _, err = f.svc.ResetPassword(ctx, raw, in)
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidOrExpiredToken))

	stored, err = f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
	require.NotNil(t, stored.PasswordChangedAt)

	_, _, err = f.svc.Login(ctx, "reset@example.com", "fresh-pass")
	assert.NoError(t, err)
}

func TestResetFlow_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.signup(t, "late@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, "late@example.com", func(raw string) string { return "/" + raw }))
	raw := rawTokenFrom(f.mailer.resetURL)

	f.clock.Advance(11 * time.Minute)
	_, _, err := f.svc.ResetPassword(ctx, raw, ResetPasswordInput{Password: "fresh-pass", PasswordConfirm: "fresh-pass"})
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindInvalidOrExpiredToken, appErr.Kind)
	assert.Equal(t, 400, appErr.StatusCode)
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	uniform := newAuthFixture(t, AuthConfig{})
	assert.NoError(t, uniform.svc.ForgotPassword(context.Background(), "nobody@example.com", func(string) string { return "" }))
	assert.Empty(t, uniform.mailer.resetURL)

	reveal := newAuthFixture(t, AuthConfig{RevealUnknownEmail: true})
	err := reveal.svc.ForgotPassword(context.Background(), "nobody@example.com", func(string) string { return "" })
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindUserNotFound, appErr.Kind)
	assert.Equal(t, 404, appErr.StatusCode)
}

func TestForgotPassword_DeliveryFailureRollsBack(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	user, _ := f.signup(t, "nomail@example.com")
	f.mailer.resetErr = errors.New("smtp down")

	err := f.svc.ForgotPassword(context.Background(), "nomail@example.com", func(raw string) string { return raw })
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindNotificationDeliveryFailed, appErr.Kind)
	assert.Equal(t, 500, appErr.StatusCode)
	assert.True(t, appErr.Operational)

	stored, err := f.users.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestUpdateMe(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	user, _ := f.signup(t, "me@example.com")
	ctx := context.Background()

	_, err := f.svc.UpdateMe(ctx, user.ID, UpdateMeInput{Password: "x"}, nil)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	got, err := f.svc.UpdateMe(ctx, user.ID, UpdateMeInput{Name: "New Name"}, &Photo{
		Reader: bytes.NewReader([]byte("img")), Size: 3, ContentType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, "me@example.com", got.Email)
	require.Len(t, f.photos.keys, 1)
	assert.Equal(t, f.photos.keys[0], got.Photo)
	assert.True(t, strings.HasSuffix(got.Photo, ".png"))

	_, err = f.svc.UpdateMe(ctx, user.ID, UpdateMeInput{}, &Photo{
		Reader: strings.NewReader("x"), Size: 1, ContentType: "application/pdf",
	})
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestDeleteMe_HidesUser(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	user, _ := f.signup(t, "bye@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteMe(ctx, user.ID))

	_, err := f.users.FindByID(ctx, user.ID)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	_, err = f.users.FindOne(ctx, bson.M{"email": "bye@example.com"})
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
