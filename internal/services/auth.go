package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/auth"
	"github.com/arzan03/tourbook/internal/logging"
	"github.com/arzan03/tourbook/internal/mail"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/storage"
	"github.com/arzan03/tourbook/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier sends account e-mails.
type Notifier interface {
	Welcome(ctx context.Context, to mail.Recipient, url string) error
	PasswordReset(ctx context.Context, to mail.Recipient, url string) error
}

type AuthConfig struct {
	BcryptCost         int
	ResetTokenTTL      time.Duration
	RevealUnknownEmail bool
}

type SignupInput struct {
	Name            string `json:"name" validate:"required,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdateMeInput arrives as JSON or as multipart form fields next to the photo.
type UpdateMeInput struct {
	Name            string `json:"name" form:"name" validate:"omitempty,max=50"`
	Email           string `json:"email" form:"email" validate:"omitempty,email"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm"`
}

// Photo is an uploaded profile picture.
type Photo struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

func errBadCredentials() error {
	return apperror.Unauthenticated("Incorrect email or password")
}

func errResetToken() error {
	return apperror.New(apperror.KindInvalidOrExpiredToken, http.StatusBadRequest, "Token is invalid or has expired")
}

// AuthService implements signup, login, session resolution and the password flows.
type AuthService struct {
	users  store.Repository[models.User]
	tokens *auth.TokenService
	mailer Notifier
	photos storage.PhotoStore
	cfg    AuthConfig
	log    logging.Logger
	now    func() time.Time
}

// NewAuthService wires the service. photos may be nil when uploads are disabled.
func NewAuthService(users store.Repository[models.User], tokens *auth.TokenService, mailer Notifier,
	photos storage.PhotoStore, cfg AuthConfig, log logging.Logger) *AuthService {
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = 10 * time.Minute
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		photos: photos,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Signup validates the payload before anything is stored. The role is always "user".
func (s *AuthService) Signup(ctx context.Context, in SignupInput, welcomeURL string) (models.User, string, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := Validate(in); err != nil {
		return models.User{}, "", err
	}

	hash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return models.User{}, "", err
	}
	user, err := s.users.Create(ctx, models.User{
		Name:      in.Name,
		Email:     in.Email,
		Role:      models.RoleUser,
		Photo:     models.DefaultPhoto,
		Password:  hash,
		Active:    true,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return models.User{}, "", err
	}

	if err := s.mailer.Welcome(ctx, recipient(user), welcomeURL); err != nil {
		s.log.Warn(ctx, "welcome email failed", "user", user.ID.Hex(), "err", err)
	}

	token, err := s.tokens.IssueAfter(user.ID.Hex(), user.PasswordChangedAt)
	if err != nil {
		return models.User{}, "", err
	}
	return scrub(user), token, nil
}

// Login fails the same way for unknown, deactivated and wrong-password accounts.
func (s *AuthService) Login(ctx context.Context, email, password string) (models.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.User{}, "", apperror.Validation("Please provide email and password!")
	}

	user, err := s.users.FindOne(ctx, bson.M{"email": email})
	if apperror.IsKind(err, apperror.KindNotFound) {
		return models.User{}, "", errBadCredentials()
	}
	if err != nil {
		return models.User{}, "", err
	}
	if !auth.CheckPassword(password, user.Password) {
		return models.User{}, "", errBadCredentials()
	}

	token, err := s.tokens.IssueAfter(user.ID.Hex(), user.PasswordChangedAt)
	if err != nil {
		return models.User{}, "", err
	}
	return scrub(user), token, nil
}

// Authenticate resolves a session token to a live, active user whose password has not changed
// since the token was issued.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, apperror.Unauthenticated("You are not logged in! Please log in to get access.")
	}
	sess, err := s.tokens.Verify(token)
	if err != nil {
		return models.User{}, err
	}
	id, err := primitive.ObjectIDFromHex(sess.Subject)
	if err != nil {
		return models.User{}, apperror.InvalidToken("Invalid token. Please log in again!")
	}

	user, err := s.users.FindByID(ctx, id)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return models.User{}, apperror.New(apperror.KindUserNotFound, http.StatusUnauthorized,
			"The user belonging to this token no longer exists.")
	}
	if err != nil {
		return models.User{}, err
	}
	if sess.IssuedBefore(user.PasswordChangedAt) {
		return models.User{}, apperror.StaleCredential()
	}
	return scrub(user), nil
}

// ForgotPassword stores a hashed reset token and mails the raw one. Unknown addresses get the
// same answer as known ones unless RevealUnknownEmail is set.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(rawToken string) string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperror.Validation("Please provide your email address.")
	}

	user, err := s.users.FindOne(ctx, bson.M{"email": email})
	if apperror.IsKind(err, apperror.KindNotFound) {
		if s.cfg.RevealUnknownEmail {
			return apperror.New(apperror.KindUserNotFound, http.StatusNotFound, "There is no user with that email address.")
		}
		s.log.Info(ctx, "password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	raw, hashed, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.cfg.ResetTokenTTL).UTC()
	_, err = s.users.UpdateByID(ctx, user.ID, bson.M{"$set": bson.M{
		"passwordResetToken":   hashed,
		"passwordResetExpires": expires,
	}})
	if err != nil {
		return err
	}

	if err := s.mailer.PasswordReset(ctx, recipient(user), resetURL(raw)); err != nil {
		s.log.Warn(ctx, "password reset email failed", "user", user.ID.Hex(), "err", err)
		// The request context may be what failed; the rollback must still run.
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, rbErr := s.users.UpdateByID(rollbackCtx, user.ID, clearResetFields()); rbErr != nil {
			s.log.Error(ctx, "reset token rollback failed", "user", user.ID.Hex(), "err", rbErr)
		}
		return apperror.Wrap(err, apperror.KindNotificationDeliveryFailed, http.StatusInternalServerError,
			"There was an error sending the email. Try again later!")
	}
	return nil
}

// ResetPassword consumes a reset token. Matching on hash and expiry and writing the new password
// happen in one update, so a token works at most once.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, in ResetPasswordInput) (models.User, string, error) {
	if err := Validate(in); err != nil {
		return models.User{}, "", err
	}
	if rawToken == "" {
		return models.User{}, "", errResetToken()
	}
	hash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return models.User{}, "", err
	}

	now := s.now().UTC()
	update := clearResetFields()
	update["$set"] = bson.M{"password": hash, "passwordChangedAt": now}
	user, err := s.users.UpdateOne(ctx, bson.M{
		"passwordResetToken":   auth.HashResetToken(rawToken),
		"passwordResetExpires": bson.M{"$gt": now},
	}, update)
	if apperror.IsKind(err, apperror.KindNotFound) {
		return models.User{}, "", errResetToken()
	}
	if err != nil {
		return models.User{}, "", err
	}

	token, err := s.tokens.IssueAfter(user.ID.Hex(), user.PasswordChangedAt)
	if err != nil {
		return models.User{}, "", err
	}
	return scrub(user), token, nil
}

// UpdatePassword changes the password of a logged-in user after checking the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID primitive.ObjectID, in UpdatePasswordInput) (models.User, string, error) {
	if err := Validate(in); err != nil {
		return models.User{}, "", err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return models.User{}, "", err
	}
	if !auth.CheckPassword(in.PasswordCurrent, user.Password) {
		return models.User{}, "", apperror.Unauthenticated("Your current password is wrong.")
	}

	hash, err := auth.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return models.User{}, "", err
	}
	user, err = s.users.UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"password":          hash,
		"passwordChangedAt": s.now().UTC(),
	}})
	if err != nil {
		return models.User{}, "", err
	}

	token, err := s.tokens.IssueAfter(user.ID.Hex(), user.PasswordChangedAt)
	if err != nil {
		return models.User{}, "", err
	}
	return scrub(user), token, nil
}

// UpdateMe changes name, email and photo. Password changes go through UpdatePassword.
func (s *AuthService) UpdateMe(ctx context.Context, userID primitive.ObjectID, in UpdateMeInput, photo *Photo) (models.User, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return models.User{}, apperror.Validation("This route is not for password updates. Please use /updateMyPassword.")
	}
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := Validate(in); err != nil {
		return models.User{}, err
	}

	set := bson.M{}
	if in.Name != "" {
		set["name"] = in.Name
	}
	if in.Email != "" {
		set["email"] = in.Email
	}
	if photo != nil {
		key, err := s.storePhoto(ctx, userID, photo)
		if err != nil {
			return models.User{}, err
		}
		set["photo"] = key
	}

	var (
		user models.User
		err  error
	)
	if len(set) == 0 {
		user, err = s.users.FindByID(ctx, userID)
	} else {
		user, err = s.users.UpdateByID(ctx, userID, bson.M{"$set": set})
	}
	if err != nil {
		return models.User{}, err
	}
	return scrub(user), nil
}

// DeleteMe deactivates the account. The record stays but disappears from every default query.
func (s *AuthService) DeleteMe(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.users.UpdateByID(ctx, userID, bson.M{"$set": bson.M{"active": false}})
	return err
}

func (s *AuthService) storePhoto(ctx context.Context, userID primitive.ObjectID, photo *Photo) (string, error) {
	if s.photos == nil {
		return "", apperror.Unavailable("Photo uploads are not configured.")
	}
	ext, ok := imageExt(photo.ContentType)
	if !ok {
		return "", apperror.Validation("Not an image! Please upload only images.")
	}
	key := fmt.Sprintf("user-%s-%d.%s", userID.Hex(), s.now().UnixMilli(), ext)
	if err := s.photos.Put(ctx, key, photo.Reader, photo.Size, photo.ContentType); err != nil {
		return "", err
	}
	return key, nil
}

func imageExt(contentType string) (string, bool) {
	switch contentType {
	case "image/jpeg":
		return "jpeg", true
	case "image/png":
		return "png", true
	case "image/webp":
		return "webp", true
	case "image/gif":
		return "gif", true
	}
	return "", false
}

func clearResetFields() bson.M {
	return bson.M{"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""}}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func recipient(u models.User) mail.Recipient {
	return mail.Recipient{Name: u.Name, Email: u.Email}
}

// scrub drops credential material before a user leaves the service layer.
func scrub(u models.User) models.User {
	u.Password = ""
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	return u
}
