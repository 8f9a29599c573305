package handlers

import (
	"errors"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/arzan03/tourbook/internal/auth"
	"github.com/arzan03/tourbook/internal/middleware"
	"github.com/arzan03/tourbook/internal/models"
	"github.com/arzan03/tourbook/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// AuthHandler serves the account endpoints.
type AuthHandler struct {
	svc          *services.AuthService
	cookieTTL    time.Duration
	secureCookie bool
	publicURL    string
}

func NewAuthHandler(svc *services.AuthService, cookieTTL time.Duration, secureCookie bool, publicURL string) *AuthHandler {
	return &AuthHandler{svc: svc, cookieTTL: cookieTTL, secureCookie: secureCookie, publicURL: publicURL}
}

// sendToken sets the session cookie and returns the token in the body for non-browser clients.
func (h *AuthHandler) sendToken(c *fiber.Ctx, status int, user models.User, token string) error {
	auth.SetSessionCookie(c, token, h.cookieTTL, h.secureCookie)
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"token":  token,
		"data":   fiber.Map{"user": user},
	})
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var in services.SignupInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	user, token, err := h.svc.Signup(c.UserContext(), in, h.publicURL+"/me")
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusCreated, user, token)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	user, token, err := h.svc.Login(c.UserContext(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusOK, user, token)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	auth.ClearSessionCookie(c)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "success"})
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var in struct {
		Email string `json:"email" form:"email"`
	}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	base := h.publicURL
	err := h.svc.ForgotPassword(c.UserContext(), in.Email, func(raw string) string {
		return base + "/api/v1/users/resetPassword/" + raw
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "If an account exists for that address, a reset link has been sent to it.",
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var in services.ResetPasswordInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	user, token, err := h.svc.ResetPassword(c.UserContext(), c.Params("token"), in)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusOK, user, token)
}

func (h *AuthHandler) UpdatePassword(c *fiber.Ctx) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var in services.UpdatePasswordInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	user, token, err := h.svc.UpdatePassword(c.UserContext(), me.ID, in)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusOK, user, token)
}

// GetMe returns the logged-in user.
func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, me)
}

// UpdateMe accepts JSON, or a multipart form with an optional "photo" file.
func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	var in services.UpdateMeInput
	if err := parseBody(c, &in); err != nil {
		return err
	}

	var photo *services.Photo
	file, err := c.FormFile("photo")
	switch {
	case err == nil:
		f, err := file.Open()
		if err != nil {
			return apperror.Internal(err)
		}
		defer f.Close()
		photo = &services.Photo{Reader: f, Size: file.Size, ContentType: file.Header.Get(fiber.HeaderContentType)}
	case errors.Is(err, fasthttp.ErrMissingFile), errors.Is(err, fasthttp.ErrNoMultipartForm):
	default:
		return apperror.Wrap(err, apperror.KindValidation, fiber.StatusBadRequest, "Invalid photo upload")
	}

	user, err := h.svc.UpdateMe(c.UserContext(), me.ID, in, photo)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": user},
	})
}

func (h *AuthHandler) DeleteMe(c *fiber.Ctx) error {
	me, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMe(c.UserContext(), me.ID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func currentUser(c *fiber.Ctx) (models.User, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return models.User{}, apperror.Unauthenticated("You are not logged in! Please log in to get access.")
	}
	return user, nil
}
