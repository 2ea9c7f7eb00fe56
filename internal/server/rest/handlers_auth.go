package rest

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/services"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
	All          bool   `json:"all"`
}

type profileRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=100"`
	Phone   *string `json:"phone" validate:"omitempty,max=32"`
	Address *string `json:"address" validate:"omitempty,max=255"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,password"`
}

const forgotPasswordMessage = "if that email is registered, a password reset link has been sent"

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, common.ErrValidation):
		return "validation"
	case errors.Is(err, common.ErrEmailTaken):
		return "email_taken"
	case errors.Is(err, common.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, common.ErrNoToken):
		return "no_token"
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, common.ErrTokenExpired):
		return "expired_token"
	case errors.Is(err, common.ErrUnknownToken):
		return "unknown_token"
	case errors.Is(err, common.ErrUserGone):
		return "user_gone"
	case errors.Is(err, common.ErrInvalidOrExpired):
		return "invalid_or_expired"
	case errors.Is(err, common.ErrOAuthFailure):
		return "oauth_failure"
	default:
		return "error"
	}
}

// decodeAndCheck decodes the body into req and validates it.
func (s *Server) decodeAndCheck(r *http.Request, req any) error {
	if err := decodeJSON(r, req, false); err != nil {
		return err
	}
	return s.check(req)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decodeAndCheck(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.users.Register(r.Context(), services.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password})
	authEvent("register", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeAndCheck(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.users.Login(r.Context(), req.Email, req.Password)
	authEvent("login", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decodeAndCheck(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	pair, err := s.users.Refresh(r.Context(), req.RefreshToken)
	authEvent("refresh", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	u, err := s.users.Me(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: newUserView(u)})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	u, err := s.users.Me(r.Context(), id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string   `json:"message"`
		User    userView `json:"user"`
	}{Message: "token is valid", User: newUserView(u)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())
	if _, err := s.users.Logout(r.Context(), id, req.RefreshToken, req.All); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out")
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := s.decodeAndCheck(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())
	u, err := s.users.UpdateProfile(r.Context(), id.UserID, models.Profile{Name: req.Name, Phone: req.Phone, Address: req.Address})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: newUserView(u)})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := s.decodeAndCheck(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())
	pair, err := s.users.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword)
	authEvent("change_password", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Message:      "password changed",
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := s.decodeAndCheck(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.reset.RequestReset(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, forgotPasswordMessage)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.decodeAndCheck(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := s.reset.CompleteReset(r.Context(), req.Token, req.Password)
	authEvent("reset_password", err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password has been reset")
}
