package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FullName     string `json:"full_name"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// ClientInfo describes the caller of a login, filled in by the handler.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type LoginRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Client   ClientInfo `json:"-"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type GoogleSignInRequest struct {
	IDToken      string     `json:"id_token"`
	ReferralCode string     `json:"referral_code,omitempty"`
	Client       ClientInfo `json:"-"`
}

type VerifyEmailRequest struct {
	Email  string     `json:"email"`
	Code   string     `json:"code"`
	Client ClientInfo `json:"-"`
}

// EmailRequest carries just an address: resend verification, forgot password.
type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

// UpdateProfileRequest changes only the fields that are present.
type UpdateProfileRequest struct {
	FullName     *string `json:"full_name"`
	Gender       *string `json:"gender"`
	Age          *int    `json:"age"`
	Phone        *string `json:"phone"`
	ProfileImage *string `json:"profile_image"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token,omitempty"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	Gender        string     `json:"gender,omitempty"`
	Age           *int       `json:"age,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	ProfileImage  string     `json:"profile_image,omitempty"`
	Role          string     `json:"role"`
	LoginProvider string     `json:"login_provider"`
	EmailVerified bool       `json:"email_verified"`
	ReferralCode  string     `json:"referral_code"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
}
