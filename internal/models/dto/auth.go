package dto

type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email,max=254"`
	Username string  `json:"username" validate:"required,min=3,max=50,username_format"`
	Password string  `json:"password" validate:"required,password_bytes"`
	FullName *string `json:"full_name" validate:"omitempty,max=120"`
}

// LoginRequest mirrors the OAuth2 password form: username carries the email.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,password_bytes"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type VerifyEmailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Email   string `json:"email"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
