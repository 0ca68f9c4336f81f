package dto

// UpdateMeRequest is the self-service profile update; absent fields are untouched.
type UpdateMeRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,max=120"`
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Password *string `json:"password" validate:"omitempty,min=1,password_bytes"`
}

// AdminUpdateUserRequest lets an admin change any mutable user field.
type AdminUpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email,max=254"`
	Username *string `json:"username" validate:"omitempty,min=3,max=50,username_format"`
	FullName *string `json:"full_name" validate:"omitempty,max=120"`
	Password *string `json:"password" validate:"omitempty,min=1,password_bytes"`
	Role     *string `json:"role" validate:"omitempty,oneof=student instructor admin"`
	IsActive *bool   `json:"is_active"`
}
