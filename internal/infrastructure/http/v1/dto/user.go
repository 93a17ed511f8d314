package dto

import "invoicer/internal/domain/catalogs/user"

// UserResponse is the API view of a user. The password hash never leaves the server.
type UserResponse struct {
	BaseResponse
	UserNumber  string `json:"userNumber"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	Country     string `json:"country"`
	VATID       string `json:"vatId,omitempty"`
}

// FromUser maps user.User to UserResponse.
func FromUser(u *user.User) UserResponse {
	return UserResponse{
		BaseResponse: FromBase(u.BaseEntity),
		UserNumber:   u.UserNumber,
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Role:         u.Role,
		Country:      u.Country,
		VATID:        u.VATID,
	}
}

// CreateUserRequest registers a user.
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"displayName" binding:"required"`
	Role        string `json:"role" binding:"required"`
	Country     string `json:"country" binding:"required"`
	VATID       string `json:"vatId"`
	Password    string `json:"password"`
}

// ToUser builds a new user.
func (r CreateUserRequest) ToUser() *user.User {
	u := user.NewUser(r.Email, r.DisplayName, r.Role, r.Country)
	u.VATID = r.VATID
	u.Normalize()
	return u
}
