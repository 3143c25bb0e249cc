package model

// LoginRequest carries the credentials submitted on the login screen.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned on successful login.
type LoginResponse struct {
	Token    string    `json:"token"`
	Identity *Identity `json:"identity"`
}
