// Auth HTTP handlers.
//
// This file exposes the public account endpoints:
//   - POST /auth/signup   (create an account)
//   - POST /auth/login    (exchange credentials for a bearer token)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/smartlang-chat/internal/session"
)

// CredentialsRequest is the JSON payload for signup and login.
type CredentialsRequest struct {
	Username string `json:"username" example:"alice"`
	Password string `json:"password" example:"pw"`
}

// SignupResponse echoes the notice produced by a successful signup.
type SignupResponse struct {
	Notices []session.Notice `json:"notices"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token    string `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
	UserID   uint   `json:"user_id" example:"1"`
	Username string `json:"username" example:"alice"`
}

// Signup godoc
// @ID          signup
// @Summary     Create an account
// @Description Creates a user. Blank usernames or passwords are rejected and
// @Description an existing username yields 409.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
//
// @Success     201  {object} handlers.SignupResponse
// @Failure     400  {object} handlers.ErrorResponse "Missing username or password"
// @Failure     409  {object} handlers.ErrorResponse "Username already exists"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /auth/signup [post]
func (h *Handlers) Signup(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	st, err := h.ctl.Signup(c.Request.Context(), session.State{}, req.Username, req.Password)
	if err != nil {
		failFor(c, st, err)
		return
	}
	ok(c, http.StatusCreated, SignupResponse{Notices: st.Notices})
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Verifies the credentials and returns a signed bearer token. Unknown
// @Description users and wrong passwords are indistinguishable.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
//
// @Success     200  {object} handlers.LoginResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	st, tok, err := h.ctl.Login(c.Request.Context(), session.State{}, req.Username, req.Password)
	if err != nil {
		failFor(c, st, err)
		return
	}
	ok(c, http.StatusOK, LoginResponse{Token: tok, UserID: st.UserID, Username: st.Username})
}
