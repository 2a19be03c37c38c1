// Package models defines the request and response data structures used
// for communication between clients and the link service.
package models

import "time"

// CreateLinkRequest asks for a new short link.
type CreateLinkRequest struct {
	// Target is the destination URL. A missing scheme defaults to https.
	Target string `json:"target"`

	// Code is an optional custom short code (6-8 alphanumerics).
	Code string `json:"code,omitempty"`
}

// LinkResponse describes a single link as returned to clients.
type LinkResponse struct {
	Code        string     `json:"code"`
	Target      string     `json:"target"`
	ShortURL    string     `json:"shortUrl"`
	TotalClicks int64      `json:"totalClicks"`
	LastClicked *time.Time `json:"lastClicked"`
	Deleted     bool       `json:"deleted"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ListQuery carries the raw query-string filters of the list endpoint.
// Values are validated by the service; unparsable ones are ignored.
type ListQuery struct {
	Q         string
	Deleted   string
	MinClicks string
	MaxClicks string
	DateFrom  string
	DateTo    string
	Sort      string
	Order     string
	Limit     string
	Offset    string
}

// ListMeta is the pagination envelope of ListResponse.
type ListMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListResponse is one page of an owner's links.
type ListResponse struct {
	Meta ListMeta       `json:"meta"`
	Data []LinkResponse `json:"data"`
}

// Credentials is the body of the register and login endpoints.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoginResponse carries an issued bearer token.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresIn string       `json:"expiresIn"`
	User      UserResponse `json:"user"`
}

// OKResponse is the body of endpoints that only acknowledge success.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
