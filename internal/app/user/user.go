/*
Package user contains core data structures related to user identity.

It defines the basic representation of a chat participant used for passing user
information both internally and to clients.
*/
package user

// User represents the identity of a chat participant, resolved once at connect time.
type User struct {

	// ID is the unique identifier for the user.
	ID string `json:"id"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name"`

	// Email is the user's account email address.
	Email string `json:"email,omitempty"`

	// CompanyID scopes the user to a company chat server.
	CompanyID string `json:"-"`

	// Role is the account-level role ("user", "admin").
	Role string `json:"-"`
}

// Public returns the subset of identity fields safe to embed in fan-out events.
func (u User) Public() User {
	return User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
