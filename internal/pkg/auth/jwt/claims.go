package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims accepted by the
// chat backend. Tokens are issued by the platform's auth service; this package only
// validates them and extracts the subject identity.
type Payload struct {
	// StandardClaims embeds the JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These drive token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the user identifier the token was issued for. The identity resolver
	// maps it to a full user record at connect time.
	ID string `json:"id"`
}
