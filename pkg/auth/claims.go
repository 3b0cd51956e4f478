package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kairos100/swissluca-backend/pkg/enums"
)

// AccessTokenPayload is what a minted token asserts about its holder.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims is the JWT body accepted by the API. The subject
// mirrors user_id for tooling that only reads registered claims.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

var errNoUser = errors.New("token carries no user id")

// Validate runs after jwt's own time and issuer checks.
func (c AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errNoUser
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token carries invalid role %q", c.Role)
	}
	if c.Subject != "" && c.Subject != c.UserID.String() {
		return errors.New("token subject does not match user id")
	}
	return nil
}
