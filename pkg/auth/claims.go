package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data the gateway asserts when minting a JWT for an acting member.
type AccessTokenPayload struct {
	ActorID     string
	CommunityID string
	Staff       bool
	JTI         string
}

// AccessTokenClaims represents the typed JWT presented on every API call.
type AccessTokenClaims struct {
	ActorID     string `json:"actor_id"`
	CommunityID string `json:"community_id"`
	Staff       bool   `json:"staff,omitempty"`
	jwt.RegisteredClaims
}
