package auth

import (
	"strconv"

	"quorum/common"
)

// IsOwner reports whether the bearer token in the Authorization header
// belongs to the user with expectedAuthorID. The signature is verified before
// the subject is trusted.
func (s *TokenService) IsOwner(expectedAuthorID int, header string) (bool, error) {
	raw, err := ExtractBearer(header)
	if err != nil {
		return false, err
	}

	claims, err := s.Verify(raw)
	if err != nil {
		return false, err
	}
	if claims.Subject == "" {
		return false, common.E(common.KindUnauthorized, "token has no subject")
	}

	return claims.Subject == strconv.Itoa(expectedAuthorID), nil
}

// RequireOwner is the common caller pattern: abort with UnauthorizedError
// unless the requester owns the resource.
func (s *TokenService) RequireOwner(expectedAuthorID int, header string) error {
	owner, err := s.IsOwner(expectedAuthorID, header)
	if err != nil {
		return err
	}
	if !owner {
		return common.E(common.KindUnauthorized, "not the author of this resource")
	}
	return nil
}
