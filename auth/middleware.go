package auth

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quorum/common"
	"quorum/models"
)

// principalKey is where verified claims live in the gin context.
const principalKey = "principal"

// Principal returns the verified claims stashed by RequireAuthenticated.
func Principal(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// PrincipalID returns the numeric user id of the verified principal.
func PrincipalID(c *gin.Context) (int, bool) {
	claims, ok := Principal(c)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return 0, false
	}
	return id, true
}

// RequireAuthenticated rejects requests without a valid bearer token and
// stashes the verified claims for downstream handlers.
func (s *TokenService) RequireAuthenticated(c *gin.Context) {
	raw, err := ExtractBearer(c.GetHeader("Authorization"))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	claims, err := s.Verify(raw)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	c.Set(principalKey, claims)
	c.Next()
}

// RequireRole continues only if the verified role claim satisfies min. The
// token signature is always checked before the claim is trusted, and the
// check runs before any persistence access.
func (s *TokenService) RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Principal(c)
		if !ok {
			raw, err := ExtractBearer(c.GetHeader("Authorization"))
			if err != nil {
				common.RespondError(c, err)
				return
			}
			claims, err = s.Verify(raw)
			if err != nil {
				common.RespondError(c, err)
				return
			}
			c.Set(principalKey, claims)
		}

		if !claims.Role.AtLeast(min) {
			switch min {
			case models.RoleAdmin:
				common.RespondError(c, common.E(common.KindUnauthorized, "Only ADMIN authorized"))
			default:
				common.RespondError(c, common.E(common.KindUnauthorized, "Only Mod or Admin allowed"))
			}
			return
		}

		c.Next()
	}
}

// RequireNotBanned rejects mutating requests from banned accounts. Runs after
// RequireAuthenticated.
func RequireNotBanned(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := PrincipalID(c)
		if !ok {
			common.RespondError(c, common.E(common.KindUnauthorized, "Authentication token not found"))
			return
		}

		var user models.User
		if err := db.First(&user, id).Error; err != nil {
			common.RespondError(c, common.FromDB(err, "user not found", "could not load user"))
			return
		}
		if user.Banned {
			common.RespondError(c, common.E(common.KindUnauthorized, "account is banned"))
			return
		}

		c.Next()
	}
}
