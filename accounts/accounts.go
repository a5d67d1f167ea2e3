package accounts

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"quorum/auth"
	"quorum/common"
	"quorum/models"
)

type AccountsModule struct {
	db     *gorm.DB
	tokens *auth.TokenService
}

func NewAccountsModule(db *gorm.DB, tokens *auth.TokenService) *AccountsModule {
	return &AccountsModule{db: db, tokens: tokens}
}

func (a *AccountsModule) RegisterRoutes(router *gin.Engine) {
	router.POST("/register", a.register)
	router.POST("/login", a.login)

	router.GET("/users", a.tokens.RequireRole(models.RoleAdmin), a.listUsers)
	router.GET("/users/:id", a.tokens.RequireAuthenticated, a.getUser)
	router.PUT("/users/:id", a.tokens.RequireAuthenticated, a.updateUser)
	router.DELETE("/users/:id", a.tokens.RequireAuthenticated, a.deleteUser)

	// user controls
	router.PUT("/users/:id/role", a.tokens.RequireRole(models.RoleAdmin), a.setRole)
	router.PUT("/users/:id/ban", a.tokens.RequireRole(models.RoleModerator), a.setBanned)
}

func (a *AccountsModule) register(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Name     string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "email, name and a password of at least 8 characters are required"))
		return
	}

	var existing models.User
	if err := a.db.Where("email = ?", input.Email).First(&existing).Error; err == nil {
		common.RespondError(c, common.E(common.KindConflict, "email is already registered"))
		return
	}

	passwordHash, err := hashPassword(input.Password)
	if err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not create account", err))
		return
	}

	user := models.User{
		Email:        strings.ToLower(input.Email),
		PasswordHash: passwordHash,
		Name:         input.Name,
		Role:         models.RoleUser,
	}
	if err := a.db.Create(&user).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "user not found", "could not create account"))
		return
	}

	common.RespondData(c, http.StatusCreated, user)
}

func (a *AccountsModule) login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "email and password are required"))
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", strings.ToLower(input.Email)).First(&user).Error; err != nil {
		common.RespondError(c, common.E(common.KindUnauthorized, "incorrect email or password"))
		return
	}
	if !checkPasswordHash(input.Password, user.PasswordHash) {
		common.RespondError(c, common.E(common.KindUnauthorized, "incorrect email or password"))
		return
	}

	token, err := a.tokens.Issue(strconv.Itoa(user.ID), user.Role)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondData(c, http.StatusOK, gin.H{"access_token": token})
}

func (a *AccountsModule) listUsers(c *gin.Context) {
	var users []models.User
	if err := a.db.Order("id").Find(&users).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not list users", err))
		return
	}
	common.RespondData(c, http.StatusOK, users)
}

func (a *AccountsModule) getUser(c *gin.Context) {
	var user models.User
	if err := a.db.First(&user, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "user not found", "could not load user"))
		return
	}
	common.RespondData(c, http.StatusOK, user)
}

func (a *AccountsModule) updateUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.RespondError(c, common.E(common.KindValidation, "invalid user id"))
		return
	}

	if err := a.tokens.RequireOwner(id, c.GetHeader("Authorization")); err != nil {
		common.RespondError(c, err)
		return
	}

	var user models.User
	if err := a.db.First(&user, id).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "user not found", "could not load user"))
		return
	}

	var input struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "invalid request body"))
		return
	}

	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Password != "" {
		if len(input.Password) < 8 {
			common.RespondError(c, common.E(common.KindValidation, "password must be at least 8 characters"))
			return
		}
		passwordHash, err := hashPassword(input.Password)
		if err != nil {
			common.RespondError(c, common.WrapE(common.KindInternal, "could not update password", err))
			return
		}
		user.PasswordHash = passwordHash
	}

	if err := a.db.Save(&user).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "user not found", "could not update user"))
		return
	}
	common.RespondData(c, http.StatusOK, user)
}

func (a *AccountsModule) deleteUser(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.RespondError(c, common.E(common.KindValidation, "invalid user id"))
		return
	}

	// self-delete, or admin override
	if err := a.tokens.RequireOwner(id, c.GetHeader("Authorization")); err != nil {
		claims, ok := auth.Principal(c)
		if !ok || !claims.Role.AtLeast(models.RoleAdmin) {
			common.RespondError(c, err)
			return
		}
	}

	result := a.db.Delete(&models.User{}, id)
	if result.Error != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete user", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		common.RespondError(c, common.E(common.KindNotFound, "user not found"))
		return
	}
	common.RespondData(c, http.StatusOK, gin.H{"deleted": id})
}

func (a *AccountsModule) setRole(c *gin.Context) {
	var input struct {
		Role models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || !input.Role.Valid() {
		common.RespondError(c, common.E(common.KindValidation, "role must be USER, MODERATOR or ADMIN"))
		return
	}

	var user models.User
	if err := a.db.First(&user, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "user not found", "could not load user"))
		return
	}

	user.Role = input.Role
	if err := a.db.Save(&user).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "user not found", "could not update role"))
		return
	}
	common.RespondData(c, http.StatusOK, user)
}

func (a *AccountsModule) setBanned(c *gin.Context) {
	var input struct {
		Banned *bool `json:"banned" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "banned flag is required"))
		return
	}

	var user models.User
	if err := a.db.First(&user, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "user not found", "could not load user"))
		return
	}

	user.Banned = *input.Banned
	if err := a.db.Save(&user).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "user not found", "could not update user"))
		return
	}
	common.RespondData(c, http.StatusOK, user)
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
