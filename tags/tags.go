package tags

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"quorum/auth"
	"quorum/cache"
	"quorum/common"
	"quorum/models"
)

type TagsModule struct {
	db     *gorm.DB
	tokens *auth.TokenService
}

func NewTagsModule(db *gorm.DB, tokens *auth.TokenService) *TagsModule {
	return &TagsModule{db: db, tokens: tokens}
}

func (t *TagsModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/tags", t.listTags)
	router.GET("/categories", t.listCategories)

	gated := router.Group("/")
	gated.Use(t.tokens.RequireRole(models.RoleModerator))
	{
		gated.POST("/tags", t.createTag)
		gated.DELETE("/tags/:id", t.deleteTag)
		gated.POST("/categories", t.createCategory)
		gated.PUT("/categories/:id", t.updateCategory)
		gated.DELETE("/categories/:id", t.deleteCategory)
	}
}

// TagInput is the wire form of a tag reference, used by tag creation and by
// the report/post tag reconciliation.
type TagInput struct {
	Key        string `json:"key" binding:"required"`
	CategoryID uint   `json:"category_id" binding:"required"`
}

// FindOrCreate resolves a (key, category) pair to its unique tag row,
// creating it when absent. A concurrent create racing past the lookup is
// absorbed by re-reading under the unique index.
func FindOrCreate(tx *gorm.DB, in TagInput) (models.Tag, error) {
	var tag models.Tag
	err := tx.Where("key = ? AND category_id = ?", in.Key, in.CategoryID).First(&tag).Error
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return tag, common.WrapE(common.KindInternal, "could not look up tag", err)
	}

	tag = models.Tag{Key: in.Key, CategoryID: in.CategoryID}
	if err := tx.Create(&tag).Error; err != nil {
		if rerr := tx.Where("key = ? AND category_id = ?", in.Key, in.CategoryID).First(&tag).Error; rerr == nil {
			return tag, nil
		}
		return tag, common.WrapE(common.KindConflict, "could not create tag", err)
	}
	return tag, nil
}

// FindOrCreateAll resolves every requested tag, deduplicating repeats within
// the request.
func FindOrCreateAll(tx *gorm.DB, inputs []TagInput) ([]models.Tag, error) {
	seen := make(map[string]bool, len(inputs))
	tags := make([]models.Tag, 0, len(inputs))
	for _, in := range inputs {
		key := in.Key + "/" + strconv.FormatUint(uint64(in.CategoryID), 10)
		if seen[key] {
			continue
		}
		seen[key] = true

		tag, err := FindOrCreate(tx, in)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (t *TagsModule) listTags(c *gin.Context) {
	query := t.db.Order("category_id, key")
	if category := c.Query("category"); category != "" {
		query = query.Where("category_id = ?", category)
	}

	var tags []models.Tag
	if err := query.Find(&tags).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not list tags", err))
		return
	}
	common.RespondData(c, 200, tags)
}

func (t *TagsModule) createTag(c *gin.Context) {
	var input TagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "tag key and category_id are required"))
		return
	}

	var category models.Category
	if err := t.db.First(&category, input.CategoryID).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "category not found", "could not load category"))
		return
	}

	tag, err := FindOrCreate(t.db, input)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.RespondData(c, 201, tag)
}

func (t *TagsModule) deleteTag(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.RespondError(c, common.E(common.KindValidation, "invalid tag id"))
		return
	}

	var postIDs []uint
	t.db.Table("post_tags").Where("tag_id = ?", id).Pluck("post_id", &postIDs)

	err = t.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Tag{}, id)
		if result.Error != nil {
			return common.WrapE(common.KindInternal, "could not delete tag", result.Error)
		}
		if result.RowsAffected == 0 {
			return common.E(common.KindNotFound, "tag not found")
		}

		// join rows are not covered by the row delete
		for _, table := range []string{"post_tags", "post_report_tags", "comment_report_tags"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE tag_id = ?", id).Error; err != nil {
				return common.WrapE(common.KindInternal, "could not delete tag links", err)
			}
		}
		return nil
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	for _, postID := range postIDs {
		cache.ClearPost(strconv.FormatUint(uint64(postID), 10))
	}
	common.RespondData(c, 200, gin.H{"deleted": id})
}

func (t *TagsModule) listCategories(c *gin.Context) {
	var categories []models.Category
	if err := t.db.Order("name").Find(&categories).Error; err != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not list categories", err))
		return
	}
	common.RespondData(c, 200, categories)
}

func (t *TagsModule) createCategory(c *gin.Context) {
	var input struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "category name is required"))
		return
	}

	category := models.Category{Name: input.Name}
	if err := t.db.Create(&category).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "category not found", "could not create category"))
		return
	}
	common.RespondData(c, 201, category)
}

func (t *TagsModule) updateCategory(c *gin.Context) {
	var category models.Category
	if err := t.db.First(&category, c.Param("id")).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "category not found", "could not load category"))
		return
	}

	var input struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		common.RespondError(c, common.E(common.KindValidation, "category name is required"))
		return
	}

	category.Name = input.Name
	if err := t.db.Save(&category).Error; err != nil {
		common.RespondError(c, common.FromDB(err, "category not found", "could not update category"))
		return
	}
	common.RespondData(c, 200, category)
}

func (t *TagsModule) deleteCategory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		common.RespondError(c, common.E(common.KindValidation, "invalid category id"))
		return
	}

	result := t.db.Delete(&models.Category{}, id)
	if result.Error != nil {
		common.RespondError(c, common.WrapE(common.KindInternal, "could not delete category", result.Error))
		return
	}
	if result.RowsAffected == 0 {
		common.RespondError(c, common.E(common.KindNotFound, "category not found"))
		return
	}
	common.RespondData(c, 200, gin.H{"deleted": id})
}
