package database

import "xclone/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Post{},
		&models.PostLike{},
		&models.Retweet{},
	}
}
