package store

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/hg554889/team-tracker-2-sub001/backend/internal/collab"
)

func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&collab.Session{}); err != nil {
		return nil, err
	}
	return db, nil
}
