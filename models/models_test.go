package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockAuthor returns an author homed on host.
func MockAuthor(t *testing.T, host, id string) Author {
	t.Helper()
	return Author{
		Type:         "author",
		ID:           fmt.Sprintf("http://%s/api/authors/%s", host, id),
		Host:         fmt.Sprintf("http://%s/api/", host),
		DisplayName:  id,
		GitHub:       "https://github.com/" + id,
		ProfileImage: "https://avatars.githubusercontent.com/u/1024?v=4",
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	require := require.New(t)
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger: logger.Default.LogMode(func() logger.LogLevel {
			return logger.Warn
		}()),
	})
	require.NoError(err)

	err = db.AutoMigrate(AllTables()...)
	require.NoError(err)

	return db
}
