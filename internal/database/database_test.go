package database_test

import (
	"testing"

	"shelfmate/backend/internal/database"
	"shelfmate/backend/internal/database/dbtest"
	"shelfmate/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MigratesAllModels(t *testing.T) {
	db := dbtest.New(t)

	for _, model := range models.All() {
		assert.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := dbtest.New(t)

	require.NoError(t, database.Migrate(db))
}

func TestUserRole_RejectsUnknownValue(t *testing.T) {
	db := dbtest.New(t)

	bad := models.User{Username: "eve", Email: "eve@example.com", PasswordHash: "x",
		SecurityQuestion: "q", SecurityAnswerHash: "a", Role: "Admin "}
	assert.Error(t, db.Create(&bad).Error)

	good := models.User{Username: "ann", Email: "ann@example.com", PasswordHash: "x",
		SecurityQuestion: "q", SecurityAnswerHash: "a"}
	require.NoError(t, db.Create(&good).Error)
	assert.Equal(t, models.RoleUser, good.Role)
}
