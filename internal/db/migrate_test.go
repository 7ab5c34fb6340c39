package db_test

import (
	"context"
	"testing"

	"retail_pos/internal/db"
	"retail_pos/internal/domain"
	"retail_pos/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSeedAdminCreatesOnce(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()

	require.NoError(t, db.SeedAdmin(ctx, gdb, "admin@gmail.com", "testpassword"))
	require.NoError(t, db.SeedAdmin(ctx, gdb, "admin@gmail.com", "other"))

	var admins []domain.User
	require.NoError(t, gdb.Where("role = ?", domain.RoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@gmail.com", admins[0].Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admins[0].Password), []byte("testpassword")))
}

func TestSeedAdminRestoresDemotedBootstrapAdmin(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()

	require.NoError(t, db.SeedAdmin(ctx, gdb, "admin@gmail.com", "testpassword"))
	require.NoError(t, gdb.Model(&domain.User{}).Where("email = ?", "admin@gmail.com").Update("role", domain.RoleUser).Error)

	require.NoError(t, db.SeedAdmin(ctx, gdb, "admin@gmail.com", "testpassword"))

	var users []domain.User
	require.NoError(t, gdb.Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
}
