package services

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"fest-event-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRegisterUser_WaitsForApproval(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.Auth.RegisterUser(RegisterUserInput{Name: "Meera", Email: " Meera@College.edu ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "meera@college.edu", user.Email)
	assert.Equal(t, models.RoleJudge, user.Role)
	assert.False(t, user.IsApproved)

	_, err = env.Auth.RegisterUser(RegisterUserInput{Name: "Again", Email: "meera@college.edu", Password: "correct-horse"})
	assert.Equal(t, 409, statusCode(err))
	_, err = env.Auth.RegisterUser(RegisterUserInput{Name: "Short", Email: "short@college.edu", Password: "short"})
	assert.Equal(t, 400, statusCode(err))

	_, _, err = env.Auth.LoginUser("meera@college.edu", "correct-horse")
	assert.Equal(t, 403, statusCode(err))

	// a token issued before approval is not honoured either
	early, err := env.Auth.IssueToken(KindUser, user.ID, user.Role)
	require.NoError(t, err)
	_, err = env.Auth.Resolve(early)
	assert.Equal(t, 401, statusCode(err))

	approved, err := env.Users.ApproveUser(user.ID, "admin-1")
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "admin-1", *approved.ApprovedBy)

	_, err = env.Users.ApproveUser(user.ID, "admin-1")
	assert.Equal(t, 400, statusCode(err))

	_, _, err = env.Auth.LoginUser("meera@college.edu", "wrong-password")
	assert.Equal(t, 401, statusCode(err))

	token, logged, err := env.Auth.LoginUser("MEERA@college.edu", "correct-horse")
	require.NoError(t, err)
	assert.NotNil(t, logged.LastLoginAt)

	principal, err := env.Auth.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, KindUser, principal.Kind)
	assert.Equal(t, user.ID, principal.ID)
	assert.Equal(t, models.RoleJudge, principal.Role)

	require.NoError(t, env.Users.DeleteUser(user.ID, "admin-1"))
	_, err = env.Auth.Resolve(token)
	assert.Equal(t, 401, statusCode(err), "deleted accounts lose access")
}

func TestLoginUser_LastLoginFailureIsLoggedNotFatal(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Auth.SeedAdmin("chief@fest.test", "admin-password"))

	require.NoError(t, env.DB.Callback().Update().Before("gorm:update").Register("test:fail_updates", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("disk full"))
	}))

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	token, user, err := env.Auth.LoginUser("chief@fest.test", "admin-password")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Nil(t, user.LastLoginAt)
	assert.Contains(t, buf.String(), "Failed to record last login for chief@fest.test")
	assert.Contains(t, buf.String(), "disk full")
}

func TestLoginParticipant_WithIssuedPassword(t *testing.T) {
	env := newTestEnv(t)
	se := env.subEvent(t, "Dance", 0)

	res, err := env.Registration.Submit(context.Background(), registrationInput(1, 0, se.ID), nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.Password)

	_, _, err = env.Auth.LoginParticipant("student1@college.edu", "nope")
	assert.Equal(t, 401, statusCode(err))

	token, p, err := env.Auth.LoginParticipant("Student1@College.edu", res.Password)
	require.NoError(t, err)
	assert.Equal(t, res.Participant.ID, p.ID)
	assert.Len(t, p.Events, 1)

	principal, err := env.Auth.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, KindParticipant, principal.Kind)
	assert.Equal(t, models.RoleParticipant, principal.Role)
	require.NotNil(t, principal.Participant)
}

func TestResolve_RejectsForeignAndExpiredTokens(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Auth.SeedAdmin("root@college.edu", "super-secret"))
	require.NoError(t, env.Auth.SeedAdmin("root@college.edu", "ignored"), "seeding twice is a no-op")

	token, admin, err := env.Auth.LoginUser("root@college.edu", "super-secret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)

	other := NewAuthService(env.DB, "another-secret", time.Hour)
	_, err = other.Resolve(token)
	assert.Equal(t, 401, statusCode(err))

	expired := NewAuthService(env.DB, "test-secret", -time.Minute)
	stale, err := expired.IssueToken(KindUser, admin.ID, admin.Role)
	require.NoError(t, err)
	_, err = env.Auth.Resolve(stale)
	assert.Equal(t, 401, statusCode(err))

	_, err = env.Auth.Resolve("not-a-jwt")
	assert.Equal(t, 401, statusCode(err))
}

func TestUsers_ListAndDelete(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"Asha", "Bilal", "Chen"} {
		_, err := env.Auth.RegisterUser(RegisterUserInput{Name: name, Email: name + "@college.edu", Password: "password123"})
		require.NoError(t, err)
	}
	require.NoError(t, env.Auth.SeedAdmin("root@college.edu", "super-secret"))

	pending, err := env.Users.ListUsers("", true, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	found, err := env.Users.ListUsers("BIL", false, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Bilal", found[0].Name)

	assert.Equal(t, 400, statusCode(env.Users.DeleteUser("same", "same")))
	assert.Equal(t, 404, statusCode(env.Users.DeleteUser("missing", "admin")))
}
