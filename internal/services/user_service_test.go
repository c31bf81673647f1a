package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/auth"
	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/store/sqlstore"
)

func newTestUserService(t *testing.T) (*UserService, *sqlstore.Store) {
	t.Helper()
	st := newTestStore(t)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return NewUserService(st, tokens, DefaultAccessPolicy(), "bowie.edu", zap.NewNop()), st
}

func validRegistration() RegisterInput {
	return RegisterInput{FirstName: "Ada", LastName: "Lovelace", Email: "Ada@Bowie.edu", Password: "secret1"}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	res, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ada@bowie.edu", res.User.Email)
	assert.Equal(t, auth.RoleStudent, res.User.Role)

	actor, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, actor.ID)
	assert.Equal(t, auth.RoleStudent, actor.Role)

	_, err = svc.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, ErrConflict)

	login, err := svc.Login(ctx, "ADA@bowie.edu", "secret1")
	require.NoError(t, err)
	require.NotNil(t, login.User.LastLogin)

	_, err = svc.Login(ctx, "ada@bowie.edu", "wrong")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.Login(ctx, "nobody@bowie.edu", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	profile, err := svc.Profile(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", profile.FullName())
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	in := validRegistration()
	in.Email = "ada@gmail.com"
	_, err := svc.Register(ctx, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")

	in = validRegistration()
	in.Password = "123"
	in.FirstName = " "
	_, err = svc.Register(ctx, in)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "firstName")
}

func TestRegisterRejectsPasswordsBcryptCannotHash(t *testing.T) {
	svc, _ := newTestUserService(t)
	ctx := context.Background()

	for _, password := range []string{
		strings.Repeat("a", 73),
		strings.Repeat("é", 40), // 40 characters, 80 bytes
	} {
		in := validRegistration()
		in.Password = password
		_, err := svc.Register(ctx, in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "password of %d bytes", len(password))
		assert.Contains(t, verr.Fields, "password")
	}

	in := validRegistration()
	in.Password = strings.Repeat("a", 72)
	_, err := svc.Register(ctx, in)
	assert.NoError(t, err)
}

func TestAuthenticateUsesStoredRole(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestUserService(t)
	res, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, err = st.UpdateUserRole(ctx, res.User.ID, auth.RoleStaff)
	require.NoError(t, err)

	actor, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStaff, actor.Role)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	other := auth.NewTokenManager("other-secret", time.Hour)
	forged, _, err := other.Generate(res.User.ID, auth.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	ghost, _, err := svc.tokens.Generate("ghost", auth.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, ghost)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUserAdministration(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestUserService(t)

	created, err := svc.EnsureAdmin(ctx, "root@bowie.edu", "rootpass")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = svc.EnsureAdmin(ctx, "root@bowie.edu", "rootpass")
	require.NoError(t, err)
	assert.False(t, created)

	login, err := svc.Login(ctx, "root@bowie.edu", "rootpass")
	require.NoError(t, err)
	rootActor := Actor{ID: login.User.ID, Role: login.User.Role}

	res, err := svc.Register(ctx, validRegistration())
	require.NoError(t, err)
	studentActor := Actor{ID: res.User.ID, Role: res.User.Role}

	_, err = svc.ListUsers(ctx, studentActor, UserQuery{})
	assert.ErrorIs(t, err, ErrForbidden)

	page, err := svc.ListUsers(ctx, rootActor, UserQuery{Search: "lovelace"})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, int64(1), page.Pagination.Total)

	updated, err := svc.UpdateRole(ctx, rootActor, res.User.ID, "Faculty")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleFaculty, updated.Role)

	var verr *ValidationError
	_, err = svc.UpdateRole(ctx, rootActor, rootActor.ID, auth.RoleStudent)
	assert.ErrorAs(t, err, &verr)
	_, err = svc.UpdateRole(ctx, rootActor, res.User.ID, "superuser")
	assert.ErrorAs(t, err, &verr)
	_, err = svc.UpdateRole(ctx, rootActor, "missing", auth.RoleStaff)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.UpdateRole(ctx, Actor{ID: res.User.ID, Role: auth.RoleStaff}, rootActor.ID, auth.RoleStudent)
	assert.ErrorIs(t, err, ErrForbidden)
}
