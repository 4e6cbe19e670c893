package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
	repo_mocks "github.com/openshelf/library-service/internal/repository/mocks"
	"github.com/openshelf/library-service/internal/service"
	"github.com/openshelf/library-service/pkg/auth"
)

var (
	testSecret = []byte("test-secret")

	adminActor     = auth.Actor{UserID: 1, Email: "admin@library.local", Role: string(model.RoleAdmin)}
	librarianActor = auth.Actor{UserID: 2, Email: "librarian@library.local", Role: string(model.RoleLibrarian)}
	memberActor    = auth.Actor{UserID: 7, Email: "member@library.local", Role: string(model.RoleMember)}
)

func newTestService(t *testing.T) (*service.Service, *repo_mocks.MockRepository) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	repo := repo_mocks.NewMockRepository(c)
	svc := service.NewService(repo, zap.NewExample().Named("test"), testSecret, time.Hour)
	return svc, repo
}

func TestService_BookWritePermissions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("member cannot create", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t)
		_, err := svc.CreateBook(ctx, memberActor, model.CreateBookRequest{})
		require.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("librarian creates", func(t *testing.T) {
		t.Parallel()
		svc, repo := newTestService(t)
		req := model.CreateBookRequest{Title: "1984"}
		repo.EXPECT().CreateBook(ctx, req).Return(model.Book{Title: "1984"}, nil)

		book, err := svc.CreateBook(ctx, librarianActor, req)
		require.NoError(t, err)
		require.Equal(t, "1984", book.Title)
	})

	t.Run("librarian cannot update", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t)
		_, err := svc.UpdateBook(ctx, librarianActor, "uid", model.UpdateBookRequest{})
		require.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("librarian cannot delete", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t)
		err := svc.DeleteBook(ctx, librarianActor, "uid")
		require.ErrorIs(t, err, errs.ErrForbidden)
	})

	t.Run("admin deletes", func(t *testing.T) {
		t.Parallel()
		svc, repo := newTestService(t)
		repo.EXPECT().DeleteBook(ctx, "uid").Return(nil)
		require.NoError(t, svc.DeleteBook(ctx, adminActor, "uid"))
	})
}

func TestService_Checkout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, repo := newTestService(t)
	repo.EXPECT().
		Checkout(ctx, memberActor.UserID, "uid").
		Return(model.BorrowRecord{RecordUid: "rec", BookUid: "uid", Status: model.StatusBorrowed}, nil)

	rec, err := svc.Checkout(ctx, memberActor, "uid")
	require.NoError(t, err)
	require.Equal(t, model.StatusBorrowed, rec.Status)
}

func TestService_Analytics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		svc, repo := newTestService(t)
		repo.EXPECT().TotalBooks(gomock.Any()).Return(120, nil)
		repo.EXPECT().ActiveBorrowCount(gomock.Any()).Return(7, nil)
		repo.EXPECT().MostBorrowed(gomock.Any()).Return(&model.MostBorrowed{Title: "1984", Count: 33}, nil)

		stats, err := svc.Analytics(ctx, adminActor)
		require.NoError(t, err)
		require.Equal(t, 120, stats.TotalBooks)
		require.Equal(t, 7, stats.ActiveBorrowCount)
		require.NotNil(t, stats.MostBorrowed)
		require.Equal(t, "1984", stats.MostBorrowed.Title)
	})

	t.Run("err. not an admin", func(t *testing.T) {
		t.Parallel()
		svc, _ := newTestService(t)
		_, err := svc.Analytics(ctx, librarianActor)
		require.ErrorIs(t, err, errs.ErrForbidden)
	})
}

func TestService_Register(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc, repo := newTestService(t)
	req := model.UserCreateRequest{Email: "new@library.local", Password: "password123", Name: "New Member"}
	repo.EXPECT().
		CreateUser(ctx, req, gomock.Any(), model.RoleMember).
		DoAndReturn(func(_ context.Context, req model.UserCreateRequest, hash string, role model.Role) (model.User, error) {
			require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)))
			return model.User{Email: req.Email, Name: req.Name, Role: role}, nil
		})

	user, err := svc.Register(ctx, req)
	require.NoError(t, err)
	require.Equal(t, model.RoleMember, user.Role)
}

func TestService_Authorize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	hashStr := string(hash)

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		svc, repo := newTestService(t)
		repo.EXPECT().
			GetUserByEmail(ctx, "member@library.local").
			Return(model.User{ID: 7, Email: "member@library.local", PasswordHash: &hashStr, Role: model.RoleMember}, nil)

		resp, err := svc.Authorize(ctx, model.AuthRequest{Email: "member@library.local", Password: "password123"})
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)

		actor, err := auth.ParseToken(resp.AccessToken, testSecret)
		require.NoError(t, err)
		require.Equal(t, int64(7), actor.UserID)
		require.Equal(t, string(model.RoleMember), actor.Role)
	})

	t.Run("err. wrong password", func(t *testing.T) {
		t.Parallel()
		svc, repo := newTestService(t)
		repo.EXPECT().
			GetUserByEmail(ctx, "member@library.local").
			Return(model.User{PasswordHash: &hashStr}, nil)

		_, err := svc.Authorize(ctx, model.AuthRequest{Email: "member@library.local", Password: "nope-nope"})
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	})

	t.Run("err. unknown email", func(t *testing.T) {
		t.Parallel()
		svc, repo := newTestService(t)
		repo.EXPECT().
			GetUserByEmail(ctx, "ghost@library.local").
			Return(model.User{}, errs.ErrNotFound)

		_, err := svc.Authorize(ctx, model.AuthRequest{Email: "ghost@library.local", Password: "password123"})
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	})

	t.Run("err. account without password", func(t *testing.T) {
		t.Parallel()
		svc, repo := newTestService(t)
		repo.EXPECT().
			GetUserByEmail(ctx, "member@library.local").
			Return(model.User{Email: "member@library.local"}, nil)

		_, err := svc.Authorize(ctx, model.AuthRequest{Email: "member@library.local", Password: "password123"})
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	})
}
