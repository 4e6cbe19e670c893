package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/internal/repository"
	"github.com/openshelf/library-service/pkg/auth"
)

type Service struct {
	log  *zap.Logger
	repo repository.Repository

	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewService(repo repository.Repository, log *zap.Logger, jwtSecret []byte, jwtTTL time.Duration) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
	}
}

func (s *Service) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	return s.repo.ListBooks(ctx, filter)
}

func (s *Service) CreateBook(ctx context.Context, actor auth.Actor, req model.CreateBookRequest) (model.Book, error) {
	if !HasPermission(model.Role(actor.Role), PermBookAdd) {
		return model.Book{}, errs.ErrForbidden
	}
	return s.repo.CreateBook(ctx, req)
}

func (s *Service) UpdateBook(ctx context.Context, actor auth.Actor, bookUid string, req model.UpdateBookRequest) (model.Book, error) {
	if !HasPermission(model.Role(actor.Role), PermBookEdit) {
		return model.Book{}, errs.ErrForbidden
	}
	return s.repo.UpdateBook(ctx, bookUid, req)
}

func (s *Service) DeleteBook(ctx context.Context, actor auth.Actor, bookUid string) error {
	if !HasPermission(model.Role(actor.Role), PermBookDelete) {
		return errs.ErrForbidden
	}
	return s.repo.DeleteBook(ctx, bookUid)
}

func (s *Service) Checkout(ctx context.Context, actor auth.Actor, bookUid string) (model.BorrowRecord, error) {
	if !HasPermission(model.Role(actor.Role), PermBookCheckout) {
		return model.BorrowRecord{}, errs.ErrForbidden
	}
	return s.repo.Checkout(ctx, actor.UserID, bookUid)
}

func (s *Service) Checkin(ctx context.Context, actor auth.Actor, bookUid string) (model.BorrowRecord, error) {
	if !HasPermission(model.Role(actor.Role), PermBookCheckin) {
		return model.BorrowRecord{}, errs.ErrForbidden
	}
	return s.repo.Checkin(ctx, actor.UserID, bookUid)
}

func (s *Service) History(ctx context.Context, actor auth.Actor) ([]model.BorrowHistoryItem, error) {
	return s.repo.BorrowHistory(ctx, actor.UserID)
}

// Analytics fans the three aggregates out concurrently; they are
// independent reads.
func (s *Service) Analytics(ctx context.Context, actor auth.Actor) (model.Analytics, error) {
	if !HasPermission(model.Role(actor.Role), PermAdminAnalytics) {
		return model.Analytics{}, errs.ErrForbidden
	}

	var out model.Analytics
	gg, ctx := errgroup.WithContext(ctx)
	gg.Go(func() error {
		total, err := s.repo.TotalBooks(ctx)
		out.TotalBooks = total
		return err
	})
	gg.Go(func() error {
		active, err := s.repo.ActiveBorrowCount(ctx)
		out.ActiveBorrowCount = active
		return err
	})
	gg.Go(func() error {
		top, err := s.repo.MostBorrowed(ctx)
		out.MostBorrowed = top
		return err
	})
	if err := gg.Wait(); err != nil {
		return model.Analytics{}, err
	}
	return out, nil
}

const bcryptCost = 10

// Register creates a MEMBER account. Privileged roles are only ever
// assigned by the seed process.
func (s *Service) Register(ctx context.Context, req model.UserCreateRequest) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	user, err := s.repo.CreateUser(ctx, req, string(hash), model.RoleMember)
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", zap.String("email", user.Email))
	return user, nil
}

func (s *Service) Authorize(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if err == errs.ErrNotFound {
			return model.AuthResponse{}, errs.ErrInvalidCredentials
		}
		return model.AuthResponse{}, err
	}
	if user.PasswordHash == nil {
		return model.AuthResponse{}, errs.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
		return model.AuthResponse{}, errs.ErrInvalidCredentials
	}

	token, expiresAt, err := auth.NewToken(auth.Actor{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return model.AuthResponse{}, err
	}

	return model.AuthResponse{
		AccessToken: token,
		ExpiresIn:   int(expiresAt.Unix()),
	}, nil
}
