package handler

import (
	"context"

	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/internal/service"
	"github.com/openshelf/library-service/pkg/auth"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type BookService interface {
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	CreateBook(ctx context.Context, actor auth.Actor, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, actor auth.Actor, bookUid string, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, actor auth.Actor, bookUid string) error
}

type BorrowService interface {
	Checkout(ctx context.Context, actor auth.Actor, bookUid string) (model.BorrowRecord, error)
	Checkin(ctx context.Context, actor auth.Actor, bookUid string) (model.BorrowRecord, error)
	History(ctx context.Context, actor auth.Actor) ([]model.BorrowHistoryItem, error)
}

type AnalyticsService interface {
	Analytics(ctx context.Context, actor auth.Actor) (model.Analytics, error)
}

type AuthService interface {
	Register(ctx context.Context, req model.UserCreateRequest) (model.User, error)
	Authorize(ctx context.Context, req model.AuthRequest) (model.AuthResponse, error)
}

var (
	_ BookService      = (*service.Service)(nil)
	_ BorrowService    = (*service.Service)(nil)
	_ AnalyticsService = (*service.Service)(nil)
	_ AuthService      = (*service.Service)(nil)
)
