package errs

import (
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNoCopies           = errors.New("no copies available")
	ErrAlreadyBorrowed    = errors.New("you already borrowed this book")
	ErrNoActiveBorrow     = errors.New("no active borrow record found")
	ErrHasActiveBorrows   = errors.New("book has active borrow records")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)
