package model

import (
	"time"
)

type Role string

const (
	RoleMember    Role = "MEMBER"
	RoleLibrarian Role = "LIBRARIAN"
	RoleAdmin     Role = "ADMIN"
)

type BorrowStatus string

const (
	StatusBorrowed BorrowStatus = "BORROWED"
	StatusReturned BorrowStatus = "RETURNED"
)

type Book struct {
	ID              int64     `json:"-" db:"id"`
	BookUid         string    `json:"bookUid" db:"book_uid"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	Description     string    `json:"description" db:"description"`
	ISBN            string    `json:"isbn" db:"isbn"`
	Category        string    `json:"category" db:"category"`
	PublishedYear   int       `json:"publishedYear" db:"published_year"`
	TotalCopies     int       `json:"totalCopies" db:"total_copies"`
	AvailableCopies int       `json:"availableCopies" db:"available_copies"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

type User struct {
	ID           int64     `json:"-" db:"id"`
	UserUid      string    `json:"userUid" db:"user_uid"`
	Email        string    `json:"email" db:"email"`
	PasswordHash *string   `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type BorrowRecord struct {
	ID         int64        `json:"-" db:"id"`
	RecordUid  string       `json:"recordUid" db:"record_uid"`
	UserID     int64        `json:"-" db:"user_id"`
	BookUid    string       `json:"bookUid" db:"book_uid"`
	Status     BorrowStatus `json:"status" db:"status"`
	BorrowDate time.Time    `json:"borrowDate" db:"borrow_date"`
	ReturnDate *time.Time   `json:"returnDate" db:"return_date"`
}

// BorrowHistoryItem is a borrow record joined with its book attributes.
type BorrowHistoryItem struct {
	BorrowRecord
	Title    string `json:"title" db:"title"`
	Author   string `json:"author" db:"author"`
	Category string `json:"category" db:"category"`
	ISBN     string `json:"isbn" db:"isbn"`
}

// BookFilter narrows ListBooks. Text matches any of title/author/isbn/
// category case-insensitively; Category is an extra case-insensitive
// substring match applied on top.
type BookFilter struct {
	Text     string
	Category string
}

type CreateBookRequest struct {
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	Description     string `json:"description" validate:"required"`
	ISBN            string `json:"isbn" validate:"required"`
	Category        string `json:"category" validate:"required"`
	PublishedYear   int    `json:"publishedYear" validate:"required"`
	TotalCopies     int    `json:"totalCopies" validate:"gte=0"`
	AvailableCopies *int   `json:"availableCopies" validate:"omitempty,gte=0"`
}

type UpdateBookRequest struct {
	Title           *string `json:"title"`
	Author          *string `json:"author"`
	Description     *string `json:"description"`
	ISBN            *string `json:"isbn"`
	Category        *string `json:"category"`
	PublishedYear   *int    `json:"publishedYear"`
	TotalCopies     *int    `json:"totalCopies" validate:"omitempty,gte=0"`
	AvailableCopies *int    `json:"availableCopies" validate:"omitempty,gte=0"`
}

type CheckoutRequest struct {
	BookUid string `json:"bookUid" validate:"required"`
}

type MostBorrowed struct {
	Title string `json:"title" db:"title"`
	Count int    `json:"count" db:"count"`
}

type Analytics struct {
	TotalBooks        int           `json:"totalBooks"`
	ActiveBorrowCount int           `json:"activeBorrowCount"`
	MostBorrowed      *MostBorrowed `json:"mostBorrowed"`
}

type UserCreateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
}

type AuthRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}
