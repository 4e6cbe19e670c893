package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
)

type Repository interface {
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	GetBook(ctx context.Context, bookUid string) (model.Book, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, bookUid string, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, bookUid string) error

	Checkout(ctx context.Context, userID int64, bookUid string) (model.BorrowRecord, error)
	Checkin(ctx context.Context, userID int64, bookUid string) (model.BorrowRecord, error)
	BorrowHistory(ctx context.Context, userID int64) ([]model.BorrowHistoryItem, error)

	TotalBooks(ctx context.Context) (int, error)
	ActiveBorrowCount(ctx context.Context) (int, error)
	MostBorrowed(ctx context.Context) (*model.MostBorrowed, error)

	CreateUser(ctx context.Context, req model.UserCreateRequest, passwordHash string, role model.Role) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName         = `books`
	usersTableName         = `users`
	borrowRecordsTableName = `borrow_records`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var bookColumns = []string{
	"id", "book_uid", "title", "author", "description", "isbn", "category",
	"published_year", "total_copies", "available_copies", "created_at", "updated_at",
}

// Checkout decrements the book's available copies and opens a borrow
// record, all inside one transaction. The book row is locked first so
// concurrent checkouts of the last copy cannot both succeed.
func (r *repository) Checkout(ctx context.Context, userID int64, bookUid string) (model.BorrowRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.BorrowRecord{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var book struct {
		ID              int64 `db:"id"`
		AvailableCopies int   `db:"available_copies"`
	}
	const lockBook = `select id, available_copies from books where book_uid = $1 for update`
	if err := tx.GetContext(ctx, &book, lockBook, bookUid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BorrowRecord{}, errs.ErrNotFound
		}
		return model.BorrowRecord{}, err
	}
	if book.AvailableCopies <= 0 {
		return model.BorrowRecord{}, errs.ErrNoCopies
	}

	var open int
	const countOpen = `select count(*) from borrow_records where user_id = $1 and book_id = $2 and status = $3`
	if err := tx.GetContext(ctx, &open, countOpen, userID, book.ID, model.StatusBorrowed); err != nil {
		return model.BorrowRecord{}, err
	}
	if open > 0 {
		return model.BorrowRecord{}, errs.ErrAlreadyBorrowed
	}

	const decrement = `update books set available_copies = available_copies - 1, updated_at = now() where id = $1`
	if _, err := tx.ExecContext(ctx, decrement, book.ID); err != nil {
		return model.BorrowRecord{}, err
	}

	var rec model.BorrowRecord
	const insertRecord = `
insert into borrow_records (record_uid, user_id, book_id, status)
values ($1, $2, $3, $4)
returning id, record_uid, user_id, status, borrow_date, return_date`
	if err := tx.GetContext(ctx, &rec, insertRecord, uuid.New(), userID, book.ID, model.StatusBorrowed); err != nil {
		if isUniqueViolation(err) {
			return model.BorrowRecord{}, errs.ErrAlreadyBorrowed
		}
		return model.BorrowRecord{}, err
	}
	rec.BookUid = bookUid

	if err := tx.Commit(); err != nil {
		return model.BorrowRecord{}, errors.Wrap(err, "commit")
	}
	return rec, nil
}

// Checkin closes the most recently opened BORROWED record for the pair
// and increments the book's available copies in the same transaction.
// The book row is locked in the same order as Checkout.
func (r *repository) Checkin(ctx context.Context, userID int64, bookUid string) (model.BorrowRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.BorrowRecord{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var bookID int64
	const lockBook = `select id from books where book_uid = $1 for update`
	if err := tx.GetContext(ctx, &bookID, lockBook, bookUid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BorrowRecord{}, errs.ErrNoActiveBorrow
		}
		return model.BorrowRecord{}, err
	}

	var rec model.BorrowRecord
	const closeRecord = `
update borrow_records
    set status = $1, return_date = now()
where id = (
    select id from borrow_records
    where user_id = $2 and book_id = $3 and status = $4
    order by borrow_date desc
    limit 1)
returning id, record_uid, user_id, status, borrow_date, return_date`
	if err := tx.GetContext(ctx, &rec, closeRecord, model.StatusReturned, userID, bookID, model.StatusBorrowed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.BorrowRecord{}, errs.ErrNoActiveBorrow
		}
		return model.BorrowRecord{}, err
	}
	rec.BookUid = bookUid

	const increment = `update books set available_copies = available_copies + 1, updated_at = now() where id = $1`
	if _, err := tx.ExecContext(ctx, increment, bookID); err != nil {
		return model.BorrowRecord{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.BorrowRecord{}, errors.Wrap(err, "commit")
	}
	return rec, nil
}

func (r *repository) BorrowHistory(ctx context.Context, userID int64) ([]model.BorrowHistoryItem, error) {
	const q = `
select br.id, br.record_uid, br.user_id, b.book_uid, br.status, br.borrow_date, br.return_date,
       b.title, b.author, b.category, b.isbn
from borrow_records br
join books b on b.id = br.book_id
where br.user_id = $1
order by br.borrow_date desc`

	items := make([]model.BorrowHistoryItem, 0)
	if err := r.db.SelectContext(ctx, &items, q, userID); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	q := qb.Select(bookColumns...).
		From(booksTableName).
		OrderBy("created_at desc")

	if filter.Text != "" {
		pattern := "%" + filter.Text + "%"
		q = q.Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"author": pattern},
			sq.ILike{"isbn": pattern},
			sq.ILike{"category": pattern},
		})
	}
	if filter.Category != "" {
		q = q.Where(sq.ILike{"category": "%" + filter.Category + "%"})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	books := make([]model.Book, 0)
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) GetBook(ctx context.Context, bookUid string) (model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"book_uid": bookUid}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	available := req.TotalCopies
	if req.AvailableCopies != nil {
		available = *req.AvailableCopies
	}

	query, args, err := qb.Insert(booksTableName).
		Columns("book_uid", "title", "author", "description", "isbn", "category",
			"published_year", "total_copies", "available_copies").
		Values(uuid.New(), req.Title, req.Author, req.Description, req.ISBN, req.Category,
			req.PublishedYear, req.TotalCopies, available).
		Suffix("returning " + joinColumns(bookColumns)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", query), zap.Error(err))
		if isCheckViolation(err) {
			return model.Book{}, errs.ErrInvalidInput
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) UpdateBook(ctx context.Context, bookUid string, req model.UpdateBookRequest) (model.Book, error) {
	set := map[string]interface{}{}
	if req.Title != nil {
		set["title"] = *req.Title
	}
	if req.Author != nil {
		set["author"] = *req.Author
	}
	if req.Description != nil {
		set["description"] = *req.Description
	}
	if req.ISBN != nil {
		set["isbn"] = *req.ISBN
	}
	if req.Category != nil {
		set["category"] = *req.Category
	}
	if req.PublishedYear != nil {
		set["published_year"] = *req.PublishedYear
	}
	if req.TotalCopies != nil {
		set["total_copies"] = *req.TotalCopies
	}
	if req.AvailableCopies != nil {
		set["available_copies"] = *req.AvailableCopies
	}
	if len(set) == 0 {
		return r.GetBook(ctx, bookUid)
	}
	set["updated_at"] = sq.Expr("now()")

	query, args, err := qb.Update(booksTableName).
		SetMap(set).
		Where(sq.Eq{"book_uid": bookUid}).
		Suffix("returning " + joinColumns(bookColumns)).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		if isCheckViolation(err) {
			return model.Book{}, errs.ErrInvalidInput
		}
		return model.Book{}, err
	}
	return book, nil
}

// DeleteBook removes a book unless it still has open borrow records.
// Returned history rows cascade with the book.
func (r *repository) DeleteBook(ctx context.Context, bookUid string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var bookID int64
	const lockBook = `select id from books where book_uid = $1 for update`
	if err := tx.GetContext(ctx, &bookID, lockBook, bookUid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}

	var open int
	const countOpen = `select count(*) from borrow_records where book_id = $1 and status = $2`
	if err := tx.GetContext(ctx, &open, countOpen, bookID, model.StatusBorrowed); err != nil {
		return err
	}
	if open > 0 {
		return errs.ErrHasActiveBorrows
	}

	if _, err := tx.ExecContext(ctx, `delete from books where id = $1`, bookID); err != nil {
		return err
	}

	return errors.Wrap(tx.Commit(), "commit")
}

func (r *repository) TotalBooks(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `select count(*) from books`)
	return count, err
}

func (r *repository) ActiveBorrowCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `select count(*) from borrow_records where status = $1`, model.StatusBorrowed)
	return count, err
}

// MostBorrowed returns the book with the highest total borrow record
// count, any status. The tie-break is whatever order the store returns.
func (r *repository) MostBorrowed(ctx context.Context) (*model.MostBorrowed, error) {
	const q = `
select b.title, count(*) as count
from borrow_records br
join books b on b.id = br.book_id
group by b.id, b.title
order by count(*) desc
limit 1`

	var top model.MostBorrowed
	if err := r.db.GetContext(ctx, &top, q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &top, nil
}

func (r *repository) CreateUser(ctx context.Context, req model.UserCreateRequest, passwordHash string, role model.Role) (model.User, error) {
	query, args, err := qb.Insert(usersTableName).
		Columns("user_uid", "email", "password_hash", "name", "role").
		Values(uuid.New(), req.Email, passwordHash, req.Name, role).
		Suffix(`returning id, user_uid, email, password_hash, name, role, created_at`).
		ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, errs.ErrEmailTaken
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	query, args, err := qb.Select("id", "user_uid", "email", "password_hash", "name", "role", "created_at").
		From(usersTableName).
		Where(sq.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation
}

func joinColumns(cols []string) string {
	out := cols[0]
	for _, c := range cols[1:] {
		out += ", " + c
	}
	return out
}
