package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
)

const (
	testBookUid = "f7cdc58f-2caf-4b15-9727-f89dcc629b27"
	testUserID  = int64(7)
	testBookID  = int64(42)
)

var testTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) (*repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(sqlx.NewDb(db, "sqlmock"), zap.NewNop())
	require.NoError(t, err)
	return repo, mock
}

func TestRepository_Checkout(t *testing.T) {
	t.Parallel()

	lockBook := regexp.QuoteMeta(`select id, available_copies from books where book_uid = $1 for update`)
	countOpen := regexp.QuoteMeta(`select count(*) from borrow_records where user_id = $1 and book_id = $2 and status = $3`)
	decrement := regexp.QuoteMeta(`update books set available_copies = available_copies - 1, updated_at = now() where id = $1`)
	insertRecord := regexp.QuoteMeta(`insert into borrow_records (record_uid, user_id, book_id, status)`)

	var tests = []struct {
		name    string
		prepare func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "ok",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnRows(sqlmock.NewRows([]string{"id", "available_copies"}).AddRow(testBookID, 2))
				mock.ExpectQuery(countOpen).
					WithArgs(testUserID, testBookID, model.StatusBorrowed).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
				mock.ExpectExec(decrement).
					WithArgs(testBookID).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(insertRecord).
					WithArgs(sqlmock.AnyArg(), testUserID, testBookID, model.StatusBorrowed).
					WillReturnRows(sqlmock.NewRows(
						[]string{"id", "record_uid", "user_id", "status", "borrow_date", "return_date"}).
						AddRow(1, "7e3f4b2a-9d41-4f6a-8c15-0b8a6f2d9e31", testUserID, model.StatusBorrowed, testTime, nil))
				mock.ExpectCommit()
			},
		},
		{
			name: "err. book not found",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "err. no copies available",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnRows(sqlmock.NewRows([]string{"id", "available_copies"}).AddRow(testBookID, 0))
				mock.ExpectRollback()
			},
			wantErr: errs.ErrNoCopies,
		},
		{
			name: "err. already borrowed",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnRows(sqlmock.NewRows([]string{"id", "available_copies"}).AddRow(testBookID, 2))
				mock.ExpectQuery(countOpen).
					WithArgs(testUserID, testBookID, model.StatusBorrowed).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
				mock.ExpectRollback()
			},
			wantErr: errs.ErrAlreadyBorrowed,
		},
		{
			name: "err. already borrowed on insert race",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnRows(sqlmock.NewRows([]string{"id", "available_copies"}).AddRow(testBookID, 2))
				mock.ExpectQuery(countOpen).
					WithArgs(testUserID, testBookID, model.StatusBorrowed).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
				mock.ExpectExec(decrement).
					WithArgs(testBookID).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(insertRecord).
					WithArgs(sqlmock.AnyArg(), testUserID, testBookID, model.StatusBorrowed).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
				mock.ExpectRollback()
			},
			wantErr: errs.ErrAlreadyBorrowed,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo, mock := newTestRepo(t)
			tt.prepare(mock)

			rec, err := repo.Checkout(context.Background(), testUserID, testBookUid)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, testBookUid, rec.BookUid)
				require.Equal(t, model.StatusBorrowed, rec.Status)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_Checkin(t *testing.T) {
	t.Parallel()

	lockBook := regexp.QuoteMeta(`select id from books where book_uid = $1 for update`)
	closeRecord := regexp.QuoteMeta(`update borrow_records
    set status = $1, return_date = now()`)
	increment := regexp.QuoteMeta(`update books set available_copies = available_copies + 1, updated_at = now() where id = $1`)

	var tests = []struct {
		name    string
		prepare func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "ok",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testBookID))
				mock.ExpectQuery(closeRecord).
					WithArgs(model.StatusReturned, testUserID, testBookID, model.StatusBorrowed).
					WillReturnRows(sqlmock.NewRows(
						[]string{"id", "record_uid", "user_id", "status", "borrow_date", "return_date"}).
						AddRow(1, "7e3f4b2a-9d41-4f6a-8c15-0b8a6f2d9e31", testUserID, model.StatusReturned, testTime, testTime))
				mock.ExpectExec(increment).
					WithArgs(testBookID).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "err. unknown book",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			wantErr: errs.ErrNoActiveBorrow,
		},
		{
			name: "err. nothing to return",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testBookID))
				mock.ExpectQuery(closeRecord).
					WithArgs(model.StatusReturned, testUserID, testBookID, model.StatusBorrowed).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			wantErr: errs.ErrNoActiveBorrow,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo, mock := newTestRepo(t)
			tt.prepare(mock)

			rec, err := repo.Checkin(context.Background(), testUserID, testBookUid)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, testBookUid, rec.BookUid)
				require.Equal(t, model.StatusReturned, rec.Status)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_DeleteBook(t *testing.T) {
	t.Parallel()

	lockBook := regexp.QuoteMeta(`select id from books where book_uid = $1 for update`)
	countOpen := regexp.QuoteMeta(`select count(*) from borrow_records where book_id = $1 and status = $2`)
	deleteBook := regexp.QuoteMeta(`delete from books where id = $1`)

	var tests = []struct {
		name    string
		prepare func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "ok",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testBookID))
				mock.ExpectQuery(countOpen).
					WithArgs(testBookID, model.StatusBorrowed).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
				mock.ExpectExec(deleteBook).
					WithArgs(testBookID).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "err. not found",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			wantErr: errs.ErrNotFound,
		},
		{
			name: "err. open borrows block delete",
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(lockBook).
					WithArgs(testBookUid).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testBookID))
				mock.ExpectQuery(countOpen).
					WithArgs(testBookID, model.StatusBorrowed).
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
				mock.ExpectRollback()
			},
			wantErr: errs.ErrHasActiveBorrows,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo, mock := newTestRepo(t)
			tt.prepare(mock)

			err := repo.DeleteBook(context.Background(), testBookUid)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_ListBooks(t *testing.T) {
	t.Parallel()

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows(bookColumns).
			AddRow(testBookID, testBookUid, "1984", "George Orwell", "Dystopian classic",
				"978-0451524935", "Fiction", 1949, 3, 2, testTime, testTime)
	}

	var tests = []struct {
		name    string
		filter  model.BookFilter
		prepare func(mock sqlmock.Sqlmock)
	}{
		{
			name:   "no filter",
			filter: model.BookFilter{},
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM books ORDER BY created_at desc`).
					WillReturnRows(rows())
			},
		},
		{
			name:   "text filter matches all four columns",
			filter: model.BookFilter{Text: "orwell"},
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM books WHERE \(title ILIKE (.+) OR author ILIKE (.+) OR isbn ILIKE (.+) OR category ILIKE (.+)\)`).
					WithArgs("%orwell%", "%orwell%", "%orwell%", "%orwell%").
					WillReturnRows(rows())
			},
		},
		{
			name:   "category filter stacks on text",
			filter: model.BookFilter{Text: "orwell", Category: "fic"},
			prepare: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT (.+) FROM books WHERE \(title ILIKE (.+)\) AND category ILIKE (.+)`).
					WithArgs("%orwell%", "%orwell%", "%orwell%", "%orwell%", "%fic%").
					WillReturnRows(rows())
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo, mock := newTestRepo(t)
			tt.prepare(mock)

			books, err := repo.ListBooks(context.Background(), tt.filter)
			require.NoError(t, err)
			require.Len(t, books, 1)
			require.Equal(t, "1984", books[0].Title)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRepository_MostBorrowed(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(`select b.title, count\(\*\) as count`).
			WillReturnRows(sqlmock.NewRows([]string{"title", "count"}).AddRow("1984", 33))

		top, err := repo.MostBorrowed(context.Background())
		require.NoError(t, err)
		require.NotNil(t, top)
		require.Equal(t, "1984", top.Title)
		require.Equal(t, 33, top.Count)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no borrows yet", func(t *testing.T) {
		t.Parallel()
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(`select b.title, count\(\*\) as count`).
			WillReturnError(sql.ErrNoRows)

		top, err := repo.MostBorrowed(context.Background())
		require.NoError(t, err)
		require.Nil(t, top)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_CreateUser(t *testing.T) {
	t.Parallel()

	req := model.UserCreateRequest{Email: "member@library.local", Password: "password123", Name: "Member"}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(sqlmock.AnyArg(), req.Email, "hash", req.Name, model.RoleMember).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "user_uid", "email", "password_hash", "name", "role", "created_at"}).
				AddRow(1, "e2b0cb1c-5a01-4a67-8c6a-1d2f35a9c9ef", req.Email, "hash", req.Name, model.RoleMember, testTime))

		user, err := repo.CreateUser(context.Background(), req, "hash", model.RoleMember)
		require.NoError(t, err)
		require.Equal(t, model.RoleMember, user.Role)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("err. duplicate email", func(t *testing.T) {
		t.Parallel()
		repo, mock := newTestRepo(t)
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(sqlmock.AnyArg(), req.Email, "hash", req.Name, model.RoleMember).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		_, err := repo.CreateUser(context.Background(), req, "hash", model.RoleMember)
		require.ErrorIs(t, err, errs.ErrEmailTaken)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
