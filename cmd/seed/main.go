package main

import (
	"context"
	stdLog "log"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/openshelf/library-service/config"
	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/migrations"
	"github.com/openshelf/library-service/pkg/logger"
	"github.com/openshelf/library-service/pkg/postgres"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type seedAccount struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

var seedAccounts = []seedAccount{
	{Email: "member@library.local", Password: "Member123!", Name: "Member", Role: model.RoleMember},
	{Email: "librarian@library.local", Password: "Librarian123!", Name: "Librarian", Role: model.RoleLibrarian},
	{Email: "admin@library.local", Password: "Admin123!", Name: "Admin", Role: model.RoleAdmin},
}

var sampleBooks = []model.CreateBookRequest{
	{
		Title:         "1984",
		Author:        "George Orwell",
		Description:   "A dystopian novel about surveillance, truth, and power in a totalitarian state.",
		ISBN:          "9780451524935",
		Category:      "Fiction",
		PublishedYear: 1949,
		TotalCopies:   5,
	},
	{
		Title:         "The Pragmatic Programmer",
		Author:        "Andrew Hunt, David Thomas",
		Description:   "A practical guide to programming craftsmanship, habits, and maintainable software.",
		ISBN:          "9780201616224",
		Category:      "Software",
		PublishedYear: 1999,
		TotalCopies:   4,
	},
	{
		Title:         "Leaders Eat Last",
		Author:        "Simon Sinek",
		Description:   "Explores leadership cultures that create trust, safety, and long-term performance.",
		ISBN:          "9781591845328",
		Category:      "Leadership",
		PublishedYear: 2014,
		TotalCopies:   3,
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		stdLog.Print("load envs from .env ", err)
	}
	cfg := config.NewConfig()
	log := logger.NewLogger(cfg.Log, "seed")

	ctx := context.Background()
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	defer db.Close()

	if err := seedUsers(ctx, db); err != nil {
		log.Fatal("seed users", zap.Error(err))
	}
	if err := seedBooks(ctx, db); err != nil {
		log.Fatal("seed books", zap.Error(err))
	}
	log.Info("seed finished")
}

func seedUsers(ctx context.Context, db *sqlx.DB) error {
	for _, acc := range seedAccounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		query, args, err := qb.Insert("users").
			Columns("user_uid", "email", "password_hash", "name", "role").
			Values(uuid.New(), acc.Email, string(hash), acc.Name, acc.Role).
			Suffix(`on conflict (email) do update
				set password_hash = excluded.password_hash,
				    name = excluded.name,
				    role = excluded.role`).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func seedBooks(ctx context.Context, db *sqlx.DB) error {
	for _, b := range sampleBooks {
		var exists int
		if err := db.GetContext(ctx, &exists,
			`select count(*) from books where isbn = $1`, b.ISBN); err != nil {
			return err
		}
		if exists > 0 {
			continue
		}
		query, args, err := qb.Insert("books").
			Columns("book_uid", "title", "author", "description", "isbn", "category",
				"published_year", "total_copies", "available_copies").
			Values(uuid.New(), b.Title, b.Author, b.Description, b.ISBN, b.Category,
				b.PublishedYear, b.TotalCopies, b.TotalCopies).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}
