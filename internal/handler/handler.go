package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"github.com/openshelf/library-service/internal/errs"
	"github.com/openshelf/library-service/internal/model"
	"github.com/openshelf/library-service/pkg/auth"
	"github.com/openshelf/library-service/pkg/kafka"
	md "github.com/openshelf/library-service/pkg/middleware"
	"github.com/openshelf/library-service/pkg/validate"
	_ "github.com/openshelf/library-service/swagger"
)

type Handler struct {
	books     BookService
	borrows   BorrowService
	analytics AnalyticsService
	auth      AuthService
	events    Recorder
	jwtSecret []byte
	log       *zap.Logger
}

func New(books BookService, borrows BorrowService, analytics AnalyticsService, authSvc AuthService,
	events Recorder, jwtSecret []byte, log *zap.Logger,
) *Handler {
	return &Handler{
		books:     books,
		borrows:   borrows,
		analytics: analytics,
		auth:      authSvc,
		events:    events,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	e.Validator = validate.NewCustomValidator()

	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig()),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)
	api.POST("/register", h.Register)
	api.POST("/authorize", h.Authorize)
	api.GET("/books", h.ListBooks)

	authd := api.Group("", md.JwtAuthentication(h.jwtSecret))

	authd.POST("/books", h.CreateBook)
	authd.PUT("/books/:bookUid", h.UpdateBook)
	authd.DELETE("/books/:bookUid", h.DeleteBook)

	authd.POST("/borrow/checkout", h.Checkout)
	authd.POST("/borrow/checkin", h.Checkin)
	authd.GET("/borrow/history", h.History)

	authd.GET("/admin/analytics", h.Analytics)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// ListBooks godoc
// @Summary list the catalog, optionally filtered
// @Param   q        query string false "matches title/author/isbn/category"
// @Param   category query string false "category substring"
// @Success 200 {array} model.Book
// @Router  /api/v1/books [get]
func (h *Handler) ListBooks(c echo.Context) error {
	filter := model.BookFilter{
		Text:     c.QueryParam("q"),
		Category: c.QueryParam("category"),
	}
	books, err := h.books.ListBooks(c.Request().Context(), filter)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, books)
}

// CreateBook godoc
// @Summary add a book (ADMIN, LIBRARIAN)
// @Success 201 {object} model.Book
// @Router  /api/v1/books [post]
func (h *Handler) CreateBook(c echo.Context) error {
	actor, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUnauthorized.Error())
	}
	var req model.CreateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	book, err := h.books.CreateBook(c.Request().Context(), actor, req)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusCreated, book)
}

// UpdateBook godoc
// @Summary partially update a book (ADMIN)
// @Success 200 {object} model.Book
// @Router  /api/v1/books/{bookUid} [put]
func (h *Handler) UpdateBook(c echo.Context) error {
	actor, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUnauthorized.Error())
	}
	bookUid := c.Param("bookUid")
	if bookUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, errors.New("empty bookUid"))
	}
	var req model.UpdateBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	book, err := h.books.UpdateBook(c.Request().Context(), actor, bookUid, req)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, book)
}

// DeleteBook godoc
// @Summary delete a book with no open borrows (ADMIN)
// @Success 204
// @Router  /api/v1/books/{bookUid} [delete]
func (h *Handler) DeleteBook(c echo.Context) error {
	actor, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUnauthorized.Error())
	}
	bookUid := c.Param("bookUid")
	if bookUid == "" {
		return echo.NewHTTPError(http.StatusBadRequest, errors.New("empty bookUid"))
	}
	if err := h.books.DeleteBook(c.Request().Context(), actor, bookUid); err != nil {
		return httpErr(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Checkout godoc
// @Summary borrow a copy of a book
// @Success 201 {object} model.BorrowRecord
// @Router  /api/v1/borrow/checkout [post]
func (h *Handler) Checkout(c echo.Context) error {
	actor, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUnauthorized.Error())
	}
	var req model.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	rec, err := h.borrows.Checkout(c.Request().Context(), actor, req.BookUid)
	if err != nil {
		return httpErr(err)
	}
	h.record("CHECKOUT", rec, actor)
	return c.JSON(http.StatusCreated, rec)
}

// Checkin godoc
// @Summary return a borrowed book
// @Success 200 {object} model.BorrowRecord
// @Router  /api/v1/borrow/checkin [post]
func (h *Handler) Checkin(c echo.Context) error {
	actor, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUnauthorized.Error())
	}
	var req model.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	rec, err := h.borrows.Checkin(c.Request().Context(), actor, req.BookUid)
	if err != nil {
		return httpErr(err)
	}
	h.record("CHECKIN", rec, actor)
	return c.JSON(http.StatusOK, rec)
}

// History godoc
// @Summary the caller's borrow history, newest first
// @Success 200 {array} model.BorrowHistoryItem
// @Router  /api/v1/borrow/history [get]
func (h *Handler) History(c echo.Context) error {
	actor, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUnauthorized.Error())
	}
	items, err := h.borrows.History(c.Request().Context(), actor)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, items)
}

// Analytics godoc
// @Summary aggregate catalog analytics (ADMIN)
// @Success 200 {object} model.Analytics
// @Router  /api/v1/admin/analytics [get]
func (h *Handler) Analytics(c echo.Context) error {
	actor, ok := auth.FromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, errs.ErrUnauthorized.Error())
	}
	stats, err := h.analytics.Analytics(c.Request().Context(), actor)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Register godoc
// @Summary create a member account
// @Success 201 {object} model.User
// @Router  /api/v1/register [post]
func (h *Handler) Register(c echo.Context) error {
	var req model.UserCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	user, err := h.auth.Register(c.Request().Context(), req)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusCreated, user)
}

// Authorize godoc
// @Summary exchange credentials for an access token
// @Success 200 {object} model.AuthResponse
// @Router  /api/v1/authorize [post]
func (h *Handler) Authorize(c echo.Context) error {
	var req model.AuthRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	resp, err := h.auth.Authorize(c.Request().Context(), req)
	if err != nil {
		return httpErr(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) record(event string, rec model.BorrowRecord, actor auth.Actor) {
	ev := kafka.BorrowEvent{
		Event:     event,
		RecordUid: rec.RecordUid,
		BookUid:   rec.BookUid,
		UserID:    actor.UserID,
		At:        time.Now().UTC(),
	}
	if err := h.events.Record(ev); err != nil {
		h.log.Warn("borrow event", zap.String("event", event), zap.Error(err))
	}
}

func httpErr(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrNoCopies),
		errors.Is(err, errs.ErrAlreadyBorrowed),
		errors.Is(err, errs.ErrHasActiveBorrows),
		errors.Is(err, errs.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrNoActiveBorrow),
		errors.Is(err, errs.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrUnauthorized),
		errors.Is(err, errs.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
