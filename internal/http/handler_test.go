package http

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/repository"
	"kakeibo/internal/repository/sqlite"
	"kakeibo/internal/service"
	"kakeibo/web"
)

type testEnv struct {
	router *gin.Engine
	db     *sql.DB
	users  repository.UserRepository
	items  service.ItemService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	users := sqlite.NewUserRepository(db)
	itemRepo := sqlite.NewItemRepository(db)
	sessions := sqlite.NewSessionRepository(db)
	require.NoError(t, users.Init(ctx))
	require.NoError(t, itemRepo.Init(ctx))
	require.NoError(t, sessions.Init(ctx))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	auth := service.NewAuthService(users, sessions, time.Hour)
	items := service.NewItemService(itemRepo)

	router := gin.New()
	router.SetHTMLTemplate(web.Templates())
	NewHandler(auth, items, sessions, logger, false, time.Hour).RegisterRoutes(router)

	return &testEnv{router: router, db: db, users: users, items: items}
}

func (e *testEnv) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postForm(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func cookieByName(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	if c := cookieByName(w, SessionCookieName); c != nil {
		return c
	}
	t.Fatal("no session cookie in response")
	return nil
}

// register signs up a fresh user over HTTP and returns the session cookie.
func (e *testEnv) register(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := e.postForm("/auth/register", url.Values{
		"email":           {email},
		"password":        {"secret"},
		"passwordConfirm": {"secret"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/items", w.Header().Get("Location"))
	return sessionCookie(t, w)
}

func TestRegisterAndAccess(t *testing.T) {
	e := newTestEnv(t)

	w := e.get("/items", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/auth/login", w.Header().Get("Location"))

	cookie := e.register(t, "a@example.com")

	w = e.get("/items", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "a@example.com")
}

func TestRegisterValidationRedirectsBack(t *testing.T) {
	e := newTestEnv(t)

	w := e.postForm("/auth/register", url.Values{
		"email":           {"a@example.com"},
		"password":        {"secret"},
		"passwordConfirm": {"other"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/auth/register", w.Header().Get("Location"))
	require.Nil(t, cookieByName(w, SessionCookieName))

	flash := cookieByName(w, flashCookieName)
	require.NotNil(t, flash)

	// following the redirect shows the message and burns it
	w = e.get("/auth/register", flash)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "passwords do not match")
	cleared := cookieByName(w, flashCookieName)
	require.NotNil(t, cleared)
	require.Empty(t, cleared.Value)
}

func TestRegisterDuplicateEmailRedirectsBack(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "a@example.com")

	w := e.postForm("/auth/register", url.Values{
		"email":           {"a@example.com"},
		"password":        {"secret"},
		"passwordConfirm": {"secret"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/auth/register", w.Header().Get("Location"))

	flash := cookieByName(w, flashCookieName)
	require.NotNil(t, flash)
	w = e.get("/auth/register", flash)
	require.Contains(t, w.Body.String(), "email already registered")
}

func TestLoginFailuresLookAlike(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "a@example.com")

	wrongPassword := e.postForm("/auth/login", url.Values{
		"email":    {"a@example.com"},
		"password": {"nope"},
	}, nil)
	unknownEmail := e.postForm("/auth/login", url.Values{
		"email":    {"ghost@example.com"},
		"password": {"secret"},
	}, nil)

	for _, w := range []*httptest.ResponseRecorder{wrongPassword, unknownEmail} {
		require.Equal(t, http.StatusFound, w.Code)
		require.Equal(t, "/auth/login", w.Header().Get("Location"))
	}

	// both failures queue the exact same message
	wrongFlash := cookieByName(wrongPassword, flashCookieName)
	unknownFlash := cookieByName(unknownEmail, flashCookieName)
	require.NotNil(t, wrongFlash)
	require.NotNil(t, unknownFlash)
	require.Equal(t, wrongFlash.Value, unknownFlash.Value)

	w := e.get("/auth/login", wrongFlash)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "invalid email or password")
}

func TestLoginThenLogout(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "a@example.com")

	w := e.postForm("/auth/login", url.Values{
		"email":    {"a@example.com"},
		"password": {"secret"},
	}, nil)
	require.Equal(t, http.StatusFound, w.Code)
	cookie := sessionCookie(t, w)

	w = e.postForm("/auth/logout", nil, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/auth/login", w.Header().Get("Location"))

	// the old token no longer opens anything
	w = e.get("/items", cookie)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/auth/login", w.Header().Get("Location"))
}

func TestRootRedirects(t *testing.T) {
	e := newTestEnv(t)

	w := e.get("/", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/auth/login", w.Header().Get("Location"))

	cookie := e.register(t, "a@example.com")
	w = e.get("/", cookie)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/items", w.Header().Get("Location"))
}

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)

	w := e.get("/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}

func TestItemCRUDFlow(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.register(t, "a@example.com")
	ctx := context.Background()

	w := e.postForm("/items", url.Values{
		"event":  {"groceries"},
		"amount": {"2500"},
		"type":   {"EXPENSE"},
		"date":   {"2024-01-10"},
		"memo":   {"weekly shop"},
	}, cookie)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/items", w.Header().Get("Location"))

	w = e.postForm("/items", url.Values{
		"event":  {"salary"},
		"amount": {"3000"},
		"type":   {"INCOME"},
		"date":   {"2024-01-05"},
	}, cookie)
	require.Equal(t, http.StatusFound, w.Code)

	w = e.get("/items", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Contains(t, body, "groceries")
	require.Contains(t, body, "salary")
	require.Contains(t, body, "Income: 3000")
	require.Contains(t, body, "Expense: 2500")
	require.Contains(t, body, "Balance: 500")

	user, err := e.users.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	items, _, err := e.items.List(ctx, user.ID, service.ItemQuery{Type: "EXPENSE"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	id := items[0].ID

	w = e.get("/items/"+itoa(id), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "weekly shop")

	w = e.postForm("/items/"+itoa(id)+"/edit", url.Values{
		"event":  {"groceries"},
		"amount": {"2700"},
		"type":   {"EXPENSE"},
		"date":   {"2024-01-10"},
	}, cookie)
	require.Equal(t, http.StatusFound, w.Code)

	updated, err := e.items.Get(ctx, user.ID, id)
	require.NoError(t, err)
	require.Equal(t, int64(2700), updated.Amount)
	require.Empty(t, updated.Memo)

	w = e.postForm("/items/"+itoa(id)+"/delete", nil, cookie)
	require.Equal(t, http.StatusFound, w.Code)

	items, _, err = e.items.List(ctx, user.ID, service.ItemQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1) // only the salary remains
}

func TestItemValidationRerendersForm(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.register(t, "a@example.com")

	w := e.postForm("/items", url.Values{
		"event": {"groceries"},
		"type":  {"EXPENSE"},
	}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "amount is required")
	require.Contains(t, w.Body.String(), "groceries")
}

func TestItemOwnershipOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	aliceCookie := e.register(t, "alice@example.com")
	bobCookie := e.register(t, "bob@example.com")
	ctx := context.Background()

	w := e.postForm("/items", url.Values{
		"event":  {"salary"},
		"amount": {"1000"},
		"type":   {"INCOME"},
	}, aliceCookie)
	require.Equal(t, http.StatusFound, w.Code)

	alice, err := e.users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	items, _, err := e.items.List(ctx, alice.ID, service.ItemQuery{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	id := items[0].ID

	// another user's item behaves exactly like a missing one
	for _, path := range []string{"/items/" + itoa(id), "/items/" + itoa(id) + "/edit", "/items/999"} {
		w = e.get(path, bobCookie)
		require.Equal(t, http.StatusFound, w.Code, path)
		require.Equal(t, "/items", w.Header().Get("Location"), path)
	}

	w = e.postForm("/items/"+itoa(id)+"/delete", nil, bobCookie)
	require.Equal(t, http.StatusFound, w.Code)

	_, err = e.items.Get(ctx, alice.ID, id)
	require.NoError(t, err, "foreign delete must not remove the item")
}

func TestSessionStoreFailureIsNotLogout(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.register(t, "a@example.com")

	// break the session store underneath a live session
	_, err := e.db.Exec(`DROP TABLE sessions`)
	require.NoError(t, err)

	w := e.get("/items", cookie)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotEqual(t, "/auth/login", w.Header().Get("Location"))
}

func TestFlashShownOnce(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.register(t, "a@example.com")

	w := e.postForm("/items", url.Values{
		"amount": {"100"},
		"type":   {"INCOME"},
	}, cookie)
	require.Equal(t, http.StatusFound, w.Code)

	w = e.get("/items", cookie)
	require.Contains(t, w.Body.String(), "item recorded")

	w = e.get("/items", cookie)
	require.NotContains(t, w.Body.String(), "item recorded")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
