package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"kakeibo/internal/domain"
	"kakeibo/internal/errs"
	"kakeibo/internal/repository"
	"kakeibo/internal/service"
)

const (
	// SessionCookieName is the cookie holding the opaque session token.
	SessionCookieName = "kakeibo_session"

	// flashCookieName carries one-shot messages for visitors who have no
	// session row yet (failed login/register redirects).
	flashCookieName = "kakeibo_flash"

	currentUserKey   = "currentUser"
	resolveFailedKey = "resolveFailed"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth         service.AuthService
	items        service.ItemService
	sessions     repository.SessionRepository
	logger       *logrus.Logger
	cookieSecure bool
	sessionTTL   time.Duration
}

func NewHandler(auth service.AuthService, items service.ItemService, sessions repository.SessionRepository, logger *logrus.Logger, cookieSecure bool, sessionTTL time.Duration) *Handler {
	return &Handler{
		auth:         auth,
		items:        items,
		sessions:     sessions,
		logger:       logger,
		cookieSecure: cookieSecure,
		sessionTTL:   sessionTTL,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.attachUser())

	router.GET("/", h.root)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := router.Group("/auth")
	{
		auth.GET("/register", h.showRegister)
		auth.POST("/register", h.register)
		auth.GET("/login", h.showLogin)
		auth.POST("/login", h.login)
		auth.POST("/logout", h.logout)
	}

	items := router.Group("/items")
	items.Use(h.requireUser())
	{
		items.GET("", h.listItems)
		items.GET("/new", h.newItemForm)
		items.POST("", h.createItem)
		items.GET("/:id", h.showItem)
		items.GET("/:id/edit", h.editItemForm)
		items.POST("/:id/edit", h.updateItem)
		items.POST("/:id/delete", h.deleteItem)
	}
}

// attachUser resolves the session cookie into the current user for every
// request. Anonymous requests proceed; protected routes are gated separately.
// A session-store failure is recorded so the gate can fail closed instead of
// treating a logged-in user as logged out.
func (h *Handler) attachUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.sessionToken(c)
		user, err := h.auth.Resolve(c.Request.Context(), token)
		if err != nil {
			h.logger.WithError(err).Error("resolve session")
			c.Set(resolveFailedKey, true)
		}
		if user != nil {
			c.Set(currentUserKey, user)
		}
		c.Next()
	}
}

// requireUser rejects anonymous requests before they reach any protected
// resource. The redirect never reveals whether the resource exists. When the
// session lookup itself failed the request is a server fault, not a logout.
func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(resolveFailedKey) {
			c.String(http.StatusInternalServerError, "something went wrong")
			c.Abort()
			return
		}
		if currentUser(c) == nil {
			c.Redirect(http.StatusFound, "/auth/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	if v, ok := c.Get(currentUserKey); ok {
		if user, ok := v.(*domain.User); ok {
			return user
		}
	}
	return nil
}

func (h *Handler) sessionToken(c *gin.Context) string {
	token, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return token
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, token, int(h.sessionTTL.Seconds()), "/", "", h.cookieSecure, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", h.cookieSecure, true)
}

func (h *Handler) root(c *gin.Context) {
	if currentUser(c) != nil {
		c.Redirect(http.StatusFound, "/items")
		return
	}
	c.Redirect(http.StatusFound, "/auth/login")
}

type authView struct {
	Errors []string
}

func (h *Handler) showRegister(c *gin.Context) {
	if currentUser(c) != nil {
		c.Redirect(http.StatusFound, "/items")
		return
	}
	c.HTML(http.StatusOK, "register.html", authView{Errors: flashMessages(h.takeFlashCookie(c))})
}

// register creates the account or bounces back to the form with the failure
// queued as a one-shot flash, mirroring the item flow.
func (h *Handler) register(c *gin.Context) {
	user, session, err := h.auth.Register(
		c.Request.Context(),
		c.PostForm("email"),
		c.PostForm("password"),
		c.PostForm("passwordConfirm"),
	)
	if err != nil {
		if ve, ok := errs.AsValidation(err); ok {
			h.authFailure(c, "/auth/register", ve.Messages()...)
			return
		}
		if errors.Is(err, errs.ErrDuplicateEmail) {
			h.authFailure(c, "/auth/register", err.Error())
			return
		}
		h.logger.WithError(err).Error("register")
		h.authFailure(c, "/auth/register", "registration failed, please try again")
		return
	}

	h.setSessionCookie(c, session.Token)
	h.logger.WithField("user_id", user.ID).Info("user registered")
	c.Redirect(http.StatusFound, "/items")
}

func (h *Handler) showLogin(c *gin.Context) {
	if currentUser(c) != nil {
		c.Redirect(http.StatusFound, "/items")
		return
	}
	c.HTML(http.StatusOK, "login.html", authView{Errors: flashMessages(h.takeFlashCookie(c))})
}

func (h *Handler) login(c *gin.Context) {
	_, session, err := h.auth.Login(c.Request.Context(), c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			h.authFailure(c, "/auth/login", err.Error())
			return
		}
		h.logger.WithError(err).Error("login")
		h.authFailure(c, "/auth/login", "login failed, please try again")
		return
	}

	h.setSessionCookie(c, session.Token)
	c.Redirect(http.StatusFound, "/items")
}

// authFailure queues the messages and redirects back to the form.
func (h *Handler) authFailure(c *gin.Context, back string, messages ...string) {
	flash := make([]domain.Flash, 0, len(messages))
	for _, m := range messages {
		flash = append(flash, domain.Flash{Kind: "error", Message: m})
	}
	h.setFlashCookie(c, flash...)
	c.Redirect(http.StatusFound, back)
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), h.sessionToken(c)); err != nil {
		h.logger.WithError(err).Warn("logout")
	}
	h.clearSessionCookie(c)
	c.Redirect(http.StatusFound, "/auth/login")
}

type itemListView struct {
	User       *domain.User
	Items      []domain.Item
	Summary    domain.Summary
	FilterType string
	StartDate  string
	EndDate    string
	Flash      []domain.Flash
}

func (h *Handler) listItems(c *gin.Context) {
	user := currentUser(c)

	query := service.ItemQuery{Type: c.DefaultQuery("type", "all")}
	startStr := c.Query("start")
	endStr := c.Query("end")
	if t, err := time.ParseInLocation("2006-01-02", startStr, time.Local); err == nil {
		query.Start = &t
	}
	if t, err := time.ParseInLocation("2006-01-02", endStr, time.Local); err == nil {
		query.End = &t
	}

	items, summary, err := h.items.List(c.Request.Context(), user.ID, query)
	if err != nil {
		h.logger.WithError(err).Error("list items")
		c.String(http.StatusInternalServerError, "failed to load items")
		return
	}

	c.HTML(http.StatusOK, "items_index.html", itemListView{
		User:       user,
		Items:      items,
		Summary:    summary,
		FilterType: query.Type,
		StartDate:  startStr,
		EndDate:    endStr,
		Flash:      h.takeFlash(c),
	})
}

type itemFormView struct {
	User   *domain.User
	IsEdit bool
	ItemID int64
	Values service.ItemInput
	Errors []string
}

func (h *Handler) newItemForm(c *gin.Context) {
	c.HTML(http.StatusOK, "item_form.html", itemFormView{User: currentUser(c)})
}

func (h *Handler) createItem(c *gin.Context) {
	user := currentUser(c)
	in := itemInputFromForm(c)

	if _, err := h.items.Create(c.Request.Context(), user.ID, in); err != nil {
		if ve, ok := errs.AsValidation(err); ok {
			c.HTML(http.StatusOK, "item_form.html", itemFormView{User: user, Values: in, Errors: ve.Messages()})
			return
		}
		h.logger.WithError(err).Error("create item")
		c.HTML(http.StatusOK, "item_form.html", itemFormView{User: user, Values: in, Errors: []string{"failed to save item"}})
		return
	}

	h.addFlash(c, domain.Flash{Kind: "success", Message: "item recorded"})
	c.Redirect(http.StatusFound, "/items")
}

func (h *Handler) showItem(c *gin.Context) {
	user := currentUser(c)
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	item, err := h.items.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		h.itemError(c, err, "load item")
		return
	}

	c.HTML(http.StatusOK, "item_detail.html", gin.H{"User": user, "Item": item})
}

func (h *Handler) editItemForm(c *gin.Context) {
	user := currentUser(c)
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	item, err := h.items.Get(c.Request.Context(), user.ID, id)
	if err != nil {
		h.itemError(c, err, "load item")
		return
	}

	c.HTML(http.StatusOK, "item_form.html", itemFormView{
		User:   user,
		IsEdit: true,
		ItemID: item.ID,
		Values: service.ItemInput{
			Event:  item.Event,
			Amount: strconv.FormatInt(item.Amount, 10),
			Type:   string(item.Type),
			Date:   item.Date.Format("2006-01-02"),
			Memo:   item.Memo,
		},
	})
}

func (h *Handler) updateItem(c *gin.Context) {
	user := currentUser(c)
	id, ok := h.itemID(c)
	if !ok {
		return
	}
	in := itemInputFromForm(c)

	if _, err := h.items.Update(c.Request.Context(), user.ID, id, in); err != nil {
		if ve, ok := errs.AsValidation(err); ok {
			c.HTML(http.StatusOK, "item_form.html", itemFormView{User: user, IsEdit: true, ItemID: id, Values: in, Errors: ve.Messages()})
			return
		}
		h.itemError(c, err, "update item")
		return
	}

	h.addFlash(c, domain.Flash{Kind: "success", Message: "item updated"})
	c.Redirect(http.StatusFound, "/items")
}

func (h *Handler) deleteItem(c *gin.Context) {
	user := currentUser(c)
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	if err := h.items.Delete(c.Request.Context(), user.ID, id); err != nil {
		h.itemError(c, err, "delete item")
		return
	}

	h.addFlash(c, domain.Flash{Kind: "success", Message: "item deleted"})
	c.Redirect(http.StatusFound, "/items")
}

// itemID parses the :id path segment. A malformed id behaves like a miss so
// probing reveals nothing.
func (h *Handler) itemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.addFlash(c, domain.Flash{Kind: "error", Message: "item not found"})
		c.Redirect(http.StatusFound, "/items")
		return 0, false
	}
	return id, true
}

// itemError maps a failed item operation to the flash-and-redirect flow.
// NotFound covers both true misses and other users' items.
func (h *Handler) itemError(c *gin.Context, err error, op string) {
	if errors.Is(err, errs.ErrNotFound) {
		h.addFlash(c, domain.Flash{Kind: "error", Message: "item not found"})
		c.Redirect(http.StatusFound, "/items")
		return
	}
	h.logger.WithError(err).Error(op)
	h.addFlash(c, domain.Flash{Kind: "error", Message: "something went wrong"})
	c.Redirect(http.StatusFound, "/items")
}

func (h *Handler) addFlash(c *gin.Context, flash ...domain.Flash) {
	token := h.sessionToken(c)
	if token == "" {
		return
	}
	if err := h.sessions.AppendFlash(c.Request.Context(), token, flash...); err != nil {
		h.logger.WithError(err).Warn("append flash")
	}
}

func (h *Handler) takeFlash(c *gin.Context) []domain.Flash {
	token := h.sessionToken(c)
	if token == "" {
		return nil
	}
	flash, err := h.sessions.TakeFlash(c.Request.Context(), token)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		h.logger.WithError(err).Warn("take flash")
	}
	return flash
}

// setFlashCookie queues one-shot messages for a visitor without a session
// row. Pre-login failures land here; everything after login uses the
// session-backed flash store.
func (h *Handler) setFlashCookie(c *gin.Context, flash ...domain.Flash) {
	raw, err := json.Marshal(flash)
	if err != nil {
		h.logger.WithError(err).Warn("encode flash cookie")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, string(raw), 300, "/", "", h.cookieSecure, true)
}

// takeFlashCookie reads the queued messages and clears the cookie so they
// render exactly once.
func (h *Handler) takeFlashCookie(c *gin.Context) []domain.Flash {
	raw, err := c.Cookie(flashCookieName)
	if err != nil || raw == "" {
		return nil
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, "", -1, "/", "", h.cookieSecure, true)

	var flash []domain.Flash
	if err := json.Unmarshal([]byte(raw), &flash); err != nil {
		return nil
	}
	return flash
}

func flashMessages(flash []domain.Flash) []string {
	msgs := make([]string, 0, len(flash))
	for _, f := range flash {
		msgs = append(msgs, f.Message)
	}
	return msgs
}

func itemInputFromForm(c *gin.Context) service.ItemInput {
	return service.ItemInput{
		Event:  c.PostForm("event"),
		Amount: c.PostForm("amount"),
		Type:   c.PostForm("type"),
		Date:   c.PostForm("date"),
		Memo:   c.PostForm("memo"),
	}
}
