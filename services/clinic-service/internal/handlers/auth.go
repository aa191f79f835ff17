package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vetcare/vetcare/libs/httpx"
	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/model"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

const refreshCookie = "refresh_token"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

type registerRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	ClinicSlug string `json:"clinic_slug"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in"`
	User         model.User `json:"user"`
	Redirect     string     `json:"redirect"`
}

type pageDescriptor struct {
	Page   string   `json:"page"`
	Action string   `json:"action"`
	Fields []string `json:"fields"`
	Next   string   `json:"next,omitempty"`
}

// LoginPage describes the login form. Signed-in users never get here; the
// gate sends them home.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, pageDescriptor{
		Page:   "login",
		Action: "/login",
		Fields: []string{"email", "password"},
		Next:   safeNext(r.URL.Query().Get("next")),
	})
}

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, pageDescriptor{
		Page:   "register",
		Action: "/register",
		Fields: []string{"name", "email", "password", "phone", "clinic_slug"},
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil {
		if storage.IsNotFound(err) {
			h.metrics.login("invalid")
			httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.fail(w, r, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.metrics.login("invalid")
		httpx.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.metrics.login("ok")
	h.startSession(w, r, http.StatusOK, user, safeNext(req.Next))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := newAccount(req.Email, req.Password, req.Name, req.Phone)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user.Role = identity.PetOwner

	if slug := strings.TrimSpace(req.ClinicSlug); slug != "" {
		clinic, err := h.store.GetClinicBySlug(r.Context(), slug)
		if err != nil {
			if storage.IsNotFound(err) {
				h.fail(w, r, model.Invalid("clinic_slug", "clinic not found"))
				return
			}
			h.fail(w, r, err)
			return
		}
		user.ClinicID = clinic.ID
	}

	if err := h.store.CreateUser(r.Context(), &user); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("pet owner registered", "user_id", user.ID, "clinic_id", user.ClinicID)
	h.startSession(w, r, http.StatusCreated, user, "")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := presentedRefreshToken(r); token != "" {
		if err := h.store.RevokeRefreshToken(r.Context(), hashToken(token)); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	h.clearCookies(w)
	writeOK(w, http.StatusOK, map[string]string{"redirect": identity.LoginPath})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := presentedRefreshToken(r)
	if token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "refresh_token required")
		return
	}
	next, err := newOpaqueToken()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	user, err := h.store.RotateRefreshToken(r.Context(), hashToken(token), hashToken(next), h.now().Add(h.cfg.RefreshTTL))
	if err != nil {
		if storage.IsNotFound(err) {
			h.clearCookies(w)
			httpx.WriteError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		h.fail(w, r, err)
		return
	}
	access, err := h.tokens.Issue(user.ID, user.ClinicID, string(user.Role))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setCookies(w, access, next)
	writeOK(w, http.StatusOK, h.session(user, access, next, ""))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id == nil {
		h.fail(w, r, identity.ErrUnauthenticated)
		return
	}
	user, err := h.store.GetUser(r.Context(), id.UserID)
	if err != nil {
		if storage.IsNotFound(err) {
			h.fail(w, r, identity.ErrUnauthenticated)
			return
		}
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"user": user,
		"home": user.Role.Home(),
	})
}

// startSession issues both tokens, sets the cookies and answers with the session.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, status int, user model.User, next string) {
	access, err := h.tokens.Issue(user.ID, user.ClinicID, string(user.Role))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	refresh, err := h.issueRefreshToken(r.Context(), user.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setCookies(w, access, refresh)
	writeOK(w, status, h.session(user, access, refresh, next))
}

func (h *Handler) session(user model.User, access, refresh, next string) sessionResponse {
	redirect := next
	if redirect == "" || !allowedFor(user.Role, redirect) {
		redirect = user.Role.Home()
	}
	return sessionResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(h.tokens.TTL().Seconds()),
		User:         user,
		Redirect:     redirect,
	}
}

func (h *Handler) issueRefreshToken(ctx context.Context, userID string) (string, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := h.store.CreateRefreshToken(ctx, userID, hashToken(token), h.now().Add(h.cfg.RefreshTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func (h *Handler) setCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, &http.Cookie{
		Name:     identity.SessionCookie,
		Value:    access,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    refresh,
		Path:     "/api/auth",
		MaxAge:   int(h.cfg.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearCookies(w http.ResponseWriter) {
	for name, path := range map[string]string{identity.SessionCookie: "/", refreshCookie: "/api/auth"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cfg.CookieSecure,
		})
	}
}

// presentedRefreshToken reads the token from a JSON body or the refresh cookie.
func presentedRefreshToken(r *http.Request) string {
	if r.ContentLength != 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req refreshRequest
		if err := decodeBody(r, &req); err == nil && strings.TrimSpace(req.RefreshToken) != "" {
			return strings.TrimSpace(req.RefreshToken)
		}
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// newAccount validates credentials and returns an active user with a bcrypt hash.
func newAccount(email, password, name, phone string) (model.User, error) {
	email, err := model.NormalizeEmail(email)
	if err != nil {
		return model.User{}, err
	}
	if err := model.ValidatePassword(password); err != nil {
		return model.User{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.User{}, model.Invalid("name", "is required")
	}
	if len(name) > 120 {
		return model.User{}, model.Invalid("name", "must be at most 120 characters")
	}
	phone, err = model.NormalizePhone(phone)
	if err != nil {
		return model.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Phone:        phone,
		Active:       true,
	}, nil
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// safeNext keeps only same-site absolute paths.
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}

// allowedFor reports whether the gate would let role through to path.
func allowedFor(role identity.Role, path string) bool {
	u, err := url.Parse(path)
	if err != nil {
		return false
	}
	return identity.Evaluate(u, &identity.Identity{Role: role}).Allow
}
