package identity

import (
	"net/http"
	"net/url"
	"strings"
)

// Decision is the outcome of evaluating a path against the route gate.
type Decision struct {
	Allow    bool
	Redirect string
}

type gateRule struct {
	prefix string
	allow  func(Role) bool
}

var gateRules = []gateRule{
	{prefix: "/dashboard", allow: Role.IsStaff},
	{prefix: "/patient", allow: func(r Role) bool { return r == PetOwner }},
	{prefix: "/admin", allow: func(r Role) bool { return r == SuperAdmin }},
}

var authPages = []string{"/login", "/register"}

// LoginPath is where anonymous callers of gated pages are sent.
const LoginPath = "/login"

// Evaluate applies the route gate to a request URL. Ungated paths are always allowed.
func Evaluate(u *url.URL, id *Identity) Decision {
	path := u.Path
	for _, page := range authPages {
		if matchPrefix(path, page) {
			if id != nil && id.Role.Valid() {
				return Decision{Redirect: id.Role.Home()}
			}
			return Decision{Allow: true}
		}
	}
	for _, rule := range gateRules {
		if !matchPrefix(path, rule.prefix) {
			continue
		}
		if id == nil || !id.Role.Valid() {
			return Decision{Redirect: LoginPath + "?next=" + url.QueryEscape(u.RequestURI())}
		}
		if !rule.allow(id.Role) {
			return Decision{Redirect: id.Role.Home()}
		}
		return Decision{Allow: true}
	}
	return Decision{Allow: true}
}

// matchPrefix matches whole path segments so /administrator is not /admin.
func matchPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// Gate redirects requests the route gate does not allow.
func Gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := Evaluate(r.URL, FromContext(r.Context()))
		if d.Allow {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
	})
}
