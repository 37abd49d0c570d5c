package install

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appgate/pkg/problems"
	"appgate/pkg/session"
)

// Routes mounts install-begin and the callback. tokens may be nil, in which case no session
// cookie is set after an install.
func (c *Controller) Routes(r chi.Router, authPath, callbackPath string, tokens *session.Tokens) {
	r.Get(authPath, c.handleBegin)
	r.Get(callbackPath, c.handleCallback(tokens))
}

func (c *Controller) handleBegin(w http.ResponseWriter, r *http.Request) {
	target, err := c.Begin(r.Context(), r.URL.Query().Get("shop"))
	if err != nil {
		if errors.Is(err, ErrInvalidShop) {
			problems.Write(w, http.StatusBadRequest, "invalid-shop", "Bad Request", "shop must be a valid store domain")
			return
		}
		c.log.Errorw("install begin", "err", err)
		problems.Write(w, http.StatusInternalServerError, "install-failed", "Internal Server Error", "could not start install")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (c *Controller) handleCallback(tokens *session.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		target, t, err := c.Complete(r.Context(), CallbackParams{
			Shop:  q.Get("shop"),
			Code:  q.Get("code"),
			State: q.Get("state"),
			Query: q,
		})
		switch {
		case err == nil:
		case IsAuthFailure(err):
			problems.Unauthorized(w, "invalid-callback", "install callback could not be authenticated")
			return
		case errors.Is(err, ErrInvalidShop), errors.Is(err, ErrMissingCode):
			problems.Write(w, http.StatusBadRequest, "invalid-callback", "Bad Request", err.Error())
			return
		default:
			problems.Write(w, http.StatusInternalServerError, "install-failed", "Internal Server Error", "could not complete install")
			return
		}
		if tokens != nil {
			if err := tokens.SetCookie(w, t.ID); err != nil {
				c.log.Warnw("session cookie not set", "shop", t.ID, "err", err)
			}
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}
