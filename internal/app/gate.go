package app

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"hostel_finder/internal/domain"
)

// AdminRedirect is where a successful admin login is sent.
const AdminRedirect = "/admin"

// AdminGate checks credentials and then the is_admin flag of the user's profile.
type AdminGate struct {
	auth     domain.AuthBackend
	profiles domain.ProfileRepository
	guard    *inFlight
}

func NewAdminGate(a domain.AuthBackend, p domain.ProfileRepository) *AdminGate {
	return &AdminGate{auth: a, profiles: p, guard: newInFlight()}
}

// Login grants admin access or returns an auth error. A user without a profile
// gets a non-admin profile created and is denied.
func (g *AdminGate) Login(ctx context.Context, email, password string) (domain.Session, error) {
	release, err := g.guard.acquire("login:" + strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return domain.Session{}, domain.AuthError(err)
	}
	defer release()

	sess, err := g.auth.SignIn(ctx, email, password)
	if err != nil {
		return domain.Session{}, domain.AuthError(err)
	}

	p, err := g.profiles.GetProfile(ctx, sess.UserID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if cerr := g.profiles.CreateProfile(ctx, domain.Profile{ID: sess.UserID, IsAdmin: false}); cerr != nil {
			log.Warn().Err(cerr).Str("user", sess.UserID).Msg("profile auto-create failed")
		}
		g.signOut(ctx, sess)
		return domain.Session{}, domain.AuthError(domain.ErrNotAdmin)
	case err != nil:
		g.signOut(ctx, sess)
		return domain.Session{}, domain.AuthError(err)
	case !p.IsAdmin:
		g.signOut(ctx, sess)
		return domain.Session{}, domain.AuthError(domain.ErrNotAdmin)
	}

	log.Info().Str("user", sess.UserID).Msg("admin signed in")
	return sess, nil
}

// Authorize validates a session token and re-checks the admin flag.
// It never creates profiles.
func (g *AdminGate) Authorize(ctx context.Context, token string) (domain.Session, error) {
	sess, err := g.auth.Verify(ctx, token)
	if err != nil {
		return domain.Session{}, domain.AuthError(err)
	}
	p, err := g.profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Session{}, domain.AuthError(domain.ErrNotAdmin)
		}
		return domain.Session{}, domain.AuthError(err)
	}
	if !p.IsAdmin {
		return domain.Session{}, domain.AuthError(domain.ErrNotAdmin)
	}
	return sess, nil
}

func (g *AdminGate) Logout(ctx context.Context, token string) error {
	if err := g.auth.SignOut(ctx, token); err != nil {
		return domain.AuthError(err)
	}
	return nil
}

// a denied login must not leave a live session behind
func (g *AdminGate) signOut(ctx context.Context, s domain.Session) {
	if err := g.auth.SignOut(ctx, s.Token); err != nil {
		log.Warn().Err(err).Str("user", s.UserID).Msg("sign out after denied login failed")
	}
}
