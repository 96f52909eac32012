package session

import (
	"context"
	"fmt"

	"github.com/desertthunder/drivecast/internal/auth"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
)

// AuthState is the credential lifecycle state.
func (s *Session) AuthState() auth.State {
	if s.creds == nil {
		return auth.SignedOut
	}
	return s.creds.State()
}

// User returns the cached profile of the signed-in user.
func (s *Session) User() (*models.UserProfile, bool) {
	return s.progress.User()
}

// SignIn runs the interactive sign-in and caches the user profile.
//
// An authenticated folder that is already open stays open and is listed again, so a sign-in after
// expiry resumes where the user was. With nothing open the last session is replayed, falling back to
// the library root.
func (s *Session) SignIn(ctx context.Context) error {
	if s.creds == nil {
		return s.fail("sign in", fmt.Errorf("%w: no credential manager", shared.ErrNotImplemented))
	}
	if _, err := s.creds.SignIn(ctx); err != nil {
		return s.fail("sign in", err)
	}

	if s.profiles != nil {
		if u, err := s.profiles.UserInfo(ctx); err != nil {
			s.logger.Warn("failed to fetch profile", "error", err)
		} else if err := s.progress.SetUser(*u); err != nil {
			s.logger.Warn("failed to cache profile", "error", err)
		}
	}

	s.mu.Lock()
	open, public := s.nav != nil, s.public
	s.mu.Unlock()

	switch {
	case open && !public:
		return s.Refresh(ctx)
	case !open && s.resumeLast(ctx):
		return nil
	}

	s.mu.Lock()
	s.public = false
	s.mu.Unlock()
	return s.OpenRoot(ctx)
}

// SignOut stops both engines, revokes the credential and clears every derived persisted value.
// Device preferences survive.
func (s *Session) SignOut(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.stopEngines()
	s.mu.Lock()
	s.nav = nil
	s.listing = Listing{}
	s.public = false
	s.mu.Unlock()

	if s.creds == nil {
		return s.progress.Clear()
	}
	if err := s.creds.SignOut(ctx); err != nil {
		return s.fail("sign out", err)
	}
	return nil
}

// OpenPublicLink opens a shared folder link without credentials and remembers it as the public
// library root. Accepts folder URLs, ?id= URLs and bare folder IDs.
func (s *Session) OpenPublicLink(ctx context.Context, link string) error {
	id, err := services.ParseFolderLink(link)
	if err != nil {
		return s.fail("open link", err)
	}

	s.op.Lock()
	defer s.op.Unlock()

	ref, err := s.folders.FolderInfo(ctx, id, services.Public)
	if err != nil {
		return s.fail("open link", err)
	}
	if err := s.openLocked(ctx, ref, true); err != nil {
		return err
	}

	if s.creds != nil {
		s.creds.EnterPublic()
	}
	if err := s.progress.SetPublicFolder(ref); err != nil {
		s.logger.Warn("failed to remember public folder", "error", err)
	}
	return nil
}
