package session

import (
	"context"
	"fmt"

	"github.com/desertthunder/drivecast/internal/auth"
	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/navigation"
	"github.com/desertthunder/drivecast/internal/services"
	"github.com/desertthunder/drivecast/internal/shared"
)

// Listing is the classified content of the current folder.
type Listing struct {
	Folder     models.FolderRef
	Path       []models.FolderRef
	Breadcrumb string
	AtRoot     bool
	Folders    []models.RemoteEntry
	Audio      []models.RemoteEntry
	Texts      []models.RemoteEntry
	Others     int

	entries []models.RemoteEntry
}

func newListing(nav *navigation.Stack, entries []models.RemoteEntry) Listing {
	l := Listing{
		Folder:     nav.Current(),
		Path:       nav.Path(),
		Breadcrumb: nav.Breadcrumb(""),
		AtRoot:     nav.AtRoot(),
		Folders:    models.Folders(entries),
		Audio:      models.Audio(entries),
		Texts:      models.Texts(entries),
		entries:    entries,
	}
	models.SortNatural(l.Folders)
	models.SortNatural(l.Audio)
	models.SortNatural(l.Texts)
	l.Others = len(entries) - len(l.Folders) - len(l.Audio) - len(l.Texts)
	return l
}

// Listing returns the current folder listing.
func (s *Session) Listing() Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listing
}

// Path returns the navigation path, root first, or nil before a folder is open.
func (s *Session) Path() []models.FolderRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nav == nil {
		return nil
	}
	return s.nav.Path()
}

// OpenRoot opens the library root: the configured folder when signed in, else the remembered public
// folder.
func (s *Session) OpenRoot(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	root, public, err := s.resolveRoot(ctx)
	if err != nil {
		return s.fail("open library", err)
	}
	return s.openLocked(ctx, root, public)
}

func (s *Session) resolveRoot(ctx context.Context) (models.FolderRef, bool, error) {
	if s.creds != nil && s.creds.State() == auth.SignedIn {
		if s.library.RootFolderID != "" {
			ref, err := s.folders.FolderInfo(ctx, s.library.RootFolderID, services.Authenticated)
			return ref, false, err
		}
		ref, err := s.folders.FindFolderByName(ctx, s.library.RootFolderName, services.Authenticated)
		return ref, false, err
	}

	if ref, ok := s.progress.PublicFolder(); ok {
		if s.creds != nil {
			s.creds.EnterPublic()
		}
		return ref, true, nil
	}
	return models.FolderRef{}, false, fmt.Errorf("%w: sign in or open a public folder link", shared.ErrNotAuthenticated)
}

// openLocked resets navigation to root and lists it. Navigation is only replaced once the listing
// succeeds.
func (s *Session) openLocked(ctx context.Context, root models.FolderRef, public bool) error {
	access := services.Authenticated
	if public {
		access = services.Public
	}

	entries, err := s.list(ctx, root, access)
	if err != nil {
		return s.fail("list "+root.Name, err)
	}

	nav := navigation.New(root)
	s.mu.Lock()
	s.nav = nav
	s.public = public
	s.listing = newListing(nav, entries)
	l := s.listing
	s.mu.Unlock()

	s.emit(listingEvent(l))
	return nil
}

// Navigate descends into ref. A failed listing leaves navigation unchanged.
func (s *Session) Navigate(ctx context.Context, ref models.FolderRef) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	nav, access := s.nav, s.accessLocked()
	s.mu.Unlock()
	if nav == nil {
		return s.fail("open "+ref.Name, ErrNoFolder)
	}

	entries, err := s.list(ctx, ref, access)
	if err != nil {
		return s.fail("open "+ref.Name, err)
	}

	s.mu.Lock()
	s.nav.Push(ref)
	s.listing = newListing(s.nav, entries)
	l := s.listing
	s.mu.Unlock()

	s.emit(listingEvent(l))
	return nil
}

// NavigateIndex descends into the i-th sub-folder of the current listing.
func (s *Session) NavigateIndex(ctx context.Context, i int) error {
	l := s.Listing()
	if i < 0 || i >= len(l.Folders) {
		return nil
	}
	return s.Navigate(ctx, l.Folders[i].Ref())
}

// Back ascends one level. It is a no-op at the root; a failed listing leaves navigation unchanged.
func (s *Session) Back(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	if s.nav == nil || s.nav.AtRoot() {
		s.mu.Unlock()
		return nil
	}
	path := s.nav.Path()
	parent := path[len(path)-2]
	access := s.accessLocked()
	s.mu.Unlock()

	entries, err := s.list(ctx, parent, access)
	if err != nil {
		return s.fail("open "+parent.Name, err)
	}

	s.mu.Lock()
	s.nav.Pop()
	s.listing = newListing(s.nav, entries)
	l := s.listing
	s.mu.Unlock()

	s.emit(listingEvent(l))
	return nil
}

// Refresh lists the current folder again.
func (s *Session) Refresh(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	s.mu.Lock()
	if s.nav == nil {
		s.mu.Unlock()
		return s.fail("refresh", ErrNoFolder)
	}
	current, access := s.nav.Current(), s.accessLocked()
	s.mu.Unlock()

	entries, err := s.list(ctx, current, access)
	if err != nil {
		return s.fail("refresh "+current.Name, err)
	}

	s.mu.Lock()
	s.listing = newListing(s.nav, entries)
	l := s.listing
	s.mu.Unlock()

	s.emit(listingEvent(l))
	return nil
}

func (s *Session) list(ctx context.Context, ref models.FolderRef, access services.AuthMode) ([]models.RemoteEntry, error) {
	s.logger.Debug("listing folder", "id", ref.ID, "name", ref.Name, "mode", access)
	if pl, ok := s.store.(progressLister); ok {
		return pl.ListChildrenProgress(ctx, ref.ID, access, func(n int) {
			s.emit(loadingEvent(ref.Name, n))
		})
	}
	return s.store.ListChildren(ctx, ref.ID, access)
}

// storyHere captures the current folder and the path leading to it.
func (s *Session) storyHere() (story, Listing, services.AuthMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nav == nil {
		return story{}, Listing{}, 0, ErrNoFolder
	}
	return story{ref: s.nav.Current(), nav: s.nav.Path()}, s.listing, s.accessLocked(), nil
}
