// Package navigation tracks the user's position in the remote folder hierarchy.
package navigation

import (
	"fmt"
	"strings"

	"github.com/desertthunder/drivecast/internal/models"
	"github.com/desertthunder/drivecast/internal/shared"
)

// DefaultSeparator joins folder names in a breadcrumb.
const DefaultSeparator = " / "

// Stack is the root-first path of folders from the library root to the current folder.
//
// A stack in use is never empty; popping the root is a no-op.
type Stack struct {
	path []models.FolderRef
}

// New returns a stack positioned at root.
func New(root models.FolderRef) *Stack {
	return &Stack{path: []models.FolderRef{root}}
}

// Push descends into ref.
func (s *Stack) Push(ref models.FolderRef) {
	s.path = append(s.path, ref)
}

// Pop returns to the parent folder. It reports false, leaving the stack unchanged, at the root.
func (s *Stack) Pop() bool {
	if len(s.path) <= 1 {
		return false
	}
	s.path = s.path[:len(s.path)-1]
	return true
}

// Current returns the folder on top of the stack.
func (s *Stack) Current() models.FolderRef {
	if len(s.path) == 0 {
		return models.FolderRef{}
	}
	return s.path[len(s.path)-1]
}

// Root returns the bottom of the stack.
func (s *Stack) Root() models.FolderRef {
	if len(s.path) == 0 {
		return models.FolderRef{}
	}
	return s.path[0]
}

// AtRoot reports whether the stack holds only the root.
func (s *Stack) AtRoot() bool {
	return len(s.path) <= 1
}

// Depth is the number of folders on the path.
func (s *Stack) Depth() int {
	return len(s.path)
}

// Path returns a copy of the root-first path.
func (s *Stack) Path() []models.FolderRef {
	return append([]models.FolderRef(nil), s.path...)
}

// Breadcrumb joins the folder names with sep, or [DefaultSeparator] when sep is empty.
func (s *Stack) Breadcrumb(sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	names := make([]string, len(s.path))
	for i, ref := range s.path {
		names[i] = ref.Name
	}
	return strings.Join(names, sep)
}

// Reset discards the path and starts again at root.
func (s *Stack) Reset(root models.FolderRef) {
	s.path = []models.FolderRef{root}
}

// Snapshot returns the path for persistence.
func (s *Stack) Snapshot() []models.FolderRef {
	return s.Path()
}

// Restore replaces the path with snapshot. An empty snapshot is rejected and leaves the stack unchanged.
func (s *Stack) Restore(snapshot []models.FolderRef) error {
	if len(snapshot) == 0 {
		return fmt.Errorf("%w: empty navigation snapshot", shared.ErrInvalidArgument)
	}
	for i, ref := range snapshot {
		if ref.ID == "" {
			return fmt.Errorf("%w: navigation entry %d has no id", shared.ErrInvalidArgument, i)
		}
	}
	s.path = append([]models.FolderRef(nil), snapshot...)
	return nil
}
