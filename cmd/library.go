package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/drivecast/internal/session"
	"github.com/desertthunder/drivecast/internal/shared"
	"github.com/urfave/cli/v3"
)

// openFolder opens the library root, or link as a public folder, then descends through the
// slash-separated folder names in path.
func (r *Runner) openFolder(ctx context.Context, s *session.Session, link, path string) error {
	if link != "" {
		if err := s.OpenPublicLink(ctx, link); err != nil {
			return err
		}
	} else if err := s.OpenRoot(ctx); err != nil {
		return err
	}

	for _, name := range splitPath(path) {
		l := s.Listing()
		found := false
		for _, f := range l.Folders {
			if strings.EqualFold(f.Name, name) {
				if err := s.Navigate(ctx, f.Ref()); err != nil {
					return err
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: no folder %q in %s", shared.ErrInvalidArgument, name, l.Breadcrumb)
		}
	}
	return nil
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

type listingRow struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size_bytes,omitempty"`
}

// Browse lists a folder of the library.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	s, err := r.newSession(sessionOpts{})
	if err != nil {
		return err
	}
	if err := r.openFolder(ctx, s, cmd.String("link"), cmd.String("path")); err != nil {
		return err
	}
	return r.writeListing(s.Listing(), cmd.Bool("json"))
}

// PublicOpen opens a shared folder link without signing in and remembers it as the library root.
func (r *Runner) PublicOpen(ctx context.Context, cmd *cli.Command) error {
	link := cmd.StringArg("link")
	if link == "" {
		return fmt.Errorf("%w: folder link", shared.ErrMissingArgument)
	}

	s, err := r.newSession(sessionOpts{})
	if err != nil {
		return err
	}
	if err := s.OpenPublicLink(ctx, link); err != nil {
		return err
	}

	l := s.Listing()
	r.logger.Info("public folder saved", "id", l.Folder.ID, "name", l.Folder.Name)
	r.writePlain("✓ Opened %s (public)\n\n", l.Folder.Name)
	return r.writeListing(l, false)
}

func (r *Runner) writeListing(l session.Listing, asJSON bool) error {
	rows := make([]listingRow, 0, len(l.Folders)+len(l.Audio)+len(l.Texts))
	for _, e := range l.Folders {
		rows = append(rows, listingRow{Kind: "folder", ID: e.ID, Name: e.Name})
	}
	for _, e := range l.Audio {
		rows = append(rows, listingRow{Kind: "audio", ID: e.ID, Name: e.Name, Size: e.SizeBytes})
	}
	for _, e := range l.Texts {
		rows = append(rows, listingRow{Kind: "chapter", ID: e.ID, Name: e.Name, Size: e.SizeBytes})
	}

	if asJSON {
		return r.writeJSON(rows, true)
	}

	r.writePlain("%s\n", l.Breadcrumb)
	if len(rows) == 0 {
		return r.writePlain("(empty)\n")
	}

	table := make([][]string, 0, len(rows))
	counts := map[string]int{}
	for _, row := range rows {
		counts[row.Kind]++
		size := ""
		if row.Size > 0 {
			size = shared.FormatSize(row.Size)
		}
		table = append(table, []string{row.Kind, strconv.Itoa(counts[row.Kind]), row.Name, size})
	}
	r.writePlain("%s\n", renderTable(r.output, []string{"Kind", "#", "Name", "Size"}, table, []columnAlignment{alignLeft, alignRight, alignLeft, alignRight}))
	if l.Others > 0 {
		r.writePlain("%d other files hidden\n", l.Others)
	}
	return nil
}
