package tasks

import (
	"slices"
	"strings"

	"github.com/desertthunder/d2t/internal/models"
)

// Partitioner groups matched tracks into playlists and names the playlist of each group.
type Partitioner interface {
	// Partition returns the groups in a stable order. Unmatched tracks are never grouped.
	Partition(releases []models.Release, resolved map[string]models.ResolvedTrack) []*models.StyleGroup
	// PlaylistName derives the remote playlist name for a group.
	PlaylistName(style string) string
}

// StylePartitioner creates one group per release style plus [models.UnknownStyle] for releases without styles.
//
// Playlists are named "{BaseName} - {style}".
type StylePartitioner struct {
	BaseName string
}

func (p StylePartitioner) PlaylistName(style string) string {
	return p.BaseName + " - " + style
}

func (p StylePartitioner) Partition(releases []models.Release, resolved map[string]models.ResolvedTrack) []*models.StyleGroup {
	groups := make(map[string]*models.StyleGroup)
	add := func(style, id string) {
		g, ok := groups[style]
		if !ok {
			g = models.NewStyleGroup(style)
			groups[style] = g
		}
		g.Add(id)
	}

	for _, release := range releases {
		styles := releaseStyles(release)
		for _, t := range release.Tracks {
			r, ok := resolved[t.Fingerprint()]
			if !ok || !r.Matched() {
				continue
			}
			for _, style := range styles {
				add(style, r.TrackID)
			}
		}
	}
	return orderGroups(groups)
}

// releaseStyles returns the trimmed, distinct styles of r, or [models.UnknownStyle].
func releaseStyles(r models.Release) []string {
	var styles []string
	for _, s := range r.Styles {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(styles, s) {
			styles = append(styles, s)
		}
	}
	if len(styles) == 0 {
		return []string{models.UnknownStyle}
	}
	return styles
}

// orderGroups sorts groups by style name with the unknown bucket last.
func orderGroups(groups map[string]*models.StyleGroup) []*models.StyleGroup {
	out := make([]*models.StyleGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *models.StyleGroup) int {
		switch {
		case a.Style == b.Style:
			return 0
		case a.Style == models.UnknownStyle:
			return 1
		case b.Style == models.UnknownStyle:
			return -1
		}
		return strings.Compare(a.Style, b.Style)
	})
	return out
}

// SingleGroup routes every matched track into one group. Name is used verbatim as the playlist name.
type SingleGroup struct {
	Name string
}

func (p SingleGroup) PlaylistName(string) string {
	return p.Name
}

func (p SingleGroup) Partition(releases []models.Release, resolved map[string]models.ResolvedTrack) []*models.StyleGroup {
	g := models.NewStyleGroup(p.Name)
	for _, release := range releases {
		for _, t := range release.Tracks {
			if r, ok := resolved[t.Fingerprint()]; ok && r.Matched() {
				g.Add(r.TrackID)
			}
		}
	}
	if g.Len() == 0 {
		return nil
	}
	return []*models.StyleGroup{g}
}
