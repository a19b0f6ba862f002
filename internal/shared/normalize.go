package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lowercases s, strips diacritics, replaces punctuation with spaces and collapses whitespace.
//
// "Beyoncé - Déjà Vu!" becomes "beyonce deja vu".
func Normalize(s string) string {
	// casers and transformer chains are stateful, so both are built per call
	lowered := cases.Lower(language.Und).String(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, lowered)
	if err != nil {
		stripped = lowered
	}

	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, stripped)

	return strings.Join(strings.Fields(mapped), " ")
}

// Fingerprint derives the identity key for a track: normalized artist and title joined by "|".
//
// Two tracks with the same fingerprint resolve to the same search cache entry.
func Fingerprint(artist, title string) string {
	return Normalize(artist) + "|" + Normalize(title)
}

var (
	featPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(?\s*\b[Ff]eat\.?\s+[^)]*\)?`),
		regexp.MustCompile(`\s*\(?\s*\b[Ff]eaturing\s+[^)]*\)?`),
		regexp.MustCompile(`\s*\(?\s*\b[Ff]t\.?\s+[^)]*\)?`),
	}
	parenPattern   = regexp.MustCompile(`\s*\([^)]*\)`)
	bracketPattern = regexp.MustCompile(`\s*\[[^\]]*\]`)
	versionSuffix  = []*regexp.Regexp{
		regexp.MustCompile(`\s*-\s*[^-]*[Rr]emix[^-]*`),
		regexp.MustCompile(`\s*-\s*[^-]*[Vv]ersion[^-]*`),
		regexp.MustCompile(`\s*-\s*[^-]*[Mm]ix[^-]*`),
		regexp.MustCompile(`\s*-\s*[^-]*[Ee]dit[^-]*`),
		regexp.MustCompile(`\s*-\s*Original\s*$`),
		regexp.MustCompile(`(?i)\s*-\s*Remastered.*$`),
		regexp.MustCompile(`(?i)\s*-\s*Radio.*$`),
	}
	quotePattern      = regexp.MustCompile("['\"`‘’“”]")
	spacePattern      = regexp.MustCompile(`\s+`)
	leadingThe        = regexp.MustCompile(`(?i)^the\s+`)
	artistFeat        = regexp.MustCompile(`(?i)\s+(feat\.?|featuring|ft\.?|f\.)\s+.*$`)
	discogsNumbering  = regexp.MustCompile(`\s+\(\d+\)$`)
	variousArtistsSet = map[string]bool{"various artists": true, "various": true, "va": true}
)

// CleanTitle strips decorations that differ between catalogs: featured artists, parenthesised and bracketed
// parts, remix/version/edit suffixes, remaster and radio tags, and quotes.
func CleanTitle(title string) string {
	cleaned := title
	for _, p := range featPatterns {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = parenPattern.ReplaceAllString(cleaned, "")
	cleaned = bracketPattern.ReplaceAllString(cleaned, "")
	for _, p := range versionSuffix {
		cleaned = p.ReplaceAllString(cleaned, "")
	}
	cleaned = quotePattern.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(cleaned, " "))
}

// CleanArtist strips decorations from an artist credit. "Various Artists" credits clean to "".
func CleanArtist(artist string) string {
	if variousArtistsSet[strings.ToLower(strings.TrimSpace(artist))] {
		return ""
	}

	cleaned := parenPattern.ReplaceAllString(artist, "")
	cleaned = leadingThe.ReplaceAllString(cleaned, "")
	cleaned = artistFeat.ReplaceAllString(cleaned, "")
	cleaned = strings.ReplaceAll(cleaned, "&", "and")
	cleaned = strings.ReplaceAll(cleaned, " + ", " and ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(cleaned, " "))
}

// StripDiscogsNumbering removes the " (2)" disambiguation suffix Discogs appends to duplicate artist names.
func StripDiscogsNumbering(name string) string {
	return strings.TrimSpace(discogsNumbering.ReplaceAllString(strings.TrimSpace(name), ""))
}

// ParseTrackDuration parses tracklist durations like "4:05" or "1:02:30". An empty string yields zero.
func ParseTrackDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalidInput, s)
	}

	var total int
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: duration %q", ErrInvalidInput, s)
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second, nil
}

// FormatDuration renders d as M:SS, or "--:--" when unknown.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
