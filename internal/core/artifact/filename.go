package artifact

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"

	"github.com/markdave123-py/paperdex/internal/models"
)

const (
	maxTitleLen = 50
	unknown     = "unknown"
)

// DeriveFilename builds {surname}_{year}_{title}.pdf from the paper metadata.
// The surname is the last word of the first author's display name.
// With disambiguate set, a short hash of the paper ID is appended so two
// papers with the same author, year and title prefix do not overwrite each other.
func DeriveFilename(p models.Paper, disambiguate bool) string {
	year := unknown
	if p.Year > 0 {
		year = strconv.Itoa(p.Year)
	}

	name := surname(p.Authors) + "_" + year + "_" + SanitizeTitle(p.Title)
	if disambiguate && p.ID != "" {
		sum := sha1.Sum([]byte(p.ID))
		name += "_" + hex.EncodeToString(sum[:])[:8]
	}
	return name + ".pdf"
}

// SanitizeTitle keeps letters, digits, space, '-' and '_', truncates to 50
// characters, trims and replaces spaces with underscores.
func SanitizeTitle(title string) string {
	kept := make([]rune, 0, len(title))
	for _, r := range title {
		if len(kept) == maxTitleLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			kept = append(kept, r)
		}
	}
	s := strings.TrimSpace(string(kept))
	if s == "" {
		return unknown
	}
	return strings.ReplaceAll(s, " ", "_")
}

func surname(authors []string) string {
	if len(authors) == 0 {
		return unknown
	}
	fields := strings.Fields(authors[0])
	if len(fields) == 0 {
		return unknown
	}
	return SanitizeTitle(fields[len(fields)-1])
}
