package fields

import (
	"regexp"

	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// idChars is the character class body of an item ID (see types.ValidID).
// It ends with '-' so it can close any bracket expression.
const idChars = `0-9a-z_-`

// dynamicLinkPattern matches the internal link URL format used in rich text.
var dynamicLinkPattern = regexp.MustCompile(`(?i)~/link\.aspx\?_id=\{?([` + idChars + `]+)\}?`)

// RichTextHandler handles HTML fields that reference items through
// ~/link.aspx?_id=<id> URLs, in anchors, other tags or bare text.
type RichTextHandler struct{}

// References returns the IDs of every internal link in document order.
func (RichTextHandler) References(f *types.Field) []string {
	var ids []string
	for _, m := range dynamicLinkPattern.FindAllStringSubmatch(f.Value, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

// RemoveLink drops every internal link to link.TargetID. Anchors are
// unwrapped to their text, other tags carrying the URL are removed, and
// bare URLs are cut out.
func (RichTextHandler) RemoveLink(f *types.Field, link *types.Link) error {
	if link.TargetID == "" {
		return types.ErrInvalidID
	}
	p := removePatterns(link.TargetID)
	v := p.anchor.ReplaceAllString(f.Value, "${1}")
	v = p.tag.ReplaceAllString(v, "")
	f.Value = p.bare.ReplaceAllString(v, "${1}")
	return nil
}

// Relink rewrites internal links to link.TargetID so they point at newTarget.
func (RichTextHandler) Relink(f *types.Field, link *types.Link, newTarget *types.Item) error {
	if link.TargetID == "" || newTarget == nil || newTarget.ItemID == "" {
		return types.ErrInvalidID
	}
	re := urlPattern(link.TargetID)
	f.Value = re.ReplaceAllStringFunc(f.Value, func(m string) string {
		sub := re.FindStringSubmatch(m)
		return "~/link.aspx?_id=" + sub[1] + newTarget.ItemID + sub[2] + sub[3]
	})
	return nil
}

// linkURL matches the link URL for id up to, not including, the character
// that ends the ID.
func linkURL(id string) string {
	return `~/link\.aspx\?_id=\{?` + regexp.QuoteMeta(trimID(id)) + `\}?`
}

type richTextRemoval struct {
	anchor *regexp.Regexp // group 1 is the anchor text
	tag    *regexp.Regexp
	bare   *regexp.Regexp // group 1 is the character after the URL
}

func removePatterns(id string) richTextRemoval {
	u := linkURL(id)
	quoted := `(?:"` + u + `(?:[^"` + idChars + `][^"]*)?"|'` + u + `(?:[^'` + idChars + `][^']*)?')[^>]*`
	unquoted := u + `(?:[^\s>'"` + idChars + `][^\s>]*)?(?:\s[^>]*)?`
	return richTextRemoval{
		anchor: regexp.MustCompile(`(?is)<a\b[^>]*?\bhref\s*=\s*(?:` + quoted + `|` + unquoted + `)>(.*?)</a>`),
		tag:    regexp.MustCompile(`(?is)<[a-z][^>]*?` + u + `(?:[^>` + idChars + `][^>]*)?>`),
		bare:   regexp.MustCompile(`(?i)` + u + `([^` + idChars + `]|$)`),
	}
}

// urlPattern matches the link URL for id; groups 1 and 2 are the optional
// braces and group 3 the character that ends the ID.
func urlPattern(id string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)~/link\.aspx\?_id=(\{?)` + regexp.QuoteMeta(trimID(id)) + `(\}?)([^` + idChars + `]|$)`)
}
