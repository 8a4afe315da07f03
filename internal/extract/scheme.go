package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Script references the download scripts are recognised by.
const (
	dlbuttonRef = "document.getElementById('dlbutton')"
	omgClassRef = "document.getElementById('omg').getAttribute('class')"
)

var (
	// scriptTag matches inline scripts declared with an explicit type, the
	// form every share page since mid-2022 uses for its download script.
	scriptTag = regexp.MustCompile(`(?is)<script\s+type="text/javascript"\s*>(.*?)</script>`)

	// hrefExpression captures an href built from an arbitrary expression:
	// document.getElementById('dlbutton').href = "/d/{ID}/" + ({EXPR}) + "/{NAME}";
	hrefExpression = regexp.MustCompile(`document\.getElementById\('dlbutton'\)\.href\s*=\s*"/d/(?P<id>\w*)/"\s*\+\s*\((?P<key>[^"]+?)\)\s*\+\s*"/(?P<name>[^"]*)";`)

	// hrefLiteral only admits numeric literals in the key expression.
	hrefLiteral = regexp.MustCompile(`document\.getElementById\('dlbutton'\)\.href\s*=\s*"/d/(?P<id>\w*)/"\s*\+\s*\((?P<key>[\d\s()+\-*/%]+)\)\s*\+\s*"/(?P<name>[^"]*)";`)

	// omgSpan holds the value read by omgClassRef.
	omgSpan = regexp.MustCompile(`<span\s+id="omg"\s+class="(\d+)"[^>]*>`)

	lrboxVariables = MustContainerAnchor("#lrbox .right script", "var ", dlbuttonRef)
	lrboxLiteral   = MustContainerAnchor("#lrbox .right script", dlbuttonRef)
)

// Scheme is one historical variant of the share-page obfuscation.
// Schemes are immutable once built.
type Scheme struct {
	Name        string
	Description string

	// Anchor locates the script fragment holding the href statement.
	Anchor Anchor

	// Href matches the href statement. It must define the named groups
	// id, key and name.
	Href *regexp.Regexp

	// Inline lists DOM lookups the script performs, replaced by values
	// read from the page before anything is evaluated.
	Inline []Lookup
}

// Lookup replaces every occurrence of Call in a fragment with the first
// group Source matches in the whole page.
type Lookup struct {
	Call   string
	Source *regexp.Regexp
}

// DefaultSchemes returns the built-in inventory, most recent first.
func DefaultSchemes() []Scheme {
	return []Scheme{
		{
			Name:        "omg-attribute",
			Description: "typed script tag reading the omg span class (2022-07-23)",
			Anchor:      ScriptAnchor(dlbuttonRef, omgClassRef),
			Href:        hrefExpression,
			Inline:      []Lookup{{Call: omgClassRef, Source: omgSpan}},
		},
		{
			Name:        "dlbutton-script",
			Description: "typed script tag with var declarations (2022-07-18)",
			Anchor:      ScriptAnchor(dlbuttonRef),
			Href:        hrefExpression,
		},
		{
			Name:        "lrbox-variables",
			Description: "#lrbox .right script with var declarations (2020)",
			Anchor:      lrboxVariables,
			Href:        hrefExpression,
		},
		{
			Name:        "lrbox-literal",
			Description: "#lrbox .right script with a literal expression (2019)",
			Anchor:      lrboxLiteral,
			Href:        hrefLiteral,
		},
	}
}

// SchemeNames returns the names of the built-in schemes in priority order.
func SchemeNames() []string {
	var names []string
	for _, s := range DefaultSchemes() {
		names = append(names, s.Name)
	}
	return names
}

// LookupSchemes builds an inventory from built-in scheme names, keeping
// the given order.
func LookupSchemes(names []string) ([]Scheme, error) {
	builtin := make(map[string]Scheme)
	for _, s := range DefaultSchemes() {
		builtin[s.Name] = s
	}

	schemes := make([]Scheme, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		s, ok := builtin[name]
		if !ok {
			return nil, fmt.Errorf("%w %q (valid: %s)", ErrUnknownScheme, name, strings.Join(SchemeNames(), ", "))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		schemes = append(schemes, s)
	}
	return schemes, nil
}

// extract runs the href grammar against fragment.
func (s Scheme) extract(fragment string) (id, keyExpr, encodedName string, err error) {
	m := s.Href.FindStringSubmatch(fragment)
	if m == nil {
		return "", "", "", fmt.Errorf("%w: %s grammar did not match", ErrLinkGeneratorExtraction, s.Name)
	}

	group := func(name string) string {
		if i := s.Href.SubexpIndex(name); i > 0 {
			return m[i]
		}
		return ""
	}

	id = group("id")
	if id == "" {
		return "", "", "", ErrFileIDExtraction
	}
	keyExpr = strings.TrimSpace(group("key"))
	if keyExpr == "" {
		return "", "", "", fmt.Errorf("%w: empty key expression", ErrLinkGeneratorExtraction)
	}
	encodedName = group("name")
	if encodedName == "" {
		return "", "", "", ErrFilenameExtraction
	}
	return id, keyExpr, encodedName, nil
}

// inline applies the scheme's lookups to fragment.
func (s Scheme) inline(p *Page, fragment string) (string, error) {
	for _, l := range s.Inline {
		if !strings.Contains(fragment, l.Call) {
			continue
		}
		m := l.Source.FindStringSubmatch(p.Raw)
		if len(m) < 2 || m[1] == "" {
			return "", fmt.Errorf("%w: no value for %s", ErrLinkComputation, l.Call)
		}
		fragment = strings.ReplaceAll(fragment, l.Call, m[1])
	}
	return fragment, nil
}

// Page is a share page being matched. Its HTML tree is parsed on first
// use and reused by every container anchor.
type Page struct {
	Raw string

	doc    *goquery.Document
	err    error
	parsed bool
}

// NewPage wraps raw page text.
func NewPage(raw string) *Page {
	return &Page{Raw: raw}
}

// Document returns the parsed HTML tree.
func (p *Page) Document() (*goquery.Document, error) {
	if !p.parsed {
		p.doc, p.err = goquery.NewDocumentFromReader(strings.NewReader(p.Raw))
		p.parsed = true
	}
	return p.doc, p.err
}

// Anchor locates the script fragment of a scheme within a page.
type Anchor interface {
	// Find returns the first matching fragment, or ok == false.
	Find(p *Page) (fragment string, ok bool, err error)
	String() string
}

type containerAnchor struct {
	selector string
	matcher  cascadia.Selector
	markers  []string
}

// ContainerAnchor finds the first element matching a CSS selector whose
// text contains every marker.
func ContainerAnchor(selector string, markers ...string) (Anchor, error) {
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSelector, selector, err)
	}
	return &containerAnchor{selector: selector, matcher: m, markers: markers}, nil
}

// MustContainerAnchor is like ContainerAnchor but panics on a bad selector.
func MustContainerAnchor(selector string, markers ...string) Anchor {
	a, err := ContainerAnchor(selector, markers...)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *containerAnchor) Find(p *Page) (string, bool, error) {
	doc, err := p.Document()
	if err != nil {
		return "", false, fmt.Errorf("parsing page: %w", err)
	}

	var fragment string
	found := false
	doc.FindMatcher(a.matcher).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if containsAll(text, a.markers) {
			fragment, found = text, true
			return false
		}
		return true
	})
	return fragment, found, nil
}

func (a *containerAnchor) String() string {
	return describe("element "+a.selector, a.markers)
}

type scriptAnchor struct {
	markers []string
}

// ScriptAnchor finds the first typed inline script in the raw page whose
// body contains every marker.
func ScriptAnchor(markers ...string) Anchor {
	return &scriptAnchor{markers: markers}
}

func (a *scriptAnchor) Find(p *Page) (string, bool, error) {
	for _, m := range scriptTag.FindAllStringSubmatch(p.Raw, -1) {
		if containsAll(m[1], a.markers) {
			return m[1], true, nil
		}
	}
	return "", false, nil
}

func (a *scriptAnchor) String() string {
	return describe(`<script type="text/javascript">`, a.markers)
}

func containsAll(s string, markers []string) bool {
	for _, m := range markers {
		if !strings.Contains(s, m) {
			return false
		}
	}
	return true
}

func describe(what string, markers []string) string {
	if len(markers) == 0 {
		return what
	}
	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = fmt.Sprintf("%q", m)
	}
	return what + " containing " + strings.Join(quoted, ", ")
}
