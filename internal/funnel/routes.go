package funnel

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Match kinds for a route.
const (
	MatchExact  = "exact"
	MatchPrefix = "prefix"
)

// Route maps a path, or every path below it, to a stage.
type Route struct {
	Path  string `yaml:"path"`
	Stage Stage  `yaml:"stage"`
	Match string `yaml:"match,omitempty"`
}

// RouteTable resolves paths to stages: an exact route wins, then the longest
// prefix route that ends on a segment boundary, then DefaultStage.
type RouteTable struct {
	exact    map[string]Stage
	prefixes []Route // longest first
}

type routeFile struct {
	Routes []Route `yaml:"routes"`
}

func NewRouteTable(routes []Route) (*RouteTable, error) {
	t := &RouteTable{exact: make(map[string]Stage)}
	for _, r := range routes {
		if !r.Stage.Valid() {
			return nil, fmt.Errorf("route %q: unknown stage %q", r.Path, r.Stage)
		}
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with /", r.Path)
		}
		p := normalizePath(r.Path)

		switch r.Match {
		case MatchExact:
			t.exact[p] = r.Stage
		case MatchPrefix, "":
			t.prefixes = append(t.prefixes, Route{Path: p, Stage: r.Stage, Match: MatchPrefix})
		default:
			return nil, fmt.Errorf("route %q: unknown match %q", r.Path, r.Match)
		}
	}

	sort.SliceStable(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i].Path) > len(t.prefixes[j].Path)
	})
	return t, nil
}

// DefaultRoutes is the marketing site's route table.
func DefaultRoutes() []Route {
	return []Route{
		{Path: "/", Stage: Awareness, Match: MatchExact},
		{Path: "/about", Stage: Awareness, Match: MatchExact},
		{Path: "/blog", Stage: Interest},
		{Path: "/features", Stage: Interest},
		{Path: "/modules", Stage: Interest},
		{Path: "/case-studies", Stage: Consideration},
		{Path: "/testimonials", Stage: Consideration},
		{Path: "/docs", Stage: Consideration},
		{Path: "/pricing", Stage: Intent},
		{Path: "/contact", Stage: Intent},
		{Path: "/demo", Stage: Intent},
		{Path: "/enterprise", Stage: Evaluation},
		{Path: "/trial", Stage: Evaluation},
		{Path: "/signup", Stage: Purchase},
		{Path: "/checkout", Stage: Purchase},
		{Path: "/thank-you", Stage: Purchase},
	}
}

func DefaultRouteTable() *RouteTable {
	t, err := NewRouteTable(DefaultRoutes())
	if err != nil {
		panic(err)
	}
	return t
}

// LoadRoutes reads a YAML route table:
//
//	routes:
//	  - path: /
//	    stage: awareness
//	    match: exact
//	  - path: /blog
//	    stage: interest
func LoadRoutes(path string) (*RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	return ParseRoutes(data)
}

func ParseRoutes(data []byte) (*RouteTable, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f routeFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	if len(f.Routes) == 0 {
		return nil, fmt.Errorf("parse routes: no routes defined")
	}
	return NewRouteTable(f.Routes)
}

// Resolve returns the stage for a navigable address. Query string, fragment
// and trailing slash are ignored.
func (t *RouteTable) Resolve(address string) Stage {
	p := normalizePath(address)

	if s, ok := t.exact[p]; ok {
		return s
	}
	for _, r := range t.prefixes {
		if underPrefix(p, r.Path) {
			return r.Stage
		}
	}
	return DefaultStage
}

// Routes lists the table's routes, exact routes first.
func (t *RouteTable) Routes() []Route {
	out := make([]Route, 0, len(t.exact)+len(t.prefixes))
	for p, s := range t.exact {
		out = append(out, Route{Path: p, Stage: s, Match: MatchExact})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return append(out, t.prefixes...)
}

func underPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// normalizePath reduces an address to its path without trailing slash.
func normalizePath(address string) string {
	p := address
	if u, err := url.Parse(address); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
