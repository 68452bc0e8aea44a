// Package routes declares the console's page tree: paths, redirects, lazily
// built view components and their menu metadata.
package routes

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound     = errors.New("route not found")
	ErrRedirectLoop = errors.New("redirect loop")
	ErrNoComponent  = errors.New("route has no component")
)

// Meta carries display and access metadata for a route.
type Meta struct {
	Icon         string `json:"icon,omitempty"`
	Title        string `json:"title,omitempty"`
	ActiveMenu   string `json:"activeMenu,omitempty"`
	RequiresAuth *bool  `json:"requiresAuth,omitempty"`
}

// Route is one node of the page tree. A relative Path is joined to the parent's.
type Route[V any] struct {
	Sort      int
	Path      string
	Name      string
	Redirect  string
	Component *Lazy[V]
	Props     bool
	Hidden    bool
	Meta      Meta
	Children  []Route[V]
}

// Lazy builds a component on first use and caches it. A failed build is retried.
type Lazy[V any] struct {
	mu      sync.Mutex
	factory func() (V, error)
	value   V
	loaded  bool
}

// NewLazy wraps factory.
func NewLazy[V any](factory func() (V, error)) *Lazy[V] {
	return &Lazy[V]{factory: factory}
}

// Load returns the component, building it if needed.
func (l *Lazy[V]) Load() (V, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.value, nil
	}
	v, err := l.factory()
	if err != nil {
		var zero V
		return zero, err
	}
	l.value = v
	l.loaded = true
	return v, nil
}

// Loaded reports whether the component has been built.
func (l *Lazy[V]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Match is the result of resolving a path to a component route.
type Match[V any] struct {
	Route    Route[V]
	FullPath string
	// Meta is the matched route's own metadata.
	Meta Meta
	// Inherited merges the metadata of the route and its ancestors, innermost wins.
	Inherited Meta
}

// Load instantiates the matched component.
func (m Match[V]) Load() (V, error) {
	if m.Route.Component == nil {
		var zero V
		return zero, ErrNoComponent
	}
	return m.Route.Component.Load()
}

// Entry is a flattened view of one route with its resolved full path.
type Entry[V any] struct {
	Route     Route[V]
	FullPath  string
	Parent    string
	Depth     int
	Inherited Meta
}

// Table is an immutable, flattened route tree.
type Table[V any] struct {
	roots   []Route[V]
	entries []Entry[V]
}

// NewTable sorts the top-level routes by Sort (declaration order breaks ties)
// and flattens the tree depth-first.
func NewTable[V any](roots ...Route[V]) *Table[V] {
	sorted := make([]Route[V], len(roots))
	copy(sorted, roots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sort < sorted[j].Sort
	})

	t := &Table[V]{roots: sorted}
	for _, r := range sorted {
		t.flatten(r, "", 0, Meta{})
	}
	return t
}

func (t *Table[V]) flatten(r Route[V], parent string, depth int, inherited Meta) {
	full := JoinPath(parent, r.Path)
	meta := mergeMeta(inherited, r.Meta)
	t.entries = append(t.entries, Entry[V]{
		Route:     r,
		FullPath:  full,
		Parent:    parent,
		Depth:     depth,
		Inherited: meta,
	})
	for _, child := range r.Children {
		t.flatten(child, full, depth+1, meta)
	}
}

// Entries returns every route in resolution order.
func (t *Table[V]) Entries() []Entry[V] {
	out := make([]Entry[V], len(t.entries))
	copy(out, t.entries)
	return out
}

// Resolve finds the single route bound to a component at p.
func (t *Table[V]) Resolve(p string) (Match[V], error) {
	p = cleanPath(p)
	for _, e := range t.entries {
		if e.FullPath == p && e.Route.Component != nil {
			return Match[V]{
				Route:     e.Route,
				FullPath:  e.FullPath,
				Meta:      e.Route.Meta,
				Inherited: e.Inherited,
			}, nil
		}
	}
	return Match[V]{}, fmt.Errorf("%w: %s", ErrNotFound, p)
}

// Redirect follows redirects starting at p and returns the visited targets in
// order. The first route declaring a redirect for a path wins. An empty result
// means p does not redirect.
func (t *Table[V]) Redirect(p string) ([]string, error) {
	current := cleanPath(p)
	seen := map[string]bool{current: true}
	var chain []string
	for {
		target, ok := t.redirectFor(current)
		if !ok {
			return chain, nil
		}
		if seen[target] {
			return chain, fmt.Errorf("%w: %s -> %s", ErrRedirectLoop, current, target)
		}
		seen[target] = true
		chain = append(chain, target)
		current = target
	}
}

// ChildDefault returns the redirect declared by the first child of the route at p
// that shares p's path, i.e. the default page inside a section.
func (t *Table[V]) ChildDefault(p string) (string, bool) {
	p = cleanPath(p)
	for _, e := range t.entries {
		if e.Depth == 0 || e.FullPath != p || e.Route.Redirect == "" {
			continue
		}
		return cleanPath(e.Route.Redirect), true
	}
	return "", false
}

func (t *Table[V]) redirectFor(p string) (string, bool) {
	for _, e := range t.entries {
		if e.FullPath == p && e.Route.Redirect != "" {
			return cleanPath(e.Route.Redirect), true
		}
	}
	return "", false
}

// MenuItem is a route as shown in primary navigation.
type MenuItem struct {
	Path     string     `json:"path"`
	Name     string     `json:"name,omitempty"`
	Redirect string     `json:"redirect,omitempty"`
	Meta     Meta       `json:"meta"`
	Children []MenuItem `json:"children,omitempty"`
}

// Menu returns the navigable tree with hidden routes left out.
func (t *Table[V]) Menu() []MenuItem {
	items := make([]MenuItem, 0, len(t.roots))
	for _, r := range t.roots {
		if item, ok := menuItem(r, ""); ok {
			items = append(items, item)
		}
	}
	return items
}

func menuItem[V any](r Route[V], parent string) (MenuItem, bool) {
	if r.Hidden {
		return MenuItem{}, false
	}
	full := JoinPath(parent, r.Path)
	item := MenuItem{
		Path:     full,
		Name:     r.Name,
		Redirect: r.Redirect,
		Meta:     r.Meta,
	}
	for _, child := range r.Children {
		if c, ok := menuItem(child, full); ok {
			item.Children = append(item.Children, c)
		}
	}
	return item, true
}

// JoinPath resolves child against parent the way nested routers do:
// absolute child paths stand alone, relative ones hang off the parent.
func JoinPath(parent, child string) string {
	if strings.HasPrefix(child, "/") || parent == "" {
		return cleanPath(child)
	}
	return cleanPath(path.Join(parent, child))
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func mergeMeta(parent, child Meta) Meta {
	out := parent
	if child.Icon != "" {
		out.Icon = child.Icon
	}
	if child.Title != "" {
		out.Title = child.Title
	}
	if child.ActiveMenu != "" {
		out.ActiveMenu = child.ActiveMenu
	}
	if child.RequiresAuth != nil {
		v := *child.RequiresAuth
		out.RequiresAuth = &v
	}
	return out
}
