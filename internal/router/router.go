// Package router maps locations to views and gates protected views on
// session validity. There is exactly one resolution routine; explicit
// navigation and history traversal both go through it.
package router

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Params holds the positional :name captures of a matched pattern.
type Params map[string]string

// Fragment is the structured rendering result a view hands to the sink.
// Content stays opaque to the router; only the sink knows what to do
// with it.
type Fragment struct {
	Name    string
	Title   string
	Content any
}

// View is one screen of the client. Render produces the fragment to
// install; PostRender runs after installation, so anything it looks up in
// the installed content already exists.
type View interface {
	Render() (Fragment, error)
	PostRender()
}

// ViewFactory builds a view for one navigation. Views are instantiated
// per navigation, never reused.
type ViewFactory func(params Params) View

// Route is one row of the static route table.
type Route struct {
	Pattern   string
	Factory   ViewFactory
	Protected bool
}

// RenderSink consumes rendered fragments. The router never assumes a
// rendering technology.
type RenderSink interface {
	Install(Fragment)
}

// AuthFunc reports whether the current session is valid. It may block on
// a network round trip.
type AuthFunc func(ctx context.Context) bool

type Router struct {
	routes []Route
	sink   RenderSink
	auth   AuthFunc
	log    *zap.Logger

	mu      sync.Mutex
	nav     int
	history []string
	pos     int
}

// New builds a router over an ordered route table. The first route is the
// default: unmatched paths fall back to it and failed auth checks redirect
// to it.
func New(routes []Route, sink RenderSink, auth AuthFunc, log *zap.Logger) *Router {
	return &Router{
		routes:  routes,
		sink:    sink,
		auth:    auth,
		log:     log,
		history: []string{},
		pos:     -1,
	}
}

// Navigate pushes path onto the history and resolves it. Navigating
// discards any forward history, like a browser does.
func (r *Router) Navigate(path string) {
	r.mu.Lock()
	r.history = append(r.history[:r.pos+1], path)
	r.pos = len(r.history) - 1
	gen := r.bumpNavLocked()
	r.mu.Unlock()

	r.resolve(path, gen)
}

// Back re-resolves the previous history entry, if any.
func (r *Router) Back() {
	r.mu.Lock()
	if r.pos <= 0 {
		r.mu.Unlock()
		return
	}
	r.pos--
	path := r.history[r.pos]
	gen := r.bumpNavLocked()
	r.mu.Unlock()

	r.resolve(path, gen)
}

// Forward re-resolves the next history entry, if any.
func (r *Router) Forward() {
	r.mu.Lock()
	if r.pos >= len(r.history)-1 {
		r.mu.Unlock()
		return
	}
	r.pos++
	path := r.history[r.pos]
	gen := r.bumpNavLocked()
	r.mu.Unlock()

	r.resolve(path, gen)
}

// CurrentPath returns the most recently requested location.
func (r *Router) CurrentPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos < 0 {
		return ""
	}
	return r.history[r.pos]
}

func (r *Router) bumpNavLocked() int {
	r.nav++
	return r.nav
}

func (r *Router) superseded(gen int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen != r.nav
}

// resolve is the single resolution routine. Results are honored only when
// they still correspond to the most recently requested navigation.
func (r *Router) resolve(path string, gen int) {
	route, params := r.match(path)

	if route.Protected {
		ok := r.auth(context.Background())
		if r.superseded(gen) {
			r.log.Debug("discarding superseded resolution", zap.String("path", path))
			return
		}
		if !ok {
			r.log.Info("auth check failed, redirecting", zap.String("path", path))
			r.Navigate(r.routes[0].Pattern)
			return
		}
	}
	if r.superseded(gen) {
		return
	}

	view := route.Factory(params)
	fragment, err := view.Render()
	if err != nil {
		r.log.Error("view render failed", zap.String("path", path), zap.Error(err))
		return
	}
	r.sink.Install(fragment)
	view.PostRender()
}

// match finds the first route whose pattern matches path. An unmatched
// path resolves to the default (first) route rather than failing.
func (r *Router) match(path string) (Route, Params) {
	for _, route := range r.routes {
		if params, ok := matchPattern(route.Pattern, path); ok {
			return route, params
		}
	}
	return r.routes[0], Params{}
}

// matchPattern matches path against pattern segment by segment. A ":name"
// segment captures the corresponding path segment.
func matchPattern(pattern, path string) (Params, bool) {
	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	ts := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(ts) {
		return nil, false
	}
	params := Params{}
	for i, seg := range ps {
		if strings.HasPrefix(seg, ":") {
			if ts[i] == "" {
				return nil, false
			}
			params[seg[1:]] = ts[i]
			continue
		}
		if seg != ts[i] {
			return nil, false
		}
	}
	return params, true
}
