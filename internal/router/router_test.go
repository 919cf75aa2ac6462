package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	mu        sync.Mutex
	installed []Fragment
}

func (s *fakeSink) Install(f Fragment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.installed = append(s.installed, f)
}

func (s *fakeSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.installed))
	for i, f := range s.installed {
		out[i] = f.Name
	}
	return out
}

type fakeView struct {
	name       string
	params     Params
	events     *[]string
	eventsMu   *sync.Mutex
	renderedAt time.Time
}

func (v *fakeView) Render() (Fragment, error) {
	if v.events != nil {
		v.eventsMu.Lock()
		*v.events = append(*v.events, "render:"+v.name)
		v.eventsMu.Unlock()
	}
	return Fragment{Name: v.name, Title: v.name}, nil
}

func (v *fakeView) PostRender() {
	if v.events != nil {
		v.eventsMu.Lock()
		*v.events = append(*v.events, "postrender:"+v.name)
		v.eventsMu.Unlock()
	}
}

func staticView(name string) ViewFactory {
	return func(params Params) View {
		return &fakeView{name: name, params: params}
	}
}

func allowAll(context.Context) bool { return true }

func TestUnmatchedPathFallsBackToDefaultRoute(t *testing.T) {
	sink := &fakeSink{}
	r := New([]Route{
		{Pattern: "/", Factory: staticView("login")},
		{Pattern: "/homepage", Factory: staticView("homepage")},
	}, sink, allowAll, zap.NewNop())

	require.NotPanics(t, func() { r.Navigate("/no/such/path") })
	require.Equal(t, []string{"login"}, sink.names())
}

func TestFirstMatchWins(t *testing.T) {
	sink := &fakeSink{}
	r := New([]Route{
		{Pattern: "/", Factory: staticView("login")},
		{Pattern: "/post/:id", Factory: staticView("post-details")},
		{Pattern: "/post/new", Factory: staticView("never-reached")},
	}, sink, allowAll, zap.NewNop())

	// /post/new matches the param route first; first match wins over
	// the more specific pattern below it
	r.Navigate("/post/new")
	require.Equal(t, []string{"post-details"}, sink.names())
}

func TestParamCapture(t *testing.T) {
	sink := &fakeSink{}
	var captured Params
	r := New([]Route{
		{Pattern: "/", Factory: staticView("login")},
		{Pattern: "/post/:id", Factory: func(params Params) View {
			captured = params
			return &fakeView{name: "post-details"}
		}},
	}, sink, allowAll, zap.NewNop())

	r.Navigate("/post/p42")
	require.Equal(t, "p42", captured["id"])
}

func TestProtectedRouteRedirectsWhenUnauthenticated(t *testing.T) {
	sink := &fakeSink{}
	protectedBuilt := 0
	deny := func(context.Context) bool { return false }

	r := New([]Route{
		{Pattern: "/", Factory: staticView("login")},
		{Pattern: "/homepage", Protected: true, Factory: func(params Params) View {
			protectedBuilt++
			return &fakeView{name: "homepage"}
		}},
	}, sink, deny, zap.NewNop())

	r.Navigate("/homepage")

	// the protected view is never instantiated; the default route renders
	require.Zero(t, protectedBuilt)
	require.Equal(t, []string{"login"}, sink.names())
	require.Equal(t, "/", r.CurrentPath())
}

func TestProtectedRouteRendersWhenAuthenticated(t *testing.T) {
	sink := &fakeSink{}
	r := New([]Route{
		{Pattern: "/", Factory: staticView("login")},
		{Pattern: "/homepage", Protected: true, Factory: staticView("homepage")},
	}, sink, allowAll, zap.NewNop())

	r.Navigate("/homepage")
	require.Equal(t, []string{"homepage"}, sink.names())
}

func TestRenderThenPostRenderSequencing(t *testing.T) {
	var mu sync.Mutex
	var events []string
	sink := &fakeSink{}

	r := New([]Route{
		{Pattern: "/", Factory: func(params Params) View {
			return &fakeView{name: "login", events: &events, eventsMu: &mu}
		}},
	}, &recordingSink{inner: sink, events: &events, eventsMu: &mu}, allowAll, zap.NewNop())

	r.Navigate("/")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"render:login", "install:login", "postrender:login"}, events)
}

type recordingSink struct {
	inner    RenderSink
	events   *[]string
	eventsMu *sync.Mutex
}

func (s *recordingSink) Install(f Fragment) {
	s.eventsMu.Lock()
	*s.events = append(*s.events, "install:"+f.Name)
	s.eventsMu.Unlock()
	s.inner.Install(f)
}

func TestLastNavigationWins(t *testing.T) {
	sink := &fakeSink{}
	release := make(chan bool)
	auth := func(ctx context.Context) bool { return <-release }

	r := New([]Route{
		{Pattern: "/", Factory: staticView("login")},
		{Pattern: "/homepage", Protected: true, Factory: staticView("homepage")},
		{Pattern: "/registration", Factory: staticView("registration")},
	}, sink, auth, zap.NewNop())

	// the protected navigation parks on its auth check
	done := make(chan struct{})
	go func() {
		r.Navigate("/homepage")
		close(done)
	}()

	// user navigates away before the check resolves
	require.Eventually(t, func() bool { return r.CurrentPath() == "/homepage" },
		time.Second, time.Millisecond)
	r.Navigate("/registration")

	// the now-stale check succeeds but must be discarded
	release <- true
	<-done

	require.Equal(t, []string{"registration"}, sink.names())
}

func TestBackAndForwardShareResolution(t *testing.T) {
	sink := &fakeSink{}
	r := New([]Route{
		{Pattern: "/", Factory: staticView("login")},
		{Pattern: "/homepage", Factory: staticView("homepage")},
		{Pattern: "/messages", Factory: staticView("messages")},
	}, sink, allowAll, zap.NewNop())

	r.Navigate("/homepage")
	r.Navigate("/messages")
	r.Back()
	require.Equal(t, "/homepage", r.CurrentPath())
	r.Forward()
	require.Equal(t, "/messages", r.CurrentPath())

	require.Equal(t, []string{"homepage", "messages", "homepage", "messages"}, sink.names())

	// back past the beginning and forward past the end are no-ops
	r.Back()
	r.Back()
	require.Equal(t, "/homepage", r.CurrentPath())
	r.Forward()
	r.Forward()
	require.Equal(t, "/messages", r.CurrentPath())
	require.Len(t, sink.names(), 6)
}
