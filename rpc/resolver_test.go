package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/fireflycore/go-config/discovery"
	"github.com/hashicorp/consul/api"
	"google.golang.org/grpc/resolver"
	"google.golang.org/grpc/serviceconfig"
)

// fakeClientConn 记录 resolver 推送的地址状态。
type fakeClientConn struct {
	states []resolver.State
}

func (c *fakeClientConn) UpdateState(state resolver.State) error {
	c.states = append(c.states, state)
	return nil
}

func (c *fakeClientConn) ReportError(error) {}

func (c *fakeClientConn) NewAddress([]resolver.Address) {}

func (c *fakeClientConn) ParseServiceConfig(string) *serviceconfig.ParseResult {
	return nil
}

func newTestDiscover(t *testing.T, addresses []string) (*discovery.DiscoverInstance, func()) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("index") != "" {
			time.Sleep(20 * time.Millisecond)
		}

		entries := make([]*api.ServiceEntry, 0, len(addresses))
		for _, address := range addresses {
			entries = append(entries, &api.ServiceEntry{
				Node: &api.Node{Address: address},
				Service: &api.AgentService{
					ID:      address,
					Service: "oauth",
					Address: address,
					Port:    8080,
				},
			})
		}

		body, _ := json.Marshal(entries)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Consul-Index", "7")
		_, _ = w.Write(body)
	}))

	parsed, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}

	cfg := api.DefaultConfig()
	cfg.Scheme = parsed.Scheme
	cfg.Address = parsed.Host
	cfg.HttpClient = srv.Client()

	cli, err := api.NewClient(cfg)
	if err != nil {
		t.Fatalf("new consul client: %v", err)
	}

	disc, err := discovery.NewDiscover(cli, &discovery.Conf{WaitTime: time.Second})
	if err != nil {
		t.Fatalf("new discover: %v", err)
	}

	return disc, func() {
		disc.Unwatch()
		srv.Close()
	}
}

func TestBuilderScheme(t *testing.T) {
	t.Parallel()

	disc, cleanup := newTestDiscover(t, nil)
	defer cleanup()

	builder, err := NewBuilder(disc)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	if builder.Scheme() != "discovery" {
		t.Fatalf("unexpected scheme: %q", builder.Scheme())
	}
}

func TestNewBuilderRequiresDiscover(t *testing.T) {
	t.Parallel()

	if _, err := NewBuilder(nil); !errors.Is(err, ErrDiscoverIsNil) {
		t.Fatalf("expected ErrDiscoverIsNil, got %v", err)
	}
}

func TestBuildPushesInitialAddresses(t *testing.T) {
	t.Parallel()

	disc, cleanup := newTestDiscover(t, []string{"10.0.0.1", "10.0.0.2"})
	defer cleanup()

	builder, err := NewBuilder(disc)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	cc := &fakeClientConn{}
	r, err := builder.Build(
		resolver.Target{URL: url.URL{Scheme: Scheme, Path: "/oauth"}},
		cc,
		resolver.BuildOptions{},
	)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer r.Close()

	if len(cc.states) == 0 {
		t.Fatal("expected initial state push")
	}

	got := make(map[string]bool)
	for _, address := range cc.states[0].Addresses {
		got[address.Addr] = true
	}
	if !got["10.0.0.1:8080"] || !got["10.0.0.2:8080"] {
		t.Fatalf("unexpected addresses: %v", cc.states[0].Addresses)
	}
}

func TestBuildRejectsEmptyService(t *testing.T) {
	t.Parallel()

	disc, cleanup := newTestDiscover(t, nil)
	defer cleanup()

	builder, err := NewBuilder(disc)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}

	_, err = builder.Build(
		resolver.Target{URL: url.URL{Scheme: Scheme, Path: "/"}},
		&fakeClientConn{},
		resolver.BuildOptions{},
	)
	if !errors.Is(err, ErrServiceIsEmpty) {
		t.Fatalf("expected ErrServiceIsEmpty, got %v", err)
	}
}
