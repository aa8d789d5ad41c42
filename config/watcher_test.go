package config

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fireflycore/go-config/logger"
)

type fakeResponse struct {
	entries map[string]string
	token   uint64
	err     error
}

// fakeSource 按脚本逐条返回响应；脚本耗尽后模拟阻塞读超时（无变更）。
type fakeSource struct {
	mu        sync.Mutex
	responses []fakeResponse
}

func (s *fakeSource) Fetch(ctx context.Context, prefix string, lastToken uint64) (map[string]string, uint64, error) {
	s.mu.Lock()
	if len(s.responses) == 0 {
		s.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, lastToken, ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return nil, lastToken, nil
		}
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	s.mu.Unlock()

	if r.err != nil {
		return nil, lastToken, r.err
	}
	return r.entries, r.token, nil
}

func testConf() *Conf {
	return &Conf{
		Identity:      NewServiceIdentifier("oauth", "eu-central", "web-1", "master"),
		RetryInterval: 10 * time.Millisecond,
	}
}

func TestInitialConfigLoad(t *testing.T) {
	source := &fakeSource{responses: []fakeResponse{
		{entries: map[string]string{"config/oauth/some.key": "some-value"}, token: 1000},
	}}

	notified := make(chan map[string]string, 1)

	watch, err := New(source, testConf(), OnValidConfig(func(entries map[string]string) {
		notified <- entries
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	select {
	case entries := <-notified:
		if entries["some.key"] != "some-value" {
			t.Fatalf("unexpected entries: %v", entries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first valid config")
	}

	props := watch.Properties()
	if v, ok := props.Get("some.key"); !ok || v != "some-value" {
		t.Fatalf("expected some.key=some-value, got %q (ok=%v)", v, ok)
	}
	if props.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", props.Len())
	}
}

func TestInvalidConfigIsNotPublished(t *testing.T) {
	source := &fakeSource{responses: []fakeResponse{
		{entries: map[string]string{"config/oauth/some.key": "some-value"}, token: 1000},
	}}

	notified := make(chan map[string]string, 1)

	watch, err := New(source, testConf(),
		WithValidator(func(entries map[string]string) error {
			return errors.New("config is invalid")
		}),
		OnValidConfig(func(entries map[string]string) {
			notified <- entries
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	select {
	case <-notified:
		t.Fatal("subscriber fired for rejected config")
	case <-time.After(300 * time.Millisecond):
	}

	if watch.Properties().Len() != 0 {
		t.Fatalf("snapshot changed despite rejection: %v", watch.Properties().All())
	}
}

func TestPropertiesObjectIsUpdatedInPlace(t *testing.T) {
	source := &fakeSource{responses: []fakeResponse{
		{entries: map[string]string{"config/oauth/some.key": "some-value"}, token: 1000},
		{entries: map[string]string{"config/oauth/some.key": "some-other-value"}, token: 1001},
	}}

	notified := make(chan string, 2)

	watch, err := New(source, testConf(), OnValidConfig(func(entries map[string]string) {
		notified <- entries["some.key"]
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	props := watch.Properties()

	for i, want := range []string{"some-value", "some-other-value"} {
		select {
		case got := <-notified:
			if got != want {
				t.Fatalf("notification %d: expected %q, got %q", i, want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notification %d", i)
		}
	}

	// 对象引用不变，内容原地更新
	if watch.Properties() != props {
		t.Fatal("Properties() returned a different object after update")
	}
	if v, _ := props.Get("some.key"); v != "some-other-value" {
		t.Fatalf("expected some-other-value, got %q", v)
	}
}

func TestRejectedThenAcceptedConfig(t *testing.T) {
	source := &fakeSource{responses: []fakeResponse{
		{entries: map[string]string{"config/oauth/some.key": "bad"}, token: 1000},
		{entries: map[string]string{"config/oauth/some.key": "good"}, token: 1001},
	}}

	notified := make(chan map[string]string, 2)

	watch, err := New(source, testConf(),
		WithValidator(func(entries map[string]string) error {
			if entries["some.key"] == "bad" {
				return errors.New("rejected")
			}
			return nil
		}),
		OnValidConfig(func(entries map[string]string) {
			notified <- entries
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	select {
	case entries := <-notified:
		if entries["some.key"] != "good" {
			t.Fatalf("expected first notification to carry the accepted config, got %v", entries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted config")
	}

	if v, _ := watch.Properties().Get("some.key"); v != "good" {
		t.Fatalf("expected good, got %q", v)
	}
}

func TestValidatorPanicDoesNotStopWatch(t *testing.T) {
	source := &fakeSource{responses: []fakeResponse{
		{entries: map[string]string{"config/oauth/some.key": "first"}, token: 1000},
		{entries: map[string]string{"config/oauth/some.key": "second"}, token: 1001},
	}}

	notified := make(chan string, 2)

	watch, err := New(source, testConf(),
		WithValidator(func(entries map[string]string) error {
			if entries["some.key"] == "first" {
				panic("boom")
			}
			return nil
		}),
		OnValidConfig(func(entries map[string]string) {
			notified <- entries["some.key"]
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	select {
	case got := <-notified:
		if got != "second" {
			t.Fatalf("expected second, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not survive validator panic")
	}
}

func TestSubscriberPanicDoesNotBlockOthers(t *testing.T) {
	source := &fakeSource{responses: []fakeResponse{
		{entries: map[string]string{"config/oauth/some.key": "some-value"}, token: 1000},
	}}

	notified := make(chan struct{}, 1)

	watch, err := New(source, testConf(),
		OnValidConfig(func(entries map[string]string) {
			panic("subscriber boom")
		}),
		OnValidConfig(func(entries map[string]string) {
			notified <- struct{}{}
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("second subscriber was not invoked")
	}
}

func TestFetchErrorKeepsRetrying(t *testing.T) {
	source := &fakeSource{responses: []fakeResponse{
		{err: errors.New("transport error")},
		{entries: map[string]string{"config/oauth/some.key": "some-value"}, token: 1000},
	}}

	notified := make(chan struct{}, 1)

	watch, err := New(source, testConf(), OnValidConfig(func(entries map[string]string) {
		notified <- struct{}{}
	}))
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("watch loop did not recover from fetch error")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	source := &fakeSource{}

	watch, err := New(source, testConf())
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	fired := make(chan struct{}, 1)
	cancel := watch.Subscribe(func(entries map[string]string) {
		fired <- struct{}{}
	})
	cancel()

	source.mu.Lock()
	source.responses = append(source.responses, fakeResponse{
		entries: map[string]string{"config/oauth/some.key": "some-value"},
		token:   1000,
	})
	source.mu.Unlock()

	select {
	case <-fired:
		t.Fatal("unsubscribed handler was invoked")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatchLogsThroughRemoteLogger(t *testing.T) {
	source := &fakeSource{responses: []fakeResponse{
		{entries: map[string]string{"config/oauth/some.key": "bad"}, token: 1000},
		{entries: map[string]string{"config/oauth/some.key": "good"}, token: 1001},
	}}

	var mu sync.Mutex
	var records []logger.WatchLogger
	log := logger.NewZapLogger(&logger.Conf{Remote: true}, func(b []byte) {
		var record logger.WatchLogger
		if err := json.Unmarshal(b, &record); err != nil {
			return
		}
		mu.Lock()
		records = append(records, record)
		mu.Unlock()
	})

	watch, err := New(source, testConf(),
		WithLog(log),
		WithValidator(func(entries map[string]string) error {
			if entries["some.key"] == "bad" {
				return errors.New("rejected")
			}
			return nil
		}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	// 拒绝产生 warn（2），发布产生 info（1），均携带服务身份
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		snapshot := append([]logger.WatchLogger(nil), records...)
		mu.Unlock()

		var sawReject, sawPublish bool
		for _, record := range snapshot {
			if record.Service != "oauth" {
				t.Fatalf("record missing service identity: %+v", record)
			}
			switch record.Level {
			case 2:
				sawReject = true
			case 1:
				sawPublish = true
			}
		}

		if sawReject && sawPublish {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("missing expected log records: %+v", snapshot)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIdentityFromEnvironment(t *testing.T) {
	t.Setenv("CONSUL_HOST", "http://localhost")
	t.Setenv("SERVICE_NAME", "oauth")
	t.Setenv("SERVICE_DC", "eu-central")
	t.Setenv("SERVICE_HOST", "web-1")
	t.Setenv("SERVICE_INSTANCE", "master")

	watch, err := New(&fakeSource{}, &Conf{RetryInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer watch.Shutdown()

	want := NewServiceIdentifier("oauth", "eu-central", "web-1", "master")
	if watch.ServiceIdentifier() != want {
		t.Fatalf("expected %v, got %v", want, watch.ServiceIdentifier())
	}
}

func TestNewRequiresServiceName(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")

	if _, err := New(&fakeSource{}, &Conf{}); !errors.Is(err, ErrServiceIsEmpty) {
		t.Fatalf("expected ErrServiceIsEmpty, got %v", err)
	}
	if _, err := New(nil, testConf()); !errors.Is(err, ErrSourceIsNil) {
		t.Fatalf("expected ErrSourceIsNil, got %v", err)
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	watch, err := New(&fakeSource{}, testConf())
	if err != nil {
		t.Fatal(err)
	}

	watch.Shutdown()
	watch.Shutdown()
}
