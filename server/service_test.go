package main

import (
	"context"
	"encoding/xml"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinode/groups/server/db/memory"
	"github.com/tinode/groups/server/store"
	"github.com/tinode/groups/server/store/types"
	"go.uber.org/zap"
	"mellium.im/xmpp/jid"
)

const testServiceAddr = "groups.example.com"

// testSender records messages instead of sending them.
type testSender struct {
	lock     sync.Mutex
	messages []*Message
	// Recipients which fail.
	fail map[string]error
}

func (s *testSender) SendMessage(_ context.Context, msg *Message) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.fail[msg.To]; err != nil {
		return err
	}
	s.messages = append(s.messages, msg)
	return nil
}

// sent returns delivered messages ordered by recipient.
func (s *testSender) sent() []*Message {
	s.lock.Lock()
	defer s.lock.Unlock()

	out := append([]*Message(nil), s.messages...)
	sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out
}

func newTestStore(t *testing.T, groups ...types.Group) *store.Store {
	t.Helper()

	adp := memory.NewAdapter()
	if err := adp.Open(nil); err != nil {
		t.Fatal(err)
	}
	if err := adp.CreateDb(false); err != nil {
		t.Fatal(err)
	}
	st := store.New(adp)
	t.Cleanup(func() { st.Close() })

	if _, err := store.SyncGroups(st, groups); err != nil {
		t.Fatal(err)
	}
	return st
}

func testGroups() []types.Group {
	return []types.Group{
		{Node: "golang", Name: "Go", Description: "The Go programming language."},
		{Node: "test", Name: "Test group", Description: "Place to test new clients."},
	}
}

func newTestService(t *testing.T, st store.Storage, sender MessageSender, workers int) *Service {
	t.Helper()

	idgen := &types.UidGenerator{}
	if err := idgen.Init(1, []byte("la6YsO+bNX/+XIkO")); err != nil {
		t.Fatal(err)
	}
	svc, err := NewService(ServiceConfig{
		Name:          "Discussion Groups",
		Addr:          jid.MustParse(testServiceAddr),
		FanoutWorkers: workers,
		Build:         "test",
	}, st, sender, idgen, zap.NewNop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(svc.Close)
	return svc
}

func pubsubRequest(from string, cmds ...PubsubCommand) *Request {
	return &Request{
		Id:     "req-1",
		Type:   IQSet,
		From:   jid.MustParse(from),
		To:     jid.MustParse(testServiceAddr),
		Pubsub: cmds,
	}
}

func command(verb, node, who string) PubsubCommand {
	return PubsubCommand{XMLName: xml.Name{Space: NSPubsub, Local: verb}, Node: node, Jid: who}
}

// dispatch runs the request and fails the test on unclassified errors.
func dispatch(t *testing.T, svc *Service, req *Request) *Reply {
	t.Helper()

	res, err := svc.Dispatch(context.Background(), req)
	if err != nil {
		t.Fatalf("Dispatch(%s) failed: %v", req.Id, err)
	}
	if !res.Handled {
		t.Fatalf("Dispatch(%s) not handled", req.Id)
	}
	if res.Reply == nil {
		t.Fatalf("Dispatch(%s) returned no reply", req.Id)
	}
	return res.Reply
}

// expectError checks that the reply is an error with the given conditions.
func expectError(t *testing.T, reply *Reply, cond, pubsubCond string) {
	t.Helper()

	if reply.Type != IQError || reply.Error == nil {
		t.Fatalf("Expected error '%s', got reply type '%s'", cond, reply.Type)
	}
	if string(reply.Error.Condition) != cond {
		t.Errorf("Error condition: expected '%s', got '%s'", cond, reply.Error.Condition)
	}
	if reply.Error.PubsubCondition != pubsubCond {
		t.Errorf("Pubsub condition: expected '%s', got '%s'", pubsubCond, reply.Error.PubsubCondition)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	st := newTestStore(t)
	idgen := &types.UidGenerator{}
	if _, err := NewService(ServiceConfig{}, st, nil, idgen, nil, prometheus.NewRegistry()); err == nil {
		t.Error("Service without a sender must not be created")
	}
	if _, err := NewService(ServiceConfig{}, nil, &testSender{}, idgen, nil, prometheus.NewRegistry()); err == nil {
		t.Error("Service without a store must not be created")
	}
}

func TestNewServiceRegistersMetricsOnce(t *testing.T) {
	st := newTestStore(t)
	idgen := &types.UidGenerator{}
	reg := prometheus.NewRegistry()

	svc, err := NewService(ServiceConfig{}, st, &testSender{}, idgen, nil, reg)
	if err != nil {
		t.Fatal(err)
	}
	defer svc.Close()

	_, err = NewService(ServiceConfig{}, st, &testSender{}, idgen, nil, reg)
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		t.Errorf("Expected AlreadyRegisteredError, got %v", err)
	}
}
