package main

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"mellium.im/xmlstream"
)

// tokenStream feeds a stanza to handleStanza and captures what it writes back.
type tokenStream struct {
	xml.TokenReader
	*xml.Encoder
}

// dispatcherFunc adapts a function to Dispatcher.
type dispatcherFunc func(ctx context.Context, req *Request) (Result, error)

func (f dispatcherFunc) Dispatch(ctx context.Context, req *Request) (Result, error) {
	return f(ctx, req)
}

func newTestConn(t *testing.T) *componentConn {
	t.Helper()
	conn, err := newComponentConn(&ComponentConfig{
		Server:   "localhost:5347",
		Jid:      testServiceAddr,
		Password: "secret",
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return conn
}

// handle runs a raw stanza through the connection and returns the written output.
// Like the session, it consumes the start element and hands over the rest of the stanza.
func handle(t *testing.T, conn *componentConn, d Dispatcher, src string) (string, error) {
	t.Helper()

	dec := xml.NewDecoder(strings.NewReader(src))
	var start xml.StartElement
	for {
		tok, err := dec.Token()
		if err != nil {
			t.Fatal(err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			start = se
			break
		}
	}

	var out bytes.Buffer
	enc := xml.NewEncoder(&out)
	err := conn.handleStanza(context.Background(), d, tokenStream{TokenReader: xmlstream.InnerElement(dec), Encoder: enc}, &start)
	enc.Flush()
	return out.String(), err
}

func TestNewComponentConn(t *testing.T) {
	if _, err := newComponentConn(&ComponentConfig{Jid: testServiceAddr}, zap.NewNop()); err == nil {
		t.Error("Missing server address must be rejected")
	}
	if _, err := newComponentConn(&ComponentConfig{Server: "localhost:5347", Jid: "@"}, zap.NewNop()); err == nil {
		t.Error("Invalid component address must be rejected")
	}
	conn := newTestConn(t)
	if conn.reconnectDelay != defaultReconnectDelay {
		t.Errorf("Expected default reconnect delay, got %s", conn.reconnectDelay)
	}
	if conn.Connected() {
		t.Error("New connection must not report connected")
	}
}

func TestHandleStanzaReply(t *testing.T) {
	conn := newTestConn(t)
	svc := newTestService(t, newTestStore(t, testGroups()...), conn, 0)

	out, err := handle(t, conn, svc, `<iq type="set" id="s1" from="alice@example.com/phone" to="groups.example.com">
<pubsub xmlns="http://jabber.org/protocol/pubsub"><subscribe node="test" jid="alice@example.com"/></pubsub></iq>`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `type="result"`) || !strings.Contains(out, `subscription="subscribed"`) {
		t.Errorf("Unexpected reply: %s", out)
	}
}

func TestHandleStanzaUnhandled(t *testing.T) {
	conn := newTestConn(t)
	svc := newTestService(t, newTestStore(t, testGroups()...), conn, 0)

	out, err := handle(t, conn, svc, `<iq type="set" id="r1" from="alice@example.com" to="groups.example.com">
<pubsub xmlns="http://jabber.org/protocol/pubsub"><retract node="test"/></pubsub></iq>`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<feature-not-implemented xmlns="urn:ietf:params:xml:ns:xmpp-stanzas">`) {
		t.Errorf("Expected feature-not-implemented, got: %s", out)
	}
}

func TestHandleStanzaFailure(t *testing.T) {
	conn := newTestConn(t)
	failure := errors.New("database is down")
	d := dispatcherFunc(func(context.Context, *Request) (Result, error) {
		return Result{}, failure
	})

	out, err := handle(t, conn, d, `<iq type="get" id="l1" from="alice@example.com" to="groups.example.com">
<pubsub xmlns="http://jabber.org/protocol/pubsub"><subscriptions/></pubsub></iq>`)
	if !errors.Is(err, failure) {
		t.Errorf("Failure must end the session, got %v", err)
	}
	if !strings.Contains(out, `<internal-server-error xmlns="urn:ietf:params:xml:ns:xmpp-stanzas">`) {
		t.Errorf("Expected internal-server-error, got: %s", out)
	}
}

func TestHandleStanzaIgnored(t *testing.T) {
	conn := newTestConn(t)
	called := false
	d := dispatcherFunc(func(context.Context, *Request) (Result, error) {
		called = true
		return Result{}, nil
	})

	for _, src := range []string{
		`<message from="alice@example.com" to="groups.example.com"><body>hi</body></message>`,
		`<iq type="result" id="x1" from="example.com" to="groups.example.com"/>`,
	} {
		out, err := handle(t, conn, d, src)
		if err != nil {
			t.Error(err)
		}
		if out != "" {
			t.Errorf("Nothing must be written, got %s", out)
		}
	}
	if called {
		t.Error("Dispatcher must not be called")
	}
}

func TestHandleStanzaBadSender(t *testing.T) {
	conn := newTestConn(t)
	d := dispatcherFunc(func(context.Context, *Request) (Result, error) {
		t.Error("Dispatcher must not be called")
		return Result{}, nil
	})

	out, err := handle(t, conn, d, `<iq type="get" id="b1" from="@" to="groups.example.com">
<query xmlns="http://jabber.org/protocol/disco#info"/></iq>`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `<bad-request xmlns="urn:ietf:params:xml:ns:xmpp-stanzas">`) || !strings.Contains(out, `to="@"`) {
		t.Errorf("Expected bad-request, got: %s", out)
	}
}

func TestHandleStanzaEmptyIQ(t *testing.T) {
	conn := newTestConn(t)
	var got *Request
	d := dispatcherFunc(func(_ context.Context, req *Request) (Result, error) {
		got = req
		return Result{Handled: true, Reply: NoErr(req)}, nil
	})

	out, err := handle(t, conn, d, `<iq type="get" id="e1" from="alice@example.com" to="groups.example.com"/>`)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Id != "e1" || got.From.String() != "alice@example.com" {
		t.Fatalf("Unexpected request %+v", got)
	}
	if !strings.Contains(out, `id="e1"`) || !strings.Contains(out, `type="result"`) {
		t.Errorf("Unexpected reply: %s", out)
	}
}

func TestSendMessageQueue(t *testing.T) {
	conn := newTestConn(t)
	for i := 0; i < sendQueueLimit; i++ {
		if err := conn.SendMessage(context.Background(), &Message{To: "bob@example.com"}); err != nil {
			t.Fatalf("Message %d: %v", i, err)
		}
	}

	// A full queue blocks until the context is done.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := conn.SendMessage(ctx, &Message{To: "bob@example.com"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}

	// Space freed by the writer is taken by the waiting sender.
	done := make(chan error, 1)
	go func() {
		done <- conn.SendMessage(context.Background(), &Message{To: "carol@example.org"})
	}()
	<-conn.send
	select {
	case err := <-done:
		if err != nil {
			t.Error(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Sender was not unblocked")
	}
}

// Fan-out to more subscribers than the queue holds delivers to everyone while the writer drains it.
func TestPublishLargeGroup(t *testing.T) {
	conn := newTestConn(t)
	st := newTestStore(t, testGroups()...)
	svc := newTestService(t, st, conn, 8)

	const count = sendQueueLimit + 500
	if err := st.AddSubscriber("golang", "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < count; i++ {
		if err := st.AddSubscriber("golang", fmt.Sprintf("user%d@example.com", i)); err != nil {
			t.Fatal(err)
		}
	}

	received := make(chan int)
	stop := make(chan struct{})
	go func() {
		n := 0
		for {
			select {
			case <-conn.send:
				n++
			case <-stop:
				received <- n
				return
			}
		}
	}()

	res, err := svc.Dispatch(context.Background(),
		pubsubRequest("alice@example.com", publishCommand("golang", &Entry{Id: "big", Title: "Hello all"})))
	close(stop)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fanout == nil || res.Fanout.Failed != 0 || res.Fanout.Sent != count {
		t.Fatalf("Expected %d delivered messages, got %+v", count, res.Fanout)
	}
	// Messages still queued when the drain stopped.
	if n := <-received + len(conn.send); n != count {
		t.Errorf("Expected %d queued messages, got %d", count, n)
	}
}
