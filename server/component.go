/******************************************************************************
 *
 *  Description :
 *
 *    XEP-0114 component connection to the XMPP server.
 *
 *****************************************************************************/

package main

import (
	"context"
	"encoding/xml"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"mellium.im/xmlstream"
	"mellium.im/xmpp"
	"mellium.im/xmpp/component"
	"mellium.im/xmpp/jid"
)

const (
	// Maximum number of outbound messages waiting to be written.
	sendQueueLimit = 1024
	// Default delay between reconnection attempts.
	defaultReconnectDelay = 5 * time.Second
	// Timeout for establishing the TCP connection.
	dialTimeout = 10 * time.Second
)

// ComponentConfig is the `component` section of the config file.
type ComponentConfig struct {
	// Address of the XMPP server's component port, host:port.
	Server string `json:"server"`
	// Address of this component.
	Jid string `json:"jid"`
	// Shared secret.
	Password string `json:"password"`
	// Name reported by service discovery.
	Name string `json:"name"`
	// Seconds to wait before reconnecting.
	ReconnectDelay int `json:"reconnect_delay"`
}

// Dispatcher processes parsed requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *Request) (Result, error)
}

// componentConn maintains the session with the XMPP server and implements MessageSender.
type componentConn struct {
	server         string
	addr           jid.JID
	secret         []byte
	reconnectDelay time.Duration
	log            *zap.Logger

	// Outbound messages.
	send chan *Message

	// Guards session.
	lock    sync.Mutex
	session *xmpp.Session
}

func newComponentConn(conf *ComponentConfig, log *zap.Logger) (*componentConn, error) {
	if conf.Server == "" {
		return nil, errors.New("component: server address is not set")
	}
	addr, err := jid.Parse(conf.Jid)
	if err != nil {
		return nil, err
	}
	delay := time.Duration(conf.ReconnectDelay) * time.Second
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	return &componentConn{
		server:         conf.Server,
		addr:           addr,
		secret:         []byte(conf.Password),
		reconnectDelay: delay,
		log:            log,
		send:           make(chan *Message, sendQueueLimit),
	}, nil
}

// SendMessage queues the message for delivery. Blocks until the message is queued or ctx is done.
func (c *componentConn) SendMessage(ctx context.Context, msg *Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connected reports if the session with the server is established.
func (c *componentConn) Connected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.session != nil
}

func (c *componentConn) setSession(session *xmpp.Session) {
	c.lock.Lock()
	c.session = session
	c.lock.Unlock()
}

// Run connects to the server and serves requests until ctx is cancelled.
// Lost connections are re-established after a delay.
func (c *componentConn) Run(ctx context.Context, d Dispatcher) error {
	for {
		err := c.serve(ctx, d)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("component session ended", zap.Error(err), zap.Duration("reconnect_in", c.reconnectDelay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *componentConn) serve(ctx context.Context, d Dispatcher) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.server)
	if err != nil {
		return err
	}
	defer conn.Close()

	session, err := component.NewSession(ctx, c.addr, c.secret, conn)
	if err != nil {
		return err
	}
	c.setSession(session)
	defer c.setSession(nil)
	c.log.Info("component connected", zap.String("server", c.server), zap.Stringer("jid", c.addr))

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writeLoop(sctx, session)
	}()
	go func() {
		defer wg.Done()
		// Unblocks Serve on shutdown.
		<-sctx.Done()
		session.Close()
	}()

	err = session.Serve(xmpp.HandlerFunc(func(t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
		return c.handleStanza(sctx, d, t, start)
	}))
	cancel()
	wg.Wait()
	return err
}

func (c *componentConn) writeLoop(ctx context.Context, session *xmpp.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			if err := session.Encode(ctx, msg); err != nil {
				c.log.Warn("failed to send message", zap.String("to", msg.To), zap.Error(err))
			}
		}
	}
}

// handleStanza decodes an IQ, dispatches it and writes the reply. Messages and
// presence are ignored. A returned error terminates the session.
func (c *componentConn) handleStanza(ctx context.Context, d Dispatcher, t xmlstream.TokenReadEncoder,
	start *xml.StartElement) error {
	if start.Name.Local != "iq" {
		return nil
	}

	// t yields the content of the stanza without its start element.
	var env iqEnvelope
	if err := xml.NewTokenDecoder(xmlstream.MultiReader(xmlstream.Token(*start), t)).Decode(&env); err != nil {
		return err
	}
	if env.Type != IQGet && env.Type != IQSet {
		// Results and errors addressed to the component.
		return nil
	}

	req, err := env.toRequest()
	if err != nil {
		c.log.Info("malformed iq", zap.String("from", env.From), zap.String("id", env.Id), zap.Error(err))
		if env.From == "" {
			return nil
		}
		return t.Encode(&Reply{Id: env.Id, Type: IQError, From: env.To, To: env.From, Error: ErrBadRequest("")})
	}

	res, err := d.Dispatch(ctx, req)
	var reply *Reply
	switch {
	case err != nil:
		reply = ErrReply(req, ErrInternalServerError())
	case !res.Handled:
		reply = ErrReply(req, ErrFeatureNotImplemented())
	default:
		reply = res.Reply
	}
	if reply != nil {
		if werr := t.Encode(reply); werr != nil {
			return werr
		}
	}
	return err
}
