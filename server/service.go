package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinode/groups/server/concurrency"
	"github.com/tinode/groups/server/store"
	"github.com/tinode/groups/server/store/types"
	"go.uber.org/zap"
	"mellium.im/xmpp/jid"
)

// MessageSender delivers messages to subscribers.
type MessageSender interface {
	SendMessage(ctx context.Context, msg *Message) error
}

// Result is the outcome of a handled request.
type Result struct {
	// False if no handler recognized the request.
	Handled bool
	// Reply to send to the requester, may be nil.
	Reply *Reply
	// Set by publish.
	Fanout *FanoutReport
}

// FanoutReport summarizes delivery of a published item.
type FanoutReport struct {
	Sent   int
	Failed int
	// Combined delivery errors, nil if all messages were sent.
	Err error
}

type handlerFunc func(ctx context.Context, req *Request, cmd *PubsubCommand) (Result, error)

// ServiceConfig contains the settings of the pubsub service.
type ServiceConfig struct {
	// Human-readable name reported by service discovery.
	Name string
	// Address of the component.
	Addr jid.JID
	// Number of goroutines delivering published items. 0 means sequential delivery.
	FanoutWorkers int
	// Version reported in metrics.
	Build string
}

// Service processes pubsub and discovery requests.
type Service struct {
	store  store.Storage
	sender MessageSender
	log    *zap.Logger
	stats  *metrics
	idgen  *types.UidGenerator
	pool   *concurrency.GoRoutinePool

	name string
	addr jid.JID

	handlers map[Verb]handlerFunc
}

// NewService creates a service. Metrics are registered with reg.
func NewService(conf ServiceConfig, st store.Storage, sender MessageSender, idgen *types.UidGenerator,
	log *zap.Logger, reg prometheus.Registerer) (*Service, error) {
	if st == nil || sender == nil || idgen == nil {
		return nil, errors.New("service: store, sender and id generator are required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	stats, err := newMetrics(reg)
	if err != nil {
		return nil, err
	}
	if err = reg.Register(newStoreCollector(st, conf.Build)); err != nil {
		return nil, err
	}

	s := &Service{
		store:  st,
		sender: sender,
		log:    log,
		stats:  stats,
		idgen:  idgen,
		pool:   concurrency.NewGoRoutinePool(conf.FanoutWorkers),
		name:   conf.Name,
		addr:   conf.Addr,
	}
	s.handlers = map[Verb]handlerFunc{
		VerbSubscribe:     s.hdlSubscribe,
		VerbUnsubscribe:   s.hdlUnsubscribe,
		VerbSubscriptions: s.hdlSubscriptions,
		VerbPublish:       s.hdlPublish,
		VerbDiscoInfo:     s.hdlDiscoInfo,
		VerbDiscoItems:    s.hdlDiscoItems,
	}
	return s, nil
}

// Close stops the fan-out workers.
func (s *Service) Close() {
	s.pool.Stop()
}

func handled(reply *Reply) Result {
	return Result{Handled: true, Reply: reply}
}

func replyErr(req *Request, err *StanzaError) (Result, error) {
	return handled(ErrReply(req, err)), nil
}
