/******************************************************************************
 *
 *  Description :
 *
 *    Handlers of subscribe, unsubscribe and subscriptions requests.
 *
 *****************************************************************************/

package main

import (
	"context"
	"errors"
	"strings"

	"github.com/tinode/groups/server/store/types"
	"mellium.im/xmpp/jid"
)

const subscribed = "subscribed"

// checkSelf ensures the requester manages its own subscription: bare address of
// the sender must match the bare address in the 'jid' attribute.
func checkSelf(req *Request, target string) *StanzaError {
	tj, err := jid.Parse(strings.TrimSpace(target))
	if err != nil || !tj.Bare().Equal(req.Requester()) {
		return ErrBadRequest(CondInvalidJid)
	}
	return nil
}

func (s *Service) hdlSubscribe(_ context.Context, req *Request, cmd *PubsubCommand) (Result, error) {
	if e := checkSelf(req, cmd.Jid); e != nil {
		return replyErr(req, e)
	}
	node := strings.TrimSpace(cmd.Node)
	if node == "" {
		return replyErr(req, ErrBadRequest(CondNodeIdRequired))
	}

	who := req.Requester().String()
	if err := s.store.AddSubscriber(node, who); err != nil {
		if errors.Is(err, types.ErrNoSuchGroup) {
			return replyErr(req, ErrItemNotFound())
		}
		return Result{}, err
	}

	return handled(NoErrPubsub(req, &PubsubResult{
		Subscription: &SubscriptionElem{Node: node, Jid: who, Subscription: subscribed},
	})), nil
}

func (s *Service) hdlUnsubscribe(_ context.Context, req *Request, cmd *PubsubCommand) (Result, error) {
	if e := checkSelf(req, cmd.Jid); e != nil {
		return replyErr(req, e)
	}
	node := strings.TrimSpace(cmd.Node)
	if node == "" {
		return replyErr(req, ErrBadRequest(CondNodeIdRequired))
	}

	// Unsubscribing from a node the requester is not subscribed to is not an error.
	if err := s.store.RemoveSubscriber(node, req.Requester().String()); err != nil {
		return Result{}, err
	}
	return handled(NoErr(req)), nil
}

func (s *Service) hdlSubscriptions(_ context.Context, req *Request, _ *PubsubCommand) (Result, error) {
	who := req.Requester().String()
	nodes, err := s.store.ListSubscriptions(who)
	if err != nil {
		return Result{}, err
	}

	list := &SubscriptionList{Items: make([]SubscriptionElem, 0, len(nodes))}
	for _, node := range nodes {
		list.Items = append(list.Items, SubscriptionElem{Node: node, Jid: who, Subscription: subscribed})
	}
	return handled(NoErrPubsub(req, &PubsubResult{Subscriptions: list})), nil
}
