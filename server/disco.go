package main

import (
	"context"
	"errors"
	"strings"
)

// describeService returns the identity and features of the service itself.
func (s *Service) describeService() *DiscoInfoResult {
	return &DiscoInfoResult{
		Identities: []Identity{{Category: "pubsub", Type: "service", Name: s.name}},
		Features:   []Feature{{Var: NSDiscoInfo}, {Var: NSDiscoItems}},
	}
}

// describeNode returns the identity of a group. The error is a *StanzaError if
// the group does not exist.
func (s *Service) describeNode(node string) (*DiscoInfoResult, error) {
	group, err := s.store.GetGroup(node)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrItemNotFound()
	}
	return &DiscoInfoResult{
		Node:       node,
		Identities: []Identity{{Category: "pubsub", Type: "leaf", Name: group.Name}},
		Features:   []Feature{{Var: NSDiscoInfo}},
	}, nil
}

// listItems lists groups at the root of the service. Listing items of a group is
// not supported.
func (s *Service) listItems(node string) (*DiscoItemsResult, error) {
	if node != "" {
		return nil, ErrFeatureNotImplemented()
	}
	groups, err := s.store.ListGroups()
	if err != nil {
		return nil, err
	}
	result := &DiscoItemsResult{Items: make([]DiscoItem, 0, len(groups))}
	for _, g := range groups {
		result.Items = append(result.Items, DiscoItem{Jid: s.addr.String(), Node: g.Node, Name: g.Name})
	}
	return result, nil
}

// discoReply converts the outcome of a discovery query to a Result.
func discoReply(req *Request, err error, fill func(*Reply)) (Result, error) {
	if err != nil {
		var serr *StanzaError
		if errors.As(err, &serr) {
			return replyErr(req, serr)
		}
		return Result{}, err
	}
	reply := NoErr(req)
	fill(reply)
	return handled(reply), nil
}

func (s *Service) hdlDiscoInfo(_ context.Context, req *Request, _ *PubsubCommand) (Result, error) {
	node := strings.TrimSpace(req.DiscoInfo.Node)
	if node == "" {
		reply := NoErr(req)
		reply.DiscoInfo = s.describeService()
		return handled(reply), nil
	}

	info, err := s.describeNode(node)
	return discoReply(req, err, func(r *Reply) { r.DiscoInfo = info })
}

func (s *Service) hdlDiscoItems(_ context.Context, req *Request, _ *PubsubCommand) (Result, error) {
	items, err := s.listItems(strings.TrimSpace(req.DiscoItems.Node))
	return discoReply(req, err, func(r *Reply) { r.DiscoItems = items })
}
