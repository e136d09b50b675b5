package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"
)

func (s *Service) hdlPublish(ctx context.Context, req *Request, cmd *PubsubCommand) (Result, error) {
	node := strings.TrimSpace(cmd.Node)
	if node == "" {
		return replyErr(req, ErrBadRequest(CondNodeIdRequired))
	}

	who := req.Requester().String()
	ok, err := s.store.IsSubscribed(node, who)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return replyErr(req, ErrForbidden())
	}

	if cmd.Item == nil || cmd.Item.Entry == nil {
		return replyErr(req, ErrBadRequest(CondInvalidPayload))
	}

	itemId := cmd.Item.Id
	if itemId == "" {
		itemId = cmd.Item.Entry.Id
	}
	if itemId == "" {
		uid, err := s.idgen.Get()
		if err != nil {
			return Result{}, fmt.Errorf("failed to generate item id: %w", err)
		}
		itemId = uid.String()
	}

	recipients, err := s.store.ListSubscribers(node)
	if err != nil {
		return Result{}, err
	}

	res := handled(NoErrPubsub(req, &PubsubResult{
		Publish: &PublishResult{Node: node, Item: &PublishResultItem{Id: itemId}},
	}))
	res.Fanout = s.fanout(ctx, s.messageTemplate(node, who, cmd.Item.Entry), recipients)
	return res, nil
}

// messageTemplate builds the message sent to every subscriber. Author address and
// category are filled in by the service, the rest is copied from the published entry.
func (s *Service) messageTemplate(node, publisher string, src *Entry) *Message {
	var authorName string
	if src.Author != nil {
		authorName = src.Author.Name
	}

	return &Message{
		From:    s.addr.String(),
		Subject: src.Title,
		Body:    fmt.Sprintf("From: %s (%s)\n\n%s", authorName, publisher, src.Content),
		Entry: &Entry{
			Author:    &Author{Name: authorName, Jid: publisher},
			Generator: src.Generator,
			Id:        src.Id,
			Category:  &Category{Term: node},
			Content:   src.Content,
			Title:     src.Title,
		},
	}
}

// fanout sends a copy of tmpl to every recipient. Each copy gets its own id. A failed
// delivery does not stop the others. A copy which cannot get an id is not sent
// and counts as failed.
func (s *Service) fanout(ctx context.Context, tmpl *Message, recipients []string) *FanoutReport {
	report := &FanoutReport{}

	var mu sync.Mutex
	done := func(to string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed++
			report.Err = multierr.Append(report.Err, fmt.Errorf("%s: %w", to, err))
		} else {
			report.Sent++
		}
	}

	var wg sync.WaitGroup
	for _, to := range recipients {
		uid, err := s.idgen.Get()
		if err != nil {
			done(to, fmt.Errorf("no stanza id: %w", err))
			continue
		}
		msg := *tmpl
		msg.To = to
		msg.Id = uid.String()

		wg.Add(1)
		s.pool.Schedule(func() {
			defer wg.Done()
			done(msg.To, s.sender.SendMessage(ctx, &msg))
		})
	}
	wg.Wait()

	return report
}
