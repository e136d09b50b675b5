package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// route finds the verb of the request. Disco queries are selected by namespace.
// Among the children of <pubsub/> the first recognized one wins, unrecognized
// ones are skipped.
func route(req *Request) (Verb, *PubsubCommand) {
	switch {
	case req.DiscoInfo != nil:
		return VerbDiscoInfo, nil
	case req.DiscoItems != nil:
		return VerbDiscoItems, nil
	}

	for i := range req.Pubsub {
		cmd := &req.Pubsub[i]
		if cmd.XMLName.Space != "" && cmd.XMLName.Space != NSPubsub {
			continue
		}
		if verb := ParseVerb(cmd.XMLName.Local); verb != VerbUnknown {
			return verb, cmd
		}
	}
	return VerbUnknown, nil
}

// Dispatch passes the request to the matching handler. Result.Handled is false if
// the request is not recognized. The error is set for failures which are not
// a fault of the requester, such as an unreachable database.
func (s *Service) Dispatch(ctx context.Context, req *Request) (Result, error) {
	verb, cmd := route(req)
	handler, ok := s.handlers[verb]
	if !ok {
		s.log.Debug("unhandled request", zap.Stringer("from", req.From), zap.String("id", req.Id))
		return Result{}, nil
	}

	start := time.Now()
	res, err := handler(ctx, req, cmd)
	elapsed := time.Since(start)

	outcome := outcomeOk
	switch {
	case err != nil:
		outcome = outcomeFailure
	case res.Reply != nil && res.Reply.Error != nil:
		outcome = string(res.Reply.Error.Condition)
	}
	s.stats.observe(verb, outcome, elapsed)

	fields := []zap.Field{
		zap.Stringer("verb", verb),
		zap.Stringer("from", req.From),
		zap.String("id", req.Id),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
	}
	if cmd != nil {
		fields = append(fields, zap.String("node", cmd.Node))
	}
	if res.Fanout != nil {
		s.stats.fanout(res.Fanout.Sent, res.Fanout.Failed)
		fields = append(fields, zap.Int("sent", res.Fanout.Sent), zap.Int("failed", res.Fanout.Failed))
		if res.Fanout.Err != nil {
			s.log.Warn("fan-out incomplete", append(fields, zap.Error(res.Fanout.Err))...)
		}
	}

	switch {
	case err != nil:
		s.log.Error("request failed", append(fields, zap.Error(err))...)
	case outcome != outcomeOk:
		s.log.Info("request rejected", fields...)
	default:
		s.log.Debug("request", fields...)
	}
	return res, err
}
