package main

/******************************************************************************
 *
 *  Description :
 *
 *    Wire protocol structures
 *
 *****************************************************************************/

import (
	"encoding/xml"
	"errors"
	"strings"

	"mellium.im/xmpp/jid"
	"mellium.im/xmpp/stanza"
)

// Namespaces.
const (
	NSPubsub       = "http://jabber.org/protocol/pubsub"
	NSPubsubErrors = "http://jabber.org/protocol/pubsub#errors"
	NSDiscoInfo    = "http://jabber.org/protocol/disco#info"
	NSDiscoItems   = "http://jabber.org/protocol/disco#items"
	NSAtom         = "http://www.w3.org/2005/Atom"
	NSStanzas      = "urn:ietf:params:xml:ns:xmpp-stanzas"
)

// IQ types.
const (
	IQGet    = "get"
	IQSet    = "set"
	IQResult = "result"
	IQError  = "error"
)

// Verb identifies the operation requested by an IQ.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbSubscribe
	VerbUnsubscribe
	VerbSubscriptions
	VerbPublish
	VerbDiscoInfo
	VerbDiscoItems
)

var verbNames = map[Verb]string{
	VerbUnknown:       "unknown",
	VerbSubscribe:     "subscribe",
	VerbUnsubscribe:   "unsubscribe",
	VerbSubscriptions: "subscriptions",
	VerbPublish:       "publish",
	VerbDiscoInfo:     "disco#info",
	VerbDiscoItems:    "disco#items",
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return verbNames[VerbUnknown]
}

// ParseVerb maps the name of a child of <pubsub/> to a Verb.
// Returns VerbUnknown for anything not handled by this service.
func ParseVerb(name string) Verb {
	switch name {
	case "subscribe":
		return VerbSubscribe
	case "unsubscribe":
		return VerbUnsubscribe
	case "subscriptions":
		return VerbSubscriptions
	case "publish":
		return VerbPublish
	}
	return VerbUnknown
}

// Entry is an Atom entry carried inside a published item and inside the messages sent to subscribers.
type Entry struct {
	XMLName   xml.Name  `xml:"http://www.w3.org/2005/Atom entry"`
	Author    *Author   `xml:"author,omitempty"`
	Generator string    `xml:"generator,omitempty"`
	Id        string    `xml:"id,omitempty"`
	Category  *Category `xml:"category,omitempty"`
	Content   string    `xml:"content,omitempty"`
	Title     string    `xml:"title,omitempty"`
}

// Author of an Atom entry.
type Author struct {
	Name string `xml:"name"`
	Jid  string `xml:"jid,omitempty"`
}

// Category of an Atom entry.
type Category struct {
	Term string `xml:"term,attr"`
}

// PubsubItem is the <item/> element of a publish request.
type PubsubItem struct {
	Id    string `xml:"id,attr,omitempty"`
	Entry *Entry `xml:"http://www.w3.org/2005/Atom entry"`
}

// PubsubCommand is a child element of <pubsub/>: subscribe, unsubscribe, subscriptions or publish.
type PubsubCommand struct {
	XMLName xml.Name
	Node    string      `xml:"node,attr"`
	Jid     string      `xml:"jid,attr"`
	Item    *PubsubItem `xml:"item"`
}

// DiscoQuery is a disco#info or disco#items query.
type DiscoQuery struct {
	Node string `xml:"node,attr"`
}

// Request is an inbound IQ stripped of transport details.
type Request struct {
	Id   string
	Type string
	From jid.JID
	To   jid.JID

	// Children of the <pubsub/> element in document order.
	Pubsub []PubsubCommand
	// Set when the IQ carries a disco#info query.
	DiscoInfo *DiscoQuery
	// Set when the IQ carries a disco#items query.
	DiscoItems *DiscoQuery
}

// Requester returns the bare address of the sender.
func (r *Request) Requester() jid.JID {
	return r.From.Bare()
}

type pubsubQuery struct {
	Commands []PubsubCommand `xml:",any"`
}

// iqEnvelope is used to decode inbound IQs.
type iqEnvelope struct {
	XMLName    xml.Name     `xml:"iq"`
	Id         string       `xml:"id,attr"`
	Type       string       `xml:"type,attr"`
	From       string       `xml:"from,attr"`
	To         string       `xml:"to,attr"`
	Pubsub     *pubsubQuery `xml:"http://jabber.org/protocol/pubsub pubsub"`
	DiscoInfo  *DiscoQuery  `xml:"http://jabber.org/protocol/disco#info query"`
	DiscoItems *DiscoQuery  `xml:"http://jabber.org/protocol/disco#items query"`
}

var errMissingFrom = errors.New("iq has no sender")

// toRequest validates addressing and converts the envelope to a Request.
func (env *iqEnvelope) toRequest() (*Request, error) {
	if env.From == "" {
		return nil, errMissingFrom
	}
	from, err := jid.Parse(env.From)
	if err != nil {
		return nil, err
	}
	req := &Request{
		Id:         env.Id,
		Type:       env.Type,
		From:       from,
		DiscoInfo:  env.DiscoInfo,
		DiscoItems: env.DiscoItems,
	}
	if env.To != "" {
		if req.To, err = jid.Parse(env.To); err != nil {
			return nil, err
		}
	}
	if env.Pubsub != nil {
		req.Pubsub = env.Pubsub.Commands
	}
	return req, nil
}

// Reply is an IQ result or error sent back to the requester.
type Reply struct {
	XMLName    xml.Name          `xml:"iq"`
	Id         string            `xml:"id,attr"`
	Type       string            `xml:"type,attr"`
	From       string            `xml:"from,attr,omitempty"`
	To         string            `xml:"to,attr,omitempty"`
	Pubsub     *PubsubResult     `xml:"http://jabber.org/protocol/pubsub pubsub,omitempty"`
	DiscoInfo  *DiscoInfoResult  `xml:"http://jabber.org/protocol/disco#info query,omitempty"`
	DiscoItems *DiscoItemsResult `xml:"http://jabber.org/protocol/disco#items query,omitempty"`
	Error      *StanzaError      `xml:"error,omitempty"`
}

// PubsubResult is the payload of a successful pubsub reply.
type PubsubResult struct {
	Subscription  *SubscriptionElem `xml:"subscription,omitempty"`
	Subscriptions *SubscriptionList `xml:"subscriptions,omitempty"`
	Publish       *PublishResult    `xml:"publish,omitempty"`
}

// SubscriptionElem describes one subscription.
type SubscriptionElem struct {
	Node         string `xml:"node,attr"`
	Jid          string `xml:"jid,attr,omitempty"`
	Subscription string `xml:"subscription,attr"`
}

// SubscriptionList is the reply to a subscriptions request.
type SubscriptionList struct {
	Items []SubscriptionElem `xml:"subscription"`
}

// PublishResult confirms a publish request.
type PublishResult struct {
	Node string             `xml:"node,attr"`
	Item *PublishResultItem `xml:"item,omitempty"`
}

// PublishResultItem is the id of the published item.
type PublishResultItem struct {
	Id string `xml:"id,attr"`
}

// DiscoInfoResult is the reply to a disco#info query.
type DiscoInfoResult struct {
	Node       string     `xml:"node,attr,omitempty"`
	Identities []Identity `xml:"identity"`
	Features   []Feature  `xml:"feature"`
}

// Identity of a disco#info entity.
type Identity struct {
	Category string `xml:"category,attr"`
	Type     string `xml:"type,attr"`
	Name     string `xml:"name,attr,omitempty"`
}

// Feature of a disco#info entity.
type Feature struct {
	Var string `xml:"var,attr"`
}

// DiscoItemsResult is the reply to a disco#items query.
type DiscoItemsResult struct {
	Node  string      `xml:"node,attr,omitempty"`
	Items []DiscoItem `xml:"item"`
}

// DiscoItem is one entry of a disco#items reply.
type DiscoItem struct {
	Jid  string `xml:"jid,attr"`
	Node string `xml:"node,attr,omitempty"`
	Name string `xml:"name,attr,omitempty"`
}

// Message is a stanza delivered to a subscriber.
type Message struct {
	XMLName xml.Name `xml:"message"`
	Id      string   `xml:"id,attr,omitempty"`
	From    string   `xml:"from,attr,omitempty"`
	To      string   `xml:"to,attr"`
	Subject string   `xml:"subject,omitempty"`
	Body    string   `xml:"body,omitempty"`
	Entry   *Entry   `xml:"http://www.w3.org/2005/Atom entry"`
}

// Stanza error types.
const (
	ErrTypeAuth   = "auth"
	ErrTypeCancel = "cancel"
	ErrTypeModify = "modify"
)

// Pubsub specific error conditions.
const (
	CondInvalidJid     = "invalid-jid"
	CondNodeIdRequired = "nodeid-required"
	CondInvalidPayload = "invalid-payload"
)

// StanzaError is a protocol-level error returned to the requester.
type StanzaError struct {
	Type      string
	Condition stanza.Condition
	// Optional application-specific condition in the pubsub#errors namespace.
	PubsubCondition string
	Text            string
}

func (e *StanzaError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Condition))
	if e.PubsubCondition != "" {
		sb.WriteString(" (" + e.PubsubCondition + ")")
	}
	if e.Text != "" {
		sb.WriteString(": " + e.Text)
	}
	return sb.String()
}

// MarshalXML writes the <error/> element.
func (e *StanzaError) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	start = xml.StartElement{
		Name: xml.Name{Local: "error"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "type"}, Value: e.Type}},
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if err := emptyElement(enc, NSStanzas, string(e.Condition)); err != nil {
		return err
	}
	if e.PubsubCondition != "" {
		if err := emptyElement(enc, NSPubsubErrors, e.PubsubCondition); err != nil {
			return err
		}
	}
	if e.Text != "" {
		text := xml.StartElement{Name: xml.Name{Space: NSStanzas, Local: "text"}}
		if err := enc.EncodeElement(e.Text, text); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func emptyElement(enc *xml.Encoder, ns, local string) error {
	el := xml.StartElement{Name: xml.Name{Space: ns, Local: local}}
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

// ErrBadRequest is a malformed request, with an optional pubsub condition (modify).
func ErrBadRequest(pubsubCond string) *StanzaError {
	return &StanzaError{Type: ErrTypeModify, Condition: stanza.BadRequest, PubsubCondition: pubsubCond}
}

// ErrItemNotFound is a reference to a missing node (cancel).
func ErrItemNotFound() *StanzaError {
	return &StanzaError{Type: ErrTypeCancel, Condition: stanza.ItemNotFound}
}

// ErrFeatureNotImplemented is a request this service does not support (cancel).
func ErrFeatureNotImplemented() *StanzaError {
	return &StanzaError{Type: ErrTypeCancel, Condition: stanza.FeatureNotImplemented}
}

// ErrForbidden is a request the sender is not allowed to make (auth).
func ErrForbidden() *StanzaError {
	return &StanzaError{Type: ErrTypeAuth, Condition: stanza.Forbidden}
}

// ErrInternalServerError is an unexpected failure (cancel).
func ErrInternalServerError() *StanzaError {
	return &StanzaError{Type: ErrTypeCancel, Condition: stanza.InternalServerError}
}

// NoErr is an empty IQ result.
func NoErr(req *Request) *Reply {
	return &Reply{
		Id:   req.Id,
		Type: IQResult,
		From: req.To.String(),
		To:   req.From.String(),
	}
}

// NoErrPubsub is an IQ result with a pubsub payload.
func NoErrPubsub(req *Request, payload *PubsubResult) *Reply {
	reply := NoErr(req)
	reply.Pubsub = payload
	return reply
}

// ErrReply is an IQ error.
func ErrReply(req *Request, err *StanzaError) *Reply {
	reply := NoErr(req)
	reply.Type = IQError
	reply.Error = err
	return reply
}
