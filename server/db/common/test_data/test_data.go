package test_data

import (
	"github.com/tinode/groups/server/store/types"
)

type TestData struct {
	Groups []*types.Group
	Subs   []types.Subscription
	// Address which is not subscribed to anything.
	Stranger string
}

func initGroups() []*types.Group {
	return []*types.Group{
		{Node: "golang", Name: "Go", Description: "The Go programming language"},
		{Node: "misc", Name: "Miscellaneous", Description: "Anything goes"},
		{Node: "xmpp", Name: "XMPP", Description: "Extensible Messaging and Presence Protocol"},
	}
}

func initSubs() []types.Subscription {
	return []types.Subscription{
		{Node: "golang", Jid: "alice@example.com"},
		{Node: "golang", Jid: "bob@example.com"},
		{Node: "xmpp", Jid: "alice@example.com"},
		{Node: "xmpp", Jid: "carol@example.org"},
	}
}

func InitTestData() *TestData {
	return &TestData{
		Groups:   initGroups(),
		Subs:     initSubs(),
		Stranger: "mallory@example.net",
	}
}
