// Package ui provides the Bubble Tea shell for crmdesk: a catalog browser
// with state actions, a remote search overlay and a phone form.
package ui

import (
	"github.com/abelbrown/crmdesk/internal/mutate"
	"github.com/abelbrown/crmdesk/internal/notify"
	"github.com/abelbrown/crmdesk/internal/query"
	"github.com/abelbrown/crmdesk/internal/session"
)

// NoticeMsg carries a toast from the notification center.
type NoticeMsg struct {
	Notice notify.Notice
}

// SessionMsg refreshes the signed-in user shown in the status bar.
type SessionMsg struct {
	Claims session.Claims
	Err    error
}

// subscribeMsg observes the listing for the current view.
type subscribeMsg struct{}

// listingMsg is a settled fetch for an observed listing.
type listingMsg struct {
	key    query.Key
	result query.Result
}

// mutationDoneMsg is a settled state change or send.
type mutationDoneMsg struct {
	action string
	id     string
	result mutate.Result
}

// focusDoneMsg reports how many listings a terminal focus refetched.
type focusDoneMsg struct {
	refetched int
}

// noticeExpiredMsg re-renders once a toast's TTL has passed.
type noticeExpiredMsg struct{}
