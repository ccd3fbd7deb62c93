// Package redirect parses the query parameters an identity provider appends
// when it sends the visitor back to the page.
package redirect

import (
	"net/url"
)

// Kind tags which variant a Signal holds
type Kind int

const (
	None Kind = iota
	Error
	Success
)

func (k Kind) String() string {
	switch k {
	case Error:
		return "error"
	case Success:
		return "success"
	default:
		return "none"
	}
}

// Query parameters written by the login callback
const (
	ParamError = "error"
	ParamAuth  = "auth"

	authSuccessValue = "success"
)

// Signal is the one-shot message carried by the provider redirect.
// Reason is only set for Error.
type Signal struct {
	Kind   Kind
	Reason string
}

// Parse reads the signal from query values. An error parameter wins over
// auth=success when both are present.
func Parse(q url.Values) Signal {
	if reason := q.Get(ParamError); reason != "" {
		return Signal{Kind: Error, Reason: reason}
	}
	if q.Get(ParamAuth) == authSuccessValue {
		return Signal{Kind: Success}
	}
	return Signal{Kind: None}
}

// Present reports whether the signal needs processing
func (s Signal) Present() bool {
	return s.Kind != None
}

// Strip returns a copy of u without the signal parameters. Unrelated
// query parameters are kept.
func Strip(u *url.URL) *url.URL {
	clean := *u
	q := clean.Query()
	q.Del(ParamError)
	q.Del(ParamAuth)
	clean.RawQuery = q.Encode()
	clean.ForceQuery = false
	return &clean
}
