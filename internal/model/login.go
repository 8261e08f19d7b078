package model

import (
	"net/netip"
	"net/url"
	"time"
)

// LoginSession is what the browser needs to start a SQRL login.
type LoginSession struct {
	Correlator string
	Nut        string
	SqrlURL    string
	ExpiresAt  time.Time
}

// LoginStatus is the front-channel view of a correlator. LoginToken is set
// once the correlator is authenticated.
type LoginStatus struct {
	Status     CorrelatorStatus
	Idk        string
	LoginToken string
}

// BackchannelRequest is one POST from a SQRL client.
type BackchannelRequest struct {
	Form url.Values
	// QueryNut is the nut from the request URL, empty when absent.
	QueryNut string
	RemoteIP netip.Addr
}

// BackchannelResponse is the reply to send back. Body is always a complete,
// signed reply.
type BackchannelResponse struct {
	Body string
	Tif  int
}
