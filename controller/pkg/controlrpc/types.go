package controlrpc

import (
	"net"

	"github.com/pkg/errors"
	"go.aporeto.io/netinterceptor/controller/pkg/endpoint"
	"go.aporeto.io/netinterceptor/policy"
)

// Errors returned to callers of the control channel.
var (
	ErrAuthentication  = errors.New("message authentication failed")
	ErrInvalidCommand  = errors.New("invalid command")
	ErrNotAttached     = errors.New("session not attached")
	ErrAlreadyAttached = errors.New("session already attached")
)

// Request is sent for every command. HashAuth is the HMAC of the payload
// computed with the shared secret.
type Request struct {
	HashAuth []byte
	Session  string
	Payload  Payload
}

// Payload carries the arguments of a command. Each command reads the fields
// it needs.
type Payload struct {
	ID         uint64            `json:",omitempty"`
	PID        uint32            `json:",omitempty"`
	Size       int               `json:",omitempty"`
	Head       bool              `json:",omitempty"`
	Disable    bool              `json:",omitempty"`
	Disconnect bool              `json:",omitempty"`
	Flag       policy.FilterFlag `json:",omitempty"`
	Direction  policy.Direction  `json:",omitempty"`
	RemoteIP   net.IP            `json:",omitempty"`
	RemotePort uint16            `json:",omitempty"`
	Data       []byte            `json:",omitempty"`
	Rule       *policy.Rule      `json:",omitempty"`
	Rules      []*policy.Rule    `json:",omitempty"`
}

// Response is the response for every command. Status carries the error
// string of a failed command.
type Response struct {
	Status  string
	Payload ResponsePayload `json:",omitempty"`
}

// ResponsePayload carries the results of a command.
type ResponsePayload struct {
	Session  string            `json:",omitempty"`
	Records  []byte            `json:",omitempty"`
	Digest   uint64            `json:",omitempty"`
	Rules    []*policy.Rule    `json:",omitempty"`
	Endpoint *endpoint.Info    `json:",omitempty"`
	Name     string            `json:",omitempty"`
	Proxy    bool              `json:",omitempty"`
	Counters map[string]uint32 `json:",omitempty"`
}

// Session is a controller attached through the control channel.
type Session struct {
	ID  string
	PID uint32
}
