package controlrpc

import (
	"net"

	"go.aporeto.io/netinterceptor/controller"
	"go.aporeto.io/netinterceptor/controller/pkg/endpoint"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.aporeto.io/netinterceptor/policy"
)

// ServiceName is the name the command handler is registered with.
const ServiceName = "Interceptor"

const (
	// Attach is string for invoking RPC
	Attach = ServiceName + ".Attach"
	// Detach is string for invoking RPC
	Detach = ServiceName + ".Detach"
	// Read is string for invoking RPC
	Read = ServiceName + ".Read"
	// ReplaceRules is string for invoking RPC
	ReplaceRules = ServiceName + ".ReplaceRules"
	// AddRule is string for invoking RPC
	AddRule = ServiceName + ".AddRule"
	// ClearRules is string for invoking RPC
	ClearRules = ServiceName + ".ClearRules"
	// ClearStagedRules is string for invoking RPC
	ClearStagedRules = ServiceName + ".ClearStagedRules"
	// AddStagedRule is string for invoking RPC
	AddStagedRule = ServiceName + ".AddStagedRule"
	// CommitStagedRules is string for invoking RPC
	CommitStagedRules = ServiceName + ".CommitStagedRules"
	// Rules is string for invoking RPC
	Rules = ServiceName + ".Rules"
	// Suspend is string for invoking RPC
	Suspend = ServiceName + ".Suspend"
	// Resume is string for invoking RPC
	Resume = ServiceName + ".Resume"
	// ReleaseConnect is string for invoking RPC
	ReleaseConnect = ServiceName + ".ReleaseConnect"
	// Release is string for invoking RPC
	Release = ServiceName + ".Release"
	// InjectSend is string for invoking RPC
	InjectSend = ServiceName + ".InjectSend"
	// InjectReceive is string for invoking RPC
	InjectReceive = ServiceName + ".InjectReceive"
	// InjectSendDatagram is string for invoking RPC
	InjectSendDatagram = ServiceName + ".InjectSendDatagram"
	// InjectReceiveDatagram is string for invoking RPC
	InjectReceiveDatagram = ServiceName + ".InjectReceiveDatagram"
	// Abort is string for invoking RPC
	Abort = ServiceName + ".Abort"
	// QueryEndpoint is string for invoking RPC
	QueryEndpoint = ServiceName + ".QueryEndpoint"
	// ProcessName is string for invoking RPC
	ProcessName = ServiceName + ".ProcessName"
	// DisableFiltering is string for invoking RPC
	DisableFiltering = ServiceName + ".DisableFiltering"
	// AddRedirector is string for invoking RPC
	AddRedirector = ServiceName + ".AddRedirector"
	// RemoveRedirector is string for invoking RPC
	RemoveRedirector = ServiceName + ".RemoveRedirector"
	// IsProxy is string for invoking RPC
	IsProxy = ServiceName + ".IsProxy"
	// Counters is string for invoking RPC
	Counters = ServiceName + ".Counters"
)

// Engine is the part of the interception engine driven by the controller.
type Engine interface {
	Attach(pid uint32) error
	Detach() bool
	Read(op *pending.Operation)
	CancelRead(op *pending.Operation) bool

	ReplaceRules(list []*policy.Rule) (uint64, error)
	AddRule(rule *policy.Rule, head bool) (uint64, error)
	ClearRules() uint64
	ClearStagedRules()
	AddStagedRule(rule *policy.Rule) error
	CommitStagedRules() uint64
	Rules() ([]*policy.Rule, uint64)

	Suspend(id uint64) error
	Resume(id uint64) error
	ReleaseConnect(id uint64, v *controller.ConnectVerdict) error
	Release(id uint64, direction policy.Direction) error
	InjectSend(id uint64, data []byte, disconnect bool) error
	InjectReceive(id uint64, data []byte, disconnect bool) error
	InjectSendDatagram(id uint64, ip net.IP, port uint16, data []byte) error
	InjectReceiveDatagram(id uint64, ip net.IP, port uint16, data []byte) error
	Abort(id uint64) error

	QueryEndpoint(id uint64) (*endpoint.Info, error)
	ProcessName(pid uint32) (string, error)
	DisableFiltering(disable bool)
	AddRedirector(pid uint32)
	RemoveRedirector(pid uint32)
	IsProxy(pid uint32) bool
	Counters() map[string]uint32
}
