package controlrpc

import (
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
	"go.aporeto.io/netinterceptor/controller/pkg/bridge"
	"go.aporeto.io/netinterceptor/controller/pkg/endpoint"
	"go.aporeto.io/netinterceptor/policy"
)

// Client is the controller side of the control channel.
type Client struct {
	client  *rpc.Client
	secret  string
	session string

	sync.RWMutex
}

// NewClient connects to the control socket. The dial is retried up to
// retries times while the daemon is starting.
func NewClient(path string, secret string, retries int) (*Client, error) {

	conn, err := net.Dial("unix", path)
	for numRetries := 0; err != nil; numRetries++ {
		if numRetries >= retries {
			return nil, errors.Wrapf(err, "unable to connect to %s", path)
		}

		time.Sleep(5 * time.Millisecond)
		conn, err = net.Dial("unix", path)
	}

	rpcCodec := codec.MsgpackSpecRpc.ClientCodec(conn, newMsgpackHandle().handler())

	return &Client{
		client: rpc.NewClientWithCodec(rpcCodec),
		secret: secret,
	}, nil
}

// Close closes the connection. The daemon detaches an attached session.
func (c *Client) Close() error {
	return c.client.Close()
}

// Session returns the session id, empty when not attached.
func (c *Client) Session() string {
	c.RLock()
	defer c.RUnlock()

	return c.session
}

func (c *Client) call(method string, p *Payload) (*Response, error) {

	hash, err := sign(p, c.secret)
	if err != nil {
		return nil, errors.Wrap(err, "unable to sign request")
	}

	req := &Request{
		HashAuth: hash,
		Session:  c.Session(),
		Payload:  *p,
	}
	resp := &Response{}

	if err := c.client.Call(method, req, resp); err != nil {
		return nil, errors.Wrap(err, method)
	}

	return resp, nil
}

// Attach binds the engine to this process.
func (c *Client) Attach(pid uint32) error {

	resp, err := c.call(Attach, &Payload{PID: pid})
	if err != nil {
		return err
	}

	c.Lock()
	c.session = resp.Payload.Session
	c.Unlock()

	return nil
}

// Detach releases the engine.
func (c *Client) Detach() error {

	if _, err := c.call(Detach, &Payload{}); err != nil {
		return err
	}

	c.Lock()
	c.session = ""
	c.Unlock()

	return nil
}

// Read blocks until records are available and returns them. size bounds the
// bytes returned, zero uses the daemon default.
func (c *Client) Read(size int) ([]*bridge.Event, error) {

	resp, err := c.call(Read, &Payload{Size: size})
	if err != nil {
		return nil, err
	}

	return bridge.Decode(resp.Payload.Records)
}

// ReplaceRules swaps the rule list and returns its digest.
func (c *Client) ReplaceRules(list []*policy.Rule) (uint64, error) {

	resp, err := c.call(ReplaceRules, &Payload{Rules: list})
	if err != nil {
		return 0, err
	}

	return resp.Payload.Digest, nil
}

// AddRule inserts a rule at the head or the tail.
func (c *Client) AddRule(rule *policy.Rule, head bool) (uint64, error) {

	resp, err := c.call(AddRule, &Payload{Rule: rule, Head: head})
	if err != nil {
		return 0, err
	}

	return resp.Payload.Digest, nil
}

// ClearRules removes every rule.
func (c *Client) ClearRules() (uint64, error) {

	resp, err := c.call(ClearRules, &Payload{})
	if err != nil {
		return 0, err
	}

	return resp.Payload.Digest, nil
}

// ClearStagedRules empties the staging list.
func (c *Client) ClearStagedRules() error {

	_, err := c.call(ClearStagedRules, &Payload{})
	return err
}

// AddStagedRule appends a rule to the staging list.
func (c *Client) AddStagedRule(rule *policy.Rule) error {

	_, err := c.call(AddStagedRule, &Payload{Rule: rule})
	return err
}

// CommitStagedRules activates the staging list.
func (c *Client) CommitStagedRules() (uint64, error) {

	resp, err := c.call(CommitStagedRules, &Payload{})
	if err != nil {
		return 0, err
	}

	return resp.Payload.Digest, nil
}

// Rules returns the active rules and their digest.
func (c *Client) Rules() ([]*policy.Rule, uint64, error) {

	resp, err := c.call(Rules, &Payload{})
	if err != nil {
		return nil, 0, err
	}

	return resp.Payload.Rules, resp.Payload.Digest, nil
}

// Suspend holds the data of an endpoint.
func (c *Client) Suspend(id uint64) error {

	_, err := c.call(Suspend, &Payload{ID: id})
	return err
}

// Resume replays the held data of an endpoint.
func (c *Client) Resume(id uint64) error {

	_, err := c.call(Resume, &Payload{ID: id})
	return err
}

// ReleaseConnect answers a connect request. A nil remoteIP keeps the
// original destination.
func (c *Client) ReleaseConnect(id uint64, flag policy.FilterFlag, remoteIP net.IP, remotePort uint16) error {

	_, err := c.call(ReleaseConnect, &Payload{ID: id, Flag: flag, RemoteIP: remoteIP, RemotePort: remotePort})
	return err
}

// Release passes the held data of an endpoint through.
func (c *Client) Release(id uint64, direction policy.Direction) error {

	_, err := c.call(Release, &Payload{ID: id, Direction: direction})
	return err
}

// InjectSend queues data for the stack on a connection.
func (c *Client) InjectSend(id uint64, data []byte, disconnect bool) error {

	_, err := c.call(InjectSend, &Payload{ID: id, Data: data, Disconnect: disconnect})
	return err
}

// InjectReceive queues data for the application on a connection.
func (c *Client) InjectReceive(id uint64, data []byte, disconnect bool) error {

	_, err := c.call(InjectReceive, &Payload{ID: id, Data: data, Disconnect: disconnect})
	return err
}

// InjectSendDatagram queues a datagram for the stack.
func (c *Client) InjectSendDatagram(id uint64, ip net.IP, port uint16, data []byte) error {

	_, err := c.call(InjectSendDatagram, &Payload{ID: id, RemoteIP: ip, RemotePort: port, Data: data})
	return err
}

// InjectReceiveDatagram queues a datagram for the application.
func (c *Client) InjectReceiveDatagram(id uint64, ip net.IP, port uint16, data []byte) error {

	_, err := c.call(InjectReceiveDatagram, &Payload{ID: id, RemoteIP: ip, RemotePort: port, Data: data})
	return err
}

// Abort resets an endpoint.
func (c *Client) Abort(id uint64) error {

	_, err := c.call(Abort, &Payload{ID: id})
	return err
}

// QueryEndpoint returns the metadata of an endpoint.
func (c *Client) QueryEndpoint(id uint64) (*endpoint.Info, error) {

	resp, err := c.call(QueryEndpoint, &Payload{ID: id})
	if err != nil {
		return nil, err
	}

	return resp.Payload.Endpoint, nil
}

// ProcessName resolves the name of a process.
func (c *Client) ProcessName(pid uint32) (string, error) {

	resp, err := c.call(ProcessName, &Payload{PID: pid})
	if err != nil {
		return "", err
	}

	return resp.Payload.Name, nil
}

// DisableFiltering turns rule evaluation off or back on.
func (c *Client) DisableFiltering(disable bool) error {

	_, err := c.call(DisableFiltering, &Payload{Disable: disable})
	return err
}

// AddRedirector registers a local proxy process.
func (c *Client) AddRedirector(pid uint32) error {

	_, err := c.call(AddRedirector, &Payload{PID: pid})
	return err
}

// RemoveRedirector forgets a local proxy process.
func (c *Client) RemoveRedirector(pid uint32) error {

	_, err := c.call(RemoveRedirector, &Payload{PID: pid})
	return err
}

// IsProxy tells whether a process is a local proxy.
func (c *Client) IsProxy(pid uint32) (bool, error) {

	resp, err := c.call(IsProxy, &Payload{PID: pid})
	if err != nil {
		return false, err
	}

	return resp.Payload.Proxy, nil
}

// Counters returns and resets the error counters.
func (c *Client) Counters() (map[string]uint32, error) {

	resp, err := c.call(Counters, &Payload{})
	if err != nil {
		return nil, err
	}

	return resp.Payload.Counters, nil
}
