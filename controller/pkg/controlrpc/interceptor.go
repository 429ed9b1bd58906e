package controlrpc

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"go.aporeto.io/netinterceptor/controller"
	"go.aporeto.io/netinterceptor/controller/pkg/pending"
	"go.uber.org/zap"
)

// Interceptor serves the commands of one controller connection.
type Interceptor struct {
	ctx     context.Context
	server  *Server
	peerPID uint32
	lost    <-chan struct{}

	session string
	lock    sync.Mutex
}

func newInterceptor(ctx context.Context, s *Server, peerPID uint32, lost <-chan struct{}) *Interceptor {

	return &Interceptor{
		ctx:     ctx,
		server:  s,
		peerPID: peerPID,
		lost:    lost,
	}
}

// validate authenticates the request and checks the session it claims.
func (h *Interceptor) validate(req *Request, resp *Response, attached bool) error {

	if !checkValidity(req, h.server.secret) {
		return h.fail(resp, ErrAuthentication)
	}

	if !attached {
		return nil
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if h.session == "" || req.Session != h.session {
		return h.fail(resp, ErrNotAttached)
	}

	return nil
}

func (h *Interceptor) fail(resp *Response, err error) error {

	resp.Status = err.Error()
	return err
}

// endSession drops the session of the connection and detaches the engine.
func (h *Interceptor) endSession() {

	h.lock.Lock()
	id := h.session
	h.session = ""
	h.lock.Unlock()

	if id == "" {
		return
	}

	if err := h.server.sessions.Remove(id); err != nil {
		zap.L().Debug("Session already removed", zap.String("session", id), zap.Error(err))
	}
}

// Attach binds the engine to the calling controller and opens a session.
func (h *Interceptor) Attach(req Request, resp *Response) error {

	if err := h.validate(&req, resp, false); err != nil {
		return err
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if h.session != "" {
		return h.fail(resp, ErrAlreadyAttached)
	}

	pid := h.peerPID
	if pid == 0 {
		pid = req.Payload.PID
	}

	if err := h.server.engine.Attach(pid); err != nil {
		return h.fail(resp, err)
	}

	session := &Session{ID: xid.New().String(), PID: pid}
	h.server.sessions.AddOrUpdate(session.ID, session)
	h.session = session.ID

	resp.Payload.Session = session.ID

	zap.L().Info("Controller attached", zap.String("session", session.ID), zap.Uint32("pid", pid))

	return nil
}

// Detach closes the session and releases everything the engine holds.
func (h *Interceptor) Detach(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	h.endSession()

	return nil
}

// Read blocks until whole records are available and returns them.
func (h *Interceptor) Read(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	pool := h.server.pool
	buf := pool.Get()
	defer pool.Put(buf)

	if size := req.Payload.Size; size > 0 && size < len(buf) {
		buf = buf[:size]
	}

	ch := make(chan pending.Result, 1)
	op := pending.New(pending.KindRead, 0, buf, func(op *pending.Operation, r pending.Result) {
		ch <- r
	})

	h.server.engine.Read(op)

	var r pending.Result
	select {
	case r = <-ch:
	case <-h.lost:
		h.server.engine.CancelRead(op)
		r = <-ch
	case <-h.ctx.Done():
		h.server.engine.CancelRead(op)
		r = <-ch
	}

	if err := r.Status.Err(); err != nil {
		return h.fail(resp, err)
	}

	resp.Payload.Records = append([]byte{}, buf[:r.Bytes]...)

	return nil
}

// ReplaceRules swaps the rule list.
func (h *Interceptor) ReplaceRules(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	digest, err := h.server.engine.ReplaceRules(req.Payload.Rules)
	if err != nil {
		return h.fail(resp, err)
	}

	resp.Payload.Digest = digest

	return nil
}

// AddRule inserts one rule.
func (h *Interceptor) AddRule(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	if req.Payload.Rule == nil {
		return h.fail(resp, errors.Wrap(ErrInvalidCommand, "no rule"))
	}

	digest, err := h.server.engine.AddRule(req.Payload.Rule, req.Payload.Head)
	if err != nil {
		return h.fail(resp, err)
	}

	resp.Payload.Digest = digest

	return nil
}

// ClearRules removes every rule.
func (h *Interceptor) ClearRules(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	resp.Payload.Digest = h.server.engine.ClearRules()

	return nil
}

// ClearStagedRules empties the staging list.
func (h *Interceptor) ClearStagedRules(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	h.server.engine.ClearStagedRules()

	return nil
}

// AddStagedRule appends a rule to the staging list.
func (h *Interceptor) AddStagedRule(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	if req.Payload.Rule == nil {
		return h.fail(resp, errors.Wrap(ErrInvalidCommand, "no rule"))
	}

	if err := h.server.engine.AddStagedRule(req.Payload.Rule); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// CommitStagedRules activates the staging list.
func (h *Interceptor) CommitStagedRules(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	resp.Payload.Digest = h.server.engine.CommitStagedRules()

	return nil
}

// Rules returns the active rule list.
func (h *Interceptor) Rules(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	resp.Payload.Rules, resp.Payload.Digest = h.server.engine.Rules()

	return nil
}

// Suspend holds the data of an endpoint.
func (h *Interceptor) Suspend(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	if err := h.server.engine.Suspend(req.Payload.ID); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// Resume replays the held data of an endpoint.
func (h *Interceptor) Resume(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	if err := h.server.engine.Resume(req.Payload.ID); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// ReleaseConnect answers a connect request.
func (h *Interceptor) ReleaseConnect(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	v := &controller.ConnectVerdict{
		Flag:       req.Payload.Flag,
		RemoteIP:   req.Payload.RemoteIP,
		RemotePort: req.Payload.RemotePort,
	}

	if err := h.server.engine.ReleaseConnect(req.Payload.ID, v); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// Release passes held data of an endpoint through.
func (h *Interceptor) Release(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	if err := h.server.engine.Release(req.Payload.ID, req.Payload.Direction); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// InjectSend queues data for the stack on a connection.
func (h *Interceptor) InjectSend(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	if err := h.server.engine.InjectSend(req.Payload.ID, req.Payload.Data, req.Payload.Disconnect); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// InjectReceive queues data for the application on a connection.
func (h *Interceptor) InjectReceive(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	if err := h.server.engine.InjectReceive(req.Payload.ID, req.Payload.Data, req.Payload.Disconnect); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// InjectSendDatagram queues a datagram for the stack.
func (h *Interceptor) InjectSendDatagram(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	p := req.Payload
	if err := h.server.engine.InjectSendDatagram(p.ID, p.RemoteIP, p.RemotePort, p.Data); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// InjectReceiveDatagram queues a datagram for the application.
func (h *Interceptor) InjectReceiveDatagram(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	p := req.Payload
	if err := h.server.engine.InjectReceiveDatagram(p.ID, p.RemoteIP, p.RemotePort, p.Data); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// Abort resets an endpoint.
func (h *Interceptor) Abort(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	if err := h.server.engine.Abort(req.Payload.ID); err != nil {
		return h.fail(resp, err)
	}

	return nil
}

// QueryEndpoint returns the metadata of an endpoint.
func (h *Interceptor) QueryEndpoint(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	info, err := h.server.engine.QueryEndpoint(req.Payload.ID)
	if err != nil {
		return h.fail(resp, err)
	}

	resp.Payload.Endpoint = info

	return nil
}

// ProcessName resolves the name of a process.
func (h *Interceptor) ProcessName(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	name, err := h.server.engine.ProcessName(req.Payload.PID)
	if err != nil {
		return h.fail(resp, err)
	}

	resp.Payload.Name = name

	return nil
}

// DisableFiltering turns rule evaluation off or back on.
func (h *Interceptor) DisableFiltering(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	h.server.engine.DisableFiltering(req.Payload.Disable)

	return nil
}

// AddRedirector registers a local proxy process.
func (h *Interceptor) AddRedirector(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	h.server.engine.AddRedirector(req.Payload.PID)

	return nil
}

// RemoveRedirector forgets a local proxy process.
func (h *Interceptor) RemoveRedirector(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	h.server.engine.RemoveRedirector(req.Payload.PID)

	return nil
}

// IsProxy tells whether a process is a local proxy.
func (h *Interceptor) IsProxy(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	resp.Payload.Proxy = h.server.engine.IsProxy(req.Payload.PID)

	return nil
}

// Counters returns and resets the error counters.
func (h *Interceptor) Counters(req Request, resp *Response) error {

	if err := h.validate(&req, resp, true); err != nil {
		return err
	}

	resp.Payload.Counters = h.server.engine.Counters()

	return nil
}
