package hidboot

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
	"github.com/robotalks/cirbuf/pkg/framework"
)

// ErrNoReply indicates no reply was received for a command. It happens
// when a reply for a later command arrives first.
var ErrNoReply = errors.New("no reply")

// Result is the result of a Call.
type Result struct {
	Err error
	// Raw is the reply report as received.
	Raw []byte
}

// Call is a command waiting for its reply.
type Call struct {
	Command  byte
	resultCh chan Result
	client   *Client
}

// ResultChan returns the chan to retrieve the result.
func (c *Call) ResultChan() <-chan Result {
	return c.resultCh
}

// Wait waits for the result.
func (c *Call) Wait(ctx context.Context) Result {
	select {
	case r := <-c.resultCh:
		return r
	case <-ctx.Done():
	}
	if c.client != nil {
		c.client.forget(c)
	}
	select {
	case r := <-c.resultCh:
		return r
	default:
		return Result{Err: errors.Wrap(cirbuf.ErrNoResponse, ctx.Err().Error())}
	}
}

// Client is the host side of the HID link. Reports to the device are
// queued as packets into Tx, reports from the device are drained from Rx.
type Client struct {
	Tx *cirbuf.Buffer
	Rx *cirbuf.Buffer
	// OnSend is called after a report is queued, typically Port.Kick.
	OnSend func()

	pending deque.Deque[*Call]
	lock    sync.Mutex
	eventCh chan Report
}

// NewClient creates a Client.
func NewClient(tx, rx *cirbuf.Buffer) *Client {
	return &Client{Tx: tx, Rx: rx, eventCh: make(chan Report, 16)}
}

// Events returns unsolicited reports, like debug messages.
func (c *Client) Events() <-chan Report {
	return c.eventCh
}

// Do sends a report. If expectReply is false the call completes once the
// report is queued.
func (c *Client) Do(r Report, expectReply bool) *Call {
	call := &Call{Command: r.Command, resultCh: make(chan Result, 1), client: c}
	raw, err := r.MarshalBinary()
	if err != nil {
		call.resultCh <- Result{Err: err}
		return call
	}
	c.lock.Lock()
	err = c.Tx.PutPacket(raw)
	if err == nil && expectReply {
		c.pending.PushBack(call)
	}
	c.lock.Unlock()
	if err != nil || !expectReply {
		call.resultCh <- Result{Err: err}
	}
	if err == nil && c.OnSend != nil {
		c.OnSend()
	}
	return call
}

// Pending returns the number of calls waiting for a reply.
func (c *Client) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pending.Len()
}

// forget removes call from the pending queue, keeping the order of others.
func (c *Client) forget(call *Call) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for n := c.pending.Len(); n > 0; n-- {
		if pc := c.pending.PopFront(); pc != call {
			c.pending.PushBack(pc)
		}
	}
}

// DeviceInfo requests the board ID and revision.
func (c *Client) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	res := c.Do(Report{Command: CmdDeviceInfo}, true).Wait(ctx)
	if res.Err != nil {
		return DeviceInfo{}, res.Err
	}
	return ParseDeviceInfo(res.Raw)
}

// Command sends a text command and waits for the reply data.
func (c *Client) Command(ctx context.Context, cmd string) ([]byte, error) {
	res := c.Do(Report{Command: CmdCommand, Data: CommandString(cmd)}, true).Wait(ctx)
	if res.Err != nil {
		return nil, res.Err
	}
	r, err := ParseReport(res.Raw)
	if err != nil {
		return nil, err
	}
	return r.Data, nil
}

// Reset asks the device to reboot.
func (c *Client) Reset() error {
	return (<-c.Do(Report{Command: CmdResetDevice}, false).ResultChan()).Err
}

// AddToLoop implements framework.LoopAdder.
func (c *Client) AddToLoop(l *framework.Loop) {
	l.AddPoller(framework.PrLvDispatch, c)
}

// Poll implements framework.Poller. It drains all reports from Rx.
func (c *Client) Poll(framework.PollContext) error {
	buf := make([]byte, c.Rx.MaxPacketDataSize())
	for c.Rx.HasWholePacket() {
		n, err := c.Rx.GetPacket(buf)
		if err != nil {
			c.Rx.RemovePacket()
			return err
		}
		c.HandleReport(append([]byte(nil), buf[:n]...))
	}
	return nil
}

// HandleReport matches a report from the device with the oldest pending
// call of the same command. Pending calls before it fail with ErrNoReply.
func (c *Client) HandleReport(raw []byte) {
	if len(raw) == 0 {
		return
	}
	cmd := raw[0]
	var skipped []*Call
	var match *Call
	c.lock.Lock()
	for i := 0; i < c.pending.Len(); i++ {
		if c.pending.At(i).Command == cmd {
			for ; i > 0; i-- {
				skipped = append(skipped, c.pending.PopFront())
			}
			match = c.pending.PopFront()
			break
		}
	}
	c.lock.Unlock()

	for _, call := range skipped {
		call.resultCh <- Result{Err: ErrNoReply}
	}
	if match != nil {
		match.resultCh <- Result{Raw: raw}
		return
	}
	r, err := ParseReport(raw)
	if err != nil {
		glog.V(2).Infof("hid: drop unexpected report 0x%02x: %v", cmd, err)
		return
	}
	select {
	case c.eventCh <- r:
	default:
		glog.Warningf("hid: event queue full, report 0x%02x dropped", cmd)
	}
}
