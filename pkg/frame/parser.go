// Package frame recovers messages from an escaped byte stream.
//
// Messages on an escaped serial link are either enclosed in the control
// characters ^s and ^p or terminated by the delimiter. The Framer drains
// an escaped stream buffer, feeds the decoded symbols to a Parser and
// queues every complete frame as a packet.
package frame

import "github.com/robotalks/cirbuf/pkg/cirbuf"

// Mode selects which framing is recognised.
type Mode uint8

// Framing modes, can be combined.
const (
	ModeStartStop Mode = 1 << iota
	ModeDelimiter
)

// SyncState indicates the state of the parser.
type SyncState int

const (
	// SyncStateSyncing means a frame was corrupted and input is skipped
	// until the next frame boundary.
	SyncStateSyncing SyncState = 0
	// SyncStateReady means the parser is between frames.
	SyncStateReady SyncState = 0x01
	// SyncStateReceiving means a frame is being received.
	SyncStateReceiving SyncState = 0x02
)

// IsReady tells if the parser is synchronised.
func (s SyncState) IsReady() bool {
	return s&SyncStateReady != 0
}

// IsReceiving tells if a frame is in progress.
func (s SyncState) IsReceiving() bool {
	return s&SyncStateReceiving != 0
}

// DefaultMaxFrame is the frame size limit when Parser.MaxFrame is zero.
const DefaultMaxFrame = 255

// ParseResult is the result of one parsing step.
type ParseResult struct {
	State SyncState
	// Frame is set when a frame completes.
	Frame []byte
	// Dropped is the number of bytes of a discarded partial frame.
	Dropped int
}

type parseState int

const (
	stateSync parseState = iota // skipping to the next frame boundary
	stateIdle                   // between frames
	stateData                   // collecting a frame
)

// Parser assembles frames from decoded symbols.
type Parser struct {
	Mode     Mode
	MaxFrame int

	state parseState
	frame []byte
}

// NewParser creates a synchronised parser.
func NewParser(mode Mode) *Parser {
	return &Parser{Mode: mode, state: stateIdle}
}

// State gets the current sync state.
func (p *Parser) State() SyncState {
	switch p.state {
	case stateIdle:
		return SyncStateReady
	case stateData:
		return SyncStateReady | SyncStateReceiving
	}
	return SyncStateSyncing
}

func (p *Parser) maxFrame() int {
	if p.MaxFrame > 0 {
		return p.MaxFrame
	}
	return DefaultMaxFrame
}

// Parse consumes one decoded symbol.
func (p *Parser) Parse(c byte, kind cirbuf.Kind) (pr ParseResult) {
	switch kind {
	case cirbuf.KindControl:
		pr = p.parseControl(c)
	case cirbuf.KindDelimiter:
		pr = p.parseDelimiter(c)
	default:
		pr = p.parseData(c)
	}
	pr.State = p.State()
	return
}

// Resync drops the partial frame and skips input until the next boundary.
func (p *Parser) Resync() (pr ParseResult) {
	pr.Dropped = p.drop()
	p.state = stateSync
	pr.State = p.State()
	return
}

// Timeout notifies that a partial frame stopped growing.
func (p *Parser) Timeout() (pr ParseResult) {
	if p.state == stateData {
		pr.Dropped = p.drop()
		p.state = stateIdle
	}
	pr.State = p.State()
	return
}

// Reset resets the parser to the ready state.
func (p *Parser) Reset() {
	p.frame = p.frame[:0]
	p.state = stateIdle
}

func (p *Parser) parseControl(c byte) (pr ParseResult) {
	switch {
	case c == cirbuf.CtrlStart && p.Mode&ModeStartStop != 0:
		pr.Dropped = p.drop()
		p.state = stateData
	case c == cirbuf.CtrlStop && p.Mode&ModeStartStop != 0:
		if p.state == stateData {
			return p.frameReady()
		}
		p.state = stateIdle
	default:
		if p.state == stateData {
			pr.Dropped = p.drop()
			p.state = stateSync
		}
	}
	return
}

func (p *Parser) parseDelimiter(c byte) (pr ParseResult) {
	if p.Mode&ModeDelimiter == 0 {
		return p.parseData(c)
	}
	if p.state == stateData {
		return p.frameReady()
	}
	p.state = stateIdle
	return
}

func (p *Parser) parseData(c byte) (pr ParseResult) {
	switch p.state {
	case stateSync:
		return
	case stateIdle:
		if p.Mode&ModeDelimiter == 0 {
			return
		}
		p.state = stateData
	}
	if len(p.frame) >= p.maxFrame() {
		pr.Dropped = p.drop() + 1
		p.state = stateSync
		return
	}
	p.frame = append(p.frame, c)
	return
}

func (p *Parser) drop() int {
	n := len(p.frame)
	p.frame = p.frame[:0]
	return n
}

func (p *Parser) frameReady() (pr ParseResult) {
	pr.Frame = make([]byte, len(p.frame))
	copy(pr.Frame, p.frame)
	p.frame = p.frame[:0]
	p.state = stateIdle
	return
}
