// Package buffer provides shell commands operating the current buffer.
package buffer

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
	"github.com/robotalks/cirbuf/pkg/cli/sh"
)

// Info is the printable state of a buffer.
type Info struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Format string `json:"format"`
	Cap    int    `json:"cap"`
	Count  int    `json:"count"`
	Free   int    `json:"free"`
	Read   int    `json:"read"`
	Write  int    `json:"write"`
	Status string `json:"status"`
	Active bool   `json:"active"`
}

// InfoOf collects the state of b.
func InfoOf(b *cirbuf.Buffer) Info {
	return Info{
		Name:   b.Name(),
		Type:   b.Type().String(),
		Format: b.Format().String(),
		Cap:    b.Cap(),
		Count:  b.Count(),
		Free:   b.Free(),
		Read:   b.ReadIndex(),
		Write:  b.WriteIndex(),
		Status: b.Status().String(),
		Active: b.IsActive(),
	}
}

// NewBuffer parses "NAME SIZE [TYPE] [FORMAT] [contiguous] [timeout=DURATION]".
func NewBuffer(args []string) (*cirbuf.Buffer, error) {
	if len(args) < 2 {
		return nil, errors.New("NAME SIZE required")
	}
	size, err := strconv.Atoi(args[1])
	if err != nil || size <= 0 {
		return nil, errors.Errorf("invalid SIZE %q", args[1])
	}
	typ, format := cirbuf.TypeStreaming, cirbuf.FormatBinary
	opts := []cirbuf.Option{cirbuf.WithName(args[0])}
	for n, arg := range args[2:] {
		switch {
		case arg == "contiguous":
			opts = append(opts, cirbuf.WithContiguousPackets())
		case strings.HasPrefix(arg, "timeout="):
			d, err := time.ParseDuration(strings.TrimPrefix(arg, "timeout="))
			if err != nil {
				return nil, errors.Wrap(err, "invalid timeout")
			}
			opts = append(opts, cirbuf.WithPartialTimeout(d))
		case n == 0:
			if typ, err = cirbuf.ParseType(arg); err != nil {
				return nil, err
			}
		case n == 1:
			if format, err = cirbuf.ParseFormat(arg); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("unexpected argument %q", arg)
		}
	}
	return cirbuf.New(size, typ, format, opts...), nil
}

// Quote prints bytes as a Go quoted string.
func Quote(p []byte) string {
	return strconv.Quote(string(p))
}

func printResult(c *ishell.Context, b *cirbuf.Buffer, err error) {
	if err != nil {
		c.Err(err)
		return
	}
	info := InfoOf(b)
	sh.Print(c, info, fmt.Sprintf("count=%d free=%d", info.Count, info.Free))
}

func printData(c *ishell.Context, p []byte) {
	sh.Print(c, map[string]string{"hex": hex.EncodeToString(p), "text": string(p)}, Quote(p))
}

func countArg(c *ishell.Context, def int) (int, bool) {
	if len(c.Args) == 0 {
		return def, true
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil || n < 0 {
		c.Err(errors.Errorf("invalid count %q", c.Args[0]))
		return 0, false
	}
	return n, true
}

var (
	// NewCmd creates a buffer and selects it.
	NewCmd = ishell.Cmd{
		Name:    "new",
		Aliases: []string{"n"},
		Help:    "NAME SIZE [stream|packet|packet-large] [none|ascii|ascii-esc|binary|binary-esc] [contiguous] [timeout=DURATION]",
		Func: func(c *ishell.Context) {
			b, err := NewBuffer(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			sh.ShellFrom(c).AddBuffer(b)
		},
	}

	// UseCmd selects a buffer.
	UseCmd = ishell.Cmd{
		Name: "use",
		Help: "NAME",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			if len(c.Args) != 1 {
				c.Err(errors.New("NAME required"))
				return
			}
			b, ok := s.Buffers[c.Args[0]]
			if !ok {
				c.Err(errors.Errorf("unknown buffer %q", c.Args[0]))
				return
			}
			s.Use(b)
		},
	}

	// ListCmd lists buffers.
	ListCmd = ishell.Cmd{
		Name:    "list",
		Aliases: []string{"ls"},
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			infos := make([]Info, 0, len(s.Buffers))
			var lines []string
			for _, name := range s.BufferNames() {
				info := InfoOf(s.Buffers[name])
				infos = append(infos, info)
				lines = append(lines, fmt.Sprintf("%s %s/%s %d/%d %s",
					info.Name, info.Type, info.Format, info.Count, info.Cap, info.Status))
			}
			sh.Print(c, infos, strings.Join(lines, "\n"))
		},
	}

	// StatusCmd prints the current buffer.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			sh.Print(c, InfoOf(b), b.String())
		}),
	}

	// ClearCmd clears the sticky status.
	ClearCmd = ishell.Cmd{
		Name: "clear",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			b.ClearError()
		}),
	}

	// EmptyCmd discards all data.
	EmptyCmd = ishell.Cmd{
		Name: "empty",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			b.Empty()
		}),
	}

	// PutCmd puts text, all or nothing.
	PutCmd = ishell.Cmd{
		Name:    "put",
		Aliases: []string{"p"},
		Help:    "TEXT...",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			printResult(c, b, b.PutString(strings.Join(c.Args, " ")))
		}),
	}

	// PutHexCmd puts bytes given in hex.
	PutHexCmd = ishell.Cmd{
		Name: "puthex",
		Help: "HEX",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			p, err := hex.DecodeString(strings.Join(c.Args, ""))
			if err != nil {
				c.Err(err)
				return
			}
			printResult(c, b, b.PutString(string(p)))
		}),
	}

	// PutEscCmd puts a message in ASCII escaped notation.
	PutEscCmd = ishell.Cmd{
		Name: "putesc",
		Help: "[-f] MESSAGE, e.g. 3F 'hi' s, -f adds ^s ^p",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			args := c.Args
			var flags cirbuf.ASCIIEscFlags
			if len(args) > 0 && args[0] == "-f" {
				flags |= cirbuf.ASCIIEscAddStartStop
				args = args[1:]
			}
			_, err := b.PutASCIIEscString(strings.Join(args, " "), flags)
			printResult(c, b, err)
		}),
	}

	// PutPacketCmd puts a packet.
	PutPacketCmd = ishell.Cmd{
		Name:    "putpkt",
		Aliases: []string{"pp"},
		Help:    "TEXT...",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			printResult(c, b, b.PutPacket([]byte(strings.Join(c.Args, " "))))
		}),
	}

	// GetCmd reads raw bytes.
	GetCmd = ishell.Cmd{
		Name:    "get",
		Aliases: []string{"g"},
		Help:    "[COUNT]",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			n, ok := countArg(c, b.Count())
			if !ok {
				return
			}
			p := make([]byte, n)
			printData(c, p[:b.GetArray(p)])
		}),
	}

	// PeekCmd reads a byte without removing it.
	PeekCmd = ishell.Cmd{
		Name: "peek",
		Help: "[OFFSET]",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			off, ok := countArg(c, 0)
			if !ok {
				return
			}
			v, err := b.PeekByteAt(off)
			if err != nil {
				c.Err(err)
				return
			}
			printData(c, []byte{v})
		}),
	}

	// GetEscCmd reads decoded data up to a control character or delimiter.
	GetEscCmd = ishell.Cmd{
		Name: "getesc",
		Help: "[COUNT]",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			n, ok := countArg(c, b.Count())
			if !ok {
				return
			}
			p := make([]byte, n)
			n, err := b.GetEscapedArray(p)
			if err != nil {
				c.Err(err)
				return
			}
			printData(c, p[:n])
		}),
	}

	// GetSymbolCmd reads one decoded symbol.
	GetSymbolCmd = ishell.Cmd{
		Name: "getsym",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			v, kind, err := b.GetEscapedByte()
			if err != nil {
				c.Err(err)
				return
			}
			var text string
			switch kind {
			case cirbuf.KindControl:
				text = "control ^" + string(v)
			case cirbuf.KindDelimiter:
				text = "delimiter"
			default:
				text = "data " + Quote([]byte{v})
			}
			sh.Print(c, map[string]interface{}{"kind": int(kind), "value": v}, text)
		}),
	}

	// GetFrameCmd reads a delimiter terminated frame.
	GetFrameCmd = ishell.Cmd{
		Name: "getframe",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			p := make([]byte, b.Count())
			n, err := b.GetEscapedFrame(p)
			if err != nil {
				c.Err(err)
				return
			}
			printData(c, p[:n])
		}),
	}

	// GetPacketCmd reads a packet.
	GetPacketCmd = ishell.Cmd{
		Name:    "getpkt",
		Aliases: []string{"gp"},
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			p := make([]byte, b.MaxPacketDataSize())
			n, err := b.GetPacket(p)
			if err != nil {
				c.Err(err)
				return
			}
			printData(c, p[:n])
		}),
	}

	// TaskCmd runs the periodic task now.
	TaskCmd = ishell.Cmd{
		Name: "task",
		Func: sh.MustHaveBuffer(func(c *ishell.Context, b *cirbuf.Buffer) {
			b.Task(time.Now())
			printResult(c, b, nil)
		}),
	}
)

func init() {
	sh.AddCmds(
		&NewCmd, &UseCmd, &ListCmd, &StatusCmd, &ClearCmd, &EmptyCmd,
		&PutCmd, &PutHexCmd, &PutEscCmd, &PutPacketCmd,
		&GetCmd, &PeekCmd, &GetEscCmd, &GetSymbolCmd, &GetFrameCmd, &GetPacketCmd,
		&TaskCmd,
	)
}
