// Package hid provides shell commands talking to a simulated HID
// bootloader device.
package hid

import (
	"context"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cli/sh"
	"github.com/robotalks/cirbuf/pkg/hidboot"
)

const (
	loopbackKey = "hid.loopback"
	timeout     = time.Second
)

func loopback(c *ishell.Context) *hidboot.Loopback {
	return sh.ShellFrom(c).Value(loopbackKey, func() interface{} {
		return hidboot.NewLoopback(hidboot.DeviceInfo{BoardID: hidboot.BoardSBC66ZLMain, BoardRev: 1})
	}).(*hidboot.Loopback)
}

var (
	// InfoCmd requests device info.
	InfoCmd = ishell.Cmd{
		Name: "hid.info",
		Func: func(c *ishell.Context) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			info, err := loopback(c).Client.DeviceInfo(ctx)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, info, info.String())
		},
	}

	// CommandCmd sends a text command; the simulated device answers with
	// the queued reply, see hid.reply.
	CommandCmd = ishell.Cmd{
		Name: "hid.cmd",
		Help: "COMMAND",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(errors.New("COMMAND required"))
				return
			}
			lb := loopback(c)
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			data, err := lb.Client.Command(ctx, strings.Join(c.Args, " "))
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, map[string]string{"reply": string(data)}, string(data))
		},
	}

	// ReplyCmd queues a reply on the simulated device.
	ReplyCmd = ishell.Cmd{
		Name: "hid.reply",
		Help: "TEXT",
		Func: func(c *ishell.Context) {
			lb := loopback(c)
			if err := lb.Device.Reply(hidboot.CmdCommand, []byte(strings.Join(c.Args, " "))); err != nil {
				c.Err(err)
			}
		},
	}

	// DebugCmd prints debug messages from the device and puts one.
	DebugCmd = ishell.Cmd{
		Name: "hid.debug",
		Help: "[DEVICE_OUTPUT]",
		Func: func(c *ishell.Context) {
			lb := loopback(c)
			if len(c.Args) > 0 {
				if err := lb.Device.DebugTx.PutString(strings.Join(c.Args, " ")); err != nil {
					c.Err(err)
					return
				}
			}
			if err := lb.Transfer(); err != nil {
				c.Err(err)
				return
			}
			for {
				select {
				case ev := <-lb.Client.Events():
					sh.Print(c, ev, string(ev.Data))
				default:
					return
				}
			}
		},
	}

	// ResetCmd resets the device.
	ResetCmd = ishell.Cmd{
		Name: "hid.reset",
		Func: func(c *ishell.Context) {
			if err := loopback(c).Client.Reset(); err != nil {
				c.Err(err)
			}
		},
	}
)

func init() {
	sh.AddCmds(&InfoCmd, &CommandCmd, &ReplyCmd, &DebugCmd, &ResetCmd)
}
