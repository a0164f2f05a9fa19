// Package sh provides the interactive shell of cbufsh.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"sort"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/robotalks/cirbuf/pkg/cirbuf"
)

// Shell provides ishell backed interactive shell over a set of local
// buffers.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Buffers map[string]*cirbuf.Buffer
	Current *cirbuf.Buffer

	values map[string]interface{}
}

const (
	shellKey   = "$shell"
	nonePrompt = "[none] > "
)

// ErrNoBuffer is reported by commands requiring a current buffer.
var ErrNoBuffer = errors.New("no buffer selected, use new")

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands []*ishell.Cmd
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:   ishell.New(),
		Buffers: make(map[string]*cirbuf.Buffer),
		values:  make(map[string]interface{}),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(nonePrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Value returns a value stored by a command provider, creating it with
// create when absent.
func (s *Shell) Value(key string, create func() interface{}) interface{} {
	v, ok := s.values[key]
	if !ok {
		v = create()
		s.values[key] = v
	}
	return v
}

// AddBuffer registers b under its name and selects it.
func (s *Shell) AddBuffer(b *cirbuf.Buffer) {
	s.Buffers[b.Name()] = b
	s.Use(b)
}

// Use selects b as the current buffer.
func (s *Shell) Use(b *cirbuf.Buffer) {
	s.Current = b
	s.Shell.SetPrompt(fmt.Sprintf("[%s %s/%s] > ", b.Name(), b.Type(), b.Format()))
}

// BufferNames returns the sorted names of all buffers.
func (s *Shell) BufferNames() []string {
	names := make([]string, 0, len(s.Buffers))
	for name := range s.Buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MustHaveBuffer wraps command func requires a current buffer.
func MustHaveBuffer(fn func(c *ishell.Context, b *cirbuf.Buffer)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		b := ShellFrom(c).Current
		if b == nil {
			c.Err(ErrNoBuffer)
			return
		}
		fn(c, b)
	}
}

// Print prints v as JSON in JSON mode, otherwise text.
func Print(c *ishell.Context, v interface{}, text string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exit("command expected")
}
