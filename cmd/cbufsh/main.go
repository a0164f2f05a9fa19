package main

import (
	"flag"
	"strconv"

	"github.com/golang/glog"

	"github.com/robotalks/cirbuf/pkg/cli/cmds/buffer"
	"github.com/robotalks/cirbuf/pkg/cli/sh"

	_ "github.com/robotalks/cirbuf/pkg/cli/cmds/all"
)

var (
	size   = 64
	typ    = "stream"
	format = "ascii-esc"
)

func init() {
	flag.IntVar(&size, "size", size, "Size of the initial buffer")
	flag.StringVar(&typ, "type", typ, "Type of the initial buffer")
	flag.StringVar(&format, "format", format, "Format of the initial buffer")
}

func main() {
	flag.Parse()
	s := sh.New()
	b, err := buffer.NewBuffer([]string{"buf", strconv.Itoa(size), typ, format})
	if err != nil {
		glog.Exit(err)
	}
	s.AddBuffer(b)
	s.Run(flag.Args()...)
}
