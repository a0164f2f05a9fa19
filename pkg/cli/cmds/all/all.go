// Package all registers all shell commands.
package all

import (
	// command providers register in init
	_ "github.com/robotalks/cirbuf/pkg/cli/cmds/buffer"
	_ "github.com/robotalks/cirbuf/pkg/cli/cmds/dht"
	_ "github.com/robotalks/cirbuf/pkg/cli/cmds/hid"
)
