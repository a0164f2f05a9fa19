package channel

import (
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

const appID = "cirbuf"

// DeviceID retrieves the ID identifying this machine, derived from the
// machine ID so that the raw ID is not exposed on the network. The host
// name is used when the machine ID is unavailable.
func DeviceID() string {
	id, err := machineid.ProtectedID(appID)
	if err == nil {
		return id[:16]
	}
	glog.Warningf("machine id unavailable: %v", err)
	if host, e := os.Hostname(); e == nil && host != "" {
		return host
	}
	return "unknown"
}
