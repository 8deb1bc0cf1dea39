package netdev

import "sort"

// Profile holds the vendor CLI syntax a driver kind uses for diagnostics.
type Profile struct {
	Vendor     string
	Ping       string
	Traceroute string
}

var profiles = map[string]Profile{
	"ios":      {Vendor: "Cisco", Ping: "ping %s", Traceroute: "traceroute %s numeric"},
	"iosxr":    {Vendor: "Cisco", Ping: "ping %s", Traceroute: "traceroute %s numeric"},
	"nxos":     {Vendor: "Cisco", Ping: "ping %s count 5", Traceroute: "traceroute %s"},
	"nxos_ssh": {Vendor: "Cisco", Ping: "ping %s count 5", Traceroute: "traceroute %s"},
	"eos":      {Vendor: "Arista", Ping: "ping %s repeat 5", Traceroute: "traceroute %s"},
	"junos":    {Vendor: "Juniper", Ping: "ping %s count 5 rapid", Traceroute: "traceroute %s no-resolve"},
}

// Kinds returns the driver kinds served by this package.
func Kinds() []string {
	out := make([]string, 0, len(profiles))
	for k := range profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ProfileFor returns the profile for kind.
func ProfileFor(kind string) (Profile, bool) {
	p, ok := profiles[kind]
	return p, ok
}

// enterprise numbers from sysObjectID (.1.3.6.1.4.1.<n>)
var vendorByEnterprise = map[string]string{
	"9":     "Cisco",
	"2636":  "Juniper",
	"30065": "Arista",
}
