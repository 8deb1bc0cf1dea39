package netdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePing_IOS(t *testing.T) {
	out := `Type escape sequence to abort.
Sending 5, 100-byte ICMP Echos to 10.0.0.2, timeout is 2 seconds:
!!!!!
Success rate is 100 percent (5/5), round-trip min/avg/max = 1/2/4 ms`

	res := ParsePing(out)
	s, ok := res["success"].(map[string]any)
	require.True(t, ok, "got %v", res)
	assert.Equal(t, 5, s["probes_sent"])
	assert.Equal(t, 0, s["packet_loss"])
	assert.Equal(t, 1.0, s["rtt_min"])
	assert.Equal(t, 2.0, s["rtt_avg"])
	assert.Equal(t, 4.0, s["rtt_max"])
}

func TestParsePing_Junos(t *testing.T) {
	out := `PING 10.0.0.2 (10.0.0.2): 56 data bytes
64 bytes from 10.0.0.2: icmp_seq=0 ttl=64 time=1.201 ms
64 bytes from 10.0.0.2: icmp_seq=1 ttl=64 time=0.998 ms

--- 10.0.0.2 ping statistics ---
5 packets transmitted, 4 packets received, 20% packet loss
round-trip min/avg/max/stddev = 0.998/1.100/1.201/0.101 ms`

	s := ParsePing(out)["success"].(map[string]any)
	assert.Equal(t, 5, s["probes_sent"])
	assert.Equal(t, 1, s["packet_loss"])
	assert.Equal(t, 0.101, s["rtt_stddev"])

	results := s["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, map[string]any{"ip_address": "10.0.0.2", "rtt": 1.201}, results[0])
}

func TestParsePing_Linux(t *testing.T) {
	out := `5 packets transmitted, 5 received, 0% packet loss, time 4005ms
rtt min/avg/max/mdev = 0.041/0.052/0.071/0.010 ms`

	s := ParsePing(out)["success"].(map[string]any)
	assert.Equal(t, 5, s["probes_sent"])
	assert.Equal(t, 0.071, s["rtt_max"])
}

func TestParsePing_Unparseable(t *testing.T) {
	res := ParsePing("\n% Unrecognized host or address\n")
	assert.Equal(t, map[string]any{"error": "% Unrecognized host or address"}, res)
}

func TestParseTraceroute_Linux(t *testing.T) {
	out := `traceroute to 8.8.8.8 (8.8.8.8), 30 hops max, 60 byte packets
 1  gw.lab (10.0.0.1)  0.512 ms  0.400 ms  0.390 ms
 2  * * *
 3  8.8.8.8  10.1 ms  9.9 ms  10.0 ms`

	hops, ok := ParseTraceroute(out)["success"].(map[int]any)
	require.True(t, ok)
	require.Len(t, hops, 3)

	p1 := hops[1].(map[string]any)["probes"].(map[int]any)
	require.Len(t, p1, 3)
	assert.Equal(t, map[string]any{"rtt": 0.512, "ip_address": "10.0.0.1", "host_name": "gw.lab"}, p1[1])

	p2 := hops[2].(map[string]any)["probes"].(map[int]any)
	assert.Equal(t, "*", p2[3].(map[string]any)["ip_address"])

	p3 := hops[3].(map[string]any)["probes"].(map[int]any)
	assert.Equal(t, map[string]any{"rtt": 10.0, "ip_address": "8.8.8.8", "host_name": "8.8.8.8"}, p3[3])
}

func TestParseTraceroute_IOS(t *testing.T) {
	out := `Type escape sequence to abort.
Tracing the route to 10.9.9.9
VRF info: (vrf in name/id, vrf out name/id)
  1 10.1.1.2 [AS 65001] 4 msec 0 msec 4 msec
  2 10.9.9.9 8 msec *  4 msec`

	hops := ParseTraceroute(out)["success"].(map[int]any)
	require.Len(t, hops, 2)

	p1 := hops[1].(map[string]any)["probes"].(map[int]any)
	require.Len(t, p1, 3)
	assert.Equal(t, "10.1.1.2", p1[2].(map[string]any)["ip_address"])
	assert.Equal(t, 4.0, p1[3].(map[string]any)["rtt"])

	p2 := hops[2].(map[string]any)["probes"].(map[int]any)
	require.Len(t, p2, 3)
	assert.Equal(t, "*", p2[2].(map[string]any)["ip_address"])
}

func TestParseTraceroute_Unparseable(t *testing.T) {
	res := ParseTraceroute("% Invalid input detected")
	assert.Contains(t, res, "error")
}
