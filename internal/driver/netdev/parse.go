package netdev

import (
	"bufio"
	"math"
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	reSuccessRate = regexp.MustCompile(`Success rate is (\d+) percent \((\d+)/(\d+)\)`)
	reTransmitted = regexp.MustCompile(`(\d+) packets transmitted, (\d+) (?:packets )?received`)
	reRTT         = regexp.MustCompile(`(?:round-trip|rtt) min/avg/max(?:/(?:mdev|stddev))?\s*=\s*([\d.]+)/([\d.]+)/([\d.]+)(?:/([\d.]+))?`)
	reReply       = regexp.MustCompile(`bytes from ([0-9A-Fa-f.:]+?):?\s.*time[=<]\s*([\d.]+)`)
	reHop         = regexp.MustCompile(`^\s*(\d+)\s+(.*)$`)
)

// ParsePing converts vendor ping output into the result shape callers
// expect: {"success": {...}} or {"error": message}.
func ParsePing(output string) map[string]any {
	var sent, received int
	found := false

	if m := reSuccessRate.FindStringSubmatch(output); m != nil {
		received, _ = strconv.Atoi(m[2])
		sent, _ = strconv.Atoi(m[3])
		found = true
	} else if m := reTransmitted.FindStringSubmatch(output); m != nil {
		sent, _ = strconv.Atoi(m[1])
		received, _ = strconv.Atoi(m[2])
		found = true
	}
	if !found {
		return map[string]any{"error": firstLine(output, "unable to parse ping output")}
	}

	var rttMin, rttAvg, rttMax, rttStddev float64
	if m := reRTT.FindStringSubmatch(output); m != nil {
		rttMin, _ = strconv.ParseFloat(m[1], 64)
		rttAvg, _ = strconv.ParseFloat(m[2], 64)
		rttMax, _ = strconv.ParseFloat(m[3], 64)
		if m[4] != "" {
			rttStddev, _ = strconv.ParseFloat(m[4], 64)
		}
	}

	results := []any{}
	for _, m := range reReply.FindAllStringSubmatch(output, -1) {
		rtt, _ := strconv.ParseFloat(m[2], 64)
		results = append(results, map[string]any{"ip_address": m[1], "rtt": rtt})
	}

	return map[string]any{
		"success": map[string]any{
			"probes_sent": sent,
			"packet_loss": sent - received,
			"rtt_min":     rttMin,
			"rtt_max":     rttMax,
			"rtt_avg":     rttAvg,
			"rtt_stddev":  rttStddev,
			"results":     results,
		},
	}
}

// ParseTraceroute converts vendor traceroute output into hop-indexed
// probes. Lines that do not start with a hop number are ignored.
func ParseTraceroute(output string) map[string]any {
	hops := map[int]any{}

	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		m := reHop.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		hop, err := strconv.Atoi(m[1])
		if err != nil || hop == 0 {
			continue
		}
		hops[hop] = map[string]any{"probes": parseProbes(m[2])}
	}

	if len(hops) == 0 {
		return map[string]any{"error": firstLine(output, "unable to parse traceroute output")}
	}
	return map[string]any{"success": hops}
}

func parseProbes(line string) map[int]any {
	probes := map[int]any{}
	fields := strings.Fields(line)
	var addr, name string
	n := 0

	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case f == "*":
			n++
			probes[n] = map[string]any{"rtt": 0.0, "ip_address": "*", "host_name": "*"}
		case isRTT(f, fields, i):
			rtt, _ := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSuffix(f, "ms"), "msec"), 64)
			n++
			probes[n] = map[string]any{"rtt": rtt, "ip_address": addr, "host_name": hostOr(name, addr)}
			if i+1 < len(fields) && (fields[i+1] == "ms" || fields[i+1] == "msec") {
				i++
			}
		case strings.HasPrefix(f, "(") && strings.HasSuffix(f, ")"):
			inner := strings.Trim(f, "()")
			if net.ParseIP(inner) != nil {
				name, addr = addr, inner
			}
		case net.ParseIP(f) != nil:
			addr, name = f, ""
		case f == "ms" || f == "msec":
		default:
			if !strings.HasPrefix(f, "[") && !strings.HasSuffix(f, "]") && !strings.HasPrefix(f, "!") {
				addr, name = f, ""
			}
		}
	}
	return probes
}

func isRTT(f string, fields []string, i int) bool {
	if strings.HasSuffix(f, "ms") && len(f) > 2 {
		_, err := strconv.ParseFloat(strings.TrimSuffix(f, "ms"), 64)
		return err == nil
	}
	if i+1 >= len(fields) || (fields[i+1] != "ms" && fields[i+1] != "msec") {
		return false
	}
	v, err := strconv.ParseFloat(f, 64)
	return err == nil && !math.IsNaN(v)
}

func hostOr(name, addr string) string {
	if name != "" {
		return name
	}
	return addr
}

func firstLine(s, fallback string) string {
	for _, line := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(line); t != "" {
			return t
		}
	}
	return fallback
}
