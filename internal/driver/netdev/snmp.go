package netdev

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// system group
const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysUptime   = ".1.3.6.1.2.1.1.3.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"
)

// IF-MIB
const (
	oidIfDescr       = ".1.3.6.1.2.1.2.2.1.2"
	oidIfMtu         = ".1.3.6.1.2.1.2.2.1.4"
	oidIfSpeed       = ".1.3.6.1.2.1.2.2.1.5"
	oidIfPhysAddress = ".1.3.6.1.2.1.2.2.1.6"
	oidIfAdminStatus = ".1.3.6.1.2.1.2.2.1.7"
	oidIfOperStatus  = ".1.3.6.1.2.1.2.2.1.8"
	oidIfLastChange  = ".1.3.6.1.2.1.2.2.1.9"
	oidIfName        = ".1.3.6.1.2.1.31.1.1.1.1"
	oidIfHighSpeed   = ".1.3.6.1.2.1.31.1.1.1.15"
	oidIfAlias       = ".1.3.6.1.2.1.31.1.1.1.18"
)

// IP-MIB ipAddrTable
const (
	oidIPAdEntIfIndex = ".1.3.6.1.2.1.4.20.1.2"
	oidIPAdEntNetMask = ".1.3.6.1.2.1.4.20.1.3"
)

// ENTITY-MIB entPhysicalTable
const (
	oidEntSoftwareRev = ".1.3.6.1.2.1.47.1.1.1.1.10"
	oidEntSerialNum   = ".1.3.6.1.2.1.47.1.1.1.1.11"
	oidEntModelName   = ".1.3.6.1.2.1.47.1.1.1.1.13"
)

// LLDP-MIB
const (
	oidLldpLocPortID   = ".1.0.8802.1.1.2.1.3.7.1.3"
	oidLldpLocPortDesc = ".1.0.8802.1.1.2.1.3.7.1.4"
	oidLldpRemPortID   = ".1.0.8802.1.1.2.1.4.1.1.7"
	oidLldpRemPortDesc = ".1.0.8802.1.1.2.1.4.1.1.8"
	oidLldpRemSysName  = ".1.0.8802.1.1.2.1.4.1.1.9"
)

// BGP4-MIB
const (
	oidBgpLocalAs          = ".1.3.6.1.2.1.15.2.0"
	oidBgpIdentifier       = ".1.3.6.1.2.1.15.4.0"
	oidBgpPeerIdentifier   = ".1.3.6.1.2.1.15.3.1.1"
	oidBgpPeerState        = ".1.3.6.1.2.1.15.3.1.2"
	oidBgpPeerAdminStatus  = ".1.3.6.1.2.1.15.3.1.3"
	oidBgpPeerRemoteAs     = ".1.3.6.1.2.1.15.3.1.9"
	oidBgpPeerEstablishedT = ".1.3.6.1.2.1.15.3.1.16"
)

const (
	ifStatusUp        = 1
	bgpStateEstablish = 6
	bgpAdminStart     = 2
)

var errNoSNMPData = errors.New("no SNMP data returned")

// snmpClient is the part of *gosnmp.GoSNMP the getters use.
type snmpClient interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	BulkWalkAll(rootOid string) ([]gosnmp.SnmpPDU, error)
}

// table is a walked column keyed by OID index suffix.
type table map[string]gosnmp.SnmpPDU

func walk(c snmpClient, root string) (table, error) {
	pdus, err := c.BulkWalkAll(root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	t := make(table, len(pdus))
	for _, pdu := range pdus {
		if pdu.Type == gosnmp.NoSuchObject || pdu.Type == gosnmp.NoSuchInstance || pdu.Type == gosnmp.EndOfMibView {
			continue
		}
		t[strings.TrimPrefix(strings.TrimPrefix(pdu.Name, root), ".")] = pdu
	}
	return t, nil
}

// walkAll walks several columns; a column the agent does not implement
// comes back empty rather than failing the whole getter.
func walkAll(c snmpClient, roots ...string) (map[string]table, error) {
	out := make(map[string]table, len(roots))
	var firstErr error
	for _, root := range roots {
		t, err := walk(c, root)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			t = table{}
		}
		out[root] = t
	}
	empty := true
	for _, t := range out {
		if len(t) > 0 {
			empty = false
			break
		}
	}
	if empty && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func getScalars(c snmpClient, oids ...string) (map[string]gosnmp.SnmpPDU, error) {
	result, err := c.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("snmp get: %w", err)
	}
	if result.Error != gosnmp.NoError {
		return nil, fmt.Errorf("snmp get: %s", result.Error)
	}
	out := make(map[string]gosnmp.SnmpPDU, len(result.Variables))
	for _, v := range result.Variables {
		if v.Type == gosnmp.NoSuchObject || v.Type == gosnmp.NoSuchInstance {
			continue
		}
		out[v.Name] = v
	}
	if len(out) == 0 {
		return nil, errNoSNMPData
	}
	return out, nil
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.OctetString:
		if b, ok := pdu.Value.([]byte); ok {
			return strings.TrimRight(string(b), "\x00")
		}
	case gosnmp.ObjectIdentifier, gosnmp.IPAddress:
		if s, ok := pdu.Value.(string); ok {
			return s
		}
	}
	return ""
}

func pduInt(pdu gosnmp.SnmpPDU) int64 {
	if pdu.Value == nil {
		return 0
	}
	switch pdu.Type {
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.Counter64,
		gosnmp.TimeTicks, gosnmp.Uinteger32:
		return gosnmp.ToBigInt(pdu.Value).Int64()
	}
	return 0
}

func printable(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// portID renders an LLDP port or chassis id: text when printable, MAC form
// for six raw bytes.
func portID(pdu gosnmp.SnmpPDU) string {
	b, ok := pdu.Value.([]byte)
	if !ok {
		return pduString(pdu)
	}
	if s := string(b); printable(s) {
		return s
	}
	if len(b) == 6 {
		return strings.ToUpper(net.HardwareAddr(b).String())
	}
	return fmt.Sprintf("%x", b)
}

func ifIndexNames(cols map[string]table) map[string]string {
	names := map[string]string{}
	for idx, pdu := range cols[oidIfDescr] {
		names[idx] = pduString(pdu)
	}
	for idx, pdu := range cols[oidIfName] {
		if s := pduString(pdu); s != "" {
			names[idx] = s
		}
	}
	return names
}

func sortedKeys(t table) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sortIndexes(keys)
	return keys
}

// sortIndexes orders single-component indexes numerically.
func sortIndexes(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
}

func firstValue(t table) string {
	for _, k := range sortedKeys(t) {
		if s := pduString(t[k]); s != "" {
			return s
		}
	}
	return ""
}

func snmpFacts(c snmpClient) (map[string]any, error) {
	sys, err := getScalars(c, oidSysDescr, oidSysObjectID, oidSysUptime, oidSysName)
	if err != nil {
		return nil, err
	}
	cols, err := walkAll(c, oidIfDescr, oidIfName, oidEntModelName, oidEntSerialNum, oidEntSoftwareRev)
	if err != nil {
		return nil, err
	}

	fqdn := pduString(sys[oidSysName])
	hostname, _, _ := strings.Cut(fqdn, ".")
	descr := pduString(sys[oidSysDescr])

	osVersion := firstValue(cols[oidEntSoftwareRev])
	if osVersion == "" {
		osVersion, _, _ = strings.Cut(descr, "\n")
		osVersion = strings.TrimSpace(osVersion)
	}

	vendor := ""
	if oid := strings.TrimPrefix(pduString(sys[oidSysObjectID]), "."); strings.HasPrefix(oid, "1.3.6.1.4.1.") {
		ent, _, _ := strings.Cut(strings.TrimPrefix(oid, "1.3.6.1.4.1."), ".")
		vendor = vendorByEnterprise[ent]
	}

	names := ifIndexNames(cols)
	indexes := make([]string, 0, len(names))
	for k := range names {
		indexes = append(indexes, k)
	}
	sortIndexes(indexes)
	ifList := make([]any, 0, len(indexes))
	for _, k := range indexes {
		ifList = append(ifList, names[k])
	}

	return map[string]any{
		"hostname":       hostname,
		"fqdn":           fqdn,
		"vendor":         vendor,
		"model":          firstValue(cols[oidEntModelName]),
		"serial_number":  firstValue(cols[oidEntSerialNum]),
		"os_version":     osVersion,
		"uptime":         float64(pduInt(sys[oidSysUptime])) / 100,
		"interface_list": ifList,
	}, nil
}

func snmpInterfaces(c snmpClient) (map[string]any, error) {
	sys, err := getScalars(c, oidSysUptime)
	if err != nil {
		return nil, err
	}
	uptime := pduInt(sys[oidSysUptime])

	cols, err := walkAll(c, oidIfDescr, oidIfName, oidIfAlias, oidIfMtu, oidIfSpeed, oidIfHighSpeed,
		oidIfPhysAddress, oidIfAdminStatus, oidIfOperStatus, oidIfLastChange)
	if err != nil {
		return nil, err
	}

	names := ifIndexNames(cols)
	out := make(map[string]any, len(names))
	for idx, name := range names {
		speed := float64(pduInt(cols[oidIfSpeed][idx])) / 1e6
		if hs, ok := cols[oidIfHighSpeed][idx]; ok && pduInt(hs) > 0 {
			speed = float64(pduInt(hs))
		}

		mac := ""
		if b, ok := cols[oidIfPhysAddress][idx].Value.([]byte); ok && len(b) > 0 {
			mac = strings.ToUpper(net.HardwareAddr(b).String())
		}

		lastFlapped := -1.0
		if lc, ok := cols[oidIfLastChange][idx]; ok {
			if changed := pduInt(lc); changed > 0 && changed <= uptime {
				lastFlapped = float64(uptime-changed) / 100
			}
		}

		out[name] = map[string]any{
			"is_up":        pduInt(cols[oidIfOperStatus][idx]) == ifStatusUp,
			"is_enabled":   pduInt(cols[oidIfAdminStatus][idx]) == ifStatusUp,
			"description":  pduString(cols[oidIfAlias][idx]),
			"last_flapped": lastFlapped,
			"speed":        speed,
			"mtu":          pduInt(cols[oidIfMtu][idx]),
			"mac_address":  mac,
		}
	}
	return out, nil
}

func snmpInterfacesIP(c snmpClient) (map[string]any, error) {
	cols, err := walkAll(c, oidIPAdEntIfIndex, oidIPAdEntNetMask, oidIfDescr, oidIfName)
	if err != nil {
		return nil, err
	}
	names := ifIndexNames(cols)

	out := map[string]any{}
	for addr, pdu := range cols[oidIPAdEntIfIndex] {
		ifIndex := strconv.FormatInt(pduInt(pdu), 10)
		name := names[ifIndex]
		if name == "" {
			name = "ifIndex-" + ifIndex
		}

		prefix := 32
		if ip := net.ParseIP(pduString(cols[oidIPAdEntNetMask][addr])).To4(); ip != nil {
			prefix, _ = net.IPMask(ip).Size()
		}

		iface, _ := out[name].(map[string]any)
		if iface == nil {
			iface = map[string]any{"ipv4": map[string]any{}}
			out[name] = iface
		}
		iface["ipv4"].(map[string]any)[addr] = map[string]any{"prefix_length": prefix}
	}
	return out, nil
}

func snmpLLDPNeighbors(c snmpClient) (map[string]any, error) {
	cols, err := walkAll(c, oidLldpRemSysName, oidLldpRemPortID, oidLldpRemPortDesc, oidLldpLocPortID, oidLldpLocPortDesc)
	if err != nil {
		return nil, err
	}

	localName := func(port string) string {
		if p, ok := cols[oidLldpLocPortID][port]; ok {
			if s := portID(p); s != "" {
				return s
			}
		}
		if s := pduString(cols[oidLldpLocPortDesc][port]); s != "" {
			return s
		}
		return "port-" + port
	}

	out := map[string]any{}
	for _, key := range sortedRemKeys(cols[oidLldpRemPortID], cols[oidLldpRemSysName]) {
		// key is timeMark.localPort.index
		parts := strings.Split(key, ".")
		if len(parts) != 3 {
			continue
		}
		port := ""
		if p, ok := cols[oidLldpRemPortID][key]; ok {
			port = portID(p)
		}
		if port == "" {
			port = pduString(cols[oidLldpRemPortDesc][key])
		}
		local := localName(parts[1])
		list, _ := out[local].([]any)
		out[local] = append(list, map[string]any{
			"hostname": pduString(cols[oidLldpRemSysName][key]),
			"port":     port,
		})
	}
	return out, nil
}

func sortedRemKeys(tables ...table) []string {
	merged := table{}
	for _, t := range tables {
		for k, v := range t {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func snmpBGPNeighbors(c snmpClient) (map[string]any, error) {
	sys, err := getScalars(c, oidBgpLocalAs, oidBgpIdentifier)
	if err != nil {
		return nil, err
	}
	cols, err := walkAll(c, oidBgpPeerIdentifier, oidBgpPeerState, oidBgpPeerAdminStatus,
		oidBgpPeerRemoteAs, oidBgpPeerEstablishedT)
	if err != nil {
		return nil, err
	}

	localAS := pduInt(sys[oidBgpLocalAs])
	peers := map[string]any{}
	for peer, st := range cols[oidBgpPeerState] {
		up := pduInt(st) == bgpStateEstablish
		uptime := int64(-1)
		if up {
			uptime = pduInt(cols[oidBgpPeerEstablishedT][peer])
		}
		peers[peer] = map[string]any{
			"local_as":    localAS,
			"remote_as":   pduInt(cols[oidBgpPeerRemoteAs][peer]),
			"remote_id":   pduString(cols[oidBgpPeerIdentifier][peer]),
			"is_up":       up,
			"is_enabled":  pduInt(cols[oidBgpPeerAdminStatus][peer]) == bgpAdminStart,
			"description": "",
			"uptime":      uptime,
			"address_family": map[string]any{
				"ipv4": map[string]any{
					"received_prefixes": -1,
					"accepted_prefixes": -1,
					"sent_prefixes":     -1,
				},
			},
		}
	}

	return map[string]any{
		"global": map[string]any{
			"router_id": pduString(sys[oidBgpIdentifier]),
			"peers":     peers,
		},
	}, nil
}
