// Package netdev drives routers and switches over SSH for CLI work and SNMP
// for structured getters.
package netdev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"netmcp/internal/domain"

	"github.com/gosnmp/gosnmp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Settings are the driver defaults taken from configuration. Inventory
// optional_args override them per device.
type Settings struct {
	SSHPort        int
	KnownHostsFile string
	ConnectTimeout time.Duration

	SNMPPort      int
	SNMPCommunity string
	SNMPVersion   string
	SNMPTimeout   time.Duration
	SNMPRetries   int

	Logger *slog.Logger
}

func (s Settings) withDefaults() Settings {
	if s.SSHPort == 0 {
		s.SSHPort = 22
	}
	if s.ConnectTimeout == 0 {
		s.ConnectTimeout = 10 * time.Second
	}
	if s.SNMPPort == 0 {
		s.SNMPPort = 161
	}
	if s.SNMPCommunity == "" {
		s.SNMPCommunity = "public"
	}
	if s.SNMPVersion == "" {
		s.SNMPVersion = "2c"
	}
	if s.SNMPTimeout == 0 {
		s.SNMPTimeout = 5 * time.Second
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	return s
}

var insecureOnce sync.Once

// Device is one SSH/SNMP managed network device.
type Device struct {
	kind     string
	profile  Profile
	hostname string
	creds    domain.Credentials
	opts     map[string]string
	settings Settings

	mu   sync.Mutex
	ssh  *ssh.Client
	snmp *gosnmp.GoSNMP

	// newSNMP is replaced in tests.
	newSNMP func() (snmpClient, error)
}

var _ domain.Device = (*Device)(nil)

// New returns a constructor for kind. It has the driver.Constructor shape.
func New(kind string, settings Settings) func(string, domain.Credentials, map[string]string) (domain.Device, error) {
	settings = settings.withDefaults()
	return func(hostname string, creds domain.Credentials, opts map[string]string) (domain.Device, error) {
		p, ok := ProfileFor(kind)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDriver, kind)
		}
		d := &Device{
			kind:     kind,
			profile:  p,
			hostname: hostname,
			creds:    creds,
			opts:     opts,
			settings: settings,
		}
		d.newSNMP = d.dialSNMP
		return d, nil
	}
}

func (d *Device) host() string {
	if h := d.opts["host"]; h != "" {
		return h
	}
	return d.hostname
}

func (d *Device) optInt(key string, def int) int {
	if v, err := strconv.Atoi(d.opts[key]); err == nil && v > 0 {
		return v
	}
	return def
}

func (d *Device) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if d.settings.KnownHostsFile != "" {
		cb, err := knownhosts.New(d.settings.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		return cb, nil
	}
	insecureOnce.Do(func() {
		d.settings.Logger.Warn("SSH host keys are not verified; set drivers.ssh.knownHostsFile")
	})
	return ssh.InsecureIgnoreHostKey(), nil
}

// Open dials SSH and authenticates. SNMP is set up lazily by the getters.
func (d *Device) Open(ctx context.Context) error {
	hkcb, err := d.hostKeyCallback()
	if err != nil {
		return err
	}

	password := d.creds.Password
	cfg := &ssh.ClientConfig{
		User: d.creds.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hkcb,
		Timeout:         d.settings.ConnectTimeout,
	}

	addr := net.JoinHostPort(d.host(), strconv.Itoa(d.optInt("port", d.settings.SSHPort)))
	dialer := net.Dialer{Timeout: d.settings.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	// the handshake does not take a context
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(d.settings.ConnectTimeout))
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	stop()
	if err != nil {
		_ = conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	d.mu.Lock()
	d.ssh = ssh.NewClient(c, chans, reqs)
	d.mu.Unlock()
	return nil
}

// Close tears down SSH and SNMP. It is safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.ssh != nil {
		if err := d.ssh.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		d.ssh = nil
	}
	if d.snmp != nil && d.snmp.Conn != nil {
		if err := d.snmp.Conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		d.snmp = nil
	}
	return errors.Join(errs...)
}

func (d *Device) sshClient() (*ssh.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ssh == nil {
		return nil, errors.New("session is not open")
	}
	return d.ssh, nil
}

// run executes one command in its own exec channel. A non-zero exit status
// is not an error: devices report failures in the output text.
func (d *Device) run(ctx context.Context, command string) (string, error) {
	client, err := d.sshClient()
	if err != nil {
		return "", err
	}
	sess, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open channel: %w", err)
	}
	defer sess.Close()

	stop := context.AfterFunc(ctx, func() { _ = sess.Close() })
	defer stop()

	out, err := sess.CombinedOutput(command)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	var exitErr *ssh.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", fmt.Errorf("run %q: %w", command, err)
	}
	return string(out), nil
}

func (d *Device) CLI(ctx context.Context, commands []string) (map[string]string, error) {
	out := make(map[string]string, len(commands))
	for _, cmd := range commands {
		text, err := d.run(ctx, cmd)
		if err != nil {
			return nil, err
		}
		out[cmd] = text
	}
	return out, nil
}

func validDestination(dest string) error {
	if dest == "" || strings.ContainsAny(dest, " \t\r\n;|&`$<>") {
		return fmt.Errorf("%w: destination %q", domain.ErrInvalidArgument, dest)
	}
	return nil
}

func (d *Device) Ping(ctx context.Context, destination string) (map[string]any, error) {
	if err := validDestination(destination); err != nil {
		return nil, err
	}
	out, err := d.run(ctx, fmt.Sprintf(d.profile.Ping, destination))
	if err != nil {
		return nil, err
	}
	return ParsePing(out), nil
}

func (d *Device) Traceroute(ctx context.Context, destination string) (map[string]any, error) {
	if err := validDestination(destination); err != nil {
		return nil, err
	}
	out, err := d.run(ctx, fmt.Sprintf(d.profile.Traceroute, destination))
	if err != nil {
		return nil, err
	}
	return ParseTraceroute(out), nil
}

func (d *Device) dialSNMP() (snmpClient, error) {
	d.mu.Lock()
	existing := d.snmp
	d.mu.Unlock()
	if existing != nil {
		return existing, nil
	}

	client := &gosnmp.GoSNMP{
		Target:             d.host(),
		Port:               uint16(d.optInt("snmp_port", d.settings.SNMPPort)),
		Timeout:            d.settings.SNMPTimeout,
		Retries:            d.settings.SNMPRetries,
		MaxOids:            gosnmp.MaxOids,
		MaxRepetitions:     10,
		ExponentialTimeout: true,
	}

	version := d.opts["snmp_version"]
	if version == "" {
		version = d.settings.SNMPVersion
	}
	switch version {
	case "2c", "2":
		client.Version = gosnmp.Version2c
		client.Community = d.opts["snmp_community"]
		if client.Community == "" {
			client.Community = d.settings.SNMPCommunity
		}
	case "3":
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel
		client.MsgFlags = gosnmp.AuthPriv
		client.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 d.creds.Username,
			AuthenticationProtocol:   gosnmp.SHA,
			AuthenticationPassphrase: d.creds.Password,
			PrivacyProtocol:          gosnmp.AES,
			PrivacyPassphrase:        d.creds.Password,
		}
	default:
		return nil, fmt.Errorf("%w: snmp_version %q", domain.ErrInvalidArgument, version)
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", client.Target, err)
	}

	d.mu.Lock()
	d.snmp = client
	d.mu.Unlock()
	return client, nil
}

func (d *Device) snmpGetter(ctx context.Context, get func(snmpClient) (map[string]any, error)) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := d.newSNMP()
	if err != nil {
		return nil, err
	}
	if g, ok := c.(*gosnmp.GoSNMP); ok {
		g.Context = ctx
	}
	return get(c)
}

func (d *Device) Facts(ctx context.Context) (map[string]any, error) {
	facts, err := d.snmpGetter(ctx, snmpFacts)
	if err != nil {
		return nil, err
	}
	if facts["vendor"] == "" {
		facts["vendor"] = d.profile.Vendor
	}
	return facts, nil
}

func (d *Device) Interfaces(ctx context.Context) (map[string]any, error) {
	return d.snmpGetter(ctx, snmpInterfaces)
}

func (d *Device) InterfacesIP(ctx context.Context) (map[string]any, error) {
	return d.snmpGetter(ctx, snmpInterfacesIP)
}

func (d *Device) BGPNeighbors(ctx context.Context) (map[string]any, error) {
	return d.snmpGetter(ctx, snmpBGPNeighbors)
}

func (d *Device) LLDPNeighbors(ctx context.Context) (map[string]any, error) {
	return d.snmpGetter(ctx, snmpLLDPNeighbors)
}
