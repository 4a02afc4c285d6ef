package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// HostFacts are the attributes of the host a run is executed on.
type HostFacts struct {
	Hostname  string `json:"hostname"`
	FQDN      string `json:"fqdn"`
	IPAddress string `json:"ipaddress"`
}

// Resolver resolves a short host name to its fully qualified name and address.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (fqdn string, ip string, err error)
}

// ErrNotResolved is returned when no candidate name has an address record.
var ErrNotResolved = errors.New("host name not resolved")

// DNSResolver queries the nameservers of a resolv.conf style file, expanding
// the host name with its search list.
type DNSResolver struct {
	ConfigPath string
	// Port overrides the nameserver port from the config file.
	Port    string
	Timeout time.Duration
}

// NewDNSResolver returns a resolver for /etc/resolv.conf.
func NewDNSResolver() *DNSResolver {
	return &DNSResolver{ConfigPath: "/etc/resolv.conf", Timeout: 2 * time.Second}
}

func (r *DNSResolver) Resolve(ctx context.Context, hostname string) (string, string, error) {
	cfg, err := dns.ClientConfigFromFile(r.ConfigPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read resolver config: %w", err)
	}

	port := cfg.Port
	if r.Port != "" {
		port = r.Port
	}

	c := new(dns.Client)
	c.Timeout = r.Timeout

	for _, name := range cfg.NameList(hostname) {
		m := new(dns.Msg)
		m.SetQuestion(name, dns.TypeA)
		m.RecursionDesired = true

		for _, server := range cfg.Servers {
			in, _, err := c.ExchangeContext(ctx, m, net.JoinHostPort(server, port))
			if err != nil || in.Rcode != dns.RcodeSuccess {
				continue
			}
			for _, answer := range in.Answer {
				if a, ok := answer.(*dns.A); ok {
					return strings.TrimSuffix(name, "."), a.A.String(), nil
				}
			}
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotResolved, hostname)
}

// GatherHostFacts collects facts about the running host. A failed resolution
// is not fatal: the bare host name stands in for the FQDN.
func GatherHostFacts(ctx context.Context, resolver Resolver, log *slog.Logger) (HostFacts, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return HostFacts{}, fmt.Errorf("failed to read host name: %w", err)
	}
	return FactsFor(ctx, hostname, resolver, log), nil
}

// FactsFor resolves facts for a given host name.
func FactsFor(ctx context.Context, hostname string, resolver Resolver, log *slog.Logger) HostFacts {
	facts := HostFacts{Hostname: hostname, FQDN: hostname}
	if resolver == nil {
		return facts
	}

	fqdn, ip, err := resolver.Resolve(ctx, hostname)
	if err != nil {
		log.Warn("Could not resolve host name, using it as FQDN",
			slog.String("hostname", hostname),
			"err", err)
		return facts
	}

	facts.FQDN = fqdn
	facts.IPAddress = ip
	return facts
}
