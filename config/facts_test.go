package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestDNS(t *testing.T, records map[string]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		if ip, ok := records[req.Question[0].Name]; ok {
			rr, err := dns.NewRR(req.Question[0].Name + " 60 IN A " + ip)
			if err == nil {
				m.Answer = append(m.Answer, rr)
			}
		} else {
			m.Rcode = dns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = server.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = server.Shutdown() })

	_, port, err := net.SplitHostPort(pc.LocalAddr().String())
	require.NoError(t, err)
	return port
}

func TestDNSResolver_SearchList(t *testing.T) {
	port := startTestDNS(t, map[string]string{"chef.example.com.": "10.0.0.5"})

	resolvConf := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(resolvConf, []byte("nameserver 127.0.0.1\nsearch example.com\n"), 0644))

	r := &DNSResolver{ConfigPath: resolvConf, Port: port, Timeout: time.Second}
	fqdn, ip, err := r.Resolve(context.Background(), "chef")
	require.NoError(t, err)
	assert.Equal(t, "chef.example.com", fqdn)
	assert.Equal(t, "10.0.0.5", ip)

	_, _, err = r.Resolve(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrNotResolved)
}

type staticResolver struct {
	fqdn, ip string
	err      error
}

func (s staticResolver) Resolve(context.Context, string) (string, string, error) {
	return s.fqdn, s.ip, s.err
}

func TestFactsFor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	facts := FactsFor(context.Background(), "chef", staticResolver{fqdn: "chef.example.com", ip: "10.1.1.1"}, logger)
	assert.Equal(t, HostFacts{Hostname: "chef", FQDN: "chef.example.com", IPAddress: "10.1.1.1"}, facts)

	facts = FactsFor(context.Background(), "chef", staticResolver{err: errors.New("no dns")}, logger)
	assert.Equal(t, HostFacts{Hostname: "chef", FQDN: "chef"}, facts)

	facts = FactsFor(context.Background(), "chef", nil, logger)
	assert.Equal(t, "chef", facts.FQDN)
}
