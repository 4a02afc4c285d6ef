package flags

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/private-chef-provisioner/common"
	"github.com/ruteri/private-chef-provisioner/config"
	"github.com/ruteri/private-chef-provisioner/httpserver"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/resources"
	"github.com/ruteri/private-chef-provisioner/storage"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

// NewFiles returns the file manager for the configured root.
func NewFiles(cCtx *cli.Context, logger *slog.Logger) *resources.Files {
	return resources.NewFiles(cCtx.String(RootDirFlag.Name), logger)
}

// GatherFacts resolves the facts of the host, honouring the hostname and
// resolver flags.
func GatherFacts(ctx context.Context, cCtx *cli.Context, logger *slog.Logger) (config.HostFacts, error) {
	resolver := config.NewDNSResolver()
	if path := cCtx.String(ResolvConfFlag.Name); path != "" {
		resolver.ConfigPath = path
	}

	if hostname := cCtx.String(HostnameFlag.Name); hostname != "" {
		return config.FactsFor(ctx, hostname, resolver, logger), nil
	}
	return config.GatherHostFacts(ctx, resolver, logger)
}

// EscrowBackend builds the backend for the escrow locations, or nil when none
// are configured.
func EscrowBackend(cCtx *cli.Context, logger *slog.Logger) (interfaces.StorageBackend, error) {
	uris := cCtx.StringSlice(EscrowFlag.Name)
	if len(uris) == 0 {
		return nil, nil
	}
	locations, err := storage.ParseLocations(uris)
	if err != nil {
		return nil, err
	}
	return storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
}

var RootDirFlag = &cli.StringFlag{
	Name:    "root",
	Value:   "/",
	EnvVars: []string{"PRIVATE_CHEF_ROOT"},
	Usage:   "filesystem root the installation layout is resolved under",
}

var PolicyFlag = &cli.StringFlag{
	Name:    "credential-policy",
	EnvVars: []string{"PRIVATE_CHEF_CREDENTIAL_POLICY"},
	Usage:   "'coupled' or 'self-healing'; overrides credentials.policy from the configuration",
}

var KeyBitsFlag = &cli.IntFlag{
	Name:  "key-bits",
	Usage: "RSA key size for new credentials; overrides credentials.key_bits from the configuration",
}

var EscrowFlag = &cli.StringSliceFlag{
	Name:    "escrow",
	EnvVars: []string{"PRIVATE_CHEF_ESCROW"},
	Usage:   "storage location to escrow new credentials to (file://, s3://, vault://), may be repeated",
}

var HostnameFlag = &cli.StringFlag{
	Name:  "hostname",
	Usage: "host name to resolve instead of the system host name",
}

var ResolvConfFlag = &cli.StringFlag{
	Name:  "resolv-conf",
	Value: "/etc/resolv.conf",
	Usage: "resolver configuration used to find the FQDN",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:9683",
	EnvVars: []string{"PRIVATE_CHEF_STATUS_ADDR"},
	Usage:   "address to listen on for the status API",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "private-chef-ctl",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to stay not-ready before shutting down",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	RootDirFlag,
}

// RunFlags are shared by the commands that change the host.
var RunFlags = []cli.Flag{
	PolicyFlag,
	KeyBitsFlag,
	EscrowFlag,
	HostnameFlag,
	ResolvConfFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
}
