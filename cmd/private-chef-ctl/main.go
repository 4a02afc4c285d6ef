package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/private-chef-provisioner/bootstrap"
	"github.com/ruteri/private-chef-provisioner/cmd/flags"
	"github.com/ruteri/private-chef-provisioner/httpserver"
	"github.com/ruteri/private-chef-provisioner/instanceutils"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/packaging"
	"github.com/ruteri/private-chef-provisioner/reconfigure"
	"github.com/ruteri/private-chef-provisioner/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "private-chef-ctl",
		Usage: "Provision and inspect a private Chef server host",
		Flags: flags.CommonFlags,
		Commands: []*cli.Command{
			{
				Name:   "reconfigure",
				Usage:  "Bring the host in line with its configuration",
				Flags:  flags.RunFlags,
				Action: runReconfigure,
			},
			{
				Name:   "bootstrap-credentials",
				Usage:  "Create missing credential pairs",
				Flags:  flags.RunFlags,
				Action: runBootstrapCredentials,
			},
			{
				Name:   "show-config",
				Usage:  "Print the merged configuration",
				Flags:  []cli.Flag{flags.HostnameFlag, flags.ResolvConfFlag},
				Action: showConfig,
			},
			{
				Name:      "show-escrow",
				Usage:     "Print an escrow manifest",
				ArgsUsage: "<manifest-id>",
				Flags:     []cli.Flag{flags.EscrowFlag},
				Action:    showEscrow,
			},
			{
				Name:   "serve-status",
				Usage:  "Serve health probes and credential status",
				Flags:  flags.ServerFlags,
				Action: serveStatus,
			},
			{
				Name:  "vendor",
				Usage: "Vendor a component into the installation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "manifest",
						Usage: "YAML manifest; the built-in partybus manifest when empty",
					},
					&cli.StringFlag{
						Name:  "source-root",
						Value: ".",
						Usage: "directory containing the source tree of the built-in manifest",
					},
				},
				Action: runVendor,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newReconfigurer(ctx context.Context, cCtx *cli.Context) (*reconfigure.Reconfigurer, error) {
	logger := flags.SetupLogger(cCtx)
	files := flags.NewFiles(cCtx, logger)

	facts, err := flags.GatherFacts(ctx, cCtx, logger)
	if err != nil {
		return nil, err
	}

	var opts []reconfigure.Option
	if name := cCtx.String(flags.PolicyFlag.Name); name != "" {
		policy, err := bootstrap.ParsePolicy(name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, reconfigure.WithPolicy(policy))
	}
	if bits := cCtx.Int(flags.KeyBitsFlag.Name); bits != 0 {
		opts = append(opts, reconfigure.WithKeyBits(bits))
	}

	backend, err := flags.EscrowBackend(cCtx, logger)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		opts = append(opts, reconfigure.WithEscrow(storage.NewEscrow(backend, files, logger)))
	}

	return reconfigure.New(files, instanceutils.NewExecRunner(logger), facts, logger, opts...), nil
}

func runReconfigure(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := newReconfigurer(ctx, cCtx)
	if err != nil {
		return err
	}
	report, err := r.Run(ctx)
	if report != nil {
		printJSON(report)
	}
	return err
}

func runBootstrapCredentials(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := newReconfigurer(ctx, cCtx)
	if err != nil {
		return err
	}
	report, err := r.RunPhases(ctx, reconfigure.CredentialPhases...)
	if report != nil {
		printJSON(report.Credentials)
	}
	return err
}

func showConfig(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	facts, err := flags.GatherFacts(cCtx.Context, cCtx, logger)
	if err != nil {
		return err
	}

	r := reconfigure.New(flags.NewFiles(cCtx, logger), instanceutils.NewExecRunner(logger), facts, logger)
	cfg, _, err := r.LoadConfig()
	if err != nil {
		return err
	}
	return printJSON(cfg.RunningState())
}

func showEscrow(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	if cCtx.NArg() != 1 {
		return fmt.Errorf("expected exactly one manifest id")
	}
	id, err := interfaces.NewContentIDFromHex(cCtx.Args().First())
	if err != nil {
		return err
	}

	backend, err := flags.EscrowBackend(cCtx, logger)
	if err != nil {
		return err
	}
	if backend == nil {
		return fmt.Errorf("--%s is required", flags.EscrowFlag.Name)
	}

	manifest, err := storage.FetchManifest(cCtx.Context, backend, id)
	if err != nil {
		return err
	}
	return printJSON(manifest)
}

func serveStatus(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	files := flags.NewFiles(cCtx, logger)

	// only the file layout is needed here, so the default user name is fine
	handler := httpserver.NewHandler(files, bootstrap.DefaultPairs("opscode", 0), logger)
	server := httpserver.New(flags.ConfigureServer(cCtx, logger), handler)
	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	logger.Info("Status server is running, press Ctrl+C to stop")
	<-exit
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}

func runVendor(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	var (
		manifest *packaging.Manifest
		err      error
	)
	if path := cCtx.String("manifest"); path != "" {
		manifest, err = packaging.LoadManifest(path)
	} else {
		manifest, err = packaging.PartybusManifest(cCtx.String("source-root"))
	}
	if err != nil {
		return err
	}

	return packaging.Build(cCtx.Context, manifest, instanceutils.NewExecRunner(logger), logger)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
