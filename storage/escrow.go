package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/resources"
)

// EscrowManifest indexes the material deposited for one run.
type EscrowManifest struct {
	RunID     string    `json:"run_id"`
	Hostname  string    `json:"hostname"`
	CreatedAt time.Time `json:"created_at"`
	// Credentials maps each deposited file path to its content ID.
	Credentials map[string]string `json:"credentials"`
	// RunningState is the content ID of the snapshot, if it was deposited.
	RunningState string `json:"running_state,omitempty"`
}

// Escrow copies run artifacts to a storage backend.
type Escrow struct {
	backend interfaces.StorageBackend
	files   *resources.Files
	log     *slog.Logger
}

func NewEscrow(backend interfaces.StorageBackend, files *resources.Files, log *slog.Logger) *Escrow {
	return &Escrow{backend: backend, files: files, log: log}
}

// Deposit stores the credential files created by the run and the running
// state snapshot when one exists, then the manifest indexing them. Files that fail to store
// are left out of the manifest and reported in the returned error; the
// manifest ID is returned whenever the manifest itself was stored.
func (e *Escrow) Deposit(ctx context.Context, report *interfaces.RunReport, hostname string) (interfaces.ContentID, error) {
	manifest := EscrowManifest{
		RunID:       report.RunID,
		Hostname:    hostname,
		CreatedAt:   time.Now().UTC(),
		Credentials: map[string]string{},
	}

	var errs []error
	for _, path := range report.CreatedFiles() {
		id, err := e.deposit(ctx, path, interfaces.SecretType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		manifest.Credentials[path] = id.String()
	}

	stateExists, err := e.files.Exists(layout.RunningState)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", layout.RunningState, err))
	} else if stateExists {
		if id, err := e.deposit(ctx, layout.RunningState, interfaces.ConfigType); err != nil {
			errs = append(errs, err)
		} else {
			manifest.RunningState = id.String()
		}
	} else {
		e.log.Debug("No running state to escrow", slog.String("path", layout.RunningState))
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("failed to encode escrow manifest: %w", err)
	}

	manifestID, err := e.backend.Store(ctx, data, interfaces.ConfigType)
	if err != nil {
		errs = append(errs, fmt.Errorf("escrow manifest: %w", err))
		return interfaces.ContentID{}, errors.Join(errs...)
	}

	e.log.Info("Escrow deposited",
		slog.String("manifest", manifestID.String()),
		slog.Int("credentials", len(manifest.Credentials)),
		slog.String("backend", e.backend.LocationURI()))

	return manifestID, errors.Join(errs...)
}

func (e *Escrow) deposit(ctx context.Context, path string, ct interfaces.ContentType) (interfaces.ContentID, error) {
	data, err := e.files.ReadFile(path)
	if err != nil {
		return interfaces.ContentID{}, fmt.Errorf("%s: %w", path, err)
	}
	id, err := e.backend.Store(ctx, data, ct)
	if err != nil {
		e.log.Error("Failed to escrow file", slog.String("path", path), "err", err)
		return interfaces.ContentID{}, fmt.Errorf("%s: %w", path, err)
	}
	return id, nil
}

// FetchManifest retrieves and decodes a manifest by its ID.
func FetchManifest(ctx context.Context, backend interfaces.StorageBackend, id interfaces.ContentID) (*EscrowManifest, error) {
	data, err := backend.Fetch(ctx, id, interfaces.ConfigType)
	if err != nil {
		return nil, err
	}
	var m EscrowManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode escrow manifest: %w", err)
	}
	return &m, nil
}
