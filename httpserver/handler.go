package httpserver

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/ruteri/private-chef-provisioner/bootstrap"
	"github.com/ruteri/private-chef-provisioner/cryptoutils"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/layout"
	"github.com/ruteri/private-chef-provisioner/resources"
)

// FileStatus describes one credential file.
type FileStatus struct {
	Path        string `json:"path"`
	Present     bool   `json:"present"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PairStatus describes one credential pair.
type PairStatus struct {
	Name          string     `json:"name"`
	MarkerPresent bool       `json:"marker_present"`
	Public        FileStatus `json:"public"`
	Private       FileStatus `json:"private"`
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Pairs        []PairStatus `json:"pairs"`
	RunningState bool         `json:"running_state"`
	Bootstrapped bool         `json:"bootstrapped"`
}

// Handler answers status queries from the files of a host.
type Handler struct {
	files *resources.Files
	pairs []bootstrap.Pair
	log   *slog.Logger
}

func NewHandler(files *resources.Files, pairs []bootstrap.Pair, log *slog.Logger) *Handler {
	return &Handler{files: files, pairs: pairs, log: log}
}

// RunningStatePresent reports whether a run has completed on the host.
func (h *Handler) RunningStatePresent() bool {
	ok, err := h.files.Exists(layout.RunningState)
	return err == nil && ok
}

// Status collects the current state of the credential files.
func (h *Handler) Status() StatusResponse {
	resp := StatusResponse{RunningState: h.RunningStatePresent()}
	resp.Bootstrapped, _ = h.files.Exists(layout.BootstrappedMarker)

	for _, pair := range h.pairs {
		ps := PairStatus{
			Name:    pair.Name,
			Public:  h.publicStatus(pair.Public),
			Private: h.presence(pair.Private),
		}
		ps.MarkerPresent, _ = h.files.Exists(pair.Marker)
		resp.Pairs = append(resp.Pairs, ps)
	}
	return resp
}

func (h *Handler) presence(spec interfaces.FileSpec) FileStatus {
	st := FileStatus{Path: spec.Path}
	present, err := h.files.Exists(spec.Path)
	if err != nil {
		st.Error = err.Error()
	}
	st.Present = present
	return st
}

func (h *Handler) publicStatus(spec interfaces.FileSpec) FileStatus {
	st := FileStatus{Path: spec.Path}
	data, err := h.files.ReadFile(spec.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return st
	}
	if err != nil {
		st.Error = err.Error()
		return st
	}
	st.Present = true

	var fp string
	if cert, certErr := cryptoutils.NewTLSCert(data); certErr == nil {
		fp, err = cryptoutils.CertificateFingerprint(cert)
	} else {
		var pub cryptoutils.PublicKeyPEM
		pub, err = cryptoutils.NewPublicKeyPEM(data)
		if err == nil {
			fp, err = cryptoutils.Fingerprint(pub)
		}
	}
	if err != nil {
		h.log.Warn("Could not fingerprint credential", slog.String("path", spec.Path), "err", err)
		st.Error = err.Error()
		return st
	}
	st.Fingerprint = fp
	return st
}

// HandleStatus serves /api/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Status()); err != nil {
		h.log.Error("Failed to encode status response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleRunning serves the running-state snapshot as written by the last run.
func (h *Handler) HandleRunning(w http.ResponseWriter, r *http.Request) {
	data, err := h.files.ReadFile(layout.RunningState)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "No running state recorded", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to read running state", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
