package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/private-chef-provisioner/cryptoutils"
	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/ruteri/private-chef-provisioner/resources"
)

// Policy selects how a partially present pair is treated.
type Policy string

const (
	// PolicyCoupled gates both halves of a pair on its marker alone. A missing
	// partner half next to a present marker is left missing.
	PolicyCoupled Policy = "coupled"

	// PolicySelfHealing regenerates both halves of a pair when either is
	// missing. Pairs marked by their private half behave as under
	// PolicyCoupled.
	PolicySelfHealing Policy = "self-healing"
)

// ParsePolicy validates a policy name. The empty string selects PolicyCoupled.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", PolicyCoupled:
		return PolicyCoupled, nil
	case PolicySelfHealing:
		return PolicySelfHealing, nil
	default:
		return "", fmt.Errorf("unknown credential policy %q", name)
	}
}

// ErrWriteFailed wraps every failure to persist credential material.
var ErrWriteFailed = errors.New("credential write failed")

// Sequencer generates the credential pairs of a host exactly once. Existing
// material is never regenerated or rotated; re-running is always safe.
type Sequencer struct {
	files  *resources.Files
	pairs  []Pair
	policy Policy
	log    *slog.Logger
}

// NewSequencer creates a sequencer over pairs.
func NewSequencer(files *resources.Files, pairs []Pair, policy Policy, log *slog.Logger) *Sequencer {
	if policy == "" {
		policy = PolicyCoupled
	}
	return &Sequencer{
		files:  files,
		pairs:  pairs,
		policy: policy,
		log:    log,
	}
}

// Run walks the pairs in order and returns one result per file. The first
// failure aborts the sequence; results gathered so far are returned with it.
func (s *Sequencer) Run(ctx context.Context) ([]interfaces.FileResult, error) {
	results := make([]interfaces.FileResult, 0, 2*len(s.pairs))

	for _, pair := range s.pairs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		var (
			pairResults []interfaces.FileResult
			err         error
		)
		switch s.policy {
		case PolicySelfHealing:
			pairResults, err = s.runSelfHealing(pair)
		default:
			pairResults, err = s.runCoupled(pair)
		}
		results = append(results, pairResults...)
		if err != nil {
			s.log.Error("Credential bootstrap failed", slog.String("pair", pair.Name), "err", err)
			return results, fmt.Errorf("%w: %s: %w", ErrWriteFailed, pair.Name, err)
		}
	}

	return results, nil
}

// runCoupled decides the whole pair on the marker. The partner half is written
// before the marker so that an interrupted run leaves the marker absent and
// the pair is generated again on the next run.
func (s *Sequencer) runCoupled(pair Pair) ([]interfaces.FileResult, error) {
	marker, partner := pair.markerHalf()
	material := newLazyPair(pair.Generator)

	var results []interfaces.FileResult
	for _, half := range []interfaces.FileSpec{partner, marker} {
		res, err := s.files.WriteIfAbsent(pair.Marker, half, func() ([]byte, error) {
			return material.half(half.Path == pair.Public.Path)
		})
		results = append(results, fileResult(half.Path, res, err))
		if err != nil {
			return results, err
		}
	}

	if material.generated {
		s.logCreated(pair, material.private)
		return results, nil
	}

	partnerExists, err := s.files.Exists(partner.Path)
	if err != nil {
		return results, err
	}
	if !partnerExists {
		s.log.Warn("Credential half missing but marker present, not regenerating",
			slog.String("pair", pair.Name),
			slog.String("missing", partner.Path),
			slog.String("marker", pair.Marker))
	} else {
		s.log.Debug("Credentials already present", slog.String("pair", pair.Name))
	}
	return results, nil
}

// runSelfHealing regenerates a pair whose partner half went missing. A pair
// marked by its private half is still decided by the marker alone: a new
// certificate for an existing key would not be the one clients trust.
func (s *Sequencer) runSelfHealing(pair Pair) ([]interfaces.FileResult, error) {
	marker, partner := pair.markerHalf()
	if marker.Path == pair.Private.Path {
		return s.runCoupled(pair)
	}

	markerExists, err := s.files.Exists(marker.Path)
	if err != nil {
		return []interfaces.FileResult{fileResult(marker.Path, interfaces.Failed, err)}, err
	}
	partnerExists, err := s.files.Exists(partner.Path)
	if err != nil {
		return []interfaces.FileResult{fileResult(partner.Path, interfaces.Failed, err)}, err
	}

	if markerExists && partnerExists {
		var results []interfaces.FileResult
		for _, half := range []interfaces.FileSpec{partner, marker} {
			err := s.files.Enforce(half)
			results = append(results, fileResult(half.Path, skippedOrFailed(err), err))
			if err != nil {
				return results, err
			}
		}
		s.log.Debug("Credentials already present", slog.String("pair", pair.Name))
		return results, nil
	}

	if markerExists {
		s.log.Warn("Credential half missing, generating a new pair",
			slog.String("pair", pair.Name),
			slog.String("missing", partner.Path))
	}

	material := newLazyPair(pair.Generator)
	var results []interfaces.FileResult
	for _, half := range []interfaces.FileSpec{partner, marker} {
		data, err := material.half(half.Path == pair.Public.Path)
		if err != nil {
			err = fmt.Errorf("failed to generate %s credentials: %w", pair.Name, err)
			return append(results, fileResult(half.Path, interfaces.Failed, err)), err
		}
		res, err := s.files.Write(half, data)
		results = append(results, fileResult(half.Path, res, err))
		if err != nil {
			return results, err
		}
	}
	s.logCreated(pair, material.private)
	return results, nil
}

func (s *Sequencer) logCreated(pair Pair, private []byte) {
	attrs := []any{slog.String("pair", pair.Name)}
	if fp, err := cryptoutils.PrivateKeyFingerprint(private); err == nil {
		attrs = append(attrs, slog.String("fingerprint", fp))
	}
	s.log.Info("Generated credentials", attrs...)
}

func fileResult(path string, res interfaces.WriteResult, err error) interfaces.FileResult {
	r := interfaces.FileResult{Path: path, Result: res}
	if err != nil {
		r.Result = interfaces.Failed
		r.Error = err.Error()
	}
	return r
}

func skippedOrFailed(err error) interfaces.WriteResult {
	if err != nil {
		return interfaces.Failed
	}
	return interfaces.Skipped
}

// lazyPair generates material on first use and hands out both halves from
// that single generation.
type lazyPair struct {
	gen       Generator
	generated bool
	public    []byte
	private   []byte
}

func newLazyPair(gen Generator) *lazyPair {
	return &lazyPair{gen: gen}
}

func (l *lazyPair) half(public bool) ([]byte, error) {
	if !l.generated {
		pub, priv, err := l.gen.Generate()
		if err != nil {
			return nil, err
		}
		l.public, l.private, l.generated = pub, priv, true
	}
	if public {
		return l.public, nil
	}
	return l.private, nil
}
