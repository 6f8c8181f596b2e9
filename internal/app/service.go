package app

import (
	"strings"
	"time"

	"github.com/evanschultz/tally/internal/domain"
)

// defaultActorName attributes writes when no caller identity is available.
const defaultActorName = "tally-user"

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	DefaultKind  domain.CountKind
	DefaultActor string
	ReasonPrefix string
	Logger       Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service implements count sessions, item tracking, and variance reconciliation.
type Service struct {
	repo         Repository
	idGen        IDGenerator
	clock        Clock
	log          Logger
	defaultKind  domain.CountKind
	defaultActor string
	reasonPrefix string
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	kind := domain.NormalizeCountKind(cfg.DefaultKind)
	if kind == "" {
		kind = domain.CountKindFull
	}
	actor := strings.TrimSpace(cfg.DefaultActor)
	if actor == "" {
		actor = defaultActorName
	}
	return &Service{
		repo:         repo,
		idGen:        idGen,
		clock:        clock,
		log:          cfg.Logger,
		defaultKind:  kind,
		defaultActor: actor,
		reasonPrefix: strings.TrimSpace(cfg.ReasonPrefix),
	}
}

// uniqueNonEmptyIDs trims and de-duplicates IDs while preserving order.
func uniqueNonEmptyIDs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
