// Package retention implements the export-then-purge lifecycle for audit
// records: batches of events are shipped to an external immutable store, and
// only acknowledged events older than their policy horizon are purged.
package retention

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/radpacs/radpacs/internal/platform/compliance"
)

// MinComplianceRetentionDays is the regulatory floor for PHI-bearing audit
// records (7 years). Policies below it are rejected at configuration time.
const MinComplianceRetentionDays = 2555

// Policy defines how long records of a class are retained before purge
// eligibility.
type Policy struct {
	RecordClass   compliance.RecordClass `json:"record_class"`
	RetentionDays int                    `json:"retention_days"`
	Description   string                 `json:"description"`
}

// DefaultPolicies returns the HIPAA-aligned policy set.
func DefaultPolicies(complianceDays, operationalDays int) []Policy {
	return []Policy{
		{
			RecordClass:   compliance.ClassCompliance,
			RetentionDays: complianceDays,
			Description:   "PHI-bearing audit records: 7-year minimum per HIPAA retention requirements",
		},
		{
			RecordClass:   compliance.ClassOperational,
			RetentionDays: operationalDays,
			Description:   "Operational serviceability records without compliance significance",
		},
	}
}

// Service resolves retention policies and purge horizons.
type Service struct {
	mu       sync.RWMutex
	policies map[compliance.RecordClass]Policy
	log      zerolog.Logger
}

func NewService(policies []Policy, log zerolog.Logger) *Service {
	m := make(map[compliance.RecordClass]Policy, len(policies))
	for _, p := range policies {
		m[p.RecordClass] = p
	}
	return &Service{
		policies: m,
		log:      log.With().Str("component", "retention-service").Logger(),
	}
}

// GetPolicy returns the policy for a record class, or nil if none configured.
func (s *Service) GetPolicy(class compliance.RecordClass) *Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[class]
	if !ok {
		return nil
	}
	return &p
}

// AllPolicies returns every configured policy.
func (s *Service) AllPolicies() []Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	return out
}

// Horizon returns the purge cutoff for a record class relative to now.
// Records with timestamps before the cutoff are purge-eligible once
// exported. A class without a policy gets a zero cutoff, meaning nothing is
// ever purged.
func (s *Service) Horizon(class compliance.RecordClass, now time.Time) time.Time {
	p := s.GetPolicy(class)
	if p == nil {
		return time.Time{}
	}
	return now.AddDate(0, 0, -p.RetentionDays)
}
