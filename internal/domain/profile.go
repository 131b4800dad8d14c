package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Domain is one category of metrics.
type Domain string

const (
	DomainCompute      Domain = "compute"
	DomainTraffic      Domain = "traffic"
	DomainStorage      Domain = "storage"
	DomainCost         Domain = "cost"
	DomainDistribution Domain = "distribution"
)

// AllDomains returns every metric domain in presentation order.
func AllDomains() []Domain {
	return []Domain{DomainCompute, DomainTraffic, DomainStorage, DomainCost, DomainDistribution}
}

// ParseDomain validates a domain name from user input.
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllDomains() {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown metric domain %q", s)
}

// ComputeResources names the serverless functions queried for an application.
type ComputeResources struct {
	Functions []string `yaml:"functions" json:"functions"`
}

// TrafficResources names the API gateways queried for an application.
type TrafficResources struct {
	Gateways []string `yaml:"gateways" json:"gateways"`
}

// StorageResources names the key-value tables queried for an application.
type StorageResources struct {
	Tables []string `yaml:"tables" json:"tables"`
}

// CostResources selects billing records via a cost allocation tag.
type CostResources struct {
	TagKey   string `yaml:"tag_key" json:"tag_key"`
	TagValue string `yaml:"tag_value" json:"tag_value"`
}

// DistributionResources names the storefront listing for an application.
type DistributionResources struct {
	StoreID string `yaml:"store_id" json:"store_id"`
}

// ApplicationProfile is the static per-application configuration naming the
// resources each domain must query. Loaded once at startup; read-only
// afterward.
type ApplicationProfile struct {
	ID           string                `yaml:"id" json:"id"`
	Name         string                `yaml:"name" json:"name"`
	Compute      ComputeResources      `yaml:"compute" json:"compute"`
	Traffic      TrafficResources      `yaml:"traffic" json:"traffic"`
	Storage      StorageResources      `yaml:"storage" json:"storage"`
	Cost         CostResources         `yaml:"cost" json:"cost"`
	Distribution DistributionResources `yaml:"distribution" json:"distribution"`
}

// ResourceIDs returns the identifiers configured for a domain. Cost uses a
// single synthetic "tag:key=value" resource since billing is queried per
// filter, not per resource.
func (p ApplicationProfile) ResourceIDs(d Domain) []string {
	switch d {
	case DomainCompute:
		return p.Compute.Functions
	case DomainTraffic:
		return p.Traffic.Gateways
	case DomainStorage:
		return p.Storage.Tables
	case DomainCost:
		if p.Cost.TagKey == "" {
			return nil
		}
		return []string{fmt.Sprintf("tag:%s=%s", p.Cost.TagKey, p.Cost.TagValue)}
	case DomainDistribution:
		if p.Distribution.StoreID == "" {
			return nil
		}
		return []string{p.Distribution.StoreID}
	}
	return nil
}

// Configured reports whether the profile names any resource for the domain.
func (p ApplicationProfile) Configured(d Domain) bool {
	return len(p.ResourceIDs(d)) > 0
}

// Domains returns the domains the profile configures, in presentation order.
func (p ApplicationProfile) Domains() []Domain {
	var out []Domain
	for _, d := range AllDomains() {
		if p.Configured(d) {
			out = append(out, d)
		}
	}
	return out
}

// Validate checks the profile is usable.
func (p ApplicationProfile) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("application profile missing id")
	}
	if len(p.Domains()) == 0 {
		return fmt.Errorf("application %q configures no metric domain", p.ID)
	}
	for _, fn := range p.Compute.Functions {
		if strings.TrimSpace(fn) == "" {
			return fmt.Errorf("application %q has an empty function name", p.ID)
		}
	}
	for _, gw := range p.Traffic.Gateways {
		if strings.TrimSpace(gw) == "" {
			return fmt.Errorf("application %q has an empty gateway name", p.ID)
		}
	}
	for _, tbl := range p.Storage.Tables {
		if strings.TrimSpace(tbl) == "" {
			return fmt.Errorf("application %q has an empty table name", p.ID)
		}
	}
	if p.Cost.TagKey != "" && p.Cost.TagValue == "" {
		return fmt.Errorf("application %q sets cost.tag_key without cost.tag_value", p.ID)
	}
	return nil
}

// Registry holds the application profiles, keyed by application id.
// There is no built-in default: the registry always comes from
// configuration and is validated at startup.
type Registry struct {
	profiles map[string]ApplicationProfile
}

// NewRegistry validates the given profiles and indexes them by id.
func NewRegistry(profiles []ApplicationProfile) (*Registry, error) {
	if len(profiles) == 0 {
		return nil, fmt.Errorf("no application profiles configured")
	}
	idx := make(map[string]ApplicationProfile, len(profiles))
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, exists := idx[p.ID]; exists {
			return nil, fmt.Errorf("duplicate application profile %q", p.ID)
		}
		idx[p.ID] = p
	}
	return &Registry{profiles: idx}, nil
}

// Get returns the profile for id, or ErrUnknownApplication.
func (r *Registry) Get(id string) (ApplicationProfile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return ApplicationProfile{}, fmt.Errorf("%w: %q", ErrUnknownApplication, id)
	}
	return p, nil
}

// IDs returns all registered application ids in lexical order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
