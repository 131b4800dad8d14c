package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoProfile() ApplicationProfile {
	return ApplicationProfile{
		ID:   "demo",
		Name: "Demo App",
		Compute: ComputeResources{
			Functions: []string{"demo-api", "demo-worker", "demo-cron"},
		},
		Traffic: TrafficResources{Gateways: []string{"demo-gateway"}},
		Storage: StorageResources{Tables: []string{"demo-users"}},
		Cost:    CostResources{TagKey: "Project", TagValue: "demo"},
		Distribution: DistributionResources{
			StoreID: "1234567890",
		},
	}
}

func TestApplicationProfile_Domains(t *testing.T) {
	p := demoProfile()
	assert.Equal(t, []Domain{DomainCompute, DomainTraffic, DomainStorage, DomainCost, DomainDistribution}, p.Domains())

	partial := ApplicationProfile{
		ID:      "api-only",
		Compute: ComputeResources{Functions: []string{"fn"}},
	}
	assert.Equal(t, []Domain{DomainCompute}, partial.Domains())
	assert.False(t, partial.Configured(DomainCost))
}

func TestApplicationProfile_CostResourceID(t *testing.T) {
	p := demoProfile()
	ids := p.ResourceIDs(DomainCost)
	require.Len(t, ids, 1)
	assert.Equal(t, "tag:Project=demo", ids[0])

	p.Cost = CostResources{}
	assert.Empty(t, p.ResourceIDs(DomainCost))
}

func TestApplicationProfile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ApplicationProfile)
		wantErr string
	}{
		{"valid", func(p *ApplicationProfile) {}, ""},
		{"missing id", func(p *ApplicationProfile) { p.ID = " " }, "missing id"},
		{"no domains", func(p *ApplicationProfile) {
			*p = ApplicationProfile{ID: "empty"}
		}, "no metric domain"},
		{"blank function", func(p *ApplicationProfile) {
			p.Compute.Functions = []string{"ok", ""}
		}, "empty function name"},
		{"tag key without value", func(p *ApplicationProfile) {
			p.Cost = CostResources{TagKey: "Project"}
		}, "tag_value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := demoProfile()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err, "empty registry must be rejected")

	_, err = NewRegistry([]ApplicationProfile{demoProfile(), demoProfile()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	reg, err := NewRegistry([]ApplicationProfile{demoProfile()})
	require.NoError(t, err)

	p, err := reg.Get("demo")
	require.NoError(t, err)
	assert.Equal(t, "Demo App", p.Name)

	_, err = reg.Get("nope")
	assert.True(t, errors.Is(err, ErrUnknownApplication))

	assert.Equal(t, []string{"demo"}, reg.IDs())
}

func TestParseDomain(t *testing.T) {
	d, err := ParseDomain(" Compute ")
	require.NoError(t, err)
	assert.Equal(t, DomainCompute, d)

	_, err = ParseDomain("billing")
	assert.Error(t, err)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, FetchTimeout, StatusForError(TimeoutError("cw", nil)))
	assert.Equal(t, FetchUnavailable, StatusForError(NotConfiguredError("store", "no token")))
	assert.Equal(t, FetchError, StatusForError(UpstreamError("ce", errors.New("boom"))))
	assert.Equal(t, FetchError, StatusForError(errors.New("plain")))
}
