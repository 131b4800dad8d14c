package domain

import (
	"errors"
	"fmt"
)

// FetchStatus records how a single connector call ended.
type FetchStatus string

const (
	FetchOK          FetchStatus = "ok"
	FetchTimeout     FetchStatus = "timeout"
	FetchError       FetchStatus = "error"
	FetchUnavailable FetchStatus = "unavailable"
)

// SourceFetchResult is the outcome of one (connector, resource) call.
// Never mutated after creation; failures are captured here rather than
// propagated, so one broken source cannot abort an aggregation.
type SourceFetchResult struct {
	SourceID    string
	Domain      Domain
	ResourceID  string
	Series      []SourceSeries
	Attrs       map[string]string
	Status      FetchStatus
	ErrorDetail string
}

// Attribute keys connectors may report alongside their series. Attributes
// carry point-in-time facts that have no time axis.
const (
	AttrRuntime         = "runtime"
	AttrMemoryMB        = "memory_mb"
	AttrLastError       = "last_error"
	AttrBillingMode     = "billing_mode"
	AttrSizeBytes       = "size_bytes"
	AttrItemCount       = "item_count"
	AttrProvisionedRCU  = "provisioned_rcu"
	AttrProvisionedWCU  = "provisioned_wcu"
	AttrAutoscaleMaxRCU = "autoscale_max_rcu"
	AttrAutoscaleMaxWCU = "autoscale_max_wcu"
	AttrCurrency        = "currency"
)

// OK reports whether the call produced usable series.
func (r SourceFetchResult) OK() bool {
	return r.Status == FetchOK
}

// ConnectorErrorKind classifies connector failures.
type ConnectorErrorKind string

const (
	// ConnectorTimeout means the call exceeded its deadline or was cancelled.
	ConnectorTimeout ConnectorErrorKind = "timeout"
	// ConnectorUpstream means the upstream system rejected or failed the call.
	ConnectorUpstream ConnectorErrorKind = "upstream"
	// ConnectorNotConfigured means the source lacks credentials or
	// configuration for the requested resource. Detectable without an
	// upstream call.
	ConnectorNotConfigured ConnectorErrorKind = "not_configured"
)

// ConnectorError is the typed failure connectors return from Fetch.
type ConnectorError struct {
	Kind   ConnectorErrorKind
	Source string
	Err    error
}

func (e *ConnectorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// NotConfiguredError builds a ConnectorError for a source missing its
// configuration.
func NotConfiguredError(source, detail string) *ConnectorError {
	return &ConnectorError{Kind: ConnectorNotConfigured, Source: source, Err: errors.New(detail)}
}

// TimeoutError builds a ConnectorError for an expired or cancelled call.
func TimeoutError(source string, err error) *ConnectorError {
	return &ConnectorError{Kind: ConnectorTimeout, Source: source, Err: err}
}

// UpstreamError builds a ConnectorError for an upstream failure.
func UpstreamError(source string, err error) *ConnectorError {
	return &ConnectorError{Kind: ConnectorUpstream, Source: source, Err: err}
}

// StatusForError maps a connector failure to the fetch status recorded in
// its SourceFetchResult.
func StatusForError(err error) FetchStatus {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case ConnectorTimeout:
			return FetchTimeout
		case ConnectorNotConfigured:
			return FetchUnavailable
		}
	}
	return FetchError
}
