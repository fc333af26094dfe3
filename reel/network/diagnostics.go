package network

import (
	"context"
	"fmt"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// TokenInfo describes who an access token belongs to.
type TokenInfo struct {
	User Identity
	// App is nil when the token cannot read its app.
	App    *Identity
	AppErr error
}

// OwnershipReport is the result of an app ownership check.
type OwnershipReport struct {
	Token           TokenInfo
	ConfiguredAppID string
	// AppIDMatches is false only when both the configured and the token app id are known and differ.
	AppIDMatches bool
	ContainerID  string
	// ContainerAccessible is nil when no container was checked.
	ContainerAccessible *bool
	ContainerErr        error
}

// Consistent reports whether nothing suggests an app ownership problem.
func (r OwnershipReport) Consistent() bool {
	if !r.AppIDMatches {
		return false
	}
	return r.ContainerAccessible == nil || *r.ContainerAccessible
}

type identityReader interface {
	Me(ctx context.Context) (Identity, error)
	App(ctx context.Context) (Identity, error)
	Container(ctx context.Context, containerID string) (Identity, error)
}

// Diagnostics inspects the configured token and its app.
type Diagnostics struct {
	api   identityReader
	appID string
}

// NewDiagnostics ...
func NewDiagnostics(api APIClient) Diagnostics {
	return Diagnostics{
		api:   api,
		appID: api.Credentials().AppID,
	}
}

// TokenInfo fails when the token itself is invalid. A missing app only sets AppErr.
func (d Diagnostics) TokenInfo(ctx context.Context) (TokenInfo, error) {
	user, err := d.api.Me(ctx)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("token validation failed: %w", err)
	}

	info := TokenInfo{User: user}

	app, err := d.api.App(ctx)
	if err != nil {
		info.AppErr = err
		return info, nil
	}
	info.App = &app

	return info, nil
}

// ValidateAppOwnership compares the token's app with the configured app id and, when containerID
// is set, checks that the token can read the container.
func (d Diagnostics) ValidateAppOwnership(ctx context.Context, containerID string) (OwnershipReport, error) {
	info, err := d.TokenInfo(ctx)
	if err != nil {
		return OwnershipReport{}, err
	}

	report := OwnershipReport{
		Token:           info,
		ConfiguredAppID: d.appID,
		AppIDMatches:    true,
		ContainerID:     containerID,
	}
	if d.appID != "" && info.App != nil && info.App.ID != d.appID {
		report.AppIDMatches = false
	}

	if containerID == "" {
		return report, nil
	}

	accessible := true
	if _, err := d.api.Container(ctx, containerID); err != nil {
		accessible = false
		report.ContainerErr = err
	}
	report.ContainerAccessible = &accessible

	return report, nil
}

// OwnershipMismatch reports whether the container check failed because another app created the container.
func (r OwnershipReport) OwnershipMismatch() bool {
	return r.ContainerErr != nil && graph.KindOf(r.ContainerErr) == graph.KindAppOwnershipMismatch
}
