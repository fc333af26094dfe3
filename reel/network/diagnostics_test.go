package network

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiagnosticsServer(t *testing.T, appID string, containerStatus int) Diagnostics {
	client := newTestAPIClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v25.0/me":
			_, _ = w.Write([]byte(`{"id":"17841","name":"reel account"}`))
		case "/v25.0/app":
			_, _ = w.Write([]byte(`{"id":"` + appID + `","name":"reel app","namespace":"reelapp"}`))
		case "/v25.0/c1":
			w.WriteHeader(containerStatus)
			if containerStatus != http.StatusOK {
				_, _ = w.Write([]byte(`{"error":{"message":"App ID mismatch: container belongs to another app","code":100}}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"c1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return NewDiagnostics(client)
}

func TestDiagnostics_TokenInfo(t *testing.T) {
	diagnostics := newDiagnosticsServer(t, "app-1", http.StatusOK)

	info, err := diagnostics.TokenInfo(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "17841", Name: "reel account"}, info.User)
	require.NotNil(t, info.App)
	assert.Equal(t, "app-1", info.App.ID)
	assert.Equal(t, "reelapp", info.App.Namespace)
}

func TestDiagnostics_ValidateAppOwnership(t *testing.T) {
	tests := []struct {
		name            string
		tokenAppID      string
		containerID     string
		containerStatus int
		wantConsistent  bool
		wantMismatch    bool
	}{
		{
			name:            "consistent",
			tokenAppID:      "app-1",
			containerID:     "c1",
			containerStatus: http.StatusOK,
			wantConsistent:  true,
		},
		{
			name:            "token of another app",
			tokenAppID:      "app-2",
			containerStatus: http.StatusOK,
		},
		{
			name:            "container of another app",
			tokenAppID:      "app-1",
			containerID:     "c1",
			containerStatus: http.StatusBadRequest,
			wantMismatch:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diagnostics := newDiagnosticsServer(t, tt.tokenAppID, tt.containerStatus)

			report, err := diagnostics.ValidateAppOwnership(context.Background(), tt.containerID)

			require.NoError(t, err)
			assert.Equal(t, tt.wantConsistent, report.Consistent())
			assert.Equal(t, tt.wantMismatch, report.OwnershipMismatch())
		})
	}
}
