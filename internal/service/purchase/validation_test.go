package purchase

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtuapp/vtu-backend/internal/domain"
)

func plan(network domain.Network, active, gatewayStatus bool) *domain.DataPlan {
	return &domain.DataPlan{
		Network:       network,
		Price:         50_000,
		GatewayPlanID: "mtn-1gb",
		GatewayStatus: gatewayStatus,
		IsActive:      active,
	}
}

func TestValidatePlan(t *testing.T) {
	tests := []struct {
		name    string
		plan    *domain.DataPlan
		network domain.Network
		wantErr error
	}{
		{
			name:    "active plan on matching network",
			plan:    plan(domain.NetworkMTN, true, true),
			network: domain.NetworkMTN,
		},
		{
			name:    "inactive plan",
			plan:    plan(domain.NetworkMTN, false, true),
			network: domain.NetworkMTN,
			wantErr: domain.ErrPlanUnavailable,
		},
		{
			name:    "gateway dispatch disabled",
			plan:    plan(domain.NetworkMTN, true, false),
			network: domain.NetworkMTN,
			wantErr: domain.ErrPlanUnavailable,
		},
		{
			name:    "network mismatch",
			plan:    plan(domain.NetworkGlo, true, true),
			network: domain.NetworkMTN,
			wantErr: domain.ErrNetworkMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePlan(tt.plan, tt.network)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewReference(t *testing.T) {
	a := NewReference()
	b := NewReference()

	require.NotEqual(t, a, b)
	require.Contains(t, a, "DATA-")
}
