package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGrantRequest_Validate(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	tests := []struct {
		name    string
		req     CreateGrantRequest
		wantErr string
	}{
		{
			name: "valid request",
			req: CreateGrantRequest{
				PrincipalID: "user-1",
				ResourceID:  "res-1",
				RoleKey:     "editor",
			},
		},
		{
			name: "valid windowed request",
			req: CreateGrantRequest{
				PrincipalID:   "user-1",
				ResourceID:    "res-1",
				RoleKey:       "editor",
				EffectiveFrom: &from,
				EffectiveTo:   &to,
			},
		},
		{
			name: "empty principal id",
			req: CreateGrantRequest{
				ResourceID: "res-1",
				RoleKey:    "editor",
			},
			wantErr: "principal id is required",
		},
		{
			name: "empty resource id",
			req: CreateGrantRequest{
				PrincipalID: "user-1",
				RoleKey:     "editor",
			},
			wantErr: "resource id is required",
		},
		{
			name: "empty role key",
			req: CreateGrantRequest{
				PrincipalID: "user-1",
				ResourceID:  "res-1",
			},
			wantErr: "role key is required",
		},
		{
			name: "window ends before it starts",
			req: CreateGrantRequest{
				PrincipalID:   "user-1",
				ResourceID:    "res-1",
				RoleKey:       "editor",
				EffectiveFrom: &to,
				EffectiveTo:   &from,
			},
			wantErr: "effectiveTo must be after effectiveFrom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var validationErr *ValidationError
				assert.ErrorAs(t, err, &validationErr)
			}
		})
	}
}

func TestGrant_ActiveAt(t *testing.T) {
	at := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	before := at.Add(-time.Hour)
	after := at.Add(time.Hour)

	tests := []struct {
		name  string
		grant Grant
		want  bool
	}{
		{name: "open window", grant: Grant{}, want: true},
		{name: "from in the past", grant: Grant{EffectiveFrom: &before}, want: true},
		{name: "from in the future", grant: Grant{EffectiveFrom: &after}, want: false},
		{name: "from exactly now", grant: Grant{EffectiveFrom: &at}, want: true},
		{name: "to in the future", grant: Grant{EffectiveTo: &after}, want: true},
		{name: "to in the past", grant: Grant{EffectiveTo: &before}, want: false},
		{name: "to exactly now is already expired", grant: Grant{EffectiveTo: &at}, want: false},
		{name: "inside window", grant: Grant{EffectiveFrom: &before, EffectiveTo: &after}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.grant.ActiveAt(at))
		})
	}
}
