package agent_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/alanyang/agent-queue/internal/domain/agent"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		available bool
		inSession bool
		want      Partition
	}{
		{name: "available idle is queued", available: true, inSession: false, want: PartitionQueued},
		{name: "unavailable idle is paused", available: false, inSession: false, want: PartitionPaused},
		{name: "in session is busy", available: false, inSession: true, want: PartitionBusy},
		{name: "in session wins over available", available: true, inSession: true, want: PartitionBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Agent{Available: tt.available, InSession: tt.inSession}
			assert.Equal(t, tt.want, a.Partition())
			assert.Equal(t, tt.want == PartitionQueued, a.IsQueued())
			assert.Equal(t, tt.want == PartitionBusy, a.IsBusy())
		})
	}
}

func TestFieldsValidate(t *testing.T) {
	tests := []struct {
		name    string
		fields  Fields
		create  bool
		wantErr string
	}{
		{name: "create with name", fields: Fields{Name: strPtr("Ana"), ContactNumber: strPtr("Ramal 101")}, create: true},
		{name: "create without name", fields: Fields{ContactNumber: strPtr("Ramal 101")}, create: true, wantErr: "invalid nome: is required"},
		{name: "edit without name", fields: Fields{Available: boolPtr(false)}, create: false},
		{name: "blank name", fields: Fields{Name: strPtr("   ")}, create: false, wantErr: "invalid nome: must not be empty"},
		{name: "long name", fields: Fields{Name: strPtr(strings.Repeat("a", 121))}, create: true, wantErr: "invalid nome: is too long"},
		{name: "long contact", fields: Fields{Name: strPtr("Ana"), ContactNumber: strPtr(strings.Repeat("9", 41))}, create: true, wantErr: "invalid numero: is too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fields.Validate(tt.create)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestFieldsApply_TrimsAndSkipsNil(t *testing.T) {
	a := Agent{Name: "Ana", ContactNumber: "Ramal 101", Available: true}
	Fields{Name: strPtr("  Ana Silva "), Available: boolPtr(false)}.Apply(&a)

	assert.Equal(t, "Ana Silva", a.Name)
	assert.Equal(t, "Ramal 101", a.ContactNumber)
	assert.True(t, a.Available, "Apply must not move partitions")
}

func TestSessionStartValidate(t *testing.T) {
	require.NoError(t, SessionStart{ClientName: "Roberto"}.Validate())

	err := SessionStart{ClientName: " "}.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("update agent 3: %w", ErrNotFound)))
	assert.True(t, IsUnavailable(fmt.Errorf("fetch agents: %w", ErrStoreUnavailable)))
	assert.False(t, IsNotFound(ErrStoreUnavailable))
}
