package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateTicketCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{name: "typical printed code", code: "T-2026-0815-042"},
		{name: "plain alphanumeric", code: "ABCD1234"},
		{name: "minimum length", code: "ab12"},
		{name: "empty", code: "", wantErr: true},
		{name: "too short", code: "ab1", wantErr: true},
		{name: "too long", code: strings.Repeat("a", 65), wantErr: true},
		{name: "spaces", code: "T 2026 042", wantErr: true},
		{name: "unicode", code: "билет-042", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTicketCode(tt.code)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEventID(t *testing.T) {
	assert.NoError(t, ValidateEventID(uuid.NewString()))
	assert.Error(t, ValidateEventID(""))
	assert.Error(t, ValidateEventID("not-a-uuid"))
}

func TestValidateClientMutationID(t *testing.T) {
	assert.NoError(t, ValidateClientMutationID(uuid.NewString()))
	assert.Error(t, ValidateClientMutationID(""))
	assert.Error(t, ValidateClientMutationID("batch-1"))
}

func TestValidateDedupeKey(t *testing.T) {
	// Пустой ключ допустим: dedupe не запрошен
	assert.NoError(t, ValidateDedupeKey(""))
	assert.NoError(t, ValidateDedupeKey("checkin:T-2026-0815-042"))
	assert.NoError(t, ValidateDedupeKey(strings.Repeat("k", MaxDedupeKeyLen)))
	assert.Error(t, ValidateDedupeKey(strings.Repeat("k", MaxDedupeKeyLen+1)))
}

func TestClampPageLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "zero uses default", limit: 0, want: DefaultPageLimit},
		{name: "negative uses default", limit: -5, want: DefaultPageLimit},
		{name: "in range untouched", limit: 42, want: 42},
		{name: "max allowed", limit: MaxPageLimit, want: MaxPageLimit},
		{name: "above max clamped", limit: MaxPageLimit + 1, want: MaxPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampPageLimit(tt.limit))
		})
	}
}
