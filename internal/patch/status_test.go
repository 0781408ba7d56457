package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status   Status
		active   bool
		terminal bool
	}{
		{StatusIdle, false, false},
		{StatusProbing, true, false},
		{StatusAwaitingConfirmation, true, false},
		{StatusDownloading, true, false},
		{StatusSucceeded, false, true},
		{StatusFailed, false, true},
		{StatusNoOpNeeded, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.active, tt.status.IsActive())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}
