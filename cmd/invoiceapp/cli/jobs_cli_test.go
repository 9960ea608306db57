package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerRejectsUnsupportedJob(t *testing.T) {
	// No connection is made before the job name check, so a bogus
	// address is fine here.
	c, err := NewJobsCLI("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Trigger(context.Background(), "invoice:unknown")
	require.ErrorContains(t, err, "unsupported job")
}

func TestTriggerRequiresClient(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), "invoice:recurring-sweep")
	require.ErrorContains(t, err, "not configured")

	_, err = (&JobsCLI{}).InspectQueue(context.Background())
	require.ErrorContains(t, err, "not configured")
}
