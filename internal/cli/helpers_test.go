package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hivelog/internal/event"
	"github.com/roach88/hivelog/internal/testutil"
)

// cliEnv runs commands against one log with a deterministic clock.
type cliEnv struct {
	t     *testing.T
	log   string
	clock *testutil.DeterministicClock
	ids   event.IDGenerator
}

func newCLIEnv(t *testing.T, ids ...string) *cliEnv {
	t.Helper()
	t.Setenv("HIVELOG_PATH", "")
	return &cliEnv{
		t:     t,
		log:   filepath.Join(t.TempDir(), "events.jsonl"),
		clock: testutil.NewDeterministicClock(time.Time{}),
		ids:   testutil.NewScriptedIDs(ids...),
	}
}

// run executes one invocation, as a separate process would.
func (c *cliEnv) run(args ...string) (string, error) {
	c.t.Helper()
	opts := &RootOptions{Clock: c.clock.Now, IDs: c.ids}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--log", c.log))
	err := cmd.Execute()
	return out.String(), err
}

func (c *cliEnv) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

// eventLines parses canonical JSON lines from command output.
func eventLines(t *testing.T, out string) []event.Event {
	t.Helper()
	var events []event.Event
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		e, ok := event.Deserialize([]byte(line))
		require.True(t, ok, "not an event line: %s", line)
		events = append(events, e)
	}
	return events
}
