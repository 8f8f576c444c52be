package main

import "testing"

func TestTestNotifyDisabled(t *testing.T) {
	t.Setenv("PIPEWATCH_NTFY_TOPIC", "")
	env := setupCLITestEnv(t)

	out := env.run(t, "test-notify")
	requireContains(t, out, "notifications disabled")
}
