package registry

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/dagrunner/dagrunner-go/internal/unit"
)

func registerBuiltins(r *Registry) {
	r.Register("dagrunner.builtin.Shell", shellUnit{})
	r.Register("dagrunner.builtin.DataPolling", dataPollingUnit{})
}

// shellUnit runs a command through the host shell, grounded on the
// plugin_framework Shell plugin that wraps subprocess.run(shell=True).
// Unlike that plugin's ambient-environment inheritance, the command runs
// with the explicit env passed in callParams only, no os.Environ()
// passthrough, matching this module's preference for reproducible node
// invocation over convenience.
type shellUnit struct{}

func (shellUnit) ParamNames() []string { return []string{"command", "env"} }

func (shellUnit) Call(ctx context.Context, args unit.Args) (any, error) {
	command, _ := args.Params["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("shell unit: %q param is required", "command")
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = []string{} // non-nil: a nil Env would inherit os.Environ()
	if env, ok := args.Params["env"].(map[string]string); ok {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Env = append(cmd.Env, k+"="+env[k])
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("shell unit: command failed: %w (stderr: %s)", err, stderr.String())
	}
	return stdout.String(), nil
}

// dataPollingUnit polls a set of glob patterns until every pattern has
// matched at least one file, or a timeout elapses, grounded on the
// plugin_framework DataPolling plugin.
type dataPollingUnit struct{}

func (dataPollingUnit) ParamNames() []string {
	return []string{"patterns", "timeout", "pollInterval", "fileCount", "verbose"}
}

func (dataPollingUnit) Call(ctx context.Context, args unit.Args) (any, error) {
	patterns, _ := args.Params["patterns"].([]string)
	if len(patterns) == 0 {
		return nil, fmt.Errorf("data polling unit: %q param is required", "patterns")
	}

	timeout := 2 * time.Minute
	if v, ok := args.Params["timeout"].(time.Duration); ok {
		timeout = v
	}
	pollInterval := time.Second
	if v, ok := args.Params["pollInterval"].(time.Duration); ok {
		pollInterval = v
	}
	fileCount := len(patterns)
	if v, ok := args.Params["fileCount"].(int); ok && v > fileCount {
		fileCount = v
	}

	deadline := time.Now().Add(timeout)
	var found []string
	patternsMatched := 0

	for i := 0; patternsMatched < len(patterns) && len(found) < fileCount; {
		if i >= len(patterns) {
			i = 0
		}
		pattern := patterns[i]
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("data polling unit: bad pattern %q: %w", pattern, err)
		}
		if len(matches) > 0 {
			found = append(found, matches...)
			patternsMatched++
			i++
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("data polling unit: timeout waiting for %q", pattern)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	sort.Strings(found)
	return found, nil
}
