package main

import (
	"fmt"
	"strings"

	"spool/internal/daemonrun"
)

// roleFromEnv picks the process role. A positional argument wins over
// SPOOL_ROLE; with neither, the combined role runs.
func roleFromEnv(env string, args []string) (string, error) {
	role := strings.ToLower(strings.TrimSpace(env))
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		role = strings.ToLower(strings.TrimSpace(args[0]))
	}
	switch role {
	case "":
		return daemonrun.RoleRun, nil
	case daemonrun.RoleRun, daemonrun.RoleWorker, daemonrun.RoleServe:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q (want run, worker or serve)", role)
	}
}
