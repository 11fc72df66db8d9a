package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"spool/internal/config"
	"spool/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	for _, name := range []string{"REDIS_URL", "STORE_BACKEND", "STORAGE_BACKEND", "QUEUE_NAME"} {
		t.Setenv(name, "")
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "spool.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
download_dir = %q
log_dir = %q
data_dir = %q

[store]
backend = "sqlite"
sqlite_path = %q
queue_name = %q

[storage]
backend = "local"
local_dir = %q
public_base_url = %q

[[watch]]
url = "https://www.youtube.com/@example/videos"
cron = "0 */15 * * * *"
media = "audio"
limit = 2
track = true
enqueue = true
`,
		cfg.Paths.DownloadDir,
		cfg.Paths.LogDir,
		cfg.Paths.DataDir,
		cfg.Store.SQLitePath,
		cfg.Store.QueueName,
		cfg.Storage.LocalDir,
		cfg.Storage.PublicBaseURL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
