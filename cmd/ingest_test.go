package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"leiloes-caixa/storage"
)

func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	for _, key := range []string{"GCP_BUCKET", "DATABASE_URL", "CHROME_BIN", "HEADLESS"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	root := filepath.Join(dir, "bucket")
	body := "gcp_bucket: test-bucket\n" +
		"estados: [BA]\n" +
		"dialect: semicolon_shifted\n" +
		"scratch_dir: " + filepath.Join(dir, "scratch") + "\n" +
		"storage:\n  backend: local\n  local:\n    root: " + root + "\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, root
}

func execute(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestIngestCommand(t *testing.T) {
	path, root := writeConfig(t)

	export := filepath.Join(t.TempDir(), "Lista_imoveis_BA.csv")
	require.NoError(t, os.WriteFile(export, []byte("t\nid;cidade\n1;SALVADOR\n2;\n"), 0o644))

	require.NoError(t, execute("--config", path, "ingest", "ba", export))

	bucket, err := storage.NewLocalBucket(root, "test-bucket")
	require.NoError(t, err)
	rc, err := bucket.Download(context.Background(), "data/integrated/Lista_imoveis_BA.csv")
	require.NoError(t, err)
	require.NoError(t, rc.Close())
}

func TestIngestCommandReportsCause(t *testing.T) {
	path, _ := writeConfig(t)

	err := execute("--config", path, "ingest", "BA", filepath.Join(t.TempDir(), "missing.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.ErrorContains(t, err, "ingest BA")
}
