package envutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnvMissingFileIsNotAnError(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnvKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nHABITLOG_TEST_A=from-file\nHABITLOG_TEST_B=from-file\n"), 0o600))
	t.Setenv("HABITLOG_TEST_A", "from-env")
	t.Setenv("HABITLOG_TEST_B", "")
	require.NoError(t, os.Unsetenv("HABITLOG_TEST_B"))

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-env", os.Getenv("HABITLOG_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("HABITLOG_TEST_B"))
}

func TestWriteDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	values := map[string]string{"HABITLOG_BACKEND": "csv", "HABITLOG_API_ADDR": ":8080"}

	require.NoError(t, WriteDotEnv(path, values, false))
	got, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, values, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Error(t, WriteDotEnv(path, values, false))
	assert.NoError(t, WriteDotEnv(path, values, true))
}
