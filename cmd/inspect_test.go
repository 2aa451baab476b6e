package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInspectFixture(t *testing.T, modelBody string) string {
	t.Helper()
	dir := t.TempDir()
	model := filepath.Join(dir, "model.json")
	data := filepath.Join(dir, "client_data.csv")
	cfg := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(model, []byte(modelBody), 0o600))
	require.NoError(t, os.WriteFile(data, []byte("num__SK_ID_CURR,x\n1001,0.5\n1002,1.5\n"), 0o600))
	require.NoError(t, os.WriteFile(cfg, []byte(fmt.Sprintf(
		"log:\n  level: error\nmodel:\n  path: %s\n  format: logistic\nfeatures:\n  path: %s\n", model, data,
	)), 0o600))
	return cfg
}

func runInspect(t *testing.T, cfg string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect", "--config", cfg})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInspect(t *testing.T) {
	cfg := writeInspectFixture(t, `{"feature_names": ["num__SK_ID_CURR", "x"], "intercept": 0, "coefficients": [0, 1]}`)

	out, err := runInspect(t, cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "(logistic,")
	assert.Contains(t, out, "table:    2 clients, 2 columns (id column num__SK_ID_CURR)")
	assert.Contains(t, out, "schema:   ok")
}

func TestInspect_SchemaMismatch(t *testing.T) {
	cfg := writeInspectFixture(t, `{"feature_names": ["num__AMT_CREDIT"], "intercept": 0, "coefficients": [1]}`)

	_, err := runInspect(t, cfg)
	assert.ErrorContains(t, err, "schema check")
}
