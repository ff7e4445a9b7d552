package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/claimvault/internal/model"
	"github.com/ppiankov/claimvault/internal/registry"
)

const (
	testID1 = "0101010101010101010101010101010101010101010101010101010101010101"
	testID2 = "0202020202020202020202020202020202020202020202020202020202020202"
	testID3 = "0303030303030303030303030303030303030303030303030303030303030303"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig creates a config with a disk-backed store and a fixed
// ledger sequence of 1000
func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`store:
  backend: badger
  data_dir: %s
  gc: false
ledger:
  source: static
  sequence: 1000
auth:
  mode: schnorr
log:
  level: error
  format: json
`, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func generateKey(t *testing.T, cfg string) keyPair {
	t.Helper()

	out, err := runCLI(t, "--config", cfg, "keygen", "-o", "json")
	require.NoError(t, err)

	var kp keyPair
	require.NoError(t, json.Unmarshal([]byte(out), &kp))
	require.Len(t, string(kp.Identity), 64)
	require.Len(t, kp.PrivateKey, 64)
	return kp
}

func TestVersion(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "claimvault v"+version+"\n", out)
}

func TestRegisterGetList(t *testing.T) {
	cfg := writeConfig(t)
	kp := generateKey(t, cfg)

	out, err := runCLI(t, "--config", cfg, "register",
		"--key", kp.PrivateKey,
		"--recipient", "merchant",
		"--amount", "1000",
		"--fee", "50",
		"--period", "100",
		"--id", testID1,
	)
	require.NoError(t, err)

	var claim model.PendingClaim
	require.NoError(t, yaml.Unmarshal([]byte(out), &claim))
	assert.Equal(t, kp.Identity, claim.Originator)
	assert.Equal(t, uint32(1100), claim.ExpirySequence)
	assert.True(t, model.NewAmount(1000).Equal(claim.PaymentAmount))
	assert.True(t, model.NewAmount(50).Equal(claim.FeeAmount))

	// The claim survives reopening the store
	out, err = runCLI(t, "--config", cfg, "get", testID1, "-o", "json")
	require.NoError(t, err)

	var got model.PendingClaim
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, claim.Equal(got))

	out, err = runCLI(t, "--config", cfg, "list", "--all", "-o", "json")
	require.NoError(t, err)

	var list idList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.IDs, 1)
	assert.Equal(t, testID1, list.IDs[0].String())
}

func TestRegisterUnauthorized(t *testing.T) {
	cfg := writeConfig(t)
	kp := generateKey(t, cfg)

	_, err := runCLI(t, "--config", cfg, "register",
		"--originator", string(kp.Identity),
		"--recipient", "merchant",
		"--amount", "1",
		"--id", testID1,
	)
	require.ErrorIs(t, err, registry.ErrUnauthorized)

	_, err = runCLI(t, "--config", cfg, "get", testID1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegisterInvalidFlags(t *testing.T) {
	cfg := writeConfig(t)
	kp := generateKey(t, cfg)

	_, err := runCLI(t, "--config", cfg, "register",
		"--key", kp.PrivateKey, "--recipient", "r", "--amount", "1", "--id", "zz")
	assert.ErrorContains(t, err, "--id")

	_, err = runCLI(t, "--config", cfg, "register",
		"--key", kp.PrivateKey, "--recipient", "r", "--amount", "one", "--id", testID1)
	assert.ErrorContains(t, err, "--amount")

	_, err = runCLI(t, "--config", cfg, "register",
		"--recipient", "r", "--amount", "1", "--id", testID1)
	assert.ErrorContains(t, err, "--originator")

	// Required flag missing
	_, err = runCLI(t, "--config", cfg, "register", "--key", kp.PrivateKey, "--id", testID1)
	assert.Error(t, err)
}

func TestImportAndPaging(t *testing.T) {
	cfg := writeConfig(t)
	kp := generateKey(t, cfg)

	importPath := filepath.Join(t.TempDir(), "claims.yaml")
	var b strings.Builder
	b.WriteString("claims:\n")
	for _, id := range []string{testID1, testID2, testID3} {
		fmt.Fprintf(&b, `  - private_key: %s
    recipient: merchant
    payment_amount: 10
    fee_amount: 1
    claim_period: 5
    payment_id: "%s"
`, kp.PrivateKey, id)
	}
	require.NoError(t, os.WriteFile(importPath, []byte(b.String()), 0o600))

	out, err := runCLI(t, "--config", cfg, "import", importPath, "-o", "json")
	require.NoError(t, err)

	var report importReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Success)
	assert.Equal(t, 0, report.Failures)

	out, err = runCLI(t, "--config", cfg, "list", "--limit", "2", "-o", "json")
	require.NoError(t, err)

	var page registry.Page
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.NextOffset)
	assert.True(t, page.HasMore)
	require.Len(t, page.IDs, 2)
	assert.Equal(t, testID1, page.IDs[0].String())
	assert.Equal(t, testID2, page.IDs[1].String())

	out, err = runCLI(t, "--config", cfg, "list", "--offset", "2", "-o", "json")
	require.NoError(t, err)
	page = registry.Page{}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.False(t, page.HasMore)
	require.Len(t, page.IDs, 1)
	assert.Equal(t, testID3, page.IDs[0].String())

	_, err = runCLI(t, "--config", cfg, "list", "--offset", "-1")
	assert.ErrorIs(t, err, registry.ErrInvalidPage)
}

func TestImportReportsFailures(t *testing.T) {
	cfg := writeConfig(t)

	importPath := filepath.Join(t.TempDir(), "claims.yaml")
	content := fmt.Sprintf(`claims:
  - originator: somebody
    recipient: merchant
    payment_amount: 10
    fee_amount: 1
    claim_period: 5
    payment_id: "%s"
`, testID1)
	require.NoError(t, os.WriteFile(importPath, []byte(content), 0o600))

	out, err := runCLI(t, "--config", cfg, "import", importPath, "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 claims failed")

	var report importReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Failures)
	require.Len(t, report.Results, 1)
	assert.Contains(t, report.Results[0].Error, "unauthorized")
}

func TestConfigShowWithEnvOverride(t *testing.T) {
	cfg := writeConfig(t)
	t.Setenv("CLAIMVAULT_LEDGER_SEQUENCE", "7")

	out, err := runCLI(t, "--config", cfg, "config", "show", "-o", "json")
	require.NoError(t, err)

	var got model.Config
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "static", got.Ledger.Source)
	assert.Equal(t, uint32(7), got.Ledger.Sequence)
	assert.Equal(t, "schnorr", got.Auth.Mode)
	assert.Equal(t, 100, got.Registry.DefaultPageSize)
}

func TestConfigInit(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := runCLI(t, "--config", path, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	got := model.Config{}
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, *model.DefaultConfig(), got)

	_, err = runCLI(t, "--config", path, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	// The written file loads back through viper
	out, err = runCLI(t, "--config", path, "config", "show", "-o", "json")
	require.NoError(t, err)
	var shown model.Config
	require.NoError(t, json.Unmarshal([]byte(out), &shown))

	want := *model.DefaultConfig()
	want.Store.DataDir = filepath.Join(home, ".claimvault", "data")
	assert.Equal(t, want, shown)
}

func TestDefaultStorePersists(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CLAIMVAULT_LEDGER_SOURCE", "static")
	t.Setenv("CLAIMVAULT_LEDGER_SEQUENCE", "100")
	t.Setenv("CLAIMVAULT_LOG_LEVEL", "error")

	out, err := runCLI(t, "keygen", "-o", "json")
	require.NoError(t, err)
	var kp keyPair
	require.NoError(t, json.Unmarshal([]byte(out), &kp))

	_, err = runCLI(t, "register",
		"--key", kp.PrivateKey,
		"--recipient", "merchant",
		"--amount", "10",
		"--period", "20",
		"--id", testID1,
	)
	require.NoError(t, err)

	out, err = runCLI(t, "get", testID1, "-o", "json")
	require.NoError(t, err)
	var got model.PendingClaim
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, kp.Identity, got.Originator)
	assert.Equal(t, uint32(120), got.ExpirySequence)

	out, err = runCLI(t, "list", "--all", "-o", "json")
	require.NoError(t, err)
	var list idList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Equal(t, 1, list.Total)

	info, err := os.Stat(filepath.Join(home, ".claimvault", "data"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestMemoryBackendIsVolatile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CLAIMVAULT_STORE_BACKEND", "memory")
	t.Setenv("CLAIMVAULT_AUTH_MODE", "allow-all")
	t.Setenv("CLAIMVAULT_LEDGER_SOURCE", "static")
	t.Setenv("CLAIMVAULT_LOG_LEVEL", "error")

	_, err := runCLI(t, "register",
		"--originator", "alice", "--recipient", "merchant", "--amount", "1", "--id", testID1)
	require.NoError(t, err)

	_, err = runCLI(t, "get", testID1)
	assert.ErrorContains(t, err, "not found")
}

// writeStaticAuthConfig creates a config allowing only alice, with metrics
// on an ephemeral port
func writeStaticAuthConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`store:
  backend: badger
  data_dir: %s
ledger:
  source: static
  sequence: 10
auth:
  mode: static
  allowed:
    - alice
log:
  level: error
metrics:
  listen_address: 127.0.0.1:0
`, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestStaticAuthMode(t *testing.T) {
	cfg := writeStaticAuthConfig(t)

	_, err := runCLI(t, "--config", cfg, "register",
		"--originator", "alice", "--recipient", "merchant", "--amount", "1", "--id", testID1)
	require.NoError(t, err)

	_, err = runCLI(t, "--config", cfg, "register",
		"--originator", "mallory", "--recipient", "merchant", "--amount", "1", "--id", testID2)
	require.ErrorIs(t, err, registry.ErrUnauthorized)
}

func TestSessionServesMetrics(t *testing.T) {
	a := &app{v: viper.New(), cfgFile: writeStaticAuthConfig(t)}
	sess, err := a.openSession(&cobra.Command{})
	require.NoError(t, err)
	defer func() { require.NoError(t, sess.Close()) }()
	require.NotEmpty(t, sess.metricsAddr)

	id, err := model.ParsePaymentID(testID1)
	require.NoError(t, err)
	require.NoError(t, sess.registry.RegisterClaim(context.Background(), model.RegisterRequest{
		Originator:    "alice",
		Recipient:     "merchant",
		PaymentAmount: model.NewAmount(5),
		FeeAmount:     model.NewAmount(1),
		ClaimPeriod:   3,
		PaymentID:     id,
	}))

	resp, err := http.Get("http://" + sess.metricsAddr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "claimvault_registry_claims_registered_total 1")
	assert.Contains(t, string(body), "claimvault_registry_index_length 1")
	assert.Contains(t, string(body), "claimvault_store_badger_ops_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "config", "show")
	assert.ErrorContains(t, err, "read config")
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := runCLI(t, "keygen", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}
