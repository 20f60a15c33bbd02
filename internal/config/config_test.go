package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigTestSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) clearEnv() {
	for _, k := range []string{
		"ASTRA_CONFIG_FILE", "ASTRA_HTTP_ADDR", "ASTRA_LOG_LEVEL", "ASTRA_LOG_FORMAT",
		"ASTRA_SCHEMA_PATH", "ASTRA_REPAIR_MAX_ITERS", "ASTRA_REPAIR_PROVIDER",
		"ASTRA_REPAIR_PROVIDER_CMD", "ASTRA_PATCH_PROVIDER_TIMEOUT",
		"ASTRA_PROPCHECK_CASES", "ASTRA_PROPCHECK_MAX_SIZE",
		"ASTRA_RATE_LIMIT_RPS", "ASTRA_RATE_LIMIT_BURST", "ASTRA_METRICS_ENABLED",
		"ASTRA_AUDIT_DSN",
	} {
		s.Require().NoError(os.Unsetenv(k))
	}
}

func (s *ConfigTestSuite) TestLoadAppliesDefaults() {
	s.clearEnv()
	dir := s.T().TempDir()
	s.T().Setenv("ASTRA_CONFIG_FILE", filepath.Join(dir, "missing.yaml"))

	cfg, err := Load()
	s.NoError(err)
	s.Equal(":8080", cfg.HTTPAddr)
	s.Equal("info", cfg.LogLevel)
	s.Equal("mock", cfg.RepairProviderKind)
	s.Equal(5, cfg.RepairMaxIters)
	s.Equal(100, cfg.PropcheckDefaultCases)
	s.Equal(20, cfg.RateLimitRPS)
	s.Equal(60*time.Second, cfg.PatchProviderTimeout)
	s.True(cfg.MetricsEnabled)
	s.Equal("", cfg.AuditDSN)
}

func (s *ConfigTestSuite) TestEnvOverridesDefault() {
	s.clearEnv()
	dir := s.T().TempDir()
	s.T().Setenv("ASTRA_CONFIG_FILE", filepath.Join(dir, "missing.yaml"))
	s.T().Setenv("ASTRA_REPAIR_MAX_ITERS", "9")

	cfg, err := Load()
	s.NoError(err)
	s.Equal(9, cfg.RepairMaxIters)
}

func (s *ConfigTestSuite) TestYAMLFileSuppliesPropcheckDefaults() {
	s.clearEnv()
	dir := s.T().TempDir()
	path := filepath.Join(dir, "astra.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("propcheck_default_cases: 250\nrate_limit_rps: 5\n"), 0o644))
	s.T().Setenv("ASTRA_CONFIG_FILE", path)

	cfg, err := Load()
	s.NoError(err)
	s.Equal(250, cfg.PropcheckDefaultCases)
	s.Equal(5, cfg.RateLimitRPS)
}

func (s *ConfigTestSuite) TestEnvWinsOverYAMLFile() {
	s.clearEnv()
	dir := s.T().TempDir()
	path := filepath.Join(dir, "astra.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("rate_limit_rps: 5\n"), 0o644))
	s.T().Setenv("ASTRA_CONFIG_FILE", path)
	s.T().Setenv("ASTRA_RATE_LIMIT_RPS", "99")

	cfg, err := Load()
	s.NoError(err)
	s.Equal(99, cfg.RateLimitRPS)
}

func (s *ConfigTestSuite) TestMissingFileIsNotFatal() {
	s.clearEnv()
	s.T().Setenv("ASTRA_CONFIG_FILE", "/no/such/path/astra.yaml")

	cfg, err := Load()
	s.NoError(err)
	s.Equal(100, cfg.PropcheckDefaultCases)
}

func (s *ConfigTestSuite) TestInvalidRepairProviderKindRejected() {
	s.clearEnv()
	dir := s.T().TempDir()
	s.T().Setenv("ASTRA_CONFIG_FILE", filepath.Join(dir, "missing.yaml"))
	s.T().Setenv("ASTRA_REPAIR_PROVIDER", "openai")

	_, err := Load()
	s.Error(err)
}

func (s *ConfigTestSuite) TestCmdProviderRequiresCmd() {
	s.clearEnv()
	dir := s.T().TempDir()
	s.T().Setenv("ASTRA_CONFIG_FILE", filepath.Join(dir, "missing.yaml"))
	s.T().Setenv("ASTRA_REPAIR_PROVIDER", "cmd")

	_, err := Load()
	s.Error(err)

	s.T().Setenv("ASTRA_REPAIR_PROVIDER_CMD", "/bin/true")
	cfg, err := Load()
	s.NoError(err)
	s.Equal("/bin/true", cfg.RepairProviderCmd)
}

func (s *ConfigTestSuite) TestNonPositiveMaxItersRejected() {
	s.clearEnv()
	dir := s.T().TempDir()
	s.T().Setenv("ASTRA_CONFIG_FILE", filepath.Join(dir, "missing.yaml"))
	s.T().Setenv("ASTRA_REPAIR_MAX_ITERS", "0")

	_, err := Load()
	s.Error(err)
}
