package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	appLog "scoutcal/internal/log"
)

// Secret is a string config value that may be written as a plain
// scalar or as "!secret some_key". Secret references resolve, in order,
// from the SECRET_<KEY> environment variable and from the secrets.yaml
// file next to the config. An unresolvable reference keeps its
// "!secret key" placeholder so the operator can spot it, instead of
// failing the whole load.
type Secret string

func (s Secret) String() string { return string(s) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!secret" {
		*s = Secret(resolveSecret(strings.TrimSpace(node.Value)))
		return nil
	}

	var v string
	if err := node.Decode(&v); err != nil {
		return err
	}
	*s = Secret(v)
	return nil
}

var (
	secretsMu   sync.Mutex
	secretsFile = "secrets.yaml"
	secretsData map[string]string
)

func setSecretsFile(path string) {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	if path != secretsFile {
		secretsFile = path
		secretsData = nil
	}
}

func resolveSecret(key string) string {
	placeholder := "!secret " + key

	envKey := "SECRET_" + strings.ToUpper(key)
	if v, ok := os.LookupEnv(envKey); ok {
		appLog.Debug("secret loaded from environment", "key", key, "env", envKey)
		return v
	}

	secretsMu.Lock()
	defer secretsMu.Unlock()

	if secretsData == nil {
		data, err := os.ReadFile(secretsFile)
		if err != nil {
			appLog.Info("secrets file not readable and no env var set", "key", key, "file", secretsFile, "env", envKey)
			return placeholder
		}
		if err := yaml.Unmarshal(data, &secretsData); err != nil {
			appLog.Error("secrets file is not valid YAML", err, "file", secretsFile)
			secretsData = map[string]string{}
			return placeholder
		}
	}

	v, ok := secretsData[key]
	if !ok {
		appLog.Info(fmt.Sprintf("secret %q not found in %s or env var %s", key, secretsFile, envKey))
		return placeholder
	}
	return v
}
