package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
)

// EnvPrefix prefixes the environment variables read into the connection config.
const EnvPrefix = "ADQUERY_"

// LoadConfig builds the connection config from defaults, then the optional
// config file, then ADQUERY_* environment variables. ADQUERY_LDAP_URLS takes a
// comma-separated list.
func LoadConfig(configFile string) (*adldap.ConnectionConfig, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file %s not found", configFile)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// AutomaticEnv does not reach Unmarshal for keys missing from the file,
	// so matching variables are set explicitly.
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		v.Set(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value)
	}

	config := adldap.DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}
	if !config.HasAuthentication() {
		return nil, errors.New("no credentials configured: set username and password, kerberos settings or a client certificate")
	}
	return config, nil
}
