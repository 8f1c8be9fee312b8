package deploy

import (
	"fmt"

	"github.com/spf13/viper"
)

// ResolveToken resolves a platform authentication token with the documented
// precedence: configuration file first, then process environment. When neither
// yields a token, the returned error points the operator at the platform's own
// login flow.
func ResolveToken(configured, envVar, platform string) (string, error) {
	if configured != "" {
		return configured, nil
	}

	v := viper.New()
	v.AutomaticEnv()

	if token := v.GetString(envVar); token != "" {
		return token, nil
	}

	return "", fmt.Errorf(
		"no %s token found: set it in the configuration file, export %s, or authenticate with the %s CLI first",
		platform, envVar, platform,
	)
}
