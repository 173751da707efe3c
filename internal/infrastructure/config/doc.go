// Package config handles loading and validating fedimint-http configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - The bearer password should be set via PASSWORD or FEDIMINT_HTTP_PASSWORD_HASH
//   - Prefer password_hash (argon2id PHC string) over a plain password in files
//
// Usage:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Gateway.Mode)
package config
