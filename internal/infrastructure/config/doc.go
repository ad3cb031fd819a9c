// Package config handles loading and validating the compatibility service
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with COMPAT_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The JWT secret is only required when security.require_auth is enabled
//
// Usage:
//
//	cfg, err := config.Load("configs/compat.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Catalog.Source)
package config
