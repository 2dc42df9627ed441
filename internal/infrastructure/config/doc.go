// Package config handles loading and validating homiewatch configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional .env file beside the YAML file
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Homie.Prefix)
package config
