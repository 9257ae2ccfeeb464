// Package config handles loading and validating Gray Logic Heating configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (HEATING_*)
//   - Validation of required fields and zone definitions
//   - Default value handling for every tunable helper
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, z := range cfg.Heating.Zones {
//	    fmt.Println(z.Location)
//	}
package config
