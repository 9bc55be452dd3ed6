// Package config loads the run configuration of caudal.
//
// The configuration is a YAML mapping, normally configs/default_config.yaml,
// decoded into typed sections:
//
//   - use_warehouse: read the dataset from the warehouse instead of data/raw
//   - data: local dataset names
//   - warehouse: kind (bigquery or sql), project, query and connection
//   - logging: level and log files
//   - remote: object storage holding the raw archive
//   - observability: metrics and trace output files
//
// Keys the typed sections do not know about are kept and can be read with
// Get or Lookup, so downstream stages can add their own settings without
// touching this package.
//
// # Environment
//
// ${VAR_NAME} references in the file are substituted before parsing, and
// every recognized option can be overridden with CAUDAL_<SECTION>_<KEY>:
//
//	# configs/default_config.yaml
//	use_warehouse: true
//	warehouse:
//	  project_id: ${GCP_PROJECT}
//	  query: SELECT * FROM hydro.caudal_extra
//
//	CAUDAL_LOGGING_LEVEL=info caudal
//
// # Usage
//
//	cfg, err := config.Load(layout.Config, config.DefaultFileName, nil)
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config
