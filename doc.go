// Package caudal is the data pipeline of the river flow (caudal) project. It
// loads daily flow measurements per gauging station either from the raw
// archive shipped in data/raw or from a warehouse, and prepares them for
// downstream processing.
//
// # Architecture
//
// The pipeline is a thin entry point over a handful of small packages:
//
// 1. Paths: the repository root is located by walking up from the working
// directory until a directory with the configured root name is found. Every
// other directory (data/raw, data/formatted, configs, models, outputs) is
// derived from it.
//
// 2. Configuration: YAML files in configs/ are decoded with ${VAR_NAME}
// substitution, defaults for every option, and CAUDAL_<SECTION>_<KEY>
// environment overrides.
//
// 3. Persistence: one gateway reads and writes every on-disk format the
// project uses (CSV, optionally compressed; YAML; JSON; Parquet part
// directories; Excel; Avro; gob) and forwards warehouse queries.
//
// 4. Loading: the data loader reads exactly one source per run and keeps the
// result as a table.
//
// # Quick Start
//
// Run the pipeline with the default configuration:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/caudal/internal/pipeline"
//	)
//
//	res, err := pipeline.Run(context.Background(), pipeline.Deps{})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Loader.Caudal.NumRows())
//
// or from the command line:
//
//	caudal                      # configs/default_config.yaml
//	caudal local_config.yaml    # another file in configs/
//	caudal fetch raw/caudal_extra.csv.zip
//
// # Key Packages
//
//	pkg/paths        - Repository root discovery and directory layout
//	pkg/config       - Configuration loading, defaults and validation
//	pkg/persistence  - Format-aware reads and writes anchored at a base path
//	pkg/warehouse    - BigQuery and database/sql query backends
//	pkg/remote       - Raw archive downloads from GCS and S3
//	pkg/logger       - Console and rotating file logging
//	pkg/metrics      - Per-run Prometheus metrics
//	pkg/observability - Tracing spans
//	internal/loader  - The caudal data loader
//	internal/pipeline - The pipeline entry point
//
// # Configuration
//
//	use_warehouse: false
//	data:
//	  caudal_file: caudal_extra.csv.zip
//	warehouse:
//	  kind: bigquery
//	  project_id: ${GCP_PROJECT}
//	  query: SELECT * FROM caudal.extra
//	logging:
//	  level: debug
//
// Environment variables are supported with ${VAR_NAME} syntax, and a .env
// file found above the working directory is loaded first.
package caudal
