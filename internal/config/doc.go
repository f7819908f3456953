// Package config loads textfission settings.
//
// Sources are applied in order, later ones winning:
//
//  1. Built-in defaults (Default)
//  2. A YAML file (--config, or ~/.textfission/config.yaml when present)
//  3. A .env file in the working directory
//  4. TEXTFISSION_* environment variables
//  5. Command-line flags, applied by the CLI
//
// Environment variables follow the group layout of the YAML file:
//
//	model:                 TEXTFISSION_MODEL_PROVIDER, TEXTFISSION_MODEL_API_KEY,
//	  provider: deepseek   TEXTFISSION_MODEL_NAME, TEXTFISSION_MODEL_TIMEOUT, ...
//	processing:            TEXTFISSION_PROCESSING_CHUNK_SIZE, ..._CHUNK_OVERLAP,
//	  chunk_size: 1500     ..._MAX_WORKERS, ..._MARKDOWN
//	custom:                TEXTFISSION_CUSTOM_LANGUAGE, ..._MIN_CONFIDENCE,
//	  language: zh         ..._MIN_QUESTIONS, ..._MAX_QUESTIONS, ..._QUESTION_TYPES
//	export:                TEXTFISSION_EXPORT_FORMAT, ..._OUTPUT, ..._INDENT
//	storage:               TEXTFISSION_STORAGE_PATH, ..._DISABLED
//	source:                TEXTFISSION_SOURCE_ENCODING
//
// When no provider or key is configured, the vendor variables OPENAI_API_KEY
// and DEEPSEEK_API_KEY are consulted the same way the llm package does.
package config
