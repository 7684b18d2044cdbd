// Package errors provides structured error handling for the knowledge hub.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and cache errors (documents, record file, index directories)
//   - 3XX: Model-backend errors (embedding and completion calls)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates document, record-file, and index I/O errors.
	CategoryIO Category = "IO"
	// CategoryModel indicates embedding/completion backend errors.
	CategoryModel Category = "MODEL"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Stage names identify which pipeline stage produced an error, so callers
// can tell "no API key" from "index corrupted" from "no documents".
const (
	StageLoad         = "document_load"
	StageFingerprint  = "fingerprint"
	StageIndexBuild   = "index_build"
	StageCacheResolve = "cache_resolve"
	StageExpand       = "query_expansion"
	StageSearch       = "similarity_search"
	StageSummarize    = "summarization"
	StageSynthesize   = "synthesis"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid = "ERR_101_CONFIG_INVALID"
	ErrCodeMissingAPIKey = "ERR_102_MISSING_API_KEY"

	// IO and cache errors (200-299)
	ErrCodeDocumentLoad = "ERR_201_DOCUMENT_LOAD"
	ErrCodeRecordWrite  = "ERR_202_RECORD_WRITE"
	ErrCodeCorruptIndex = "ERR_203_CORRUPT_INDEX"
	ErrCodeIndexPersist = "ERR_204_INDEX_PERSIST"

	// Model-backend errors (300-399)
	ErrCodeEmbeddingFailed  = "ERR_301_EMBEDDING_FAILED"
	ErrCodeCompletionFailed = "ERR_302_COMPLETION_FAILED"
	ErrCodeBackendTimeout   = "ERR_303_BACKEND_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryModel
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBackendTimeout:
		return true
	default:
		return false
	}
}
