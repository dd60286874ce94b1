// Package errors provides the structured error type shared by the registry,
// the sandbox and runtime acquisition.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Registry errors
	CodeInvalidPath  Code = "INVALID_PATH"
	CodeGameNotFound Code = "GAME_NOT_FOUND"
	CodeGameExists   Code = "GAME_EXISTS"
	CodeRegistryIO   Code = "REGISTRY_IO"
	CodeMigration    Code = "MIGRATION_FAILED"

	// Classification
	CodeClassificationAmbiguous Code = "CLASSIFICATION_AMBIGUOUS"

	// Runtime acquisition
	CodeEngineNotFound  Code = "ENGINE_NOT_FOUND"
	CodeDownloadFailed  Code = "DOWNLOAD_FAILED"
	CodeInstallConflict Code = "INSTALL_CONFLICT"

	// Launch
	CodeLaunchFailed           Code = "LAUNCH_FAILED"
	CodeCompatLayerUnavailable Code = "COMPAT_LAYER_UNAVAILABLE"
	CodeInvalidConfig          Code = "INVALID_CONFIG"
)

// HTTPStatus maps the code onto the status the local API answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidPath, CodeInvalidConfig:
		return http.StatusBadRequest
	case CodeGameNotFound, CodeEngineNotFound:
		return http.StatusNotFound
	case CodeGameExists, CodeInstallConflict:
		return http.StatusConflict
	case CodeDownloadFailed:
		return http.StatusBadGateway
	case CodeCompatLayerUnavailable:
		return http.StatusServiceUnavailable
	case CodeLaunchFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
