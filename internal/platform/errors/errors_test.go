package errors

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeLaunchFailed, "spawn", fs.ErrPermission)
	wrapped := fmt.Errorf("launch game: %w", err)
	if !HasCode(wrapped, CodeLaunchFailed) {
		t.Fatalf("expected LAUNCH_FAILED in chain")
	}
	if HasCode(wrapped, CodeInvalidPath) {
		t.Fatalf("unexpected INVALID_PATH match")
	}
	if !stderrors.Is(wrapped, fs.ErrPermission) {
		t.Fatalf("cause should stay reachable")
	}
	if CodeOf(wrapped) != CodeLaunchFailed {
		t.Fatalf("CodeOf = %s", CodeOf(wrapped))
	}
	if CodeOf(stderrors.New("plain")) != CodeUnknown {
		t.Fatalf("plain errors map to UNKNOWN")
	}
}

func TestWithCopiesMetadata(t *testing.T) {
	base := New(CodeDownloadFailed, "download").With("task_id", "t1")
	next := base.With("version", "0.90.0")
	if _, ok := base.Metadata["version"]; ok {
		t.Fatalf("With must not mutate the receiver")
	}
	if next.Metadata["task_id"] != "t1" || next.Metadata["version"] != "0.90.0" {
		t.Fatalf("metadata = %v", next.Metadata)
	}
}

func TestHTTPStatus(t *testing.T) {
	if CodeGameNotFound.HTTPStatus() != http.StatusNotFound {
		t.Fatal("GAME_NOT_FOUND should be 404")
	}
	if CodeInstallConflict.HTTPStatus() != http.StatusConflict {
		t.Fatal("INSTALL_CONFLICT should be 409")
	}
	if CodeRegistryIO.HTTPStatus() != http.StatusInternalServerError {
		t.Fatal("REGISTRY_IO should be 500")
	}
}
