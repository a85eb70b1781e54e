package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	dterrors "dtools/internal/errors"
)

// InitLogging routes slog to the error handler's log file and tags every
// record with the tool name and a fresh run id.
func InitLogging(tool string) {
	handler, err := dterrors.GetDefaultHandler()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return
	}

	slog.SetDefault(handler.Logger().With("tool", tool, "runId", uuid.New().String()))
}
