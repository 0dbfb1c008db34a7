package logger_test

import (
	"errors"
	"testing"

	"github.com/rogeriochaves/langstream/logger"
)

func TestStageInvokedDoesNotPanic(t *testing.T) {
	logger.StageInvoked("Words", "input", "hello")
}

func TestStageCompletedDoesNotPanic(t *testing.T) {
	logger.StageCompleted("Words", 3)
}

func TestStageFailedDoesNotPanic(t *testing.T) {
	logger.StageFailed("Words", errors.New("boom"))
}

func TestAdapterCallAndResponseDoNotPanic(t *testing.T) {
	logger.AdapterCall("WebSocket", "wss://example.test")
	logger.AdapterResponse("WebSocket", 12, nil)
	logger.AdapterResponse("WebSocket", 0, errors.New("disconnected"))
}

func TestSetVerboseDoesNotPanic(t *testing.T) {
	logger.SetVerbose(true)
	logger.SetVerbose(false)
}
