package main

import (
	"testing"

	"github.com/buildwright/cpmschedule/internal/schederr"
)

func TestInferFormatPrefersExplicitFlag(t *testing.T) {
	if got := inferFormat(formatMSProjectXML, "plan.json"); got != formatMSProjectXML {
		t.Errorf("expected explicit flag to win, got %q", got)
	}
}

func TestInferFormatFromXMLExtension(t *testing.T) {
	if got := inferFormat("", "plan.xml"); got != formatMSProjectXML {
		t.Errorf("expected msproject-xml for .xml, got %q", got)
	}
}

func TestInferFormatDefaultsToJSON(t *testing.T) {
	if got := inferFormat("", "plan.txt"); got != formatJSON {
		t.Errorf("expected json default, got %q", got)
	}
}

func TestExitCodeForCycleError(t *testing.T) {
	err := schederr.NewCycleError([]string{"a", "b"})
	if got := exitCodeFor(err); got != 3 {
		t.Errorf("expected exit code 3 for a cycle error, got %d", got)
	}
}

func TestExitCodeForPlainErrorIsGeneric(t *testing.T) {
	if got := exitCodeFor(errUnrecognizedFormat()); got != 1 {
		t.Errorf("expected generic exit code 1, got %d", got)
	}
}

func errUnrecognizedFormat() error {
	_, _, err := decodeInput("yaml", nil)
	return err
}
