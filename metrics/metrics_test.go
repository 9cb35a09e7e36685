package metrics

import (
	"testing"

	"github.com/cloudbees-oss/juxr/types"
)

func TestRecordError(t *testing.T) {
	// just test that it doesn't panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordError panic'd")
		}
	}()

	RecordError("test_error")
}

func TestRecordArtifacts(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("artifact counters panic'd")
		}
	}()

	RecordArtifactImported("report")
	RecordArtifactExported("attachment")
}

func TestRecordSuite(t *testing.T) {
	s := types.NewTestSuite("metrics")
	s.Append(types.TestCase{Name: "a", Status: types.TestStatusPass})
	s.Append(types.TestCase{Name: "b", Status: types.TestStatusFail})

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("RecordSuite panic'd")
		}
	}()

	RecordSuite(s)
}
