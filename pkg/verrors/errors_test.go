package verrors_test

import (
	"strings"
	"testing"

	"github.com/bobboyms/write-validator/pkg/verrors"
)

func TestTypeMismatchErrorMessage(t *testing.T) {
	err := &verrors.TypeMismatchError{
		Line:     1237,
		Field:    "val1",
		Expected: "String",
		Incoming: "Integer",
	}
	want := "invalid field value in line protocol for field 'val1' on line 1237: expected type String, but got Integer"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestParseErrorIncludesLineText(t *testing.T) {
	err := &verrors.ParseError{LineNumber: 3, LineText: `cpu val1=5`, Message: "boom"}
	if !strings.Contains(err.Error(), "cpu val1=5") {
		t.Fatalf("Error() = %q, want it to contain offending line text", err.Error())
	}
}
