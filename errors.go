/*
 * gigjson, (C) 2021 The gigjson Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package gigjson

import "fmt"

// ErrorCode identifies a parse or access failure.
// The zero value is Success; every other value is a distinct failure class
// and implements the error interface.
type ErrorCode uint8

const (
	// Success means no error occurred. Never returned as a non-nil error.
	Success ErrorCode = iota
	// ErrCapacity is returned when the document exceeds the capacity the
	// parser was allocated with. Call Allocate with a larger capacity and
	// retry.
	ErrCapacity
	// ErrMemAlloc is returned when a required buffer could not be allocated.
	ErrMemAlloc
	// ErrTape is returned on a JSON grammar violation while building the tape.
	ErrTape
	// ErrDepth is returned when the document nests deeper than the configured
	// maximum depth.
	ErrDepth
	// ErrString is returned on a malformed string: bad escape, bad hex digit
	// or an invalid surrogate pair.
	ErrString
	// ErrNumber is returned on a malformed or unrepresentable number.
	ErrNumber
	// ErrTrueAtom is returned when a literal starting with 't' is not `true`.
	ErrTrueAtom
	// ErrFalseAtom is returned when a literal starting with 'f' is not `false`.
	ErrFalseAtom
	// ErrNullAtom is returned when a literal starting with 'n' is not `null`.
	ErrNullAtom
	// ErrUTF8 is returned when the input is not valid UTF-8.
	ErrUTF8
	// ErrUnescapedChars is returned when a control character below 0x20
	// appears unescaped inside a string.
	ErrUnescapedChars
	// ErrUnclosedString is returned when the input ends inside a string.
	ErrUnclosedString
	// ErrEmpty is returned when the input holds no JSON value at all.
	ErrEmpty
	// ErrInsufficientPadding completes the error taxonomy. No function in
	// this package returns it: every parse stages its input into a padded
	// copy first.
	ErrInsufficientPadding
	// ErrIncorrectType is returned by accessors when the element has another
	// type than requested.
	ErrIncorrectType
	// ErrNoSuchField is returned by object lookups for a missing key.
	ErrNoSuchField
	// ErrIndexOutOfBounds is returned by array lookups past the end.
	ErrIndexOutOfBounds
	// ErrNumberOutOfRange is returned when a stored number does not fit the
	// requested Go type.
	ErrNumberOutOfRange
	// ErrInvalidJSONPointer is returned for a malformed RFC 6901 pointer.
	ErrInvalidJSONPointer
)

var errorTexts = [...]string{
	Success:                "success",
	ErrCapacity:            "document exceeds parser capacity",
	ErrMemAlloc:            "memory allocation failed",
	ErrTape:                "improper structure while building tape",
	ErrDepth:               "maximum nesting depth exceeded",
	ErrString:              "invalid string",
	ErrNumber:              "invalid number",
	ErrTrueAtom:            "invalid 'true' literal",
	ErrFalseAtom:           "invalid 'false' literal",
	ErrNullAtom:            "invalid 'null' literal",
	ErrUTF8:                "invalid UTF-8 sequence",
	ErrUnescapedChars:      "unescaped control character inside string",
	ErrUnclosedString:      "unclosed string",
	ErrEmpty:               "no JSON found in input",
	ErrInsufficientPadding: "buffer padding too small",
	ErrIncorrectType:       "incorrect type",
	ErrNoSuchField:         "no such field",
	ErrIndexOutOfBounds:    "index out of bounds",
	ErrNumberOutOfRange:    "number out of range",
	ErrInvalidJSONPointer:  "invalid JSON pointer",
}

func (e ErrorCode) String() string {
	if int(e) < len(errorTexts) {
		return errorTexts[e]
	}
	return fmt.Sprintf("unknown error (%d)", uint8(e))
}

// Error implements the error interface. Success should never be returned as
// an error; its message exists only for completeness.
func (e ErrorCode) Error() string {
	return e.String()
}

// ParseError is an ErrorCode bound to the byte offset within the input at
// which validation failed. It unwraps to its ErrorCode, so
// errors.Is(err, ErrTape) works on wrapped errors as well.
type ParseError struct {
	Code   ErrorCode
	Offset int64
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at byte %d", e.Code.String(), e.Offset)
}

func (e *ParseError) Unwrap() error {
	return e.Code
}

func parseErrorAt(code ErrorCode, offset uint64) *ParseError {
	return &ParseError{Code: code, Offset: int64(offset)}
}
