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

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strconv"
	"testing"
)

func padNumber(s string) []byte {
	return append([]byte(s), paddingSpaces...)
}

func TestNumberIsValid(t *testing.T) {
	// From: https://stackoverflow.com/a/13340826
	var jsonNumberRegexp = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?(?:[eE][+-]?\d+)?$`)
	isValidNumber := func(s string) bool {
		tag, _, errCode := parseNumber(padNumber(s))
		return tag != TagEnd && errCode == Success
	}
	validTests := []string{
		"0",
		"-0",
		"1",
		"-1",
		"0.1",
		"-0.1",
		"1234",
		"-1234",
		"12.34",
		"-12.34",
		"12E0",
		"12E1",
		"12e34",
		"12E-0",
		"12e+1",
		"12e-34",
		"-12E0",
		"-12E1",
		"-12e34",
		"-12E-0",
		"-12e+1",
		"-12e-34",
		"1.2E0",
		"1.2E1",
		"1.2e34",
		"1.2E-0",
		"1.2e+1",
		"1.2e-34",
		"-1.2E0",
		"-1.2E1",
		"-1.2e34",
		"-1.2E-0",
		"-1.2e+1",
		"-1.2e-34",
		"0E0",
		"0E1",
		"0e34",
		"0E-0",
		"0e+1",
		"0e-34",
		"-0E0",
		"-0E1",
		"-0e34",
		"-0E-0",
		"-0e+1",
		"-0e-34",
	}

	for _, test := range validTests {
		if !isValidNumber(test) {
			t.Errorf("%s should be valid", test)
		}

		if !jsonNumberRegexp.MatchString(test) {
			t.Errorf("%s should be valid but regexp does not match", test)
		}
	}

	invalidTests := []string{
		"",
		"invalid",
		"1.0.1",
		"1..1",
		"-1-2",
		"--12",
		"1.",
		".1",
		"0.",
		"-",
		"+1",
		"01",
		"-01",
		"1x",
		"1.1x",
		"1e",
		"1e+",
		"1e-",
		"1E",
		"1ex",
		"1e1x",
		"0x1",
		"1.e1",
		"Inf",
		"NaN",
	}

	for _, test := range invalidTests {
		if test != "" && isValidNumber(test) {
			t.Errorf("%s should be invalid", test)
		}

		if jsonNumberRegexp.MatchString(test) {
			t.Errorf("%s should be invalid but matches regexp", test)
		}
	}
}

func TestIntegerBoundaries(t *testing.T) {
	testCases := []struct {
		input   string
		tag     Tag
		wantI   int64
		wantU   uint64
		errCode ErrorCode
	}{
		{input: "0", tag: TagInteger, wantI: 0},
		{input: "-0", tag: TagInteger, wantI: 0},
		{input: "9223372036854775807", tag: TagInteger, wantI: math.MaxInt64},
		{input: "9223372036854775808", tag: TagUint, wantU: 1 << 63},
		{input: "18446744073709551615", tag: TagUint, wantU: math.MaxUint64},
		{input: "18446744073709551616", errCode: ErrNumber},
		{input: "-9223372036854775808", tag: TagInteger, wantI: math.MinInt64},
		{input: "-9223372036854775809", errCode: ErrNumber},
		{input: "99999999999999999999999999", errCode: ErrNumber},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			tag, val, errCode := parseNumber(padNumber(tc.input))
			if tc.errCode != Success {
				if errCode != tc.errCode {
					t.Fatalf("got error %v, want %v", errCode, tc.errCode)
				}
				return
			}
			if errCode != Success {
				t.Fatalf("unexpected error %v", errCode)
			}
			if tag != tc.tag {
				t.Fatalf("got tag %v, want %v", tag, tc.tag)
			}
			switch tag {
			case TagInteger:
				if int64(val) != tc.wantI {
					t.Fatalf("got %d, want %d", int64(val), tc.wantI)
				}
			case TagUint:
				if val != tc.wantU {
					t.Fatalf("got %d, want %d", val, tc.wantU)
				}
			}
		})
	}
}

func TestFloatAgainstStrconv(t *testing.T) {
	cases := []string{
		"0.5", "-0.5", "3.14159265358979", "1e10", "1e-10", "2.5e-3",
		"1.7976931348623157e308",  // MaxFloat64
		"4.9406564584124654e-324", // smallest subnormal
		"5e-324",
		"1e-400", // underflows to zero, still accepted
		"123456789012345678901234567890.123456789", // > 19 digits
		"0.000001",
		"1e22", "1e23", // fast path boundary
		"-2.2250738585072011e-308", // the classic slow-path float
		"1.00000000000000011102230246251565404236316680908203125",
		"9007199254740993", "9007199254740993.0", // 2^53+1
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			tag, val, errCode := parseNumber(padNumber(s))
			if errCode != Success {
				t.Fatalf("unexpected error %v", errCode)
			}
			want, err := strconv.ParseFloat(s, 64)
			if err != nil {
				if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
					t.Fatalf("reference rejected %q: %v", s, err)
				}
			}
			switch tag {
			case TagFloat:
				got := math.Float64frombits(val)
				if got != want {
					t.Fatalf("got %v, want %v", got, want)
				}
			case TagInteger:
				if float64(int64(val)) != want {
					t.Fatalf("integer %d does not match reference %v", int64(val), want)
				}
			case TagUint:
				if float64(val) != want {
					t.Fatalf("uint %d does not match reference %v", val, want)
				}
			}
		})
	}
}

func TestFloatOverflowRejected(t *testing.T) {
	for _, s := range []string{"1e400", "-1e400", "1e309", "-1e309", "1e99999"} {
		_, _, errCode := parseNumber(padNumber(s))
		if errCode != ErrNumber {
			t.Errorf("%s: got %v, want ErrNumber", s, errCode)
		}
	}
}

func TestNumberRandomRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for round := 0; round < 5000; round++ {
		var s string
		switch round % 3 {
		case 0:
			s = strconv.FormatInt(rng.Int63()-rng.Int63(), 10)
		case 1:
			f := math.Float64frombits(rng.Uint64())
			if math.IsInf(f, 0) || math.IsNaN(f) {
				continue
			}
			s = strconv.FormatFloat(f, 'g', -1, 64)
		case 2:
			s = fmt.Sprintf("%d.%09de%d", rng.Intn(1000), rng.Intn(1000000000), rng.Intn(600)-300)
		}
		tag, val, errCode := parseNumber(padNumber(s))
		want, werr := strconv.ParseFloat(s, 64)
		if math.IsInf(want, 0) {
			if errCode == Success {
				t.Fatalf("%q: accepted but overflows float64", s)
			}
			continue
		}
		if werr != nil {
			if ne, ok := werr.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
				continue
			}
			// underflow: both sides round towards zero and agree below
		}
		if errCode != Success {
			t.Fatalf("%q: unexpected error %v", s, errCode)
		}
		var got float64
		switch tag {
		case TagFloat:
			got = math.Float64frombits(val)
		case TagInteger:
			got = float64(int64(val))
		case TagUint:
			got = float64(val)
		}
		if got != want {
			t.Fatalf("%q: got %v want %v", s, got, want)
		}
	}
}
