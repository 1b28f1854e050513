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

import "strings"

// AtPointer resolves an RFC 6901 JSON Pointer against the first document
// and returns an iterator positioned at the referenced value.
//
// The empty pointer returns the document's root value. A missing object key
// is ErrNoSuchField, an index past an array's end is ErrIndexOutOfBounds,
// descending into a scalar is ErrIncorrectType, and a syntactically invalid
// pointer is ErrInvalidJSONPointer.
func (d *Document) AtPointer(pointer string) (*Iter, error) {
	it := d.Iter()
	if it.Advance() != TypeRoot {
		return nil, ErrInvalidJSONPointer
	}
	var cur Iter
	if _, _, err := it.Root(&cur); err != nil {
		return nil, err
	}

	if pointer == "" {
		return &cur, nil
	}
	if pointer[0] != '/' {
		return nil, ErrInvalidJSONPointer
	}

	for _, token := range strings.Split(pointer[1:], "/") {
		token, ok := unescapePointerToken(token)
		if !ok {
			return nil, ErrInvalidJSONPointer
		}
		switch cur.Type() {
		case TypeObject:
			obj, err := cur.Object(nil)
			if err != nil {
				return nil, err
			}
			elem := obj.FindKey(token, nil)
			if elem == nil {
				return nil, ErrNoSuchField
			}
			cur = elem.Iter
		case TypeArray:
			idx, ok := parseArrayIndex(token)
			if !ok {
				return nil, ErrInvalidJSONPointer
			}
			arr, err := cur.Array(nil)
			if err != nil {
				return nil, err
			}
			if _, err := arr.At(idx, &cur); err != nil {
				return nil, err
			}
		default:
			return nil, ErrIncorrectType
		}
	}
	return &cur, nil
}

// unescapePointerToken expands ~1 to '/' and ~0 to '~'. A '~' followed by
// anything else is invalid.
func unescapePointerToken(token string) (string, bool) {
	if !strings.ContainsRune(token, '~') {
		return token, true
	}
	var b strings.Builder
	b.Grow(len(token))
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c != '~' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(token) {
			return "", false
		}
		switch token[i] {
		case '0':
			b.WriteByte('~')
		case '1':
			b.WriteByte('/')
		default:
			return "", false
		}
	}
	return b.String(), true
}

// parseArrayIndex accepts a non-negative decimal with no leading zeros, as
// RFC 6901 requires.
func parseArrayIndex(token string) (int, bool) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, false
	}
	n := 0
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		if n > (1<<31-1-9)/10 {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
