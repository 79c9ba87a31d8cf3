// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ballot

import (
	"fmt"
)

// Choice is one of the three ballot options
type Choice int

const (
	Approve Choice = iota + 1
	Reject
	Pass
)

var choiceLabels = map[Choice]string{
	Approve: "approve",
	Reject:  "reject",
	Pass:    "pass",
}

// ParseChoice 严格解析选项标签（区分大小写），未知标签返回 ErrInvalidInput
func ParseChoice(label string) (Choice, error) {
	for c, l := range choiceLabels {
		if l == label {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown choice %q", ErrInvalidInput, label)
}

// Valid 是否为三个选项之一
func (c Choice) Valid() bool {
	_, ok := choiceLabels[c]
	return ok
}

func (c Choice) String() string {
	if l, ok := choiceLabels[c]; ok {
		return l
	}
	return fmt.Sprintf("choice(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler
func (c Choice) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: choice %d", ErrInvalidInput, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Choice) UnmarshalText(text []byte) error {
	parsed, err := ParseChoice(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
