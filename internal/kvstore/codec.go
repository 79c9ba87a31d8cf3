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

package kvstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"voteStore/pkg/reliability"
)

// ErrCorrupt 存储中的值无法解码
var ErrCorrupt = errors.New("kvstore: corrupt value")

// EncodeKey 将 uint64 编码为 8 字节大端序，保证字节序与数值序一致
func EncodeKey[K ~uint64](key K) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(key))
	return b
}

// DecodeKey 解码 EncodeKey 的结果
func DecodeKey[K ~uint64](b []byte) (K, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("%w: key length %d", ErrCorrupt, len(b))
	}
	return K(binary.BigEndian.Uint64(b)), nil
}

// encodeValue JSON 编码，启用时追加 CRC
func encodeValue[V any](v V, validator *reliability.DataValidator) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	data = validator.AppendCRC(data)
	if err := validator.ValidateValue(data); err != nil {
		return nil, err
	}
	return data, nil
}

// decodeValue 校验 CRC 后 JSON 解码
func decodeValue[V any](data []byte, validator *reliability.DataValidator) (V, error) {
	var v V
	payload, err := validator.ValidateAndStripCRC(data)
	if err != nil {
		return v, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return v, nil
}
