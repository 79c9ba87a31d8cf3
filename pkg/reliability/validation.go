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

package reliability

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync/atomic"
)

// MaxValueSize 单个存储值的最大字节数
const MaxValueSize = 1024 * 1024

var (
	// ErrChecksum 存储值 CRC 校验失败
	ErrChecksum = errors.New("checksum mismatch")
	// ErrValueTooLarge 编码后的值超过 MaxValueSize
	ErrValueTooLarge = errors.New("value too large")
)

var (
	// ValidationErrorCounter 验证错误计数器
	ValidationErrorCounter int64
)

// DataValidator 数据验证器
// enableCRC 为 false 时所有 CRC 操作都是空操作
type DataValidator struct {
	enableCRC bool
}

// NewDataValidator 创建数据验证器
func NewDataValidator(enableCRC bool) *DataValidator {
	return &DataValidator{
		enableCRC: enableCRC,
	}
}

// CRCEnabled 是否启用 CRC
func (dv *DataValidator) CRCEnabled() bool {
	return dv != nil && dv.enableCRC
}

// AppendCRC 将 CRC 附加到数据末尾
func (dv *DataValidator) AppendCRC(data []byte) []byte {
	if !dv.CRCEnabled() {
		return data
	}

	crc := crc32.ChecksumIEEE(data)
	result := make([]byte, len(data)+4)
	copy(result, data)
	binary.LittleEndian.PutUint32(result[len(data):], crc)

	return result
}

// ValidateAndStripCRC 验证并移除数据末尾的 CRC
func (dv *DataValidator) ValidateAndStripCRC(data []byte) ([]byte, error) {
	if !dv.CRCEnabled() {
		return data, nil
	}

	if len(data) < 4 {
		atomic.AddInt64(&ValidationErrorCounter, 1)
		return nil, fmt.Errorf("%w: data too short (%d bytes)", ErrChecksum, len(data))
	}

	dataLen := len(data) - 4
	expectedCRC := binary.LittleEndian.Uint32(data[dataLen:])

	actualCRC := crc32.ChecksumIEEE(data[:dataLen])
	if actualCRC != expectedCRC {
		atomic.AddInt64(&ValidationErrorCounter, 1)
		return nil, fmt.Errorf("%w: expected %x, got %x", ErrChecksum, expectedCRC, actualCRC)
	}

	return data[:dataLen], nil
}

// ValidateValue 检查编码后的值大小
func (dv *DataValidator) ValidateValue(value []byte) error {
	if len(value) > MaxValueSize {
		atomic.AddInt64(&ValidationErrorCounter, 1)
		return fmt.Errorf("%w: %d bytes (max %d bytes)", ErrValueTooLarge, len(value), MaxValueSize)
	}
	return nil
}

// GetValidationErrorCount 获取验证错误计数
func GetValidationErrorCount() int64 {
	return atomic.LoadInt64(&ValidationErrorCounter)
}

// ResetValidationErrorCount 重置验证错误计数
func ResetValidationErrorCount() {
	atomic.StoreInt64(&ValidationErrorCounter, 0)
}
