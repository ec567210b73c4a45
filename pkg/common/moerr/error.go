// Copyright 2023 Silt Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"fmt"
	"io"
)

const (
	// 0 - 99 is OK. They do not carry contextual info and are special
	// handled with static instances, no alloc.
	Ok            uint16 = 0
	OkExpectedEOF uint16 = 2 // Expected End Of File
	OkExpectedEOB uint16 = 3 // Expected End of Batch

	OkMax uint16 = 99

	// Group 1: internal errors
	ErrStart            uint16 = 20100
	ErrInternal         uint16 = 20101
	ErrNYI              uint16 = 20102
	ErrOOM              uint16 = 20103
	ErrQueryInterrupted uint16 = 20104
	ErrNotSupported     uint16 = 20105
	ErrLimitExceeded    uint16 = 20106

	// Group 2: invalid input
	ErrBadConfig     uint16 = 20300
	ErrInvalidInput  uint16 = 20301
	ErrInvalidState  uint16 = 20400
	ErrUnexpectedEOF uint16 = 20407
	ErrInvalidPath   uint16 = 20411

	// Group End: max value of error code
	ErrEnd uint16 = 65535
)

type errorItem struct {
	fmtOrMsg string
}

var errorMsgRefer = map[uint16]errorItem{
	ErrInternal:         {"internal error: %s"},
	ErrNYI:              {"%s is not yet implemented"},
	ErrOOM:              {"out of memory"},
	ErrQueryInterrupted: {"query interrupted"},
	ErrNotSupported:     {"%s is not supported"},
	ErrLimitExceeded:    {"limit exceeded: %s"},
	ErrBadConfig:        {"invalid configuration: %s"},
	ErrInvalidInput:     {"invalid input: %s"},
	ErrInvalidState:     {"invalid state %s"},
	ErrInvalidPath:      {"invalid file path '%s'"},
	ErrUnexpectedEOF:    {"unexpected end of file %s"},
}

type Error struct {
	code    uint16
	message string
}

func newError(_ context.Context, code uint16, args ...any) *Error {
	item, has := errorMsgRefer[code]
	if !has {
		panic(fmt.Sprintf("not exist error code: %d", code))
	}
	if len(args) == 0 {
		return &Error{code: code, message: item.fmtOrMsg}
	}
	return &Error{code: code, message: fmt.Sprintf(item.fmtOrMsg, args...)}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Succeeded() bool {
	return e.code < OkMax
}

func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}
	me, ok := e.(*Error)
	if !ok {
		return false
	}
	return me.code == rc
}

func DowncastError(e error) *Error {
	if err, ok := e.(*Error); ok {
		return err
	}
	return &Error{code: ErrInternal, message: fmt.Sprintf("downcast error failed: %v", e)}
}

// ConvertGoError converts a go error into a coded error.
// Note here we must return error, because a nil error is not the same
// as a nil *Error -- Go strangeness.
func ConvertGoError(ctx context.Context, err error) error {
	if err == nil {
		return err
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// if io.EOF reaches here, we believe it is not expected.
		return NewUnexpectedEOF(ctx, err.Error())
	}
	return NewInternalError(ctx, "convert go error: %v", err)
}

// Special handling of OK codes. These are not errors, but signal different
// success conditions on tight loops where we cannot afford to new an Error.
var errOkExpectedEOF = Error{OkExpectedEOF, "ExpectedEOF"}
var errOkExpectedEOB = Error{OkExpectedEOB, "ExpectedEOB"}

func GetOkExpectedEOF() *Error {
	return &errOkExpectedEOF
}

func GetOkExpectedEOB() *Error {
	return &errOkExpectedEOB
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInternal, fmt.Sprintf(msg, args...))
}

func NewNYI(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrNYI, fmt.Sprintf(msg, args...))
}

func NewNotSupported(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrNotSupported, fmt.Sprintf(msg, args...))
}

func NewOOM(ctx context.Context) *Error {
	return newError(ctx, ErrOOM)
}

func NewQueryInterrupted(ctx context.Context) *Error {
	return newError(ctx, ErrQueryInterrupted)
}

func NewLimitExceeded(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrLimitExceeded, fmt.Sprintf(msg, args...))
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrBadConfig, fmt.Sprintf(msg, args...))
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidInput, fmt.Sprintf(msg, args...))
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	return newError(ctx, ErrInvalidState, fmt.Sprintf(msg, args...))
}

func NewInvalidPath(ctx context.Context, f string) *Error {
	return newError(ctx, ErrInvalidPath, f)
}

func NewUnexpectedEOF(ctx context.Context, f string) *Error {
	return newError(ctx, ErrUnexpectedEOF, f)
}
