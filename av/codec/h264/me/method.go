// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package me 实现整像素运动搜索、分像素细化、双向联合细化和率失真细化。
package me

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Method 整像素搜索方法
type Method int

// 搜索方法
const (
	MethodDia Method = iota
	MethodHex
	MethodUMH
	MethodESA
	MethodTESA
)

var methodNames = [...]string{"dia", "hex", "umh", "esa", "tesa"}

func (m Method) String() string {
	if m >= 0 && int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod 解析方法名，不区分大小写
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range methodNames {
		if name == s {
			return Method(i), nil
		}
	}
	return MethodHex, errors.Errorf("unknown motion search method %q", s)
}

// Set 实现 flag.Value
func (m *Method) Set(s string) error {
	v, err := ParseMethod(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalText .
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText .
func (m *Method) UnmarshalText(text []byte) error {
	return m.Set(string(text))
}
