// Copyright 2022 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package matcher

import (
	"reflect"
	"strings"

	o "github.com/onsi/gomega"
	"github.com/onsi/gomega/gcustom"
	"github.com/onsi/gomega/types"
)

// HaveOptionalField succeeds if the actual value has the specified field and
// its value satisfies the expected value or matcher, exactly as HaveField.
// Unlike HaveField, an actual value without such a field doesn't fail the
// match with an error, so HaveOptionalField can be combined with Or to match
// differently structured values, such as ActionRecords and Violations.
//
// Fields can be nested using "." and can be parameterless methods returning
// a single value, such as "Tombstone()".
func HaveOptionalField(field string, expected any) types.GomegaMatcher {
	path := strings.Split(field, ".")
	return gcustom.MakeMatcher(func(actual any) (bool, error) {
		if !hasField(reflect.ValueOf(actual), path) {
			return false, nil
		}
		return o.HaveField(field, expected).Match(actual)
	}).WithTemplate("Expected:\n{{.FormattedActual}}\n{{.To}} have optional field {{.Data}} matching", field)
}

// hasField returns true if the specified value has the (nested) field or
// method specified by path.
func hasField(v reflect.Value, path []string) bool {
	for _, name := range path {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return false
			}
			v = v.Elem()
		}
		if method, ok := strings.CutSuffix(name, "()"); ok {
			m := v.MethodByName(method)
			if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
				return false
			}
			v = m.Call(nil)[0]
			continue
		}
		if v.Kind() != reflect.Struct {
			return false
		}
		v = v.FieldByName(name)
		if !v.IsValid() {
			return false
		}
	}
	return true
}
