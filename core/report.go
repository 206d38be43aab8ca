/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultMaxDiagnostic bounds the diagnostic text that Report
// includes.
var DefaultMaxDiagnostic = 1024

// Report renders a readable diagnostic for the given status code,
// context label, and (optional) diagnostic value.
//
// Report never fails.  If the diagnostic can't be rendered, the result
// just has the code and label.
func Report(code StatusCode, label string, diagnostic interface{}) string {
	return report(code, label, diagnostic, DefaultMaxDiagnostic)
}

func report(code StatusCode, label string, diagnostic interface{}, max int) string {
	bare := fmt.Sprintf("%s, return code is %s", label, code)
	if diagnostic == nil {
		return bare
	}
	text, ok := diagnosticText(diagnostic, max)
	if !ok || text == "" {
		return bare
	}
	return fmt.Sprintf("%s (%s), error message: %s", label, code, text)
}

// diagnosticText extracts bounded text from a diagnostic value.  A
// Stringer or error that panics gives ok = false.
func diagnosticText(x interface{}, max int) (text string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			text, ok = "", false
		}
	}()

	switch vv := x.(type) {
	case string:
		text = vv
	case []byte:
		text = string(vv)
	case error:
		text = vv.Error()
	case fmt.Stringer:
		text = vv.String()
	default:
		text = fmt.Sprintf("%v", vv)
	}
	return truncate(text, max), true
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	const ellipsis = "..."
	cut := max - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + ellipsis
}

// reporter turns failed outcomes into Faults and logs them.
type reporter struct {
	logger *zap.Logger
	max    int
}

func (r *reporter) fault(code StatusCode, label string, diagnostic interface{}) *Fault {
	f := &Fault{
		Code:  code,
		Label: label,
	}
	if diagnostic != nil {
		if text, ok := diagnosticText(diagnostic, r.max); ok {
			f.Diagnostic = text
		}
	}
	r.logger.Warn("fiber fault",
		zap.Stringer("code", code),
		zap.String("label", label),
		zap.String("diagnostic", f.Diagnostic))
	return f
}

func (r *reporter) violation(state DriverState, reason string) *ProtocolViolation {
	v := &ProtocolViolation{
		State:  state,
		Reason: reason,
	}
	r.logger.Warn("protocol violation",
		zap.Stringer("state", state),
		zap.String("reason", reason))
	return v
}
