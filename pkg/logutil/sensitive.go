// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"regexp"
)

var (
	// user:password@host style credentials in a DSN
	dsnUserPassRegexp = regexp.MustCompile(`([^:/@]+):([^@/]*)@`)
	// password=... or _auth_pass=... query parameters
	dsnParamRegexp = regexp.MustCompile(`((?:password|_auth_pass)=)([^&]*)`)
)

// HideSensitive replaces credentials in a metastore DSN with `******`
// so the DSN can be logged.
func HideSensitive(dsn string) string {
	output := dsnUserPassRegexp.ReplaceAllString(dsn, "$1:******@")
	output = dsnParamRegexp.ReplaceAllString(output, "${1}******")
	return output
}
