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

// Package tools has utilities for people who write fiber scripts.
package tools

import (
	"fmt"
	"html"
	"io"

	"github.com/Comcast/fibers/core"

	md "github.com/russross/blackfriday/v2"
)

// RenderCapabilitiesHTML writes an HTML table of the capabilities and
// their (Markdown) documentation.
func RenderCapabilitiesHTML(cs *core.Capabilities, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	f(`<div class="capabilities"><table>`)
	cs.Each(func(c *core.Capability) {
		name := html.EscapeString(c.Name)
		f(`<tr class="capability"><td><span id="%s" class="capabilityName">fiber.%s</span></td><td>`, name, name)
		if c.Doc != "" {
			f(`<div class="capabilityDoc doc">%s</div>`, md.Run([]byte(c.Doc)))
		}
		f(`</td></tr>`)
	})
	f(`</table></div>`)

	return nil
}

// RenderCapabilitiesPage writes a complete HTML page.
func RenderCapabilitiesPage(title string, cs *core.Capabilities, out io.Writer, cssFiles []string) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/capabilities.css"}
	}

	title = html.EscapeString(title)

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, title)

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, title)

	if err := RenderCapabilitiesHTML(cs, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}
