// SPDX-License-Identifier: MPL-2.0

package cwl

import (
	"strings"

	"appgen-cli/internal/notebook"
)

const (
	typeAny       = "Any"
	typeBoolean   = "boolean"
	typeDirectory = "Directory"
	typeDouble    = "double"
	typeFile      = "File"
	typeInt       = "int"
	typeString    = "string"
)

// cwlType maps a notebook parameter to the CWL type of its process port.
// Outputs are directories; inputs naming a STAC catalog are files.
func cwlType(p notebook.Parameter) string {
	if p.Output() {
		return typeDirectory
	}
	if isSTAC(p) {
		return typeFile
	}
	switch p.Kind {
	case notebook.KindInt:
		return typeInt
	case notebook.KindFloat:
		return typeDouble
	case notebook.KindBool:
		return typeBoolean
	case notebook.KindNone:
		return typeString + "?"
	case notebook.KindList, notebook.KindDict:
		return typeAny
	default:
		return typeString
	}
}

func isSTAC(p notebook.Parameter) bool {
	return p.Input() && strings.Contains(strings.ToLower(p.Name), "stac")
}

// schemaType maps a notebook parameter to a JSON schema type.
func schemaType(p notebook.Parameter) (typ, format string) {
	if p.Output() || isSTAC(p) {
		return "string", "uri"
	}
	switch p.Kind {
	case notebook.KindInt:
		return "integer", ""
	case notebook.KindFloat:
		return "number", ""
	case notebook.KindBool:
		return "boolean", ""
	case notebook.KindList:
		return "array", ""
	case notebook.KindDict:
		return "object", ""
	default:
		return "string", ""
	}
}
