// SPDX-License-Identifier: MPL-2.0

// Package catalog registers application packages in a Dockstore catalog as
// hosted CWL workflows. Every request carries the user's bearer token.
package catalog
