// SPDX-License-Identifier: MPL-2.0

// Package cwl generates the application package of a notebook repository.
//
// The package holds a CommandLineTool (process.cwl) that runs the notebook
// with papermill inside the application image, and an OGC API Processes
// descriptor (applicationDescriptor.json). Notebook parameters become process
// inputs; parameters prefixed with "output_" become output directories that
// papermill points at the tool's output directory.
//
// In monolithic mode the package also holds stage in and stage out tools and
// a workflow running stage_in, process and stage_out in sequence.
package cwl
