// SPDX-License-Identifier: MPL-2.0

package cwl

// Ports of the staging tools and of the monolithic workflow.
const (
	StacJSON        = "stac_json"
	DownloadDir     = "download_dir"
	StagingBucket   = "staging_bucket"
	CollectionID    = "collection_id"
	OutputDirectory = "output_dir"

	StageInCollection = "stage_in_collection_file"
	StageInDownload   = "stage_in_download_dir"

	SuccessfulFeatures = "successful_features"
	FailedFeatures     = "failed_features"

	stepStageIn  = "stage_in"
	stepProcess  = "process"
	stepStageOut = "stage_out"

	defaultDownloadDir = "granules"
	stageEntrypoint    = "cumulus_lambda_functions.docker_entry.run_docker"
)

func (g *Generator) stagingRequirements() Requirements {
	return Requirements{
		Docker:  &DockerRequirement{DockerPull: g.stageImage},
		Network: &NetworkAccess{NetworkAccess: true},
	}
}

func (g *Generator) stageInTool() Tool {
	tool := Tool{
		CWLVersion:   Version,
		Class:        classTool,
		Label:        "Stage in",
		Doc:          "Downloads the granules of a STAC collection and writes a local catalog.",
		Requirements: g.stagingRequirements(),
		BaseCommand:  []string{"python", "-m", stageEntrypoint},
		Arguments:    []Binding{{Position: 1, ValueFrom: "DOWNLOAD"}},
	}
	tool.Inputs.Set(StacJSON, ToolInput{
		Type:         typeString,
		Doc:          "STAC collection or item search URL, or inline STAC JSON",
		InputBinding: &Binding{Position: 2, Prefix: "--stac-json"},
	})
	tool.Inputs.Set(DownloadDir, ToolInput{
		Type:         typeString,
		Default:      defaultDownloadDir,
		InputBinding: &Binding{Position: 3, Prefix: "--download-dir"},
	})
	tool.Outputs.Set(StageInCollection, ToolOutput{
		Type:          typeFile,
		OutputBinding: &OutputBinding{Glob: "$(inputs.download_dir)/catalog.json"},
	})
	tool.Outputs.Set(StageInDownload, ToolOutput{
		Type:          typeDirectory,
		OutputBinding: &OutputBinding{Glob: "$(inputs.download_dir)"},
	})
	return tool
}

func (g *Generator) stageOutTool() Tool {
	tool := Tool{
		CWLVersion:   Version,
		Class:        classTool,
		Label:        "Stage out",
		Doc:          "Uploads the process results to the staging bucket and catalogs them.",
		Requirements: g.stagingRequirements(),
		BaseCommand:  []string{"python", "-m", stageEntrypoint},
		Arguments:    []Binding{{Position: 1, ValueFrom: "UPLOAD"}},
	}
	tool.Inputs.Set(OutputDirectory, ToolInput{
		Type:         typeDirectory,
		InputBinding: &Binding{Position: 2, Prefix: "--output-dir"},
	})
	tool.Inputs.Set(StagingBucket, ToolInput{
		Type:         typeString,
		InputBinding: &Binding{Position: 3, Prefix: "--staging-bucket"},
	})
	tool.Inputs.Set(CollectionID, ToolInput{
		Type:         typeString,
		InputBinding: &Binding{Position: 4, Prefix: "--collection-id"},
	})
	tool.Outputs.Set(SuccessfulFeatures, ToolOutput{
		Type:          typeFile,
		OutputBinding: &OutputBinding{Glob: "successful_features.json"},
	})
	tool.Outputs.Set(FailedFeatures, ToolOutput{
		Type:          typeFile,
		OutputBinding: &OutputBinding{Glob: "failed_features.json"},
	})
	return tool
}

// workflow chains stage in, the process and stage out. The first STAC input
// of the process receives the staged catalog; its first output, or its whole
// output directory when the notebook declares none, is staged out. Every other
// process input becomes a workflow input.
func (g *Generator) workflow(app *application) Workflow {
	staged := processOutputDir
	outputs := app.outputs()
	if len(outputs) > 0 {
		staged = outputs[0].Name
	}

	wf := Workflow{
		CWLVersion: Version,
		Class:      classWorkflow,
		Label:      app.name(),
		Doc:        app.notebook.Description(),
	}
	wf.Inputs.Set(StacJSON, ToolInput{Type: typeString, Doc: "STAC collection to stage in"})

	stageIn := Step{Run: StageInFile, Out: []string{StageInCollection, StageInDownload}}
	stageIn.In.Set(StacJSON, StacJSON)
	wf.Steps.Set(stepStageIn, stageIn)

	process := Step{Run: ProcessFile}
	stagedIn := false
	for _, p := range app.inputs() {
		if !stagedIn && isSTAC(p) {
			process.In.Set(p.Name, stepStageIn+"/"+StageInCollection)
			stagedIn = true
			continue
		}
		in := ToolInput{Type: cwlType(p), Doc: p.Description}
		if in.Type != typeFile {
			in.Default = p.Value()
		}
		wf.Inputs.Set(p.Name, in)
		process.In.Set(p.Name, p.Name)
	}
	for _, p := range outputs {
		process.Out = append(process.Out, p.Name)
	}
	if len(outputs) == 0 {
		process.Out = append(process.Out, processOutputDir)
	}
	process.Out = append(process.Out, executedNotebookOutput)
	wf.Steps.Set(stepProcess, process)

	wf.Inputs.Set(StagingBucket, ToolInput{Type: typeString, Doc: "bucket receiving the results"})
	wf.Inputs.Set(CollectionID, ToolInput{Type: typeString, Doc: "collection the results are cataloged in"})

	stageOut := Step{Run: StageOutFile, Out: []string{SuccessfulFeatures, FailedFeatures}}
	stageOut.In.Set(OutputDirectory, stepProcess+"/"+staged)
	stageOut.In.Set(StagingBucket, StagingBucket)
	stageOut.In.Set(CollectionID, CollectionID)
	wf.Steps.Set(stepStageOut, stageOut)

	wf.Outputs.Set(SuccessfulFeatures, WorkflowOutput{Type: typeFile, OutputSource: stepStageOut + "/" + SuccessfulFeatures})
	wf.Outputs.Set(FailedFeatures, WorkflowOutput{Type: typeFile, OutputSource: stepStageOut + "/" + FailedFeatures})
	wf.Outputs.Set(executedNotebookOutput, WorkflowOutput{Type: typeFile, OutputSource: stepProcess + "/" + executedNotebookOutput})
	return wf
}
