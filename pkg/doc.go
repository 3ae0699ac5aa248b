// Package pkg provides the core libraries for certforge.
//
// # Overview
//
// Certforge turns a layout config, a participant and an event into a
// numbered participation certificate rendered twice, as a vector PDF and a
// raster PNG, from one composed scene. The pkg directory is organized into
// these areas:
//
//  1. [layout], [render] - Design model and the two renderers
//  2. [assets] - Font and image resolution with graceful degradation
//  3. [numbering], [store], [blob] - Numbers, records and artifacts
//  4. [orchestrator], [pipeline] - Issuing certificates end to end
//  5. [cache], [observability], [errors] - Shared infrastructure
//
// # Architecture
//
// The data flow for one certificate:
//
//	layout config ──▶ [layout].Resolve ──▶ Model
//	                                        │
//	     [assets].Resolver (fonts, images) ◀┘
//	                                        │
//	        [render/scene].Compose ◀────────┘
//	                 │
//	     ┌───────────┴───────────┐
//	[render/sink].RenderPDF  [render/sink].RenderPNG
//	     └───────────┬───────────┘
//	           [blob].Store ──▶ [store].Store record
//
// # Quick Start
//
// Render a preview without numbering or storing it:
//
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, err := runner.Execute(ctx, layout.Default(), scene.Data{
//	    ParticipantName: "Ada B. Lovelace",
//	    Number:          "PREVIEW-000001",
//	}, pipeline.Options{})
//	pdf, png := res.Artifacts["pdf"], res.Artifacts["png"]
//
// Issue a certificate exactly once:
//
//	orch := orchestrator.New(st, blobs, runner, orchestrator.Options{})
//	res, err := orch.Generate(ctx, orchestrator.Request{...})
//
// [layout]: github.com/matzehuels/certforge/pkg/layout
// [render]: github.com/matzehuels/certforge/pkg/render
// [render/scene]: github.com/matzehuels/certforge/pkg/render/scene
// [render/sink]: github.com/matzehuels/certforge/pkg/render/sink
// [assets]: github.com/matzehuels/certforge/pkg/assets
// [numbering]: github.com/matzehuels/certforge/pkg/numbering
// [store]: github.com/matzehuels/certforge/pkg/store
// [blob]: github.com/matzehuels/certforge/pkg/blob
// [orchestrator]: github.com/matzehuels/certforge/pkg/orchestrator
// [pipeline]: github.com/matzehuels/certforge/pkg/pipeline
// [cache]: github.com/matzehuels/certforge/pkg/cache
// [observability]: github.com/matzehuels/certforge/pkg/observability
// [errors]: github.com/matzehuels/certforge/pkg/errors
package pkg
