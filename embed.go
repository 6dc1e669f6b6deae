package aichatbackend

import "embed"

// TemplateFS contains the embedded HTML templates used for rendering conversation
// transcripts.
//
//go:embed templates/*
var TemplateFS embed.FS
