package content

import (
	_ "embed"
)

//go:embed analyze_system.tmpl
var analyzeSystemPrompt string

//go:embed scene_system.tmpl
var sceneSystemPrompt string

// analysisSchema is the JSON Schema analysis output is validated against.
const analysisSchema = `{
	"type": "object",
	"required": ["chapter_summary", "thematic_framing", "key_lessons", "author_voice", "image_prompts", "video_scene"],
	"properties": {
		"chapter_summary": {"type": "string", "minLength": 1},
		"thematic_framing": {"type": "string"},
		"key_lessons": {"type": "string"},
		"author_voice": {"type": "string"},
		"image_prompts": {"type": "array", "items": {"type": "string"}},
		"video_scene": {"type": "string"}
	}
}`
