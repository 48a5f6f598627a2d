package generation

import (
	"strings"

	"prd-generator-api/internal/domain/entity"
)

const promptTemplate = `Based on the following PRD (Product Requirements Document), create a complete, production-ready project with all necessary code files.

PRD Content:
{{PRD}}

Please provide a COMPLETE implementation including:
1. Full file structure with all directories
2. ALL necessary code files with complete implementations (no placeholders)
3. Configuration files (package.json, requirements.txt, etc.)
4. Environment files (.env.example)
5. Comprehensive README.md with project overview, installation instructions, usage examples, API documentation (if applicable) and a deployment guide
6. Unit tests for core functionality
7. Docker configuration if applicable
8. CI/CD configuration files (GitHub Actions, etc.) if applicable
9. Database schemas/migrations if applicable
10. Any additional files needed for a production-ready application

IMPORTANT: Provide COMPLETE, DETAILED implementations.
Do not use comments like "// Add more code here" or placeholders.
Every function should be fully implemented.

If the PRD doesn't specify a project name, use an appropriate name based on the content.

Format your response as JSON with this structure:
{
    "project_name": "appropriate_project_name_based_on_content",
    "files": [
        {
            "path": "relative/path/to/file.ext",
            "content": "complete file content here"
        }
    ]
}`

// BuildPrompt 将 PRD 填入生成提示词
func BuildPrompt(prd string) string {
	return strings.Replace(promptTemplate, "{{PRD}}", prd, 1)
}

// CombinePRD 合并上传文件与粘贴文本；有上传文件时忽略粘贴文本
func CombinePRD(text string, files []entity.SourceFile) string {
	var parts []string
	for _, f := range files {
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		parts = append(parts, "=== File: "+f.Name+" ===\n"+f.Content)
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}
	return strings.TrimSpace(text)
}
