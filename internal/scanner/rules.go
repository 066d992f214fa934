package scanner

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Detection is an ordered list of independent rules over the same inputs:
// presence rules look at file paths, content rules look at one fetched
// representative file per category. Rules are cumulative - a repository
// can match any number of them.

type stackRule struct {
	label string
	match func(files []string) bool
}

var stackRules = []stackRule{
	{"Python", func(files []string) bool {
		return anyWithSuffix(files, "requirements.txt") || anyWithSuffix(files, "pyproject.toml")
	}},
	{"JavaScript/Node.js", func(files []string) bool {
		return anyWithSuffix(files, "package.json")
	}},
	{"Next.js", func(files []string) bool {
		return anyWithSuffix(files, "package.json") && anyContains(files, "next")
	}},
	{"Go", func(files []string) bool {
		return anyWithSuffix(files, "go.mod")
	}},
	{"Rust", func(files []string) bool {
		return anyWithSuffix(files, "Cargo.toml")
	}},
}

func detectStack(files []string) []string {
	stack := []string{}
	for _, rule := range stackRules {
		if rule.match(files) {
			stack = append(stack, rule.label)
		}
	}
	return stack
}

type presenceRule struct {
	needle  string
	feature string
}

var presenceRules = []presenceRule{
	{"docker-compose", "Containerized / Easy Deploy [docker-compose.yml]"},
	{".github/workflows", "CI/CD Pipeline Active [.github/workflows]"},
}

// collectPresenceEvidence appends features derived purely from file paths.
func collectPresenceEvidence(files []string, ev *Evidence) {
	for _, rule := range presenceRules {
		if anyContains(files, rule.needle) {
			ev.Features = append(ev.Features, rule.feature)
		}
	}

	testCount := 0
	for _, f := range files {
		lower := strings.ToLower(f)
		if !strings.Contains(lower, "test") {
			continue
		}
		if strings.HasSuffix(lower, ".py") || strings.HasSuffix(lower, ".js") || strings.HasSuffix(lower, ".ts") {
			testCount++
		}
	}
	ev.TestCount = testCount
	if testCount > 0 {
		ev.Features = append(ev.Features, fmt.Sprintf("Includes %d Test Suites [tests/]", testCount))
	}
}

type manifestRule struct {
	needle  string
	feature string
}

var manifestRules = []manifestRule{
	{"stripe", "Payment Integration (Stripe)"},
	{"fastapi", "FastAPI High Performance"},
	{"django", "Django Core"},
}

// collectManifestEvidence matches known dependency names in the fetched
// package manifest. Matches cite the manifest file they came from.
func collectManifestEvidence(manifestPath, content string, ev *Evidence) {
	if manifestPath == "" || content == "" {
		return
	}
	lower := strings.ToLower(content)
	for _, rule := range manifestRules {
		if strings.Contains(lower, rule.needle) {
			ev.Features = append(ev.Features, fmt.Sprintf("%s [%s]", rule.feature, manifestPath))
		}
	}
}

var (
	classPattern  = regexp.MustCompile(`class\s+(\w+)\(`)
	prismaPattern = regexp.MustCompile(`model\s+(\w+)\s+\{`)
)

const maxEntities = 5

// collectEntities extracts type names from the first conventional
// model-definition file, via two independent pattern families.
func collectEntities(modelPath, content string, ev *Evidence) {
	if modelPath == "" || content == "" {
		return
	}

	var entities []string
	for _, m := range classPattern.FindAllStringSubmatch(content, -1) {
		entities = append(entities, m[1])
	}
	for _, m := range prismaPattern.FindAllStringSubmatch(content, -1) {
		entities = append(entities, m[1])
	}
	if len(entities) > maxEntities {
		entities = entities[:maxEntities]
	}
	if len(entities) == 0 {
		return
	}

	ev.Entities = entities
	ev.Features = append(ev.Features, fmt.Sprintf("Data Models: %s [%s]", strings.Join(entities, ", "), modelPath))
}

var modelFileCandidates = []string{"models.py", "schema.prisma"}

func firstModelFile(files []string) string {
	for _, f := range files {
		for _, candidate := range modelFileCandidates {
			if strings.Contains(f, candidate) {
				return f
			}
		}
	}
	return ""
}

// entryCandidates is the fixed priority order for entry-point resolution.
var entryCandidates = []string{
	"main.py", "app.py", "index.js", "app.js", "index.ts",
	"src/index.js", "src/main.rs", "main.go",
}

// resolveEntryPoint returns the first exact candidate match, falling back
// to the first path containing "main" or "app". An empty result is not an
// error - some repositories simply have no recognizable entry point.
func resolveEntryPoint(files []string) string {
	for _, candidate := range entryCandidates {
		for _, f := range files {
			if f == candidate {
				return candidate
			}
		}
	}
	for _, f := range files {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "main") || strings.Contains(lower, "app") {
			return f
		}
	}
	return ""
}

// findReadme locates the README by case-insensitive exact basename match.
func findReadme(files []string) string {
	for _, f := range files {
		if strings.EqualFold(path.Base(f), "readme.md") {
			return f
		}
	}
	return ""
}

func anyWithSuffix(files []string, suffix string) bool {
	for _, f := range files {
		if strings.HasSuffix(f, suffix) {
			return true
		}
	}
	return false
}

func anyContains(files []string, needle string) bool {
	for _, f := range files {
		if strings.Contains(f, needle) {
			return true
		}
	}
	return false
}

func firstWithSuffix(files []string, suffix string) string {
	for _, f := range files {
		if strings.HasSuffix(f, suffix) {
			return f
		}
	}
	return ""
}
