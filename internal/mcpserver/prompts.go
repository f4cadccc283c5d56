package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptArgument is declared in frontmatter and substituted as {{name}}.
type promptArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Default     string `yaml:"default"`
	Required    bool   `yaml:"required"`
}

type promptFrontmatter struct {
	Description string           `yaml:"description"`
	Arguments   []promptArgument `yaml:"arguments"`
}

type promptTemplate struct {
	name string
	meta promptFrontmatter
	body string
}

// loadPrompts reads every embedded prompt template, sorted by name.
func loadPrompts() ([]promptTemplate, error) {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		return nil, err
	}

	var out []promptTemplate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		content, err := promptFiles.ReadFile(path.Join("prompts", entry.Name()))
		if err != nil {
			return nil, err
		}
		meta, body := parseFrontmatter(content)
		out = append(out, promptTemplate{
			name: strings.TrimSuffix(entry.Name(), ".md"),
			meta: meta,
			body: body,
		})
	}
	return out, nil
}

func (s *Server) registerPrompts() {
	prompts, err := loadPrompts()
	if err != nil {
		s.logger.Warn("prompts unavailable", "error", err)
		return
	}
	for _, p := range prompts {
		prompt := &mcp.Prompt{
			Name:        p.name,
			Description: p.meta.Description,
		}
		for _, arg := range p.meta.Arguments {
			prompt.Arguments = append(prompt.Arguments, &mcp.PromptArgument{
				Name:        arg.Name,
				Description: arg.Description,
				Required:    arg.Required,
			})
		}
		s.server.AddPrompt(prompt, p.handler())
	}
}

// parseFrontmatter splits a leading YAML block from the template body.
// Content without a valid block is returned whole as the body.
func parseFrontmatter(content []byte) (promptFrontmatter, string) {
	var meta promptFrontmatter
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return meta, string(content)
	}

	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end == -1 {
		return meta, string(content)
	}
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return promptFrontmatter{}, string(content)
	}
	return meta, strings.TrimPrefix(string(rest[end+5:]), "\n")
}

// render substitutes {{name}} placeholders, falling back to declared defaults.
func (p promptTemplate) render(args map[string]string) string {
	pairs := make([]string, 0, 2*len(p.meta.Arguments))
	for _, arg := range p.meta.Arguments {
		value := args[arg.Name]
		if value == "" {
			value = arg.Default
		}
		pairs = append(pairs, "{{"+arg.Name+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(p.body)
}

func (p promptTemplate) handler() mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		return &mcp.GetPromptResult{
			Description: p.meta.Description,
			Messages: []*mcp.PromptMessage{
				{
					Role:    "user",
					Content: &mcp.TextContent{Text: p.render(args)},
				},
			},
		}, nil
	}
}
