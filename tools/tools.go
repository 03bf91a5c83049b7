package tools

import (
	"encoding/json"
	"strings"

	"github.com/effective-security/toolagent/pkg/llms"
	"github.com/effective-security/toolagent/pkg/llmutils"
	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// InputSchema is the parameter schema of a tool.
type InputSchema struct {
	Properties map[string]any `json:"properties" yaml:"properties"`
	Required   []string       `json:"required" yaml:"required"`
}

// Declaration is a tool advertised by a tool host.
type Declaration struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	InputSchema InputSchema `json:"input_schema" yaml:"input_schema"`
}

// ToLLMTool converts the declaration to the model's function declaration.
// Properties and required names are copied unchanged, missing sections
// become empty.
func ToLLMTool(d Declaration) llms.Tool {
	props := d.InputSchema.Properties
	if props == nil {
		props = map[string]any{}
	}
	required := d.InputSchema.Required
	if required == nil {
		required = []string{}
	}
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        d.Name,
			Description: strings.TrimSpace(d.Description),
			Parameters: map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		},
	}
}

// ToLLMTools converts the declarations, keeping their order.
func ToLLMTools(list []Declaration) []llms.Tool {
	res := make([]llms.Tool, 0, len(list))
	for _, d := range list {
		res = append(res, ToLLMTool(d))
	}
	return res
}

// FromMCP converts tools listed by an MCP server.
func FromMCP(list []mcpsdk.Tool) []Declaration {
	res := make([]Declaration, 0, len(list))
	for _, t := range list {
		d := Declaration{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: InputSchema{
				Properties: t.InputSchema.Properties,
				Required:   t.InputSchema.Required,
			},
		}
		if len(t.RawInputSchema) > 0 {
			var raw InputSchema
			if err := json.Unmarshal(t.RawInputSchema, &raw); err == nil {
				d.InputSchema = raw
			}
		}
		res = append(res, d)
	}
	return res
}

// Catalog is the set of tools available for one query, in listing order.
type Catalog struct {
	list *orderedmap.OrderedMap[string, Declaration]
}

// NewCatalog returns a catalog of the declarations.
// A repeated name keeps the first declaration.
func NewCatalog(list []Declaration) *Catalog {
	m := orderedmap.New[string, Declaration]()
	for _, d := range list {
		if _, ok := m.Get(d.Name); !ok {
			m.Set(d.Name, d)
		}
	}
	return &Catalog{list: m}
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	return c.list.Len()
}

// Lookup returns the declaration of the named tool.
func (c *Catalog) Lookup(name string) (Declaration, bool) {
	return c.list.Get(name)
}

// Names returns the tool names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, c.list.Len())
	for pair := c.list.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Declarations returns the tools in listing order.
func (c *Catalog) Declarations() []Declaration {
	list := make([]Declaration, 0, c.list.Len())
	for pair := c.list.Oldest(); pair != nil; pair = pair.Next() {
		list = append(list, pair.Value)
	}
	return list
}

// LLMTools returns the model's function declarations of the catalog.
func (c *Catalog) LLMTools() []llms.Tool {
	return ToLLMTools(c.Declarations())
}

type toolsDescription struct {
	Tools []Declaration `json:"tools" yaml:"tools"`
}

// Describe returns a YAML document listing the tools.
func Describe(list ...Declaration) string {
	return llmutils.ToYAML(toolsDescription{Tools: list})
}
