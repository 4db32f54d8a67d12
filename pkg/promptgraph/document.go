package promptgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the file form of a workflow: what the CLI loads and what tick
// checkpoints store. Node history is not included.
type Document struct {
	Name  string    `json:"name,omitempty" yaml:"name,omitempty"`
	Nodes []NodeDoc `json:"nodes" yaml:"nodes"`
	Edges []Edge    `json:"edges" yaml:"edges"`
}

// NodeDoc is one node of a Document. Only the fields of its kind are used.
type NodeDoc struct {
	ID     string `json:"id" yaml:"id"`
	Kind   Kind   `json:"kind" yaml:"kind"`
	Status Status `json:"status,omitempty" yaml:"status,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`

	WorkflowName string `json:"workflowName,omitempty" yaml:"workflowName,omitempty"`

	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens    int      `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	SystemPrompt string   `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`

	Content         string `json:"content,omitempty" yaml:"content,omitempty"`
	IsStreaming     bool   `json:"isStreaming,omitempty" yaml:"isStreaming,omitempty"`
	StreamedContent string `json:"streamedContent,omitempty" yaml:"streamedContent,omitempty"`
	TokenCount      *int   `json:"tokenCount,omitempty" yaml:"tokenCount,omitempty"`
}

// ToDocument captures the nodes and edges of r. Idle statuses are omitted.
func ToDocument(r Reader, name string) Document {
	doc := Document{Name: name, Edges: r.Edges()}
	for _, n := range r.Nodes() {
		nd := NodeDoc{ID: n.ID, Kind: n.Kind(), Error: n.Error}
		if n.Status != StatusIdle {
			nd.Status = n.Status
		}
		switch d := n.Data.(type) {
		case *StartData:
			nd.WorkflowName = d.WorkflowName
		case *TextPromptData:
			nd.Text = d.Text
		case *LLMData:
			t := d.Temperature
			nd.Model = d.Model
			nd.Temperature = &t
			nd.MaxTokens = d.MaxTokens
			nd.SystemPrompt = d.SystemPrompt
		case *OutputData:
			nd.Content = d.Content
			nd.IsStreaming = d.IsStreaming
			nd.StreamedContent = d.StreamedContent
			nd.TokenCount = d.TokenCount
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc
}

// FromDocument builds a graph from doc. LLM nodes without a temperature or
// max token count take them from defaults.
func FromDocument(doc Document, defaults LLMDefaults, opts ...GraphOption) (*Graph, error) {
	g := NewGraph(opts...)
	for _, nd := range doc.Nodes {
		n, err := nd.node(defaults)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range doc.Edges {
		if err := g.AddEdge(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (nd NodeDoc) node(defaults LLMDefaults) (Node, error) {
	n := Node{ID: nd.ID, Status: nd.Status, Error: nd.Error}
	switch nd.Kind {
	case KindStart:
		n.Data = &StartData{WorkflowName: nd.WorkflowName}
	case KindTextPrompt:
		n.Data = &TextPromptData{Text: nd.Text}
	case KindLLM:
		d := &LLMData{
			Model:        nd.Model,
			Temperature:  defaults.Temperature,
			MaxTokens:    nd.MaxTokens,
			SystemPrompt: nd.SystemPrompt,
		}
		if nd.Temperature != nil {
			d.Temperature = *nd.Temperature
		}
		if d.MaxTokens == 0 {
			d.MaxTokens = defaults.MaxTokens
		}
		n.Data = d
	case KindOutput:
		n.Data = &OutputData{
			Content:         nd.Content,
			IsStreaming:     nd.IsStreaming,
			StreamedContent: nd.StreamedContent,
			TokenCount:      nd.TokenCount,
		}
	default:
		return Node{}, fmt.Errorf("%w: node %s has unknown kind %q", ErrInvalidPayload, nd.ID, nd.Kind)
	}
	return n, nil
}

// LoadDocument reads a workflow file. Files ending in .json are decoded as
// JSON, anything else as YAML.
func LoadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read workflow: %w", err)
	}
	var doc Document
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return Document{}, fmt.Errorf("parse workflow %s: %w", path, err)
	}
	return doc, nil
}
