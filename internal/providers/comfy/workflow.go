package comfy

import (
	"encoding/json"
	"fmt"
	"os"
)

// Node is one node of a workflow in ComfyUI's API format.
type Node struct {
	Inputs    map[string]any `json:"inputs"`
	ClassType string         `json:"class_type"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// Workflow maps node ids to nodes.
type Workflow map[string]Node

// NodeIDs names the nodes the generator fills in.
type NodeIDs struct {
	LoadImage string `json:"loadImage" mapstructure:"loadImage"`
	Prompt    string `json:"prompt" mapstructure:"prompt"`
	Sampler   string `json:"sampler" mapstructure:"sampler"`
}

// DefaultNodeIDs match the bundled image-edit workflow.
func DefaultNodeIDs() NodeIDs {
	return NodeIDs{LoadImage: "78", Prompt: "76", Sampler: "3"}
}

// LoadWorkflow reads an API-format workflow file.
func LoadWorkflow(path string) (Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading workflow: %w", err)
	}
	var wf Workflow
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("error parsing workflow: %w", err)
	}
	if len(wf) == 0 {
		return nil, fmt.Errorf("workflow %s has no nodes", path)
	}
	return wf, nil
}

// Clone deep-copies the workflow so a template can be filled repeatedly.
func (w Workflow) Clone() Workflow {
	out := make(Workflow, len(w))
	for id, node := range w {
		n := Node{ClassType: node.ClassType, Inputs: make(map[string]any, len(node.Inputs))}
		for k, v := range node.Inputs {
			n.Inputs[k] = v
		}
		if node.Meta != nil {
			n.Meta = make(map[string]any, len(node.Meta))
			for k, v := range node.Meta {
				n.Meta[k] = v
			}
		}
		out[id] = n
	}
	return out
}

// Fill returns a copy of the template with the source image, edit prompt
// and seed set. Nodes absent from the template are skipped; missing reports
// which ones.
func (w Workflow) Fill(ids NodeIDs, image, prompt string, seed int64) (filled Workflow, missing []string) {
	filled = w.Clone()
	set := func(id, key string, v any) {
		node, ok := filled[id]
		if !ok {
			missing = append(missing, id)
			return
		}
		if node.Inputs == nil {
			node.Inputs = map[string]any{}
		}
		node.Inputs[key] = v
		filled[id] = node
	}
	set(ids.LoadImage, "image", image)
	set(ids.Prompt, "prompt", prompt)
	set(ids.Sampler, "seed", seed)
	return filled, missing
}
