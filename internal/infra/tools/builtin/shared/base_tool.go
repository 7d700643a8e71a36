package shared

// BaseTool carries a tool's definition and metadata. Embedding tools only
// implement Execute.
type BaseTool struct {
	definition ToolDefinition
	metadata   ToolMetadata
}

// NewBaseTool keeps the definition and metadata names in sync when only one
// side sets it.
func NewBaseTool(def ToolDefinition, meta ToolMetadata) BaseTool {
	switch {
	case def.Name == "" && meta.Name != "":
		def.Name = meta.Name
	case meta.Name == "" && def.Name != "":
		meta.Name = def.Name
	}
	return BaseTool{definition: def, metadata: meta}
}

func (b BaseTool) Definition() ToolDefinition { return b.definition }
func (b BaseTool) Metadata() ToolMetadata     { return b.metadata }
