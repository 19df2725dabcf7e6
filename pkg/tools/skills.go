package tools

// Skill is a named bundle of tool names. The firewall composes skills, not
// individual tools, so capability grants stay coarse and auditable.
type Skill struct {
	Name      string
	ToolNames []string
}

// Built-in skill names.
const (
	SkillCoreContext = "core_context"
	SkillCoreWorld   = "core_world"
	SkillMemoryRead  = "mcp_memory_read"
	SkillMemoryWrite = "mcp_memory_write"
)

// BuiltinSkills returns the static skill table.
func BuiltinSkills() map[string]Skill {
	return map[string]Skill{
		SkillCoreContext: {
			Name:      SkillCoreContext,
			ToolNames: []string{"chat_history_tail"},
		},
		SkillCoreWorld: {
			Name:      SkillCoreWorld,
			ToolNames: []string{"world_apply_ops"},
		},
		SkillMemoryRead: {
			Name:      SkillMemoryRead,
			ToolNames: []string{"memory_query"},
		},
		SkillMemoryWrite: {
			Name:      SkillMemoryWrite,
			ToolNames: []string{"memory_store"},
		},
	}
}

// Node keys used by the policy and graph.
const (
	NodeRouter          = "llm.router"
	NodeContextBuilder  = "llm.context_builder"
	NodeMemoryRetriever = "llm.memory_retriever"
	NodeWorldModifier   = "llm.world_modifier"
	NodeAnswer          = "llm.answer"
	NodeReflectTopics   = "llm.reflect_topics"
	NodeMemoryWriter    = "llm.memory_writer"
)

// DefaultPolicy maps each node key to the skills it may see. Nodes absent
// from the map get no tools at all.
func DefaultPolicy() map[string][]string {
	return map[string][]string{
		NodeContextBuilder:  {SkillCoreContext, SkillMemoryRead},
		NodeMemoryRetriever: {SkillMemoryRead},
		NodeWorldModifier:   {SkillCoreWorld},
		NodeMemoryWriter:    {SkillMemoryWrite},
	}
}
