package scenario

// MemoryBank returns the built-in memory bank scenarios.
func MemoryBank() []Scenario {
	return []Scenario{
		{
			Name:   "Boot Procedure",
			Prompt: "Hi again, Claude!",
			Indicators: []string{
				"Prime Directive",
				"Make it so",
				"partnership",
				"hooks",
				"completion",
			},
			Policy: All,
		},
		{
			Name:   "Consolidation Trigger",
			Prompt: "I need to implement a complex feature with multiple steps. Can you help me plan it out?",
			Indicators: []string{
				"todo",
				"plan",
				"steps",
				"track",
				"organize",
			},
			Policy: Any,
		},
		{
			Name:   "Memory Retrieval",
			Setup:  []string{"I use vim keybindings and prefer minimal UI."},
			Prompt: "What do you know about my preferences?",
			Indicators: []string{
				"vim",
				"keybindings",
				"minimal",
				"preferences",
				"remember",
			},
			Policy: AtLeast(2),
		},
	}
}
