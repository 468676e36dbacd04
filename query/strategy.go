package query

import (
	"fmt"

	"github.com/poiesic/studyforge/core"
)

// Method names the answering path recorded on an Envelope.
type Method string

const (
	MethodKnowledgeGraph Method = "knowledge_graph"
	MethodContextLLM     Method = "context_llm"
)

// Strategy is the answering path chosen for one question. It is either a
// GraphStrategy or a ContextStrategy.
type Strategy interface {
	Method() Method
	fmt.Stringer
	strategy()
}

// GraphStrategy answers through the topic's graph engine.
type GraphStrategy struct {
	Mode core.QueryMode
}

// Method implements Strategy.
func (GraphStrategy) Method() Method { return MethodKnowledgeGraph }

func (s GraphStrategy) String() string { return "graph(" + string(s.Mode) + ")" }

func (GraphStrategy) strategy() {}

// ContextStrategy answers from the topic's raw content within Budget tokens.
type ContextStrategy struct {
	Budget int
}

// Method implements Strategy.
func (ContextStrategy) Method() Method { return MethodContextLLM }

func (s ContextStrategy) String() string { return fmt.Sprintf("context(%d)", s.Budget) }

func (ContextStrategy) strategy() {}

// Resolve picks the strategy for topic.
func Resolve(topic *core.Topic, mode core.QueryMode, contextBudget int) Strategy {
	if topic.UseKnowledgeGraph {
		return GraphStrategy{Mode: mode}
	}
	return ContextStrategy{Budget: contextBudget}
}
