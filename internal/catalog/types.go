package catalog

// Module is a top-level curriculum unit composed of topics.
type Module struct {
	ID             string  `yaml:"id" json:"id"`
	Name           string  `yaml:"name" json:"name"`
	Description    string  `yaml:"description" json:"description"`
	Category       string  `yaml:"category" json:"category"`
	Difficulty     string  `yaml:"difficulty" json:"difficulty"`
	EstimatedHours int     `yaml:"estimated_hours" json:"estimated_hours"`
	TopicCount     int     `yaml:"topic_count" json:"topic_count"`
	Completion     int     `yaml:"completion" json:"completion"` // 0..100, informational
	Topics         []Topic `yaml:"topics" json:"topics,omitempty"`
}

// CompletedTopics counts topics flagged as completed.
func (m Module) CompletedTopics() int {
	n := 0
	for _, t := range m.Topics {
		if t.Completed {
			n++
		}
	}
	return n
}

// Topic is a lesson unit owned by exactly one module. Slice order is display order.
type Topic struct {
	ID        string `yaml:"id" json:"id"`
	Title     string `yaml:"title" json:"title"`
	Completed bool   `yaml:"completed" json:"completed"`
	Duration  string `yaml:"duration" json:"duration"`
	Body      string `yaml:"body" json:"body,omitempty"` // markdown
}

// Question is read-only interview-preparation reference data.
type Question struct {
	ID           int    `yaml:"id" json:"id"`
	Title        string `yaml:"title" json:"title"`
	Difficulty   string `yaml:"difficulty" json:"difficulty"`
	Company      string `yaml:"company" json:"company"`
	Category     string `yaml:"category" json:"category"`
	TimeEstimate string `yaml:"time_estimate" json:"time_estimate"`
	Frequency    int    `yaml:"frequency" json:"frequency"`
	Description  string `yaml:"description" json:"description"`
}

// NotFoundModule is substituted for unknown module identifiers.
func NotFoundModule(id string) Module {
	return Module{
		ID:          id,
		Name:        "Module Not Found",
		Description: "This module is coming soon...",
		Difficulty:  "Unknown",
		Topics:      []Topic{},
	}
}

// NotFoundTopic is substituted for unknown topic identifiers.
func NotFoundTopic(id string) Topic {
	return Topic{
		ID:    id,
		Title: "Topic Not Found",
		Body:  "This topic is coming soon...",
	}
}

type modulesFile struct {
	Modules []Module `yaml:"modules"`
}

type questionsFile struct {
	Questions []Question `yaml:"questions"`
}
