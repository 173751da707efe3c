package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "fedimint-http"

// Topics builds topic names under a prefix.
type Topics struct {
	prefix string
}

// NewTopics returns builders for prefix, falling back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string { return t.prefix }

// Status is the retained online/offline topic.
func (t Topics) Status() string { return t.prefix + "/status" }

// Federations is the retained list of registered federations.
func (t Topics) Federations() string { return t.prefix + "/federations" }

// OperationEvent carries every lifecycle event of one operation.
func (t Topics) OperationEvent(federation, kind, operation string) string {
	return t.operation(federation, kind, operation) + "/event"
}

// OperationOutcome carries the final outcome of one operation.
func (t Topics) OperationOutcome(federation, kind, operation string) string {
	return t.operation(federation, kind, operation) + "/outcome"
}

// AllOperations matches every operation topic.
func (t Topics) AllOperations() string { return t.prefix + "/operations/#" }

func (t Topics) operation(federation, kind, operation string) string {
	return strings.Join([]string{t.prefix, "operations", segment(federation), segment(kind), segment(operation)}, "/")
}

// segment makes s safe as a single topic level.
func segment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
