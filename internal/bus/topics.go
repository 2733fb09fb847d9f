package bus

// Fixed topic names the normalizer's canonical records are published to.
const (
	TopicEvents   = "events"
	TopicLocation = "location"
	TopicStatus   = "status"
)
